// Affut watches a platform's public search for recruitment posts from French
// dental practices. It collects like a person would: paced, within working
// hours, backing off at the first sign of friction, and it keeps only the
// posts that qualify.
package main

import (
	"fmt"
	"os"

	"github.com/sourcerie/affut/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
