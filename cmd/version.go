package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/sourcerie/affut/internal/pkg/utils"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the version number",
	Run: func(_ *cobra.Command, _ []string) {
		version := utils.GetVersion()

		fmt.Println("affut", version.Version)
		fmt.Println("- go/version:", version.GoVersion)
	},
}

var versionDepsCmd = &cobra.Command{
	Use:   "deps",
	Short: "List the build's dependencies",
	Run: func(_ *cobra.Command, _ []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, dep := range info.Deps {
			fmt.Printf("%s %s (%s)", dep.Path, dep.Version, dep.Sum)
			if dep.Replace != nil {
				fmt.Printf(" => %s %s (%s)\n", dep.Replace.Path, dep.Replace.Version, dep.Replace.Sum)
			} else {
				fmt.Print("\n")
			}
		}
	},
}

func init() {
	versionCmd.AddCommand(versionDepsCmd)
}
