package cmd

import (
	"github.com/sourcerie/affut/internal/pkg/fetcher/playwright"
	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Download the browser the fetcher drives",
	RunE: func(_ *cobra.Command, _ []string) error {
		return playwright.Install()
	},
}
