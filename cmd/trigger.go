package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Ask the agent to run a cycle now",
	PreRunE: func(_ *cobra.Command, _ []string) error {
		if cfg == nil {
			return fmt.Errorf("viper config is nil")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := "/trigger"
		if relaxed, _ := cmd.Flags().GetBool("relaxed-quota"); relaxed {
			path += "?relaxed=true"
		}

		status, err := callAPI(http.MethodPost, path, nil, nil)
		if status == http.StatusConflict {
			fmt.Println("a manual cycle is already pending")
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Println("cycle triggered")
		return nil
	},
}

func triggerCmdFlags(triggerCmd *cobra.Command) {
	triggerCmd.Flags().Bool("relaxed-quota", false, "Let this one cycle accept past the daily cap.")
}
