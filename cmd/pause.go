package cmd

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

type pauseRequest struct {
	Paused  bool   `json:"paused"`
	Message string `json:"message,omitempty"`
}

var pauseCmd = &cobra.Command{
	Use:   "pause [message]",
	Short: "Pause the agent at its next suspension point",
	Args:  cobra.ArbitraryArgs,
	PreRunE: func(_ *cobra.Command, _ []string) error {
		if cfg == nil {
			return fmt.Errorf("viper config is nil")
		}
		return nil
	},
	RunE: func(_ *cobra.Command, args []string) error {
		req := pauseRequest{Paused: true, Message: strings.Join(args, " ")}

		var state pauseRequest
		if _, err := callAPI(http.MethodPatch, "/pause", req, &state); err != nil {
			return err
		}

		if state.Message != "" {
			fmt.Printf("paused: %s\n", state.Message)
		} else {
			fmt.Println("paused")
		}
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a paused agent",
	PreRunE: func(_ *cobra.Command, _ []string) error {
		if cfg == nil {
			return fmt.Errorf("viper config is nil")
		}
		return nil
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		if _, err := callAPI(http.MethodPatch, "/pause", pauseRequest{Paused: false}, nil); err != nil {
			return err
		}

		fmt.Println("resumed")
		return nil
	},
}
