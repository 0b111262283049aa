package cmd

import (
	"fmt"
	"os"

	"github.com/sourcerie/affut/internal/pkg/config"
	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "affut",
	Short: "Recruitment-post watcher for French dental practices",
	Long: `Affut watches a platform's public search for posts where French dental
practices are hiring, qualifies each candidate post against a French
lexicon and strict quota rules, and persists only the ones worth a human
look. It paces itself like a person browsing and backs off on the first
sign of friction.
`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Initialize config here, after cobra has parsed command line flags
		config.BindFlags(cmd.Flags())
		if err := config.InitConfig(); err != nil {
			fmt.Printf("error initializing config: %s\n", err)
			os.Exit(1)
		}

		cfg = config.Get()
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Run the root command
func Run() error {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().String("config-file", "", "Config file (default is $HOME/affut-config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Stdout log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Int("api-port", 9443, "Port the control-plane API listens on.")

	runCMDsFlags(runCmd)
	triggerCmdFlags(triggerCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(triggerCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd.Execute()
}
