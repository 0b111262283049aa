package cmd

import (
	"fmt"
	"time"

	"github.com/sourcerie/affut/internal/pkg/config"
	"github.com/sourcerie/affut/internal/pkg/controler"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the collection agent",
	PreRunE: func(_ *cobra.Command, _ []string) error {
		if cfg == nil {
			return fmt.Errorf("viper config is nil")
		}

		return config.GenerateAgentConfig()
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := controler.Start(); err != nil {
			controler.Stop()
			return err
		}

		controler.WatchSignals()
		return nil
	},
}

func runCMDsFlags(runCmd *cobra.Command) {
	runCmd.PersistentFlags().String("job", "", "Job name to use, will determine the path for the stores, logs and screenshots.")

	// Session / browser flags
	runCmd.PersistentFlags().String("session-state-path", "", "Exported browser storage state holding the logged-in session.")
	runCmd.PersistentFlags().String("user-data-dir", "", "Persistent browser profile directory. Takes precedence over --session-state-path.")
	runCmd.PersistentFlags().Bool("headless", false, "Run the browser headless.")
	runCmd.PersistentFlags().String("user-agent", "", "Override the browser's own user agent.")
	runCmd.PersistentFlags().String("platform-base-url", "https://www.facebook.com", "Base URL of the platform to search on.")

	// Keyword rotation flags
	runCmd.PersistentFlags().StringSlice("keyword", []string{}, "Search keyword to rotate over. Repeatable.")
	runCmd.PersistentFlags().Int("keyword-batch-size", 6, "Hard ceiling on keywords visited per cycle, under the mode's own limit.")
	runCmd.PersistentFlags().Int("explore-count", 1, "Keywords per batch reserved for stale ones instead of the best yielders.")
	runCmd.PersistentFlags().Int("explore-staleness", 10, "Cycles without use after which a keyword counts as stale.")
	runCmd.PersistentFlags().Int("yield-window", 5, "Cycles of yield history kept per keyword.")

	// Quota flags
	runCmd.PersistentFlags().Int("daily-quota", 10, "Accepted posts per UTC day. 0 disables the cap.")

	// Qualification flags
	runCmd.PersistentFlags().String("lexicon-file", "", "YAML lexicon overriding the embedded French dental one.")
	runCmd.PersistentFlags().Float64("domain-threshold", 3.0, "Minimum domain-relevance score to accept a post.")
	runCmd.PersistentFlags().Float64("intent-threshold", 2.0, "Minimum recruitment-intent score to accept a post.")
	runCmd.PersistentFlags().Float64("language-ratio", 0.15, "Minimum ratio of French stopwords for a post to count as French.")
	runCmd.PersistentFlags().StringSlice("exclude-contract", []string{"interim", "cdd", "alternance", "apprentissage", "stage"}, "Contract categories to reject.")

	// Pacing flags
	runCmd.PersistentFlags().Float64("safety-factor", 3.0, "Global multiplier on every delay. 1.0 is the floor.")
	runCmd.PersistentFlags().Duration("nav-delay-min", 2*time.Second, "Shortest delay between page navigations.")
	runCmd.PersistentFlags().Duration("nav-delay-max", 6*time.Second, "Longest delay between page navigations.")
	runCmd.PersistentFlags().Duration("scroll-delay-min", 800*time.Millisecond, "Shortest delay between scrolls.")
	runCmd.PersistentFlags().Duration("scroll-delay-max", 2500*time.Millisecond, "Longest delay between scrolls.")
	runCmd.PersistentFlags().Int("break-after-actions", 40, "Actions before a session break is advised.")
	runCmd.PersistentFlags().Duration("break-min", 2*time.Minute, "Shortest session break.")
	runCmd.PersistentFlags().Duration("break-max", 10*time.Minute, "Longest session break.")
	runCmd.PersistentFlags().Int("active-hours-start", 9, "Hour of day the active window opens.")
	runCmd.PersistentFlags().Int("active-hours-end", 21, "Hour of day the active window closes.")
	runCmd.PersistentFlags().String("active-hours-zone", "Europe/Paris", "IANA zone the active window is evaluated in.")

	// Scheduling flags
	runCmd.PersistentFlags().Duration("interval-floor", 20*time.Minute, "Shortest interval between scheduled cycles.")
	runCmd.PersistentFlags().Duration("interval-ceiling", 2*time.Hour, "Longest interval between scheduled cycles.")
	runCmd.PersistentFlags().Float64("interval-shrink", 0.8, "Interval multiplier after a quiet, under-target cycle.")
	runCmd.PersistentFlags().Float64("interval-grow", 1.5, "Interval multiplier after a restriction or a filled quota.")
	runCmd.PersistentFlags().Int("yield-target", 5, "Accepted posts per cycle above which the interval stops shrinking.")

	// Risk governance flags
	runCmd.PersistentFlags().String("start-mode", "conservative", "Mode to start in (conservative, moderate, aggressive).")
	runCmd.PersistentFlags().Int("auth-suspect-threshold", 2, "Auth-suspect signals before a cooldown opens.")
	runCmd.PersistentFlags().Int("empty-result-threshold", 3, "Consecutive empty-result signals before a cooldown opens.")
	runCmd.PersistentFlags().Duration("cooldown-min", 30*time.Minute, "Shortest risk cooldown.")
	runCmd.PersistentFlags().Duration("cooldown-max", 6*time.Hour, "Longest risk cooldown. Restrictions always draw this one.")
	runCmd.PersistentFlags().Int("promotion-streak", 5, "Clean cycles with at least one accept before a mode promotion.")

	// Dedup flags
	runCmd.PersistentFlags().Int("dedup-cache-size", 20000, "Fingerprints held in the in-memory dedup cache.")
	runCmd.PersistentFlags().Duration("dedup-retention", 90*24*time.Hour, "How long fingerprints and accepted rows are kept.")

	// Fetching flags
	runCmd.PersistentFlags().Duration("fetch-timeout", 90*time.Second, "Timeout on one keyword's fetch.")
	runCmd.PersistentFlags().Duration("persist-timeout", 10*time.Second, "Timeout on one persistence write.")
	runCmd.PersistentFlags().Int("max-fetch-retries", 2, "Retries after a transient fetch failure, within the same cycle.")
	runCmd.PersistentFlags().Int("empty-fetch-limit", 3, "Consecutive empty keyword visits that end the cycle.")

	// Supervision & watcher flags
	runCmd.PersistentFlags().Duration("restart-cooldown", 1*time.Minute, "Wait before the supervisor restarts a crashed orchestrator.")
	runCmd.PersistentFlags().Int("max-restarts", 5, "Orchestrator restarts before the supervisor gives up.")
	runCmd.PersistentFlags().Int("min-space-required", 5, "Minimum free space in GB on the job directory to keep running.")

	// Alerting flags
	runCmd.PersistentFlags().String("telegram-token", "", "Telegram bot token for operator alerts. Empty logs alerts instead.")
	runCmd.PersistentFlags().Int64("telegram-chat-id", 0, "Telegram chat the alerts go to.")
	runCmd.PersistentFlags().Int("alert-queue-size", 16, "Alerts buffered before new ones are dropped.")

	// Logging flags
	runCmd.PersistentFlags().Bool("no-stdout-log", false, "Disable stdout logging.")
	runCmd.PersistentFlags().Bool("no-stderr-log", false, "Disable stderr logging.")
	runCmd.PersistentFlags().Bool("no-log-file", false, "Disable file logging.")
	runCmd.PersistentFlags().String("log-file-level", "info", "File log level (debug, info, warn, error).")
	runCmd.PersistentFlags().String("log-file-output-dir", "", "Directory to write log files to.")
	runCmd.PersistentFlags().String("log-file-prefix", "", "Prefix to use when naming the log files.")
	runCmd.PersistentFlags().String("log-file-rotation", "", "Log file rotation period, e.g. 1h. Empty disables rotation.")

	// API flags
	runCmd.PersistentFlags().Bool("api", false, "Enable the control-plane API.")
	runCmd.PersistentFlags().Bool("prometheus", false, "Export metrics in Prometheus format. (implies --api)")
	runCmd.PersistentFlags().String("prometheus-prefix", "affut:", "String used as a prefix for the exported Prometheus metrics.")

	runCmd.PersistentFlags().Bool("start-paused", false, "Come up paused and wait for an operator resume.")

	// Alias support
	// As cobra doesn't support aliases natively (couldn't find a way to do it), we have to do it manually
	// This is a workaround to allow users to use `--quota` instead of `--daily-quota` for example
	// Aliases shouldn't be used as proper flags nor declared in the config struct
	// Aliases should be marked as deprecated to inform the user base
	// Aliases values should be copied to the proper flag in the config/config.go:handleFlagsAliases() function
	runCmd.PersistentFlags().Int("quota", 10, "Accepted posts per UTC day.")
	runCmd.PersistentFlags().MarkDeprecated("quota", "use --daily-quota instead")
	runCmd.PersistentFlags().MarkHidden("quota")

	runCmd.PersistentFlags().Int("msr", 5, "Minimum free space in GB on the job directory to keep running.")
	runCmd.PersistentFlags().MarkDeprecated("msr", "use --min-space-required instead")
	runCmd.PersistentFlags().MarkHidden("msr")
}
