package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sourcerie/affut/internal/pkg/api"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running agent's status",
	PreRunE: func(_ *cobra.Command, _ []string) error {
		if cfg == nil {
			return fmt.Errorf("viper config is nil")
		}
		return nil
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		var st api.StatusResponse
		if _, err := callAPI(http.MethodGet, "/status", nil, &st); err != nil {
			return err
		}

		fmt.Printf("%s %s on %s\n", st.Role, st.Version, st.Host)
		if started, err := time.Parse(time.RFC3339, st.StartTime); err == nil {
			fmt.Printf("up since %s (%s)\n", st.StartTime, humanize.Time(started))
		}

		a := st.Agent
		fmt.Printf("mode: %s", a.Mode)
		if a.Paused {
			fmt.Printf("  [paused: %s]", a.PauseMessage)
		}
		if a.Running {
			fmt.Printf("  [cycle in flight]")
		}
		fmt.Println()

		fmt.Printf("interval: %s", a.Interval)
		if a.NextRunAt != "" {
			fmt.Printf("  next run: %s", a.NextRunAt)
		}
		if a.CooldownUntil != "" {
			fmt.Printf("  cooling down until: %s", a.CooldownUntil)
		}
		fmt.Println()

		q := a.Quota
		if q.Cap > 0 {
			fmt.Printf("quota %s: %d/%d accepted, %d left\n", q.Date, q.Accepted, q.Cap, q.Remaining)
		} else {
			fmt.Printf("quota %s: %d accepted, no cap\n", q.Date, q.Accepted)
		}

		if lc := a.LastCycle; lc != nil {
			fmt.Printf("last cycle #%d: %s, %d seen / %d accepted / %d duplicate (%s)\n",
				lc.ID, lc.Reason, lc.ItemsSeen, lc.ItemsAccepted, lc.ItemsDuplicate,
				(time.Duration(lc.DurationMS) * time.Millisecond).String())
		} else {
			fmt.Println("no cycle has run yet")
		}

		degraded := 0
		for _, sel := range a.Selectors {
			if sel.State != "active" {
				degraded++
			}
		}
		fmt.Printf("selectors: %d elements", len(a.Selectors))
		if degraded > 0 {
			fmt.Printf(", %d not on their primary strategy", degraded)
		}
		fmt.Println()

		return nil
	},
}
