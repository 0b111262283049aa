package controler

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sourcerie/affut/internal/pkg/alerts"
	"github.com/sourcerie/affut/internal/pkg/api"
	"github.com/sourcerie/affut/internal/pkg/config"
	"github.com/sourcerie/affut/internal/pkg/controler/pause"
	"github.com/sourcerie/affut/internal/pkg/controler/watchers"
	"github.com/sourcerie/affut/internal/pkg/dedup"
	"github.com/sourcerie/affut/internal/pkg/fetcher/playwright"
	"github.com/sourcerie/affut/internal/pkg/log"
	"github.com/sourcerie/affut/internal/pkg/orchestrator"
	"github.com/sourcerie/affut/internal/pkg/pacing"
	"github.com/sourcerie/affut/internal/pkg/qualify"
	"github.com/sourcerie/affut/internal/pkg/repository"
	"github.com/sourcerie/affut/internal/pkg/risk"
	"github.com/sourcerie/affut/internal/pkg/schedule"
	"github.com/sourcerie/affut/internal/pkg/selectors"
	"github.com/sourcerie/affut/internal/pkg/stats"
	"github.com/sourcerie/affut/pkg/models"
	"github.com/spf13/afero"
)

const (
	// Consecutive failures before a leading selector strategy is demoted.
	selectorFailsToDemote = 3

	// How often the maintenance watcher sweeps the durable stores.
	maintenanceInterval = 6 * time.Hour
)

// Wired at startup, torn down by stopAgent in reverse order.
var (
	agentCtx    context.Context
	agentCancel context.CancelFunc
	agentWg     sync.WaitGroup
	stopOnce    sync.Once

	store      *repository.Store
	fins       *dedup.Store
	browser    *playwright.Client
	dispatcher *alerts.Dispatcher
	orch       *orchestrator.Orchestrator
)

func startAgent() error {
	err := log.Start()
	if err != nil {
		fmt.Println("error starting logger", "err", err.Error())
		return err
	}

	logger := log.NewFieldedLogger(&log.Fields{
		"component": "controler.startAgent",
	})

	cfg := config.Get()

	if err := os.MkdirAll(cfg.JobPath, 0755); err != nil {
		logger.Error("can't create job directory", "err", err.Error())
		return err
	}
	if err := watchers.CheckDiskUsage(cfg.JobPath); err != nil {
		logger.Error("can't start the agent", "err", err.Error())
		return err
	}

	if err := stats.Init(); err != nil {
		logger.Error("error initializing stats", "err", err.Error())
		return err
	}

	agentCtx, agentCancel = context.WithCancel(context.Background())
	clk := clockwork.NewRealClock()

	store, err = repository.New(cfg.JobPath, clk)
	if err != nil {
		logger.Error("error opening repository", "err", err.Error())
		return err
	}

	fins, err = dedup.New(cfg.JobPath, cfg.DedupCacheSize, clk)
	if err != nil {
		logger.Error("error opening dedup store", "err", err.Error())
		return err
	}

	lexicon, err := qualify.Load(afero.NewOsFs(), cfg.LexiconFile)
	if err != nil {
		logger.Error("error loading lexicon", "err", err.Error())
		return err
	}
	scorer := qualify.NewRuleScorer(cfg)
	quota := qualify.NewQuotaKeeper(store, clk)

	dispatcher = alerts.NewDispatcher(buildNotifier(cfg, logger), cfg.AlertQueueSize, 2)
	dispatcher.Start()

	registry, err := selectors.New(clk, selectorFailsToDemote, func(element models.ElementKind, _ uint64) {
		stats.SelectorExhaustedIncr()
		dispatcher.Publish(alerts.SelectorExhausted(string(element)))
	})
	if err != nil {
		logger.Error("error seeding selector registry", "err", err.Error())
		return err
	}

	governor := risk.New(cfg, clk, rand.New(rand.NewSource(clk.Now().UnixNano())))
	rotation := schedule.New(cfg)

	pacer, err := pacing.New(cfg, rand.New(rand.NewSource(clk.Now().UnixNano())))
	if err != nil {
		logger.Error("invalid pacing configuration", "err", err.Error())
		return err
	}

	// Restore must happen before the orchestrator is built: cycle numbering
	// continues from the persisted rotation state.
	restoreState(agentCtx, registry, governor, rotation, logger)

	browser, err = playwright.New(cfg, rand.New(rand.NewSource(clk.Now().UnixNano())))
	if err != nil {
		logger.Error("error starting browser session", "err", err.Error())
		return err
	}

	orch = orchestrator.New(orchestrator.Deps{
		Config:   cfg,
		Clock:    clk,
		Fetcher:  browser,
		Store:    store,
		Dedup:    fins,
		Quota:    quota,
		Scorer:   scorer,
		Lexicon:  lexicon,
		Schedule: rotation,
		Registry: registry,
		Risk:     governor,
		Pacer:    pacer,
		Alerts:   dispatcher,
	})

	if cfg.StartPaused {
		pause.Pause("start-paused is set, waiting for an operator resume")
	}

	sup := &supervisor{
		run:         orch.Run,
		cooldown:    cfg.RestartCooldown,
		maxRestarts: cfg.MaxRestarts,
		onGiveUp:    func() { go Stop() },
		logger: log.NewFieldedLogger(&log.Fields{
			"component": "controler.supervisor",
		}),
	}
	agentWg.Add(1)
	go func() {
		defer agentWg.Done()
		sup.loop(agentCtx)
	}()

	go watchers.WatchDiskSpace(cfg.JobPath, 5*time.Second)
	watchers.StartMaintenance(store, fins, maintenanceInterval, cfg.DedupRetention)

	if cfg.API {
		if err := api.Start(orch); err != nil {
			logger.Error("error starting API server", "err", err.Error())
			return err
		}
	}

	logger.Info("agent started", "job", cfg.Job)
	return nil
}

// restoreState reloads what earlier runs persisted. A failed load is logged
// and the component starts from its defaults; it never blocks startup.
func restoreState(ctx context.Context, registry *selectors.Registry, governor *risk.Governor, rotation *schedule.Controller, logger *log.FieldedLogger) {
	profiles, err := store.LoadSelectorStats(ctx)
	if err != nil {
		logger.Warn("could not load selector stats, starting from defaults", "err", err.Error())
	} else if len(profiles) > 0 {
		registry.Load(profiles)
	}

	st, found, err := store.LoadRiskState(ctx)
	if err != nil {
		logger.Warn("could not load risk state, starting fresh", "err", err.Error())
	} else if found {
		governor.Restore(st)
	}

	keywords, err := store.LoadKeywords(ctx)
	if err != nil {
		logger.Warn("could not load keyword rotation, starting fresh", "err", err.Error())
	} else if len(keywords) > 0 {
		rotation.Load(keywords)
	}
}

func buildNotifier(cfg *config.Config, logger *log.FieldedLogger) alerts.Notifier {
	if cfg.TelegramToken == "" {
		return alerts.NewLog()
	}
	tg, err := alerts.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
	if err != nil {
		logger.Error("telegram notifier unavailable, falling back to log alerts", "err", err.Error())
		return alerts.NewLog()
	}
	return tg
}

func stopAgent() {
	stopOnce.Do(func() {
		logger := log.NewFieldedLogger(&log.Fields{
			"component": "controler.stopAgent",
		})

		if agentCancel != nil {
			agentCancel()
		}
		agentWg.Wait()

		watchers.StopMaintenance()
		watchers.StopDiskWatcher()

		if config.Get().API {
			api.Stop(5 * time.Second)
		}

		if browser != nil {
			if err := browser.Close(); err != nil {
				logger.Error("error closing browser session", "err", err.Error())
			}
		}

		// The orchestrator has already flushed its state and published its
		// last alerts by the time agentWg releases, so the dispatcher and
		// the stores can go down now.
		if dispatcher != nil {
			dispatcher.Stop()
		}
		if fins != nil {
			if err := fins.Close(); err != nil {
				logger.Error("error closing dedup store", "err", err.Error())
			}
		}
		if store != nil {
			if err := store.Close(); err != nil {
				logger.Error("error closing repository", "err", err.Error())
			}
		}

		logger.Info("done, logs are flushing and will be closed")
		log.Stop()

		// Unblocks WatchSignals when the shutdown was not signal-initiated.
		signalWatcherCancel()
	})
}
