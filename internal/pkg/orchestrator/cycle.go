package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sourcerie/affut/internal/pkg/alerts"
	"github.com/sourcerie/affut/internal/pkg/config"
	"github.com/sourcerie/affut/internal/pkg/controler/pause"
	"github.com/sourcerie/affut/internal/pkg/fetcher"
	"github.com/sourcerie/affut/internal/pkg/repository"
	"github.com/sourcerie/affut/internal/pkg/stats"
	"github.com/sourcerie/affut/pkg/models"
)

const retryBackoff = 2 * time.Second

// planElements is every element the fetcher needs a strategy plan for.
var planElements = []models.ElementKind{
	models.ElementPost,
	models.ElementAuthor,
	models.ElementTimestamp,
	models.ElementPermalink,
	models.ElementBody,
	models.ElementExpand,
	models.ElementRestricted,
	models.ElementCheckpoint,
}

// runCycle runs one collection cycle end to end: gates, keyword visits,
// qualification, persistence, then the adaptive bookkeeping. Manual cycles
// skip the active-window gate; relaxed ones waive the daily cap. The risk
// cooldown gates every cycle, manual or not.
func (o *Orchestrator) runCycle(ctx context.Context, chans *pause.ControlChans, manual, relaxed bool) {
	if !o.running.CompareAndSwap(false, true) {
		return
	}
	defer o.running.Store(false)

	flags := o.flags()
	mode := o.risk.Mode()
	limits := models.LimitsFor(mode)
	started := o.clk.Now()

	result := models.CycleResult{
		ID:        o.cycleSeq.Add(1),
		StartedAt: started.UTC(),
		Mode:      mode,
		Reason:    models.EndCompleted,
	}

	stats.CyclesStartedIncr()
	o.alerts.BeginCycle()
	o.registry.BeginCycle(result.ID)
	o.pacer.BeginCycle(mode, flags)

	o.logger.Info("cycle starting",
		"cycle", result.ID, "mode", mode.String(), "manual", manual, "relaxed_quota", relaxed)

	if !o.risk.IsAllowed(started) {
		result.Reason = models.EndCooldown
		o.finishCycle(&result, started, false, nil)
		return
	}

	if !manual {
		if active, _ := o.pacer.ActiveWindow(started); !active {
			result.Reason = models.EndOutsideWindow
			o.finishCycle(&result, started, false, nil)
			return
		}
	}

	allowed, err := o.quota.Check(ctx, flags.DailyQuota, relaxed)
	if err != nil {
		o.logger.Error("quota check failed", "cycle", result.ID, "err", err.Error())
		o.alerts.Publish(alerts.StoreDegraded(err))
		result.Reason = models.EndFailed
		o.finishCycle(&result, started, false, nil)
		return
	}
	if !allowed {
		// The cap was already reported when it was hit; cycles that start
		// against a spent quota just stand down quietly.
		result.Reason = models.EndQuotaReached
		o.finishCycle(&result, started, false, nil)
		return
	}

	// The mode sets the batch ceiling; keyword-batch-size is an operator
	// ceiling under it.
	batchSize := limits.MaxKeywordsPerCycle
	if n := o.cfg.KeywordBatchSize; n > 0 && n < batchSize {
		batchSize = n
	}

	batch := o.schedule.NextBatch(batchSize)
	if len(batch) == 0 {
		o.logger.Warn("no enabled keywords to visit", "cycle", result.ID)
		result.Reason = models.EndEmptyBatch
		o.finishCycle(&result, started, false, nil)
		return
	}

	perYield := make(map[string]int)
	emptyStreak := 0
	sawAuthSuspect := false

	for _, kw := range batch {
		paused, err := o.checkpoint(ctx, chans)
		if err != nil {
			result.Reason = models.EndShutdown
			break
		}
		if paused {
			result.Reason = models.EndPaused
			break
		}

		// A signal observed mid-cycle can open a cooldown. Stop at once
		// instead of finishing the batch.
		if !o.risk.IsAllowed(o.clk.Now()) {
			result.Reason = models.EndCooldown
			break
		}

		result.KeywordsUsed = append(result.KeywordsUsed, kw.Term)

		req := &fetcher.Request{
			Keyword:  kw,
			MaxItems: limits.MaxItemsPerKeyword,
			Plans:    o.plans(),
			Pacer:    o.pacer,
		}

		fres, ferr := o.fetchWithRetry(ctx, req)
		if fres != nil {
			o.applyOutcomes(fres)
			result.UnknownAuthorCount += fres.UnknownAuthors
		}

		if errors.Is(ferr, fetcher.ErrRestricted) || (fres != nil && fres.Restricted) {
			result.RestrictionDetected = true
			result.Reason = models.EndRestriction
			stats.RestrictionIncr()
			o.risk.Observe(models.SignalRestriction)

			shot := ""
			if fres != nil {
				shot = fres.ScreenshotPath
			}
			o.alerts.Publish(alerts.RestrictionDetected(kw.Term, shot))
			o.logger.Warn("restriction detected, ending cycle",
				"cycle", result.ID, "keyword", kw.Term)
			break
		}
		if ferr != nil {
			if ctx.Err() != nil {
				result.Reason = models.EndShutdown
				break
			}
			result.Reason = models.EndFetchFailed
			o.logger.Error("fetch failed", "cycle", result.ID, "keyword", kw.Term, "err", ferr.Error())
			o.alerts.Publish(alerts.CycleFailed(result.ID, ferr))
			break
		}

		if fres.AuthSuspect && !sawAuthSuspect {
			sawAuthSuspect = true
			o.risk.Observe(models.SignalAuthSuspect)
			o.logger.Warn("authentication checkpoint suspected",
				"cycle", result.ID, "keyword", kw.Term)
		}

		result.ItemsSeen += len(fres.Items)
		stats.ItemsSeenIncr(uint64(len(fres.Items)))

		if len(fres.Items) == 0 {
			// An auth checkpoint explains an empty page on its own; only
			// genuinely empty results feed the empty-streak signal.
			if !fres.AuthSuspect {
				o.risk.Observe(models.SignalEmptyResult)
			}
			emptyStreak++
			if emptyStreak >= o.cfg.EmptyFetchLimit {
				result.Reason = models.EndEmptyBatch
				o.logger.Warn("consecutive empty fetches, ending cycle",
					"cycle", result.ID, "streak", emptyStreak)
				break
			}
		} else {
			emptyStreak = 0

			quotaHit, perr := o.processItems(ctx, fres.Items, flags, relaxed, &result, perYield)
			if perr != nil {
				if ctx.Err() != nil {
					result.Reason = models.EndShutdown
				} else {
					result.Reason = models.EndFailed
					o.logger.Error("item processing failed", "cycle", result.ID, "err", perr.Error())
					o.alerts.Publish(alerts.StoreDegraded(perr))
				}
				break
			}
			if quotaHit {
				result.Reason = models.EndQuotaReached
				stats.QuotaReachedIncr()

				dq := o.quota.Snapshot()
				o.alerts.Publish(alerts.QuotaReached(dq.Date, dq.Accepted))
				o.logger.Info("daily quota reached", "cycle", result.ID, "accepted", dq.Accepted)
				break
			}
		}

		if o.pacer.ShouldBreak() {
			d := o.pacer.BreakDuration()
			o.logger.Debug("session break", "cycle", result.ID, "duration", d.String())

			paused, err := o.rest(ctx, chans, d)
			if err != nil {
				result.Reason = models.EndShutdown
				break
			}
			if paused {
				result.Reason = models.EndPaused
				break
			}
		}
	}

	// A clean cycle ended on its own terms, free of restriction and auth
	// doubt, and actually produced something.
	if !result.RestrictionDetected && !sawAuthSuspect && result.ItemsAccepted > 0 &&
		(result.Reason == models.EndCompleted || result.Reason == models.EndQuotaReached) {
		o.risk.Observe(models.SignalCleanCycle)
	}

	o.finishCycle(&result, started, true, perYield)
}

// fetchWithRetry runs one keyword visit, retrying transient failures with
// a linear backoff. Restrictions and cancellations are never retried.
func (o *Orchestrator) fetchWithRetry(ctx context.Context, req *fetcher.Request) (*fetcher.Result, error) {
	var lastErr error

	for attempt := 0; attempt <= o.cfg.MaxFetchRetries; attempt++ {
		if attempt > 0 {
			o.logger.Warn("retrying fetch",
				"keyword", req.Keyword.Term, "attempt", attempt, "err", lastErr.Error())
			if err := o.wait(ctx, time.Duration(attempt)*retryBackoff); err != nil {
				return nil, err
			}
		}

		fctx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
		res, err := o.fetcher.FetchCandidates(fctx, req)
		cancel()

		if err == nil {
			return res, nil
		}
		if errors.Is(err, fetcher.ErrRestricted) || ctx.Err() != nil {
			return res, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("fetch retries exhausted: %w", lastErr)
}

// processItems runs dedup, quota, qualification and persistence over one
// fetch's items, in that order. It reports quotaHit when the daily cap
// refuses an item; the error return is reserved for store failures.
func (o *Orchestrator) processItems(ctx context.Context, items []*models.CandidateItem, flags *config.RuntimeFlags, relaxed bool, result *models.CycleResult, perYield map[string]int) (quotaHit bool, err error) {
	for _, item := range items {
		fp := string(models.FingerprintOf(item))

		if o.dedup.Seen(fp) {
			result.ItemsDuplicate++
			stats.ItemsDuplicateIncr()
			continue
		}

		allowed, err := o.quota.Check(ctx, flags.DailyQuota, relaxed)
		if err != nil {
			return false, fmt.Errorf("checking quota: %w", err)
		}
		if !allowed {
			return true, nil
		}

		qr := o.scorer.Classify(item, o.lexicon, flags)
		if !qr.Accepted {
			o.quota.NoteRejected(qr.Reason)
			stats.RejectionIncr(string(qr.Reason))
			// Rejected stays rejected. Remembering the fingerprint stops
			// the same post from being rescored every time it resurfaces.
			if derr := o.dedup.Remember(fp); derr != nil {
				o.logger.Warn("dedup remember failed", "err", derr.Error())
			}
			continue
		}

		pctx, cancel := context.WithTimeout(ctx, o.cfg.PersistTimeout)
		_, ierr := o.store.InsertAccepted(pctx, item, fp, qr)
		cancel()

		if errors.Is(ierr, repository.ErrDuplicate) {
			// The durable store knew this fingerprint even though the
			// cache did not. Backfill the cache and move on.
			result.ItemsDuplicate++
			stats.LateDuplicateIncr()
			if derr := o.dedup.Remember(fp); derr != nil {
				o.logger.Warn("dedup remember failed", "err", derr.Error())
			}
			continue
		}
		if ierr != nil {
			return false, fmt.Errorf("persisting accepted item: %w", ierr)
		}

		if derr := o.dedup.Remember(fp); derr != nil {
			o.logger.Warn("dedup remember failed", "err", derr.Error())
		}
		o.quota.NoteAccepted()
		stats.ItemsAcceptedIncr()
		result.ItemsAccepted++
		perYield[models.NormalizeKeyword(item.Keyword)]++
	}

	return false, nil
}

// applyOutcomes feeds every strategy attempt from a visit back into the
// selector registry, failed fetches included.
func (o *Orchestrator) applyOutcomes(res *fetcher.Result) {
	for _, oc := range res.Outcomes {
		o.registry.RecordOutcome(oc.Element, oc.StrategyID, oc.Success)
	}
}

// plans resolves the current best strategy order for every element the
// fetcher touches. Resolved fresh each visit so demotions apply mid-cycle.
func (o *Orchestrator) plans() map[models.ElementKind][]models.Strategy {
	plans := make(map[models.ElementKind][]models.Strategy, len(planElements))
	for _, el := range planElements {
		plans[el] = o.registry.Resolve(el)
	}
	return plans
}

// finishCycle closes the books on a cycle. Gate-stopped cycles only count
// toward stats; cycles that reached the keyword loop also feed the
// schedule and persist the adaptive state.
func (o *Orchestrator) finishCycle(result *models.CycleResult, started time.Time, ran bool, perYield map[string]int) {
	result.Duration = o.clk.Now().Sub(started)

	stats.CyclesFinishedIncr()
	stats.CycleEndIncr(string(result.Reason))
	stats.LastCycleSet(result.ID)
	o.storeResult(*result)

	o.logger.Info("cycle finished",
		"cycle", result.ID,
		"reason", string(result.Reason),
		"keywords", len(result.KeywordsUsed),
		"seen", result.ItemsSeen,
		"accepted", result.ItemsAccepted,
		"duplicate", result.ItemsDuplicate,
		"duration", result.Duration.Round(time.Millisecond).String())

	if !ran {
		return
	}

	o.schedule.RecordCycle(*result, perYield)
	o.persistState()
}

// persistState saves everything adaptive that must survive a restart. It
// runs on its own context so state still lands when a shutdown ended the
// cycle.
func (o *Orchestrator) persistState() {
	var firstErr error

	save := func(name string, fn func(context.Context) error) {
		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.PersistTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			o.logger.Error("saving state failed", "state", name, "err", err.Error())
			if firstErr == nil {
				firstErr = fmt.Errorf("saving %s: %w", name, err)
			}
		}
	}

	save("selector stats", func(ctx context.Context) error {
		return o.store.SaveSelectorStats(ctx, o.registry.Export())
	})
	save("risk state", func(ctx context.Context) error {
		return o.store.SaveRiskState(ctx, o.risk.Snapshot())
	})
	save("keywords", func(ctx context.Context) error {
		return o.store.UpsertKeywords(ctx, o.schedule.Export())
	})
	save("quota day", func(ctx context.Context) error {
		return o.store.UpsertQuotaDay(ctx, o.quota.Snapshot())
	})

	if firstErr != nil {
		o.alerts.Publish(alerts.StoreDegraded(firstErr))
	}
}

// wait sleeps d, interruptible by ctx only. Used for retry backoff where
// a pause can wait for the next checkpoint.
func (o *Orchestrator) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-o.clk.After(d):
		return nil
	}
}
