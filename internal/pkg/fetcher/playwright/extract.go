package playwright

import (
	"strconv"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/sourcerie/affut/internal/pkg/fetcher"
	"github.com/sourcerie/affut/pkg/models"
)

// extractor carries one keyword visit's plan and collects per-strategy
// outcomes as it walks the page.
type extractor struct {
	client *Client
	req    *fetcher.Request
	res    *fetcher.Result
	now    time.Time
}

func (e *extractor) record(element models.ElementKind, strategyID string, success bool) {
	e.res.Outcomes = append(e.res.Outcomes, fetcher.Outcome{
		Element:    element,
		StrategyID: strategyID,
		Success:    success,
	})
}

// locatePosts walks the post plan until a strategy yields containers.
// Earlier strategies that come back empty count as failures so the
// registry can demote them.
func (e *extractor) locatePosts(recordOutcomes bool) []playwright.Locator {
	for _, st := range e.req.Plans[models.ElementPost] {
		nodes, err := e.client.page.Locator(st.Expression).All()
		if err == nil && len(nodes) > 0 {
			if recordOutcomes {
				e.record(models.ElementPost, st.ID, true)
			}
			return nodes
		}
		if recordOutcomes {
			e.record(models.ElementPost, st.ID, false)
		}
	}

	return nil
}

// textFrom walks the element's plan within one post until a strategy
// yields visible text.
func (e *extractor) textFrom(scope playwright.Locator, element models.ElementKind) (string, bool) {
	for _, st := range e.req.Plans[element] {
		text, err := scope.Locator(st.Expression).First().TextContent(playwright.LocatorTextContentOptions{
			Timeout: playwright.Float(extractTimeout),
		})
		if err == nil && strings.TrimSpace(text) != "" {
			e.record(element, st.ID, true)
			return strings.TrimSpace(text), true
		}
		e.record(element, st.ID, false)
	}

	return "", false
}

// authorFrom resolves the author link: display name plus profile href.
// A strategy that finds the node but no name still counts as a failure,
// an anonymous byline is useless downstream.
func (e *extractor) authorFrom(scope playwright.Locator) (string, string, bool) {
	for _, st := range e.req.Plans[models.ElementAuthor] {
		loc := scope.Locator(st.Expression).First()

		name, err := loc.TextContent(playwright.LocatorTextContentOptions{
			Timeout: playwright.Float(extractTimeout),
		})
		if err != nil || strings.TrimSpace(name) == "" {
			e.record(models.ElementAuthor, st.ID, false)
			continue
		}

		href, _ := loc.GetAttribute("href", playwright.LocatorGetAttributeOptions{
			Timeout: playwright.Float(extractTimeout),
		})

		e.record(models.ElementAuthor, st.ID, true)
		return strings.TrimSpace(name), href, true
	}

	return "", "", false
}

// linkFrom resolves an href-bearing element within one post.
func (e *extractor) linkFrom(scope playwright.Locator, element models.ElementKind) (string, bool) {
	for _, st := range e.req.Plans[element] {
		href, err := scope.Locator(st.Expression).First().GetAttribute("href", playwright.LocatorGetAttributeOptions{
			Timeout: playwright.Float(extractTimeout),
		})
		if err == nil && href != "" {
			e.record(element, st.ID, true)
			return href, true
		}
		e.record(element, st.ID, false)
	}

	return "", false
}

// bodyFrom expands the post when a "see more" control is present, then
// reads the body text.
func (e *extractor) bodyFrom(scope playwright.Locator) (string, bool) {
	e.expand(scope)
	return e.textFrom(scope, models.ElementBody)
}

// expand clicks the truncation control when one is visible. A post
// without the control is not a strategy failure, so only actual click
// attempts score.
func (e *extractor) expand(scope playwright.Locator) {
	for _, st := range e.req.Plans[models.ElementExpand] {
		btn := scope.Locator(st.Expression).First()

		visible, err := btn.IsVisible()
		if err != nil || !visible {
			continue
		}

		if err := btn.Click(playwright.LocatorClickOptions{
			Timeout: playwright.Float(extractTimeout),
		}); err != nil {
			e.record(models.ElementExpand, st.ID, false)
			continue
		}

		e.record(models.ElementExpand, st.ID, true)
		// Give the reflow a beat before reading the body.
		time.Sleep(300 * time.Millisecond)
		return
	}
}

// timestampFrom prefers unix markup when the strategy exposes it and
// falls back to parsing the display label. Zero means no strategy could
// produce a time.
func (e *extractor) timestampFrom(scope playwright.Locator) time.Time {
	for _, st := range e.req.Plans[models.ElementTimestamp] {
		loc := scope.Locator(st.Expression).First()

		if utime, err := loc.GetAttribute("data-utime", playwright.LocatorGetAttributeOptions{
			Timeout: playwright.Float(extractTimeout),
		}); err == nil && utime != "" {
			if secs, err := strconv.ParseInt(utime, 10, 64); err == nil {
				e.record(models.ElementTimestamp, st.ID, true)
				return time.Unix(secs, 0).UTC()
			}
		}

		label, err := loc.TextContent(playwright.LocatorTextContentOptions{
			Timeout: playwright.Float(extractTimeout),
		})
		if err == nil {
			if ts := parseDeclaredAt(label, e.now); !ts.IsZero() {
				e.record(models.ElementTimestamp, st.ID, true)
				return ts
			}
		}

		e.record(models.ElementTimestamp, st.ID, false)
	}

	return time.Time{}
}
