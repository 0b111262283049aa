// Package playwright drives one real browser session against the
// platform's post search. It is the reference fetcher.Fetcher: one
// authenticated session, paced navigation and scrolling, strategy-ordered
// extraction with fallback, restriction and checkpoint detection with a
// screenshot for the operator.
//
// All methods are called from the cycle goroutine only.
package playwright

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/sourcerie/affut/internal/pkg/config"
	"github.com/sourcerie/affut/internal/pkg/fetcher"
	"github.com/sourcerie/affut/internal/pkg/log"
	"github.com/sourcerie/affut/pkg/models"
)

const (
	// navTimeout bounds one page navigation, in milliseconds.
	navTimeout = 30000
	// extractTimeout bounds one per-element lookup, in milliseconds. Kept
	// short: a missing element should cost a fallback, not a stall.
	extractTimeout = 800
	// maxScrollRounds bounds the feed scroll loop for one keyword.
	maxScrollRounds = 12
)

// Client owns the browser stack for the lifetime of the process.
type Client struct {
	cfg    *config.Config
	rng    *rand.Rand
	logger *log.FieldedLogger

	pw      *playwright.Playwright
	browser playwright.Browser // nil when running a persistent profile
	bctx    playwright.BrowserContext
	page    playwright.Page

	warmed   bool
	shotsDir string
}

// New starts the playwright driver and opens the session. The rand source
// is injected so gesture timing can be pinned in tests.
func New(cfg *config.Config, rng *rand.Rand) (*Client, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright driver: %w", err)
	}

	c := &Client{
		cfg: cfg,
		rng: rng,
		logger: log.NewFieldedLogger(&log.Fields{
			"component": "fetcher.playwright",
		}),
		pw:       pw,
		shotsDir: path.Join(cfg.JobPath, "screenshots"),
	}

	if err := os.MkdirAll(c.shotsDir, 0o755); err != nil {
		pw.Stop()
		return nil, err
	}

	if err := c.openSession(); err != nil {
		pw.Stop()
		return nil, err
	}

	return c, nil
}

// Install downloads the chromium build playwright drives. Meant for the
// one-time setup command, not process startup.
func Install() error {
	return playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}})
}

func (c *Client) openSession() error {
	if c.cfg.UserDataDir != "" {
		opts := playwright.BrowserTypeLaunchPersistentContextOptions{
			Headless:   playwright.Bool(c.cfg.Headless),
			Locale:     playwright.String("fr-FR"),
			TimezoneId: playwright.String("Europe/Paris"),
			Viewport:   &playwright.Size{Width: 1366, Height: 824},
		}
		if c.cfg.UserAgent != "" {
			opts.UserAgent = playwright.String(c.cfg.UserAgent)
		}

		bctx, err := c.pw.Chromium.LaunchPersistentContext(c.cfg.UserDataDir, opts)
		if err != nil {
			return fmt.Errorf("launching persistent profile: %w", err)
		}
		c.bctx = bctx
	} else {
		browser, err := c.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(c.cfg.Headless),
		})
		if err != nil {
			return fmt.Errorf("launching browser: %w", err)
		}
		c.browser = browser

		opts := playwright.BrowserNewContextOptions{
			Locale:     playwright.String("fr-FR"),
			TimezoneId: playwright.String("Europe/Paris"),
			Viewport:   &playwright.Size{Width: 1366, Height: 824},
		}
		if c.cfg.UserAgent != "" {
			opts.UserAgent = playwright.String(c.cfg.UserAgent)
		}
		if c.cfg.SessionStatePath != "" {
			if _, err := os.Stat(c.cfg.SessionStatePath); err == nil {
				opts.StorageStatePath = playwright.String(c.cfg.SessionStatePath)
			} else {
				c.logger.Warn("session state file missing, starting unauthenticated", "path", c.cfg.SessionStatePath)
			}
		}

		bctx, err := browser.NewContext(opts)
		if err != nil {
			return fmt.Errorf("creating browser context: %w", err)
		}
		c.bctx = bctx
	}

	if err := c.bctx.AddInitScript(playwright.Script{Content: playwright.String(stealthScript)}); err != nil {
		return err
	}

	page, err := c.bctx.NewPage()
	if err != nil {
		return fmt.Errorf("opening page: %w", err)
	}
	c.page = page

	return nil
}

// Close saves the session state when one is configured, then tears the
// browser stack down.
func (c *Client) Close() error {
	if c.bctx != nil && c.browser != nil && c.cfg.SessionStatePath != "" {
		if _, err := c.bctx.StorageState(c.cfg.SessionStatePath); err != nil {
			c.logger.Warn("could not save session state", "err", err.Error())
		}
	}
	if c.page != nil {
		c.page.Close()
	}
	if c.bctx != nil {
		c.bctx.Close()
	}
	if c.browser != nil {
		c.browser.Close()
	}

	return c.pw.Stop()
}

// FetchCandidates runs one keyword search: paced navigation, checkpoint
// and restriction probes, paced scrolling until enough posts are loaded,
// then strategy-ordered extraction of each post.
func (c *Client) FetchCandidates(ctx context.Context, req *fetcher.Request) (*fetcher.Result, error) {
	res := &fetcher.Result{}
	e := &extractor{client: c, req: req, res: res, now: time.Now().UTC()}

	if err := c.warmup(ctx, req.Pacer); err != nil {
		return nil, err
	}

	if err := sleepCtx(ctx, req.Pacer.NavDelay()); err != nil {
		return nil, err
	}
	req.Pacer.RecordAction()

	target := buildSearchURL(c.cfg.PlatformBaseURL, req.Keyword.Term)
	if _, err := c.page.Goto(target, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(navTimeout),
	}); err != nil {
		return nil, fmt.Errorf("%w: navigating to search: %s", fetcher.ErrTransient, err)
	}

	if c.checkpointVisible(e) {
		res.AuthSuspect = true
		c.logger.Warn("authentication checkpoint while searching", "keyword", req.Keyword.Term)
		return res, nil
	}
	if c.restrictionVisible(e) {
		return c.restricted(res, req.Keyword.Term)
	}

	c.jiggle()

	posts, err := c.gatherPosts(ctx, e)
	if err != nil {
		if errors.Is(err, fetcher.ErrRestricted) {
			return c.restricted(res, req.Keyword.Term)
		}
		return res, err
	}

	for _, node := range posts {
		if len(res.Items) >= req.MaxItems {
			break
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		body, ok := e.bodyFrom(node)
		if !ok || strings.TrimSpace(body) == "" {
			// A container without readable text is navigation chrome.
			continue
		}

		item := models.NewCandidateItem(req.Keyword.Term)
		item.CollectedAt = e.now
		item.Text = strings.TrimSpace(body)

		if name, href, ok := e.authorFrom(node); ok {
			item.Author = name
			item.AuthorURL = canonicalPermalink(c.cfg.PlatformBaseURL, href)
		} else {
			res.UnknownAuthors++
		}

		if href, ok := e.linkFrom(node, models.ElementPermalink); ok {
			item.Permalink = canonicalPermalink(c.cfg.PlatformBaseURL, href)
		}

		item.DeclaredAt = e.timestampFrom(node)

		res.Items = append(res.Items, item)

		// A person does not read every post in the same beat.
		if c.rng.Float64() > 0.8 {
			if err := sleepCtx(ctx, time.Duration(100+c.rng.Intn(200))*time.Millisecond); err != nil {
				return res, err
			}
		}
	}

	c.logger.Debug("keyword visit finished",
		"keyword", req.Keyword.Term, "items", len(res.Items), "unknown_authors", res.UnknownAuthors)

	return res, nil
}

// warmup loads the platform home once per session so the first search
// does not arrive out of nowhere.
func (c *Client) warmup(ctx context.Context, pacer fetcher.Pacer) error {
	if c.warmed {
		return nil
	}

	if _, err := c.page.Goto(c.cfg.PlatformBaseURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(navTimeout),
	}); err != nil {
		return fmt.Errorf("%w: warming up: %s", fetcher.ErrTransient, err)
	}

	c.warmed = true
	pacer.RecordAction()

	return sleepCtx(ctx, time.Duration(2000+c.rng.Intn(3000))*time.Millisecond)
}

// gatherPosts scrolls the result feed until enough post containers are
// loaded, growth stalls or the round budget runs out. Outcomes for the
// post element are recorded once, on the final resolution, so attempts
// count per keyword visit rather than per scroll round.
func (c *Client) gatherPosts(ctx context.Context, e *extractor) ([]playwright.Locator, error) {
	lastCount, stale := 0, 0

	for round := 0; round < maxScrollRounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		posts := e.locatePosts(false)
		if len(posts) >= e.req.MaxItems {
			break
		}

		if c.restrictionVisible(e) {
			return nil, fetcher.ErrRestricted
		}

		if err := c.scrollOnce(ctx, e.req.Pacer); err != nil {
			return nil, err
		}

		if len(posts) == lastCount {
			stale++
			if stale >= 2 {
				break
			}
		} else {
			stale = 0
			lastCount = len(posts)
		}
	}

	return e.locatePosts(true), nil
}

// Marker probes only score when they hit: the absence of a restriction
// banner says nothing about whether the strategy expression still works.
func (c *Client) restrictionVisible(e *extractor) bool {
	for _, st := range e.req.Plans[models.ElementRestricted] {
		if n, err := c.page.Locator(st.Expression).Count(); err == nil && n > 0 {
			e.record(models.ElementRestricted, st.ID, true)
			return true
		}
	}

	return false
}

func (c *Client) checkpointVisible(e *extractor) bool {
	for _, st := range e.req.Plans[models.ElementCheckpoint] {
		if n, err := c.page.Locator(st.Expression).Count(); err == nil && n > 0 {
			e.record(models.ElementCheckpoint, st.ID, true)
			return true
		}
	}

	return false
}

func (c *Client) restricted(res *fetcher.Result, keyword string) (*fetcher.Result, error) {
	res.Restricted = true
	res.ScreenshotPath = c.captureRestriction()
	c.logger.Warn("restriction while searching", "keyword", keyword)

	return res, fetcher.ErrRestricted
}

// sleepCtx waits d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
