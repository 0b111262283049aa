package playwright

import (
	"path"
	"time"

	"github.com/playwright-community/playwright-go"
)

// captureRestriction saves a full-page screenshot so the operator can see
// what the platform showed. Failures only log, handling the restriction
// matters more than its evidence.
func (c *Client) captureRestriction() string {
	name := "restriction_" + time.Now().Format("2006-01-02_15-04-05") + ".png"
	p := path.Join(c.shotsDir, name)

	if _, err := c.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(p),
		FullPage: playwright.Bool(true),
	}); err != nil {
		c.logger.Warn("could not capture restriction screenshot", "err", err.Error())
		return ""
	}

	c.logger.Info("restriction screenshot saved", "path", p)
	return p
}
