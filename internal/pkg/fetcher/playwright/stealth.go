package playwright

import (
	"context"
	"time"

	"github.com/sourcerie/affut/internal/pkg/fetcher"
)

// stealthScript runs before any page script and papers over the obvious
// automation tells: the webdriver flag, an empty plugin list, a missing
// window.chrome and headless-looking language settings.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'languages', { get: () => ['fr-FR', 'fr', 'en-US'] });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
window.chrome = window.chrome || { runtime: {} };
const originalQuery = window.navigator.permissions.query;
window.navigator.permissions.query = (parameters) => (
	parameters.name === 'notifications'
		? Promise.resolve({ state: Notification.permission })
		: originalQuery(parameters)
);
`

// jiggle moves the cursor through a few random points, the way a hand
// resting on a mouse does.
func (c *Client) jiggle() {
	for i := 0; i < 3; i++ {
		x := float64(100 + c.rng.Intn(900))
		y := float64(100 + c.rng.Intn(600))
		c.page.Mouse().Move(x, y)
		time.Sleep(time.Duration(100+c.rng.Intn(200)) * time.Millisecond)
	}
}

// scrollOnce advances the feed one wheel burst and waits out the pacer's
// scroll delay. Every few scrolls it corrects upward a little, nobody
// scrolls a feed in one clean direction.
func (c *Client) scrollOnce(ctx context.Context, pacer fetcher.Pacer) error {
	c.page.Mouse().Wheel(0, float64(400+c.rng.Intn(400)))
	pacer.RecordAction()

	if err := sleepCtx(ctx, pacer.ScrollDelay()); err != nil {
		return err
	}

	if c.rng.Float64() < 0.25 {
		c.page.Mouse().Wheel(0, -float64(100+c.rng.Intn(150)))
		if err := sleepCtx(ctx, pacer.ScrollDelay()/2); err != nil {
			return err
		}
	}

	return nil
}
