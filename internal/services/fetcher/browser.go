package fetcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// Browser renders pages with headless Chrome for sources that block
// plain HTTP clients (403/429 on the listing fetch). The browser
// process starts lazily on first use and is shared; each render runs
// in its own tab context so cookies and state stay isolated.
type Browser struct {
	mu             sync.Mutex
	allocatorCtx   context.Context
	allocatorStop  context.CancelFunc
	browserCtx     context.Context
	browserStop    context.CancelFunc
	initialized    bool
	userAgent      string
	renderWaitTime time.Duration
	logger         arbor.ILogger
}

// NewBrowser creates a lazy browser renderer.
func NewBrowser(logger arbor.ILogger) *Browser {
	return &Browser{
		userAgent:      browserUserAgent,
		renderWaitTime: 2 * time.Second,
		logger:         logger,
	}
}

// startLocked launches the shared browser process. Caller holds b.mu.
func (b *Browser) startLocked() error {
	if b.initialized {
		return nil
	}

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(b.userAgent),
	)

	allocatorCtx, allocatorStop := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserStop := chromedp.NewContext(allocatorCtx)

	// Startup test so a missing Chrome binary fails here, not mid-fetch
	testCtx, testCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer testCancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserStop()
		allocatorStop()
		return fmt.Errorf("browser failed startup test: %w", err)
	}

	b.allocatorCtx = allocatorCtx
	b.allocatorStop = allocatorStop
	b.browserCtx = browserCtx
	b.browserStop = browserStop
	b.initialized = true

	b.logger.Info().Msg("Headless browser started")
	return nil
}

// Render fetches a URL with the headless browser and returns the
// rendered HTML.
func (b *Browser) Render(ctx context.Context, url string) (string, error) {
	b.mu.Lock()
	if err := b.startLocked(); err != nil {
		b.mu.Unlock()
		return "", err
	}
	browserCtx := b.browserCtx
	b.mu.Unlock()

	// Fresh tab per request, bounded by the caller's deadline
	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	defer tabCancel()

	timeout := 30 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	runCtx, runCancel := context.WithTimeout(tabCtx, timeout)
	defer runCancel()

	var html string
	err := chromedp.Run(runCtx,
		emulation.SetUserAgentOverride(b.userAgent),
		chromedp.Navigate(url),
		chromedp.Sleep(b.renderWaitTime),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("browser render failed for %s: %w", url, err)
	}

	b.logger.Debug().Str("url", url).Int("bytes", len(html)).Msg("Browser rendered page")
	return html, nil
}

// Shutdown stops the shared browser process.
func (b *Browser) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return
	}

	done := make(chan struct{})
	go func() {
		b.browserStop()
		b.allocatorStop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		b.logger.Warn().Msg("Browser shutdown timed out")
	}

	b.initialized = false
	b.logger.Info().Msg("Headless browser stopped")
}
