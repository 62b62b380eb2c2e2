// Package browser owns the headless browser handle the Task Runner
// (C6) lends to the browser tool: navigate, screenshot, close. One
// Browser is bound to exactly one session, driving a Chromium instance
// reachable at the sandbox's remote-debugging address (spec §4.5,
// §9 "browser→screenshot" tool enrichment).
package browser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Browser is the contract the Task Runner and the browser tool drive.
type Browser interface {
	// Navigate loads url in the browser's current page, launching the
	// underlying Chromium process on first use.
	Navigate(ctx context.Context, url string) error

	// Screenshot captures the current page as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// Close releases the underlying Chromium process and any open pages.
	Close() error
}

// RodBrowser is a Browser backed by go-rod, connecting to a Chromium
// instance over its remote-debugging endpoint (normally the sandbox
// container's exposed debug port).
type RodBrowser struct {
	remoteAddr string
	chromeArgs []string

	browser *rod.Browser
	page    *rod.Page
	log     *slog.Logger
}

// NewRodBrowser builds a RodBrowser targeting remoteAddr (a
// "ws://host:port" DevTools endpoint, or empty to let rod launch a
// local instance with its default flags). chromeArgs is stored on the
// RodBrowser but is not passed to the launched browser.
func NewRodBrowser(remoteAddr string, chromeArgs []string) *RodBrowser {
	return &RodBrowser{
		remoteAddr: remoteAddr,
		chromeArgs: chromeArgs,
		log:        slog.Default().With("component", "browser"),
	}
}

func (b *RodBrowser) ensure(ctx context.Context) error {
	if b.browser != nil {
		return nil
	}

	br := rod.New()
	if b.remoteAddr != "" {
		br = br.ControlURL(b.remoteAddr)
	}
	br = br.Context(ctx)

	if err := br.Connect(); err != nil {
		return fmt.Errorf("browser: connect: %w", err)
	}
	b.browser = br

	page, err := br.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return fmt.Errorf("browser: open page: %w", err)
	}
	b.page = page
	return nil
}

func (b *RodBrowser) Navigate(ctx context.Context, url string) error {
	if err := b.ensure(ctx); err != nil {
		return err
	}
	if err := b.page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := b.page.WaitLoad(); err != nil {
		b.log.Warn("browser: wait load failed", "url", url, "error", err)
	}
	return nil
}

func (b *RodBrowser) Screenshot(ctx context.Context) ([]byte, error) {
	if err := b.ensure(ctx); err != nil {
		return nil, err
	}
	data, err := b.page.Context(ctx).Screenshot(true, nil)
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	return data, nil
}

func (b *RodBrowser) Close() error {
	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	b.page = nil
	if err != nil {
		return fmt.Errorf("browser: close: %w", err)
	}
	return nil
}
