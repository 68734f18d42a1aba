package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dealsheet/backend/internal/domain"
	"github.com/dealsheet/backend/logger"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// ChromeConfig holds configuration for the Chrome host
type ChromeConfig struct {
	Bin           string // empty lets rod find or download a browser
	Headless      bool
	InjectTimeout time.Duration
}

// ChromeBrowser is an EmbeddedBrowser backed by a Chrome tab driven over the
// devtools protocol. Run headful, a person browses in the tab while deals
// are extracted from every product page they open.
type ChromeBrowser struct {
	launcher      *launcher.Launcher
	browser       *rod.Browser
	page          *rod.Page
	injectTimeout time.Duration
	log           *logger.Logger

	navigations chan domain.NavigationEvent
	messages    chan string

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// LaunchChrome starts Chrome, opens a tab and starts watching its main frame
func LaunchChrome(ctx context.Context, config ChromeConfig) (*ChromeBrowser, error) {
	injectTimeout := config.InjectTimeout
	if injectTimeout <= 0 {
		injectTimeout = 30 * time.Second
	}

	l := launcher.New().
		Context(ctx).
		Headless(config.Headless).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage")
	if config.Bin != "" {
		l = l.Bin(config.Bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := browser.Timeout(30 * time.Second).Page(proto.TargetCreateTarget{})
	if err != nil {
		browser.Close()
		l.Cleanup()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page = page.CancelTimeout()

	watchCtx, cancel := context.WithCancel(ctx)
	b := &ChromeBrowser{
		launcher:      l,
		browser:       browser,
		page:          page,
		injectTimeout: injectTimeout,
		log:           logger.ForBrowser("chrome"),
		navigations:   make(chan domain.NavigationEvent, 16),
		messages:      make(chan string, 16),
		ctx:           watchCtx,
		cancel:        cancel,
	}

	go b.watchNavigations()

	return b, nil
}

func (b *ChromeBrowser) Navigations() <-chan domain.NavigationEvent { return b.navigations }
func (b *ChromeBrowser) Messages() <-chan string                    { return b.messages }

// Navigate loads url in the tab and waits for it to load. The navigation
// event arrives through Navigations like any user navigation.
func (b *ChromeBrowser) Navigate(ctx context.Context, url string) error {
	page := b.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.Timeout(b.injectTimeout).WaitLoad(); err != nil {
		b.log.Debug().Err(err).Str("url", url).Msg("Page did not finish loading")
	}
	return nil
}

// URL returns the address of the page in the tab, or "" when the tab cannot
// be queried.
func (b *ChromeBrowser) URL() string {
	info, err := b.page.Context(b.ctx).Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// GoBack navigates the tab one step back in its history
func (b *ChromeBrowser) GoBack() error {
	return b.page.Context(b.ctx).NavigateBack()
}

// Inject evaluates the extraction expression once the page has loaded. It
// is dropped when the tab has moved on to another URL.
func (b *ChromeBrowser) Inject(injection domain.Injection) {
	go func() {
		page := b.page.Context(b.ctx).Timeout(b.injectTimeout)

		if err := page.WaitLoad(); err != nil {
			b.log.Debug().Err(err).Str("url", injection.URL).Msg("Page did not finish loading")
			return
		}

		info, err := page.Info()
		if err != nil {
			b.log.Debug().Err(err).Msg("Failed to read page info")
			return
		}
		if info.URL != injection.URL {
			b.log.Debug().Str("url", injection.URL).Str("current_url", info.URL).Msg("Dropping injection for a page no longer loaded")
			return
		}

		result, err := page.Eval(injection.Expression)
		if err != nil {
			b.log.Warn().Err(err).Str("url", injection.URL).Msg("Extraction script failed")
			return
		}

		select {
		case b.messages <- result.Value.Str():
		case <-b.ctx.Done():
		}
	}()
}

// Close stops watching and shuts Chrome down
func (b *ChromeBrowser) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.cancel()
		err = b.browser.Close()
		b.launcher.Cleanup()
	})
	return err
}

// watchNavigations reports main-frame commits, including same-document
// history changes made by single page apps.
func (b *ChromeBrowser) watchNavigations() {
	page := b.page.Context(b.ctx)

	wait := page.EachEvent(func(e *proto.PageFrameNavigated) {
		if e.Frame.ParentID == "" {
			b.emit(e.Frame.URL)
		}
	}, func(e *proto.PageNavigatedWithinDocument) {
		if e.FrameID == page.FrameID {
			b.emit(e.URL)
		}
	})
	wait()
}

func (b *ChromeBrowser) emit(url string) {
	select {
	case b.navigations <- domain.NavigationEvent{URL: url}:
	case <-b.ctx.Done():
	}
}
