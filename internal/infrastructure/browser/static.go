package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dealsheet/backend/internal/domain"
	"github.com/dealsheet/backend/logger"
)

// ExtractorConfig holds what the static host needs to mirror the injected
// script: the same selector lists and title bound.
type ExtractorConfig struct {
	Selectors      domain.SelectorSet
	TitleMaxLength int
	Timeout        time.Duration
}

// StaticBrowser is an EmbeddedBrowser for server-rendered pages. It fetches
// pages over HTTP and runs the extraction with goquery instead of
// JavaScript, so no browser binary is needed.
type StaticBrowser struct {
	httpClient     *http.Client
	selectors      domain.SelectorSet
	titleMaxLength int
	log            *logger.Logger

	navigations chan domain.NavigationEvent
	messages    chan string
	done        chan struct{}
	closeOnce   sync.Once

	mu     sync.Mutex
	doc    *goquery.Document
	docURL string
}

// NewStaticBrowser creates a static host
func NewStaticBrowser(config ExtractorConfig) *StaticBrowser {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &StaticBrowser{
		httpClient:     &http.Client{Timeout: timeout},
		selectors:      config.Selectors,
		titleMaxLength: config.TitleMaxLength,
		log:            logger.ForBrowser("static"),
		navigations:    make(chan domain.NavigationEvent),
		messages:       make(chan string),
		done:           make(chan struct{}),
	}
}

func (b *StaticBrowser) Navigations() <-chan domain.NavigationEvent { return b.navigations }
func (b *StaticBrowser) Messages() <-chan string                    { return b.messages }

// Navigate fetches url and reports the committed navigation. Redirects are
// followed; the event carries the final URL.
func (b *StaticBrowser) Navigate(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; DealSheet/1.0)")
	req.Header.Set("Accept", "text/html")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch %s: status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", url, err)
	}

	finalURL := resp.Request.URL.String()

	b.mu.Lock()
	b.doc = doc
	b.docURL = finalURL
	b.mu.Unlock()

	b.log.Debug().Str("url", finalURL).Msg("Page loaded")

	select {
	case b.navigations <- domain.NavigationEvent{URL: finalURL}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return nil
	}
}

// URL returns the address of the loaded page after redirects
func (b *StaticBrowser) URL() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.docURL
}

// Inject runs the extraction against the loaded document in the background.
// An injection for a page that is no longer loaded is dropped.
func (b *StaticBrowser) Inject(injection domain.Injection) {
	b.mu.Lock()
	doc, docURL := b.doc, b.docURL
	b.mu.Unlock()

	if doc == nil || docURL != injection.URL {
		b.log.Debug().Str("url", injection.URL).Msg("Dropping injection for a page no longer loaded")
		return
	}

	payload, err := json.Marshal(b.extract(doc))
	if err != nil {
		b.log.Error().Err(err).Msg("Failed to encode scrape message")
		return
	}

	go func() {
		select {
		case b.messages <- string(payload):
		case <-b.done:
		}
	}()
}

// Close stops pending deliveries
func (b *StaticBrowser) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	return nil
}

// extract mirrors the injected script: the first selector with non-empty
// trimmed text wins for each field, and the title is bounded before sending.
func (b *StaticBrowser) extract(doc *goquery.Document) domain.RawScrapeMessage {
	var message domain.RawScrapeMessage

	if title := firstText(doc, b.selectors.Title); title != "" {
		title = truncateTitle(title, b.titleMaxLength)
		message.Title = &title
	}
	if price := firstText(doc, b.selectors.Price); price != "" {
		message.WowDeal = &price
	}

	return message
}

// firstText returns the trimmed text of the first selector with a non-empty
// match. goquery treats an invalid selector as matching nothing.
func firstText(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		if text := strings.TrimSpace(doc.Find(selector).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// truncateTitle bounds a title to max characters
func truncateTitle(title string, max int) string {
	runes := []rune(title)
	if max <= 0 || len(runes) <= max {
		return title
	}
	return string(runes[:max])
}
