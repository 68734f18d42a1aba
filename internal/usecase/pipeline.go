package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dealsheet/backend/internal/domain"
	"github.com/dealsheet/backend/logger"
)

// DefaultRequestTimeout bounds one write+read round trip
const DefaultRequestTimeout = 10 * time.Second

// PipelineConfig holds configuration for the deal pipeline
type PipelineConfig struct {
	DismissAfter   time.Duration
	RequestTimeout time.Duration
	Clock          Clock
}

type roundTripResult struct {
	generation uint64
	title      string
	comparison *domain.DealComparison
	err        error
}

type backPressRequest struct {
	reply chan bool
}

// DealPipeline turns scrape messages from one embedded browser into deal
// panels. All state changes happen on the goroutine running Run; round trips
// report back to it tagged with the generation they were started under, and
// anything tagged with an older generation is discarded.
type DealPipeline struct {
	api            domain.PriceAPI
	presenter      domain.Presenter
	watcher        *NavigationWatcher
	timer          *DismissalTimer
	dismissAfter   time.Duration
	requestTimeout time.Duration
	log            *logger.Logger

	results     chan roundTripResult
	expiries    chan uint64
	backPresses chan backPressRequest
	done        chan struct{}
	stopOnce    sync.Once

	// owned by the Run goroutine
	generation uint64
	comparison *domain.DealComparison

	mu      sync.RWMutex
	state   domain.PipelineState
	panel   domain.PanelState
	gen     uint64
	settled uint64
}

// NewDealPipeline creates a pipeline with dependencies
func NewDealPipeline(
	api domain.PriceAPI,
	presenter domain.Presenter,
	watcher *NavigationWatcher,
	config PipelineConfig,
	log *logger.Logger,
) *DealPipeline {
	dismissAfter := config.DismissAfter
	if dismissAfter <= 0 {
		dismissAfter = DefaultDismissAfter
	}

	requestTimeout := config.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}

	if log == nil {
		log = logger.Nop()
	}

	return &DealPipeline{
		api:            api,
		presenter:      presenter,
		watcher:        watcher,
		timer:          NewDismissalTimer(config.Clock),
		dismissAfter:   dismissAfter,
		requestTimeout: requestTimeout,
		log:            log,
		results:        make(chan roundTripResult),
		expiries:       make(chan uint64),
		backPresses:    make(chan backPressRequest),
		done:           make(chan struct{}),
		state:          domain.StateIdle,
		panel:          domain.PanelState{Kind: domain.PanelHidden},
	}
}

// Run consumes the browser's navigations and messages until ctx is done or
// the navigation stream closes. The panel is torn down on exit, and round
// trips still in flight are dropped.
func (p *DealPipeline) Run(ctx context.Context, browser domain.EmbeddedBrowser) error {
	navigations := browser.Navigations()
	messages := browser.Messages()

	defer p.stopOnce.Do(func() { close(p.done) })
	defer p.teardown("pipeline stopped")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-navigations:
			if !ok {
				p.log.Info().Msg("Navigation stream closed")
				return nil
			}
			p.handleNavigation(browser, event)

		case raw, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			p.handleMessage(ctx, raw)

		case result := <-p.results:
			p.handleResult(ctx, result)

		case generation := <-p.expiries:
			p.handleExpiry(generation)

		case request := <-p.backPresses:
			request.reply <- p.handleBackPress()
		}
	}
}

// BackPress handles a hardware back press. It hides a visible panel and
// reports the press as consumed; otherwise the caller should navigate back.
// A stopped pipeline consumes nothing.
func (p *DealPipeline) BackPress(ctx context.Context) bool {
	request := backPressRequest{reply: make(chan bool, 1)}
	select {
	case p.backPresses <- request:
	case <-p.done:
		return false
	case <-ctx.Done():
		return false
	}

	select {
	case consumed := <-request.reply:
		return consumed
	case <-p.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// State returns the current pipeline state
func (p *DealPipeline) State() domain.PipelineState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Panel returns the panel state last handed to the presenter
func (p *DealPipeline) Panel() domain.PanelState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.panel
}

// Generation returns the current request generation
func (p *DealPipeline) Generation() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.gen
}

// Settled counts scrape messages whose outcome reached the panel: a deal, no
// data, or a failure. Superseded round trips are not counted.
func (p *DealPipeline) Settled() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settled
}

func (p *DealPipeline) handleNavigation(browser domain.EmbeddedBrowser, event domain.NavigationEvent) {
	injection, ok := p.watcher.Observe(event)
	if !ok {
		p.teardown("left product page")
		return
	}

	p.log.Debug().Str("url", event.URL).Msg("Product page, injecting extraction script")
	browser.Inject(injection)
}

func (p *DealPipeline) handleMessage(ctx context.Context, raw string) {
	if !p.watcher.OnProductPage() {
		p.log.Debug().Str("url", p.watcher.CurrentURL()).Msg("Ignoring message outside a product page")
		return
	}

	var message domain.RawScrapeMessage
	if err := json.Unmarshal([]byte(raw), &message); err != nil {
		p.supersede()
		p.log.Warn().
			Err(fmt.Errorf("%w: %v", domain.ErrMalformedMessage, err)).
			Msg("Discarding scrape message")
		p.settle()
		p.transition(domain.StateFailed, domain.PanelState{Kind: domain.PanelError})
		return
	}

	title := ""
	if message.Title != nil {
		title = *message.Title
	}
	normalized := NormalizeTitle(title)

	generation := p.supersede()
	p.transition(domain.StateSubmitting, domain.PanelState{Kind: domain.PanelLoading})

	p.log.Debug().
		Uint64("generation", generation).
		Str("product_title", normalized).
		Msg("Submitting observation")

	go p.roundTrip(ctx, generation, normalized, message.WowDeal)
}

// roundTrip runs one write+read against the price service and posts the
// outcome back to the loop.
func (p *DealPipeline) roundTrip(ctx context.Context, generation uint64, title string, wowDeal *string) {
	reqCtx, cancel := context.WithTimeout(ctx, p.requestTimeout)
	defer cancel()

	result := roundTripResult{generation: generation, title: title}

	err := p.api.SubmitObservation(reqCtx, domain.ObservationRequest{
		ProductTitle: title,
		WowDealPrice: wowDeal,
	})
	if err != nil {
		result.err = fmt.Errorf("submit observation: %w", err)
	} else {
		comparison, err := p.api.GetComparison(reqCtx, title)
		if err != nil {
			result.err = fmt.Errorf("get comparison: %w", err)
		}
		result.comparison = comparison
	}

	select {
	case p.results <- result:
	case <-p.done:
	case <-ctx.Done():
	}
}

func (p *DealPipeline) handleResult(ctx context.Context, result roundTripResult) {
	if result.generation != p.generation || p.State() != domain.StateSubmitting {
		p.log.Debug().
			Err(domain.ErrStaleResponse).
			Uint64("generation", result.generation).
			Uint64("current_generation", p.generation).
			Msg("Discarding superseded round trip")
		return
	}
	p.settle()

	switch {
	case result.err == nil && result.comparison != nil:
		p.comparison = result.comparison
		generation := p.generation
		p.timer.Arm(p.dismissAfter, func() {
			select {
			case p.expiries <- generation:
			case <-p.done:
			case <-ctx.Done():
			}
		})
		p.transition(domain.StateDisplaying, domain.PanelState{
			Kind:       domain.PanelVisible,
			Comparison: result.comparison,
		})
		p.log.Info().
			Str("product_title", result.title).
			Int("savings_percentage", result.comparison.SavingsPercentage).
			Msg("Displaying deal")

	case errors.Is(result.err, domain.ErrProductNotFound):
		p.log.Info().Str("product_title", result.title).Msg("No price data yet")
		p.transition(domain.StateIdle, domain.PanelState{Kind: domain.PanelHidden})

	default:
		if result.err == nil {
			result.err = fmt.Errorf("get comparison: %w", domain.ErrServiceUnavailable)
		}
		p.log.Warn().Err(result.err).Str("product_title", result.title).Msg("Price round trip failed")
		p.transition(domain.StateFailed, domain.PanelState{Kind: domain.PanelError})
	}
}

func (p *DealPipeline) handleExpiry(generation uint64) {
	if generation != p.generation || p.State() != domain.StateDisplaying {
		return
	}

	p.log.Debug().Uint64("generation", generation).Msg("Deal panel expired")
	p.comparison = nil
	p.transition(domain.StateIdle, domain.PanelState{Kind: domain.PanelHidden})
}

func (p *DealPipeline) handleBackPress() bool {
	if !p.Panel().IsVisible() {
		return false
	}

	p.teardown("back pressed")
	return true
}

// teardown hides the panel, cancels the timer and drops the comparison.
// Repeating it is harmless.
func (p *DealPipeline) teardown(reason string) {
	p.supersede()
	p.comparison = nil

	if p.Panel().Kind != domain.PanelHidden {
		p.log.Debug().Str("reason", reason).Msg("Tearing down deal panel")
	}
	p.transition(domain.StateIdle, domain.PanelState{Kind: domain.PanelHidden})
}

// supersede cancels the timer and starts a new generation, orphaning any
// round trip or expiry issued under the old one.
func (p *DealPipeline) supersede() uint64 {
	p.timer.Cancel()
	p.generation++

	p.mu.Lock()
	p.gen = p.generation
	p.mu.Unlock()

	return p.generation
}

func (p *DealPipeline) settle() {
	p.mu.Lock()
	p.settled++
	p.mu.Unlock()
}

// transition sets the state and hands the panel to the presenter when it
// changed.
func (p *DealPipeline) transition(state domain.PipelineState, panel domain.PanelState) {
	p.mu.Lock()
	changed := p.panel != panel
	p.state = state
	p.panel = panel
	p.mu.Unlock()

	if changed && p.presenter != nil {
		p.presenter.Render(panel)
	}
}
