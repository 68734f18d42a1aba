package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dealsheet/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	productURL = "https://www.flipkart.com/apple-iphone-14/p/itm9e6293c322a84"
	searchURL  = "https://www.flipkart.com/search?q=iphone"
)

// fakeBrowser is an EmbeddedBrowser driven by the test. Its channels are
// unbuffered, so a send returns once the pipeline has taken the event.
type fakeBrowser struct {
	navigations chan domain.NavigationEvent
	messages    chan string

	mu         sync.Mutex
	injections []domain.Injection
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{
		navigations: make(chan domain.NavigationEvent),
		messages:    make(chan string),
	}
}

func (b *fakeBrowser) Navigations() <-chan domain.NavigationEvent { return b.navigations }
func (b *fakeBrowser) Messages() <-chan string                    { return b.messages }

func (b *fakeBrowser) Inject(injection domain.Injection) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.injections = append(b.injections, injection)
}

func (b *fakeBrowser) Injections() []domain.Injection {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.Injection(nil), b.injections...)
}

// fakePriceAPI records calls. A gate registered for a title blocks its write
// until the gate is closed.
type fakePriceAPI struct {
	mu          sync.Mutex
	submits     []domain.ObservationRequest
	reads       []string
	readCtxs    []context.Context
	gates       map[string]chan struct{}
	comparisons map[string]*domain.DealComparison
	submitErr   error
	readErr     error
}

func newFakePriceAPI() *fakePriceAPI {
	return &fakePriceAPI{
		gates:       make(map[string]chan struct{}),
		comparisons: make(map[string]*domain.DealComparison),
	}
}

func (f *fakePriceAPI) gate(title string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[title] = ch
	return ch
}

func (f *fakePriceAPI) setComparison(title string, comparison *domain.DealComparison) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comparisons[title] = comparison
}

func (f *fakePriceAPI) SubmitObservation(ctx context.Context, request domain.ObservationRequest) error {
	f.mu.Lock()
	f.submits = append(f.submits, request)
	gate := f.gates[request.ProductTitle]
	err := f.submitErr
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakePriceAPI) GetComparison(ctx context.Context, productTitle string) (*domain.DealComparison, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, productTitle)
	f.readCtxs = append(f.readCtxs, ctx)
	if f.readErr != nil {
		return nil, f.readErr
	}
	comparison, ok := f.comparisons[productTitle]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return comparison, nil
}

func (f *fakePriceAPI) Submits() []domain.ObservationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ObservationRequest(nil), f.submits...)
}

// ReadContext returns the context the i-th read ran under. It is cancelled
// once that round trip has returned.
func (f *fakePriceAPI) ReadContext(i int) context.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readCtxs[i]
}

func (f *fakePriceAPI) Reads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reads...)
}

// recordingPresenter keeps every rendered panel
type recordingPresenter struct {
	mu     sync.Mutex
	panels []domain.PanelState
}

func (r *recordingPresenter) Render(state domain.PanelState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panels = append(r.panels, state)
}

func (r *recordingPresenter) Kinds() []domain.PanelKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]domain.PanelKind, 0, len(r.panels))
	for _, panel := range r.panels {
		kinds = append(kinds, panel.Kind)
	}
	return kinds
}

type pipelineHarness struct {
	pipeline  *DealPipeline
	browser   *fakeBrowser
	api       *fakePriceAPI
	presenter *recordingPresenter
	clock     *fakeClock
	ctx       context.Context
}

func startPipeline(t *testing.T, api *fakePriceAPI) *pipelineHarness {
	t.Helper()

	clock := newFakeClock()
	presenter := &recordingPresenter{}
	browser := newFakeBrowser()
	pipeline := NewDealPipeline(api, presenter, newTestWatcher(), PipelineConfig{Clock: clock}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pipeline.Run(ctx, browser) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Error("pipeline did not stop")
		}
	})

	return &pipelineHarness{
		pipeline:  pipeline,
		browser:   browser,
		api:       api,
		presenter: presenter,
		clock:     clock,
		ctx:       ctx,
	}
}

func (h *pipelineHarness) navigate(url string) {
	h.browser.navigations <- domain.NavigationEvent{URL: url}
}

func (h *pipelineHarness) post(message string) {
	h.browser.messages <- message
}

// sync returns once the loop has handled everything sent before it. A back
// press is a no-op unless a deal is visible.
func (h *pipelineHarness) sync(t *testing.T) {
	t.Helper()
	require.False(t, h.pipeline.Panel().IsVisible(), "sync would consume a visible panel")
	h.pipeline.BackPress(h.ctx)
}

func (h *pipelineHarness) waitForState(t *testing.T, state domain.PipelineState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.pipeline.State() == state
	}, time.Second, 5*time.Millisecond, "pipeline never reached %s", state)
}

func TestNewDealPipeline_Defaults(t *testing.T) {
	p := NewDealPipeline(newFakePriceAPI(), nil, newTestWatcher(), PipelineConfig{}, nil)

	assert.Equal(t, DefaultDismissAfter, p.dismissAfter)
	assert.Equal(t, DefaultRequestTimeout, p.requestTimeout)
	assert.Equal(t, domain.StateIdle, p.State())
	assert.Equal(t, domain.PanelHidden, p.Panel().Kind)
}

func TestDealPipeline_DisplaysAndExpires(t *testing.T) {
	api := newFakePriceAPI()
	api.setComparison("iphone_14", &domain.DealComparison{
		FlipkartPrice:     79999,
		WowDealPrice:      74999,
		ProductImgURI:     DefaultPlaceholderImageURI,
		SavingsPercentage: 6,
	})
	h := startPipeline(t, api)

	h.navigate(productURL)
	h.post(`{"title":"iPhone 14","wowDeal":"₹74,999"}`)
	h.waitForState(t, domain.StateDisplaying)

	injections := h.browser.Injections()
	require.Len(t, injections, 1)
	assert.Equal(t, productURL, injections[0].URL)

	submits := api.Submits()
	require.Len(t, submits, 1)
	assert.Equal(t, "iphone_14", submits[0].ProductTitle)
	require.NotNil(t, submits[0].WowDealPrice)
	assert.Equal(t, "₹74,999", *submits[0].WowDealPrice)
	assert.Equal(t, []string{"iphone_14"}, api.Reads())

	panel := h.pipeline.Panel()
	require.True(t, panel.IsVisible())
	assert.Equal(t, 6, panel.Comparison.SavingsPercentage)

	h.clock.Advance(119999 * time.Millisecond)
	assert.Equal(t, domain.StateDisplaying, h.pipeline.State())

	h.clock.Advance(time.Millisecond)
	h.waitForState(t, domain.StateIdle)
	assert.Equal(t, domain.PanelHidden, h.pipeline.Panel().Kind)
	assert.Equal(t, []domain.PanelKind{domain.PanelLoading, domain.PanelVisible, domain.PanelHidden}, h.presenter.Kinds())
}

func TestDealPipeline_IgnoresMessagesOffProductPages(t *testing.T) {
	h := startPipeline(t, newFakePriceAPI())

	h.navigate(searchURL)
	h.post(`{"title":"iPhone 14","wowDeal":"₹74,999"}`)
	h.sync(t)

	assert.Empty(t, h.api.Submits())
	assert.Empty(t, h.browser.Injections())
	assert.Equal(t, domain.StateIdle, h.pipeline.State())
	assert.Empty(t, h.presenter.Kinds())
}

func TestDealPipeline_StaleResponseSuppressed(t *testing.T) {
	api := newFakePriceAPI()
	api.setComparison("phone_a", &domain.DealComparison{FlipkartPrice: 5000, WowDealPrice: 4500, SavingsPercentage: 10})
	api.setComparison("phone_b", &domain.DealComparison{FlipkartPrice: 5000, WowDealPrice: 4000, SavingsPercentage: 20})
	gateA := api.gate("phone_a")
	h := startPipeline(t, api)

	h.navigate(productURL)
	h.post(`{"title":"Phone A","wowDeal":"₹4,500"}`)
	require.Eventually(t, func() bool { return len(api.Submits()) == 1 }, time.Second, 5*time.Millisecond)

	h.post(`{"title":"Phone B","wowDeal":"₹4,000"}`)
	h.waitForState(t, domain.StateDisplaying)
	require.Equal(t, 20, h.pipeline.Panel().Comparison.SavingsPercentage)

	close(gateA)
	require.Eventually(t, func() bool { return len(api.Reads()) == 2 }, time.Second, 5*time.Millisecond)

	assert.Never(t, func() bool {
		panel := h.pipeline.Panel()
		return panel.Comparison == nil || panel.Comparison.SavingsPercentage != 20
	}, 100*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, domain.StateDisplaying, h.pipeline.State())
	assert.Equal(t, 1, h.clock.Active())
}

func TestDealPipeline_TeardownDuringRoundTrip(t *testing.T) {
	api := newFakePriceAPI()
	api.setComparison("iphone_14", &domain.DealComparison{FlipkartPrice: 79999, WowDealPrice: 74999, SavingsPercentage: 6})
	gate := api.gate("iphone_14")
	h := startPipeline(t, api)

	h.navigate(productURL)
	h.post(`{"title":"iPhone 14","wowDeal":"₹74,999"}`)
	require.Eventually(t, func() bool { return len(api.Submits()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.PanelLoading, h.pipeline.Panel().Kind)

	h.navigate(searchURL)
	h.sync(t)
	assert.Equal(t, domain.PanelHidden, h.pipeline.Panel().Kind)

	close(gate)
	require.Eventually(t, func() bool { return len(api.Reads()) == 1 }, time.Second, 5*time.Millisecond)

	assert.Never(t, func() bool {
		return h.pipeline.Panel().IsVisible()
	}, 100*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, domain.StateIdle, h.pipeline.State())
	assert.Equal(t, []domain.PanelKind{domain.PanelLoading, domain.PanelHidden}, h.presenter.Kinds())
}

func TestDealPipeline_TeardownIdempotent(t *testing.T) {
	t.Run("nothing displayed", func(t *testing.T) {
		h := startPipeline(t, newFakePriceAPI())

		h.navigate(searchURL)
		h.navigate(searchURL)
		h.sync(t)

		assert.Equal(t, domain.StateIdle, h.pipeline.State())
		assert.Equal(t, domain.PanelHidden, h.pipeline.Panel().Kind)
		assert.Empty(t, h.presenter.Kinds())
	})

	t.Run("deal displayed", func(t *testing.T) {
		api := newFakePriceAPI()
		api.setComparison("iphone_14", &domain.DealComparison{FlipkartPrice: 79999, WowDealPrice: 74999, SavingsPercentage: 6})
		h := startPipeline(t, api)

		h.navigate(productURL)
		h.post(`{"title":"iPhone 14","wowDeal":"₹74,999"}`)
		h.waitForState(t, domain.StateDisplaying)

		h.navigate(searchURL)
		h.navigate("https://www.flipkart.com/")
		h.sync(t)

		assert.Equal(t, domain.PanelHidden, h.pipeline.Panel().Kind)
		assert.Equal(t, 0, h.clock.Active())
		assert.Equal(t, []domain.PanelKind{domain.PanelLoading, domain.PanelVisible, domain.PanelHidden}, h.presenter.Kinds())

		h.clock.Advance(DefaultDismissAfter)
		assert.Len(t, h.presenter.Kinds(), 3)
	})
}

func TestDealPipeline_MalformedMessage(t *testing.T) {
	h := startPipeline(t, newFakePriceAPI())

	h.navigate(productURL)
	h.post(`not json`)
	h.sync(t)

	assert.Equal(t, domain.StateFailed, h.pipeline.State())
	assert.Equal(t, domain.PanelError, h.pipeline.Panel().Kind)
	assert.False(t, h.pipeline.Panel().IsVisible())
	assert.Empty(t, h.api.Submits())
}

func TestDealPipeline_ServiceFailures(t *testing.T) {
	t.Run("write failure skips the read", func(t *testing.T) {
		api := newFakePriceAPI()
		api.submitErr = domain.ErrServiceUnavailable
		h := startPipeline(t, api)

		h.navigate(productURL)
		h.post(`{"title":"iPhone 14","wowDeal":"₹74,999"}`)
		h.waitForState(t, domain.StateFailed)

		assert.Empty(t, api.Reads())
		assert.Equal(t, []domain.PanelKind{domain.PanelLoading, domain.PanelError}, h.presenter.Kinds())
	})

	t.Run("read failure", func(t *testing.T) {
		api := newFakePriceAPI()
		api.readErr = domain.ErrServiceUnavailable
		h := startPipeline(t, api)

		h.navigate(productURL)
		h.post(`{"title":"iPhone 14","wowDeal":"₹74,999"}`)
		h.waitForState(t, domain.StateFailed)

		assert.Len(t, api.Reads(), 1)
		assert.False(t, h.pipeline.Panel().IsVisible())
	})

	t.Run("not found stays hidden", func(t *testing.T) {
		api := newFakePriceAPI()
		h := startPipeline(t, api)

		h.navigate(productURL)
		h.post(`{"title":"iPhone 14","wowDeal":"₹74,999"}`)
		require.Eventually(t, func() bool { return len(api.Reads()) == 1 }, time.Second, 5*time.Millisecond)
		require.Eventually(t, func() bool {
			return h.pipeline.State() == domain.StateIdle && h.pipeline.Panel().Kind == domain.PanelHidden
		}, time.Second, 5*time.Millisecond)

		assert.Equal(t, []domain.PanelKind{domain.PanelLoading, domain.PanelHidden}, h.presenter.Kinds())
	})

	t.Run("a fresh message recovers", func(t *testing.T) {
		api := newFakePriceAPI()
		api.submitErr = domain.ErrServiceUnavailable
		api.setComparison("iphone_14", &domain.DealComparison{FlipkartPrice: 79999, WowDealPrice: 74999, SavingsPercentage: 6})
		h := startPipeline(t, api)

		h.navigate(productURL)
		h.post(`{"title":"iPhone 14","wowDeal":"₹74,999"}`)
		h.waitForState(t, domain.StateFailed)

		api.mu.Lock()
		api.submitErr = nil
		api.mu.Unlock()

		h.post(`{"title":"iPhone 14","wowDeal":"₹74,999"}`)
		h.waitForState(t, domain.StateDisplaying)
		assert.Len(t, api.Submits(), 2)
	})
}

func TestDealPipeline_EmptyTitleStillSubmits(t *testing.T) {
	api := newFakePriceAPI()
	api.submitErr = domain.ErrInvalidRequest
	h := startPipeline(t, api)

	h.navigate(productURL)
	h.post(`{"title":null,"wowDeal":null}`)
	h.waitForState(t, domain.StateFailed)

	submits := api.Submits()
	require.Len(t, submits, 1)
	assert.Equal(t, "", submits[0].ProductTitle)
	assert.Nil(t, submits[0].WowDealPrice)
}

func TestDealPipeline_NewMessageRearmsTimer(t *testing.T) {
	api := newFakePriceAPI()
	api.setComparison("iphone_14", &domain.DealComparison{FlipkartPrice: 79999, WowDealPrice: 74999, SavingsPercentage: 6})
	h := startPipeline(t, api)

	h.navigate(productURL)
	h.post(`{"title":"iPhone 14","wowDeal":"₹74,999"}`)
	h.waitForState(t, domain.StateDisplaying)

	h.clock.Advance(time.Minute)
	h.post(`{"title":"iPhone 14","wowDeal":"₹74,999"}`)
	require.Eventually(t, func() bool {
		return h.pipeline.State() == domain.StateDisplaying && len(api.Reads()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.clock.Active())

	h.clock.Advance(time.Minute)
	assert.Equal(t, domain.StateDisplaying, h.pipeline.State())

	h.clock.Advance(time.Minute)
	h.waitForState(t, domain.StateIdle)
}

func TestDealPipeline_BackPress(t *testing.T) {
	api := newFakePriceAPI()
	api.setComparison("iphone_14", &domain.DealComparison{FlipkartPrice: 79999, WowDealPrice: 74999, SavingsPercentage: 6})
	h := startPipeline(t, api)

	assert.False(t, h.pipeline.BackPress(h.ctx))

	h.navigate(productURL)
	h.post(`{"title":"iPhone 14","wowDeal":"₹74,999"}`)
	h.waitForState(t, domain.StateDisplaying)

	assert.True(t, h.pipeline.BackPress(h.ctx))
	assert.Equal(t, domain.PanelHidden, h.pipeline.Panel().Kind)
	assert.Equal(t, 0, h.clock.Active())

	assert.False(t, h.pipeline.BackPress(h.ctx))
}

func TestDealPipeline_StopsWhenNavigationsClose(t *testing.T) {
	p := NewDealPipeline(newFakePriceAPI(), nil, newTestWatcher(), PipelineConfig{Clock: newFakeClock()}, nil)
	browser := newFakeBrowser()
	close(browser.navigations)

	err := p.Run(context.Background(), browser)
	assert.NoError(t, err)
	assert.Equal(t, domain.StateIdle, p.State())
}

func TestDealPipeline_ReleasesRoundTripsAfterStop(t *testing.T) {
	api := newFakePriceAPI()
	api.setComparison("iphone_14", &domain.DealComparison{FlipkartPrice: 79999, WowDealPrice: 74999, SavingsPercentage: 6})
	gate := api.gate("iphone_14")

	p := NewDealPipeline(api, nil, newTestWatcher(), PipelineConfig{
		Clock:          newFakeClock(),
		RequestTimeout: time.Hour,
	}, nil)
	browser := newFakeBrowser()

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background(), browser) }()

	browser.navigations <- domain.NavigationEvent{URL: productURL}
	browser.messages <- `{"title":"iPhone 14","wowDeal":"₹74,999"}`
	require.Eventually(t, func() bool { return len(api.Submits()) == 1 }, time.Second, 5*time.Millisecond)

	close(browser.navigations)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("pipeline did not stop")
	}

	close(gate)
	require.Eventually(t, func() bool { return len(api.Reads()) == 1 }, time.Second, 5*time.Millisecond)

	select {
	case <-api.ReadContext(0).Done():
	case <-time.After(time.Second):
		t.Fatal("round trip still blocked after the pipeline stopped")
	}
	assert.Equal(t, domain.StateIdle, p.State())
	assert.Equal(t, uint64(0), p.Settled())

	pressed := make(chan bool, 1)
	go func() { pressed <- p.BackPress(context.Background()) }()
	select {
	case consumed := <-pressed:
		assert.False(t, consumed)
	case <-time.After(time.Second):
		t.Fatal("back press blocked after the pipeline stopped")
	}
}

func TestDealPipeline_SettledCountsAnsweredMessages(t *testing.T) {
	api := newFakePriceAPI()
	api.setComparison("iphone_14", &domain.DealComparison{FlipkartPrice: 79999, WowDealPrice: 74999, SavingsPercentage: 6})
	h := startPipeline(t, api)

	h.navigate(productURL)
	h.post(`{"title":"iPhone 14","wowDeal":"₹74,999"}`)
	h.waitForState(t, domain.StateDisplaying)
	assert.Equal(t, uint64(1), h.pipeline.Settled())

	// Leaving the page bumps the generation but answers nothing
	h.navigate(searchURL)
	h.waitForState(t, domain.StateIdle)
	assert.Equal(t, uint64(1), h.pipeline.Settled())

	h.navigate(productURL)
	h.post(`{"title":"Pixel 8"}`)
	h.waitForState(t, domain.StateIdle)
	require.Eventually(t, func() bool { return h.pipeline.Settled() == 2 }, time.Second, 5*time.Millisecond)

	h.post(`not json`)
	h.waitForState(t, domain.StateFailed)
	assert.Equal(t, uint64(3), h.pipeline.Settled())
}
