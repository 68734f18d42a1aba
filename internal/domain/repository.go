package domain

import (
	"context"
)

// PriceStore defines the keyed store behind the price aggregation service.
// Upsert fully replaces any prior entry (last write wins).
type PriceStore interface {
	Upsert(ctx context.Context, productTitle string, entry PriceEntry) error
	Lookup(ctx context.Context, productTitle string) (*PriceEntry, error)
}

// ReferencePricer supplies the reference (list) price a deal is compared against
type ReferencePricer interface {
	ReferencePrice(ctx context.Context, productTitle string) (float64, error)
}

// PriceAPI defines the client side of the price aggregation service
type PriceAPI interface {
	SubmitObservation(ctx context.Context, request ObservationRequest) error
	GetComparison(ctx context.Context, productTitle string) (*DealComparison, error)
}

// Presenter renders the deal panel. It is called once per panel change.
type Presenter interface {
	Render(state PanelState)
}

// EmbeddedBrowser is the boundary to the page host: a push stream of
// navigations, a single inbound message channel and script injection.
// Inject must not block.
type EmbeddedBrowser interface {
	Navigations() <-chan NavigationEvent
	Messages() <-chan string
	Inject(injection Injection)
}
