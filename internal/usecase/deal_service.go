package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dealsheet/backend/internal/domain"
)

// DefaultPlaceholderImageURI is stored with every observation until real
// product images are sourced.
const DefaultPlaceholderImageURI = "https://example.com/sample-product-image.png"

// DealServiceConfig holds configuration for the deal service
type DealServiceConfig struct {
	PlaceholderImageURI string
	Now                 func() time.Time
}

// DealService is the price aggregation service: it records observations and
// computes comparisons against a reference price.
type DealService struct {
	store       domain.PriceStore
	pricer      domain.ReferencePricer
	placeholder string
	now         func() time.Time
}

// NewDealService creates a new deal service with dependencies
func NewDealService(
	store domain.PriceStore,
	pricer domain.ReferencePricer,
	config DealServiceConfig,
) *DealService {
	placeholder := config.PlaceholderImageURI
	if placeholder == "" {
		placeholder = DefaultPlaceholderImageURI
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &DealService{
		store:       store,
		pricer:      pricer,
		placeholder: placeholder,
		now:         now,
	}
}

// RecordObservation parses the display price and upserts the entry for the
// title, replacing any previous entry including its image.
func (s *DealService) RecordObservation(ctx context.Context, request *domain.ObservationRequest) error {
	if request == nil || request.ProductTitle == "" {
		return domain.ErrInvalidRequest
	}

	observation := domain.PriceObservation{
		ProductTitle: request.ProductTitle,
		WowDealPrice: ParsePrice(request.WowDealPrice),
	}

	reference, err := s.pricer.ReferencePrice(ctx, observation.ProductTitle)
	if err != nil {
		return fmt.Errorf("reference price for %q: %w", observation.ProductTitle, err)
	}

	entry := domain.PriceEntry{
		WowDealPrice:  observation.WowDealPrice,
		FlipkartPrice: reference,
		ProductImgURI: s.placeholder,
		UpdatedAt:     s.now(),
	}

	if err := s.store.Upsert(ctx, observation.ProductTitle, entry); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Compare returns the comparison for the latest observation of a title
func (s *DealService) Compare(ctx context.Context, productTitle string) (*domain.DealComparison, error) {
	entry, err := s.store.Lookup(ctx, productTitle)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	comparison := ComputeComparison(*entry)
	return &comparison, nil
}

// ComputeComparison derives the comparison from a stored entry. A missing wow
// price falls back to the reference price with zero savings. Savings may be
// negative when the deal is a markup.
func ComputeComparison(entry domain.PriceEntry) domain.DealComparison {
	wow := entry.FlipkartPrice
	if entry.WowDealPrice != nil {
		wow = *entry.WowDealPrice
	}

	return domain.DealComparison{
		FlipkartPrice:     entry.FlipkartPrice,
		WowDealPrice:      wow,
		ProductImgURI:     entry.ProductImgURI,
		SavingsPercentage: savingsPercentage(entry.FlipkartPrice, entry.WowDealPrice),
	}
}

// savingsPercentage rounds half up, matching Math.round on the client side.
// A zero wow price counts as absent.
func savingsPercentage(reference float64, wow *float64) int {
	if wow == nil || *wow == 0 || reference <= 0 {
		return 0
	}
	return int(math.Floor((reference-*wow)/reference*100 + 0.5))
}

// FixedReferencePricer implements domain.ReferencePricer from configuration:
// a default price with optional per-title overrides.
type FixedReferencePricer struct {
	defaultPrice float64
	overrides    map[string]float64
}

// NewFixedReferencePricer creates a pricer returning defaultPrice unless the
// title has an override.
func NewFixedReferencePricer(defaultPrice float64, overrides map[string]float64) *FixedReferencePricer {
	copied := make(map[string]float64, len(overrides))
	for title, price := range overrides {
		copied[title] = price
	}
	return &FixedReferencePricer{defaultPrice: defaultPrice, overrides: copied}
}

// ReferencePrice returns the reference price for a title
func (p *FixedReferencePricer) ReferencePrice(ctx context.Context, productTitle string) (float64, error) {
	if price, ok := p.overrides[productTitle]; ok && price > 0 {
		return price, nil
	}
	return p.defaultPrice, nil
}
