package domain

import "time"

// RawScrapeMessage is the untrusted payload posted by the injected script.
// Both fields are null when the page carries no matching element.
type RawScrapeMessage struct {
	Title   *string `json:"title"`
	WowDeal *string `json:"wowDeal"`
}

// ObservationRequest is the wire body of POST /api/prices.
// The price travels as the display-formatted string and is parsed by the service.
type ObservationRequest struct {
	ProductTitle string  `json:"productTitle"`
	WowDealPrice *string `json:"wowDealPrice"`
}

// PriceObservation is a single cleaned (title, promotional price) pair
type PriceObservation struct {
	ProductTitle string   `json:"productTitle"`
	WowDealPrice *float64 `json:"wowDealPrice"`
}

// PriceEntry is what the price store keeps per normalized product title
type PriceEntry struct {
	WowDealPrice  *float64  `json:"wowDealPrice"`
	FlipkartPrice float64   `json:"flipkartPrice"`
	ProductImgURI string    `json:"productImgUri"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// DealComparison is the service-computed view of the latest observation
// against the reference price.
type DealComparison struct {
	FlipkartPrice     float64 `json:"flipkartPrice"`
	WowDealPrice      float64 `json:"wowDealPrice"`
	ProductImgURI     string  `json:"productImgUri"`
	SavingsPercentage int     `json:"savingsPercentage"` // may be negative for a markup
}

// SelectorSet holds the prioritized CSS selectors used to locate the title
// and the promotional price on a product page.
type SelectorSet struct {
	Title []string `json:"title"`
	Price []string `json:"price"`
}
