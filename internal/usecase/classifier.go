package usecase

import "strings"

// PageClassifier decides whether a navigated URL is a single-product page
type PageClassifier struct {
	siteBase      string
	productMarker string
}

// NewPageClassifier creates a classifier for a site base such as
// "https://www.flipkart.com/" and a path marker such as "/p/".
func NewPageClassifier(siteBase, productMarker string) *PageClassifier {
	return &PageClassifier{
		siteBase:      siteBase,
		productMarker: productMarker,
	}
}

// IsProductPage reports whether url starts with the site base and contains
// the product marker.
func (c *PageClassifier) IsProductPage(url string) bool {
	return strings.HasPrefix(url, c.siteBase) && strings.Contains(url, c.productMarker)
}
