package usecase

import "github.com/dealsheet/backend/internal/domain"

// NavigationWatcher tracks the embedded browser's current URL and arms the
// extraction script on every navigation that lands on a product page.
// It is not safe for concurrent use; the pipeline loop owns it.
type NavigationWatcher struct {
	classifier    *PageClassifier
	scripts       *ScriptGenerator
	currentURL    string
	onProductPage bool
}

// NewNavigationWatcher creates a watcher
func NewNavigationWatcher(classifier *PageClassifier, scripts *ScriptGenerator) *NavigationWatcher {
	return &NavigationWatcher{
		classifier: classifier,
		scripts:    scripts,
	}
}

// Observe records a navigation. It returns the injection to arm when the new
// URL is a product page; the page is re-armed on every such navigation, even
// a repeat of the same URL.
func (w *NavigationWatcher) Observe(event domain.NavigationEvent) (domain.Injection, bool) {
	w.currentURL = event.URL
	w.onProductPage = w.classifier.IsProductPage(event.URL)
	if !w.onProductPage {
		return domain.Injection{}, false
	}
	return w.scripts.Injection(event.URL), true
}

// CurrentURL returns the last observed URL
func (w *NavigationWatcher) CurrentURL() string {
	return w.currentURL
}

// OnProductPage reports whether the last observed URL is a product page
func (w *NavigationWatcher) OnProductPage() bool {
	return w.onProductPage
}
