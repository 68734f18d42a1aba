package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dealsheet/backend/internal/domain"
)

// DefaultTitleMaxLength bounds the title sent from the page. It limits the
// payload; it is not a display truncation.
const DefaultTitleMaxLength = 20

// DefaultBridge is the host object the script posts its message through
const DefaultBridge = "window.ReactNativeWebView"

// DefaultSelectors are the product page selectors, most specific first
var DefaultSelectors = domain.SelectorSet{
	Title: []string{"span.B_NuCI", "span._35KyD6"},
	Price: []string{".CEmiEU", "._30jeq3"},
}

// extractionScript posts exactly one {title, wowDeal} message. Selectors are
// tried in order; the first element with non-empty trimmed text wins, invalid
// selectors are skipped. Nothing matching yields nulls.
const extractionScript = `(function() {
  function getText(selectors) {
    for (var i = 0; i < selectors.length; i++) {
      try {
        var el = document.querySelector(selectors[i]);
        var text = el && el.innerText ? el.innerText.trim() : '';
        if (text) {
          return text;
        }
      } catch (e) {}
    }
    return null;
  }
  var message = { title: null, wowDeal: null };
  try {
    var title = getText(%[2]s);
    message.title = title ? title.substring(0, %[4]d) : null;
    message.wowDeal = getText(%[3]s);
  } catch (e) {}
  %[1]s.postMessage(JSON.stringify(message));
})();
true;
`

// expressionWrapper installs a bridge that resolves the promise with the
// posted message, then runs the script.
const expressionWrapper = `() => new Promise((resolve) => {
  %[1]s = { postMessage: resolve };
%[2]s})`

// ScriptGeneratorConfig holds configuration for the extraction script
type ScriptGeneratorConfig struct {
	Selectors      domain.SelectorSet
	TitleMaxLength int
	Bridge         string
}

// ScriptGenerator builds the extraction snippet injected into product pages
type ScriptGenerator struct {
	selectors      domain.SelectorSet
	titleMaxLength int
	bridge         string
}

// NewScriptGenerator creates a generator, filling unset fields with defaults
func NewScriptGenerator(config ScriptGeneratorConfig) *ScriptGenerator {
	selectors := config.Selectors
	if len(selectors.Title) == 0 {
		selectors.Title = DefaultSelectors.Title
	}
	if len(selectors.Price) == 0 {
		selectors.Price = DefaultSelectors.Price
	}

	titleMaxLength := config.TitleMaxLength
	if titleMaxLength <= 0 {
		titleMaxLength = DefaultTitleMaxLength
	}

	bridge := config.Bridge
	if bridge == "" {
		bridge = DefaultBridge
	}

	return &ScriptGenerator{
		selectors:      selectors,
		titleMaxLength: titleMaxLength,
		bridge:         bridge,
	}
}

// Selectors returns the selector lists the script uses
func (g *ScriptGenerator) Selectors() domain.SelectorSet {
	return g.selectors
}

// TitleMaxLength returns the title bound applied in-page
func (g *ScriptGenerator) TitleMaxLength() int {
	return g.titleMaxLength
}

// Build returns the script for hosts that run injected JavaScript and deliver
// bridge messages, such as a WebView.
func (g *ScriptGenerator) Build() string {
	return fmt.Sprintf(extractionScript,
		g.bridge,
		jsStringArray(g.selectors.Title),
		jsStringArray(g.selectors.Price),
		g.titleMaxLength,
	)
}

// BuildExpression returns a function expression whose promise resolves to the
// message JSON, for hosts that evaluate over the devtools protocol.
func (g *ScriptGenerator) BuildExpression() string {
	return fmt.Sprintf(expressionWrapper, g.bridge, g.Build())
}

// Injection returns the injection armed for url
func (g *ScriptGenerator) Injection(url string) domain.Injection {
	return domain.Injection{
		URL:        url,
		Script:     g.Build(),
		Expression: g.BuildExpression(),
	}
}

// jsStringArray renders selectors as a JavaScript array literal. JSON is valid
// JavaScript and takes care of quoting; selectors keep their < and > as is.
func jsStringArray(values []string) string {
	if values == nil {
		values = []string{}
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(values); err != nil {
		return "[]"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
