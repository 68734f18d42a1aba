package domain

// PanelKind is the visibility state of the deal panel
type PanelKind int

const (
	PanelHidden PanelKind = iota
	PanelLoading
	PanelVisible
	PanelError
)

func (k PanelKind) String() string {
	switch k {
	case PanelHidden:
		return "hidden"
	case PanelLoading:
		return "loading"
	case PanelVisible:
		return "visible"
	case PanelError:
		return "error"
	default:
		return "unknown"
	}
}

// PanelState is what the presentation layer renders.
// Comparison is set only when Kind is PanelVisible.
type PanelState struct {
	Kind       PanelKind
	Comparison *DealComparison
}

// IsVisible reports whether a comparison is on screen. An error panel is not
// shown to the user.
func (s PanelState) IsVisible() bool {
	return s.Kind == PanelVisible && s.Comparison != nil
}

// PipelineState is the state of the deal observation pipeline
type PipelineState int

const (
	StateIdle PipelineState = iota
	StateSubmitting
	StateDisplaying
	StateFailed
)

func (s PipelineState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateDisplaying:
		return "displaying"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// NavigationEvent is one committed navigation of the embedded browser,
// including back/forward and redirects.
type NavigationEvent struct {
	URL string `json:"url"`
}

// Injection is the extraction script armed for one product page.
// Script posts the message through the host bridge object; Expression is the
// same body wrapped as a function returning a promise of the message JSON, for
// hosts that evaluate over a devtools protocol.
type Injection struct {
	URL        string
	Script     string
	Expression string
}
