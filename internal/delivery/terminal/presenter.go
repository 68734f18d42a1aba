package terminal

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/dealsheet/backend/internal/domain"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Presenter renders the deal panel to a terminal
type Presenter struct {
	out io.Writer
	mu  sync.Mutex
}

// NewPresenter creates a presenter writing to out
func NewPresenter(out io.Writer) *Presenter {
	return &Presenter{out: out}
}

// Render draws the panel. Only a visible panel shows deal details; the
// other states print a status line.
func (p *Presenter) Render(state domain.PanelState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch state.Kind {
	case domain.PanelVisible:
		if state.Comparison != nil {
			p.renderComparison(state.Comparison)
			return
		}
		fmt.Fprintln(p.out, "(deal panel hidden)")
	case domain.PanelLoading:
		fmt.Fprintln(p.out, "Checking deal...")
	default:
		fmt.Fprintln(p.out, "(deal panel hidden)")
	}
}

func (p *Presenter) renderComparison(comparison *domain.DealComparison) {
	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetTitle("Deal Info")
	t.AppendRow(table.Row{"Flipkart Price", formatPrice(comparison.FlipkartPrice)})
	t.AppendRow(table.Row{"Wow Deal Price", formatPrice(comparison.WowDealPrice)})
	t.AppendRow(table.Row{"Savings", fmt.Sprintf("%d%%", comparison.SavingsPercentage)})
	t.AppendRow(table.Row{"Image", comparison.ProductImgURI})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func formatPrice(value float64) string {
	return "₹" + strconv.FormatFloat(value, 'f', -1, 64)
}
