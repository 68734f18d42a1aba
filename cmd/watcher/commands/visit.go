package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dealsheet/backend/config"
	"github.com/dealsheet/backend/internal/domain"
	"github.com/dealsheet/backend/internal/infrastructure/browser"
	"github.com/dealsheet/backend/internal/usecase"
	"github.com/dealsheet/backend/logger"
	"github.com/spf13/cobra"
)

var visitBrowser string

func init() {
	visitCmd.Flags().StringVar(&visitBrowser, "browser", "", "Page host: 'chrome' or 'static' (overrides watcher.browser).")
	rootCmd.AddCommand(visitCmd)
}

// navigator is a page host the visit command can drive
type navigator interface {
	domain.EmbeddedBrowser
	Navigate(ctx context.Context, url string) error
	URL() string
	Close() error
}

// settler reports how many scrape messages have been answered
type settler interface {
	Settled() uint64
}

var visitCmd = &cobra.Command{
	Use:   "visit <url>...",
	Short: "Visits each URL in turn and reports its deal.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		kind := cfg.Watcher.Browser
		if visitBrowser != "" {
			kind = visitBrowser
		}

		scripts := newScriptGenerator(cfg)
		host, err := openNavigator(ctx, cfg, kind, scripts)
		if err != nil {
			return err
		}
		defer host.Close()

		pipeline := newPipeline(cfg, scripts, cmd.OutOrStdout())
		classifier := newClassifier(cfg)
		log := logger.ForComponent("watcher")

		errs := make(chan error, 1)
		go func() { errs <- pipeline.Run(ctx, host) }()

		settle := cfg.Client.RequestTimeout + 30*time.Second
		for _, target := range args {
			fmt.Fprintf(cmd.OutOrStdout(), "==> %s\n", target)

			before := pipeline.Settled()
			if err := host.Navigate(ctx, target); err != nil {
				log.Warn().Err(err).Str("url", target).Msg("Visit failed")
				continue
			}

			landed := host.URL()
			if !classifier.IsProductPage(landed) {
				log.Debug().Str("url", landed).Msg("Not a product page")
				continue
			}
			if !waitForSettle(ctx, pipeline, before, settle) {
				log.Warn().Str("url", landed).Msg("No deal reported before timeout")
			}
		}

		cancel()
		return <-errs
	},
}

func openNavigator(ctx context.Context, cfg *config.Config, kind string, scripts *usecase.ScriptGenerator) (navigator, error) {
	switch kind {
	case "static":
		return browser.NewStaticBrowser(browser.ExtractorConfig{
			Selectors:      scripts.Selectors(),
			TitleMaxLength: scripts.TitleMaxLength(),
			Timeout:        cfg.Client.RequestTimeout,
		}), nil
	case "chrome":
		return browser.LaunchChrome(ctx, browser.ChromeConfig{
			Bin:      cfg.Watcher.ChromeBin,
			Headless: true,
		})
	default:
		return nil, fmt.Errorf("unknown browser %q", kind)
	}
}

// waitForSettle waits until a scrape message has been answered since the
// count was before, or timeout passes.
func waitForSettle(ctx context.Context, pipeline settler, before uint64, timeout time.Duration) bool {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(timeout)

	for {
		if pipeline.Settled() > before {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline:
			return false
		case <-ticker.C:
		}
	}
}
