package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dealsheet/backend/config"
	"github.com/dealsheet/backend/internal/delivery/terminal"
	"github.com/dealsheet/backend/internal/domain"
	"github.com/dealsheet/backend/internal/infrastructure/priceapi"
	"github.com/dealsheet/backend/internal/usecase"
	"github.com/dealsheet/backend/logger"
	"github.com/spf13/cobra"
)

var (
	cfg       *config.Config
	serverURL string
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "watcher",
	Short: "watcher shows price comparisons for product pages as you browse them.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if serverURL != "" {
			loaded.Client.BaseURL = serverURL
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		logger.Init(loaded.Log.Level, loaded.Log.Pretty)
		cfg = loaded
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Base URL of the price service (overrides client.base_url).")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides log.level).")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newClassifier builds the product page classifier from configuration
func newClassifier(cfg *config.Config) *usecase.PageClassifier {
	return usecase.NewPageClassifier(cfg.Watcher.SiteBase, cfg.Watcher.ProductMarker)
}

func newScriptGenerator(cfg *config.Config) *usecase.ScriptGenerator {
	return usecase.NewScriptGenerator(usecase.ScriptGeneratorConfig{
		Selectors: domain.SelectorSet{
			Title: cfg.Watcher.TitleSelectors,
			Price: cfg.Watcher.PriceSelectors,
		},
		TitleMaxLength: cfg.Watcher.TitleMaxLength,
		Bridge:         cfg.Watcher.Bridge,
	})
}

// newPipeline wires the deal pipeline with a terminal panel drawn on out
func newPipeline(cfg *config.Config, scripts *usecase.ScriptGenerator, out io.Writer) *usecase.DealPipeline {
	watcher := usecase.NewNavigationWatcher(newClassifier(cfg), scripts)

	client := priceapi.NewClient(cfg.Client.BaseURL, cfg.Client.RequestTimeout, cfg.RateLimit.Client)

	return usecase.NewDealPipeline(
		client,
		terminal.NewPresenter(out),
		watcher,
		usecase.PipelineConfig{
			DismissAfter:   cfg.Watcher.DismissAfter,
			RequestTimeout: cfg.Client.RequestTimeout,
		},
		logger.ForPipeline(),
	)
}
