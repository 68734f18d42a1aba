package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/dealsheet/backend/internal/infrastructure/browser"
	"github.com/dealsheet/backend/internal/usecase"
	"github.com/dealsheet/backend/logger"
	"github.com/spf13/cobra"
)

var browseHeadless bool

func init() {
	browseCmd.Flags().BoolVar(&browseHeadless, "headless", false, "Run Chrome without a window (overrides watcher.headless).")
	rootCmd.AddCommand(browseCmd)
}

var browseCmd = &cobra.Command{
	Use:   "browse [url]",
	Short: "Opens Chrome and shows a deal panel for every product page you visit.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		startURL := cfg.Watcher.StartURL
		if len(args) == 1 {
			startURL = args[0]
		}

		chrome, err := browser.LaunchChrome(ctx, browser.ChromeConfig{
			Bin:      cfg.Watcher.ChromeBin,
			Headless: cfg.Watcher.Headless || browseHeadless,
		})
		if err != nil {
			return err
		}
		defer chrome.Close()

		pipeline := newPipeline(cfg, newScriptGenerator(cfg), cmd.OutOrStdout())

		errs := make(chan error, 1)
		go func() { errs <- pipeline.Run(ctx, chrome) }()

		if err := chrome.Navigate(ctx, startURL); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Watching the browser. Press Enter to go back, Ctrl-C to quit.")
		go readBackPresses(ctx, cmd.InOrStdin(), pipeline, chrome)

		return <-errs
	},
}

// readBackPresses treats each line on in as a hardware back press. A press
// the pipeline does not consume navigates the tab back.
func readBackPresses(ctx context.Context, in io.Reader, pipeline *usecase.DealPipeline, chrome *browser.ChromeBrowser) {
	log := logger.ForComponent("watcher")
	scanner := bufio.NewScanner(in)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if pipeline.BackPress(ctx) {
			continue
		}
		if err := chrome.GoBack(); err != nil {
			log.Warn().Err(err).Msg("Failed to navigate back")
		}
	}
}
