// -- cmd/generate.go --
package cmd

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mediaforge/internal/browser"
	"github.com/xkilldash9x/mediaforge/internal/imagegen"
	"github.com/xkilldash9x/mediaforge/internal/observability"
)

var (
	generateOutputDir string
	generateCount     int
)

var generateCmd = &cobra.Command{
	Use:   "generate [prompt]",
	Short: "Generate images for a prompt from the command line.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		prompt := strings.Join(args, " ")

		mgr := browser.NewManager(cfg.Browser, logger)
		defer mgr.Shutdown(ctx)

		cookies := browser.NewCookieStore(cfg.Browser.CookieFile, logger)

		// Restore the saved login before the first generation attempt.
		handle, err := mgr.Acquire(ctx)
		if err != nil {
			return err
		}
		restored, err := browser.EnsureSession(handle.Context(), cfg.Browser, cookies, logger)
		handle.Release()
		if err != nil {
			return err
		}
		if !restored {
			return fmt.Errorf("no stored session; run 'mediaforge login' first")
		}

		generator := imagegen.NewGenerator(cfg.Imagegen, cfg.Browser, mgr, cookies, logger)
		result, err := generator.Generate(ctx, imagegen.Request{
			Prompt:    prompt,
			OutputDir: generateOutputDir,
			NumImages: generateCount,
		})
		if err != nil {
			return err
		}

		logger.Info("Generation finished.", zap.Int("saved", len(result.Items)))
		for _, item := range result.Items {
			fmt.Println(item.Path)
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVarP(&generateOutputDir, "output", "o", "output", "directory to save generated images into")
	generateCmd.Flags().IntVarP(&generateCount, "count", "n", 0, "number of images to keep (default from config)")
	rootCmd.AddCommand(generateCmd)
}
