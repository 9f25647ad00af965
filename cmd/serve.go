// -- cmd/serve.go --
package cmd

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mediaforge/internal/browser"
	"github.com/xkilldash9x/mediaforge/internal/engage"
	"github.com/xkilldash9x/mediaforge/internal/imagegen"
	"github.com/xkilldash9x/mediaforge/internal/metadata"
	"github.com/xkilldash9x/mediaforge/internal/observability"
	"github.com/xkilldash9x/mediaforge/internal/scraper"
	"github.com/xkilldash9x/mediaforge/internal/server"
	"github.com/xkilldash9x/mediaforge/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server.",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := store.Open(cfg.Database, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		mgr := browser.NewManager(cfg.Browser, logger)
		defer mgr.Shutdown(ctx)

		cookies := browser.NewCookieStore(cfg.Browser.CookieFile, logger)
		generator := imagegen.NewGenerator(cfg.Imagegen, cfg.Browser, mgr, cookies, logger)
		extractor := metadata.NewExtractor(cfg.Metadata, logger)
		downloader := scraper.New(cfg.Scraper, logger)

		// The engagement service is optional; without an API key the
		// related endpoints answer 503.
		var engager server.Engager
		if cfg.Gemini.APIKey != "" {
			e, err := engage.NewEngager(ctx, cfg.Gemini, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize engagement service: %w", err)
			}
			engager = e
		} else {
			logger.Warn("No Gemini API key configured; engagement endpoints disabled.")
		}

		srv := server.New(cfg.Server, st, generator, engager, extractor, downloader, mgr, logger)
		if err := srv.Run(ctx); err != nil && !errors.Is(err, ctx.Err()) {
			return err
		}

		logger.Info("Server stopped.", zap.String("addr", cfg.Server.Addr))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
