// -- cmd/login.go --
package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/mediaforge/internal/browser"
	"github.com/xkilldash9x/mediaforge/internal/observability"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Open a browser window for manual login and save the session.",
	Long: `Opens the target site in a visible browser window, waits for you to
sign in by hand, then saves the session cookies for later headless use.
This is a human-in-the-loop procedure; it never attempts credentials on
its own.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Login must be attended; headless mode is forced off.
		browserCfg := cfg.Browser
		browserCfg.Headless = false

		mgr := browser.NewManager(browserCfg, logger)
		defer mgr.Shutdown(ctx)

		handle, err := mgr.Acquire(ctx)
		if err != nil {
			return err
		}
		defer handle.Release()

		cookies := browser.NewCookieStore(browserCfg.CookieFile, logger)
		return browser.InteractiveLogin(handle.Context(), browserCfg, cookies, nil, logger)
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
