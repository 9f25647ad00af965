// -- cmd/root.go --
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/mediaforge/internal/config"
	"github.com/xkilldash9x/mediaforge/internal/observability"
)

var (
	cfgFile string
	cfg     *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "mediaforge",
	Short:   "Mediaforge is a content management backend with browser-driven image generation.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Runs before any command, setting up config and logging.
		loaded, err := config.Load(cfgFile)
		if err != nil {
			// Initialize a fallback logger so the failure itself is visible.
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "mediaforge"})
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded

		observability.InitializeLogger(cfg.Logger)
		observability.GetLogger().Info("Starting mediaforge", zap.String("version", Version))
		return nil
	},
}

// reportExecuteError surfaces a fatal command error on both the logger and
// the given writer, so the failure stays visible even when config loading
// died before the real logger came up.
func reportExecuteError(err error, w io.Writer) {
	observability.GetLogger().Error("Command execution failed", zap.Error(err))
	fmt.Fprintln(w, err)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		reportExecuteError(err, os.Stderr)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
