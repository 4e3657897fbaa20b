package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hyprcore/hypridle/internal/app"
	"github.com/hyprcore/hypridle/internal/logger"
)

var (
	version = "dev"

	flagVerbose bool
	flagQuiet   bool
	flagVersion bool
	flagConfig  configPathFlag
)

// configPathFlag is a pflag.Value that rejects being set more than
// once, matching the original CLI's "Multiple config files are
// provided." check (main.cpp's --config handling).
type configPathFlag struct {
	value string
	count int
}

func (f *configPathFlag) String() string { return f.value }
func (f *configPathFlag) Type() string    { return "string" }

func (f *configPathFlag) Set(v string) error {
	f.count++
	if f.count > 1 {
		return fmt.Errorf("multiple config files are provided")
	}
	f.value = v
	return nil
}

var rootCmd = &cobra.Command{
	Use:   "hypridle",
	Short: "Idle management daemon for Wayland compositors",
	RunE:  runDaemon,
}

func init() {
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.Flags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress non-error output")
	rootCmd.Flags().BoolVarP(&flagVersion, "version", "V", false, "print version and exit")
	rootCmd.Flags().VarP(&flagConfig, "config", "c", "path to the configuration file")

	rootCmd.FParseErrWhitelist.UnknownFlags = true
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}

func runDaemon(cmd *cobra.Command, args []string) error {
	if flagVersion {
		fmt.Printf("hypridle %s\n", version)
		return nil
	}

	if strings.HasPrefix(flagConfig.value, "-") {
		return fmt.Errorf("after --config you should provide a path to a config file")
	}

	if flagVerbose {
		logger.SetVerbose(true)
	}
	if flagQuiet {
		logger.SetQuiet(true)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, flagConfig.value); err != nil {
		logger.Fatal("hypridle exiting", "error", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
