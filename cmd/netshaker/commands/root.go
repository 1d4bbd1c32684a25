// Package commands implements the subcommands of the netshaker CLI
package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/instabilitylab/netshaker/pkg/iproute"
	"github.com/instabilitylab/netshaker/pkg/runtime"
	"github.com/instabilitylab/netshaker/pkg/runtime/profiler"
	"github.com/instabilitylab/netshaker/pkg/version"
)

// BuildRootCmd builds the root command for the harness with all the
// persistent flags shared by the subcommands.
func BuildRootCmd(env runtime.Environment) *cobra.Command {
	logLevel := "info"
	logFormat := "text"
	profilerConfig := &profiler.Config{}

	rootCmd := &cobra.Command{
		Use:   "netshaker",
		Short: "Degrade and restore host network reachability",
		Long: "A harness for exercising systems under degraded network conditions.\n" +
			"It can take the host fully offline or emulate satellite and cellular links\n" +
			"on a schedule, verifying and reporting every status transition.",
		Version: version.String(),
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return configureLogging(logLevel, logFormat)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "logging level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "logging format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&profilerConfig.CPU.Enabled, "cpu-profile", false, "profile harness execution")
	rootCmd.PersistentFlags().StringVar(&profilerConfig.CPU.FileName, "cpu-profile-file", "cpu.pprof",
		"cpu profiling output file")
	rootCmd.PersistentFlags().BoolVar(&profilerConfig.Memory.Enabled, "mem-profile", false, "profile harness memory")
	rootCmd.PersistentFlags().StringVar(&profilerConfig.Memory.FileName, "mem-profile-file", "mem.pprof",
		"memory profiling output file")
	rootCmd.PersistentFlags().IntVar(&profilerConfig.Memory.Rate, "mem-profile-rate", 1, "memory profiling rate")
	rootCmd.PersistentFlags().BoolVar(&profilerConfig.Metrics.Enabled, "runtime-metrics", false,
		"collect go runtime metrics")
	rootCmd.PersistentFlags().StringVar(&profilerConfig.Metrics.FileName, "runtime-metrics-file", "metrics.out",
		"go runtime metrics output file")
	rootCmd.PersistentFlags().DurationVar(&profilerConfig.Metrics.Rate, "runtime-metrics-rate", time.Second,
		"go runtime metrics sampling rate")
	rootCmd.PersistentFlags().BoolVar(&profilerConfig.Trace.Enabled, "trace", false, "trace harness execution")
	rootCmd.PersistentFlags().StringVar(&profilerConfig.Trace.FileName, "trace-file", "trace.out", "tracing output file")

	rootCmd.AddCommand(BuildRunCmd(env, profilerConfig))
	rootCmd.AddCommand(BuildImpairCmd(env, profilerConfig))
	rootCmd.AddCommand(BuildRestoreCmd(env, profilerConfig))
	rootCmd.AddCommand(BuildVersionCmd())

	return rootCmd
}

// configureLogging applies the logging flags to the standard logger.
func configureLogging(level string, format string) error {
	logger := logrus.StandardLogger()

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	logger.SetLevel(parsed)

	switch format {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	return nil
}

// resolveInterface returns the interface to impair: the given one when set,
// after verifying it exists, or the interface of the default route.
func resolveInterface(ctx context.Context, env runtime.Environment, iface string) (string, error) {
	routes := iproute.New(env.Executor())

	if iface == "" {
		discovered, err := routes.DefaultInterface(ctx)
		if err != nil {
			return "", fmt.Errorf("discovering default interface: %w", err)
		}
		return discovered, nil
	}

	exists, err := routes.LinkExists(ctx, iface)
	if err != nil {
		return "", fmt.Errorf("checking interface %q: %w", iface, err)
	}
	if !exists {
		return "", fmt.Errorf("interface %q does not exist", iface)
	}

	return iface, nil
}
