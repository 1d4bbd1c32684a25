package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/instabilitylab/netshaker/pkg/agent"
	"github.com/instabilitylab/netshaker/pkg/harness"
	"github.com/instabilitylab/netshaker/pkg/impairment"
	"github.com/instabilitylab/netshaker/pkg/report"
	"github.com/instabilitylab/netshaker/pkg/runtime"
	"github.com/instabilitylab/netshaker/pkg/runtime/profiler"
	"github.com/instabilitylab/netshaker/pkg/types/runcount"
)

// BuildImpairCmd returns a cobra command that enables one impairment variant
// for a fixed time and then restores the baseline.
func BuildImpairCmd(env runtime.Environment, profilerConfig *profiler.Config) *cobra.Command {
	var duration time.Duration
	var iface string
	satellite := impairment.DefaultSatelliteConfig()
	cellular := impairment.DefaultCellularConfig()

	cmd := &cobra.Command{
		Use:   "impair variant",
		Short: "enable one impairment for a fixed time",
		Long: "Enables the given impairment variant (offline, satellite or cellular) on the\n" +
			"host, holds it for the requested duration and disables it again." +
			" Requires either to be run as root, or the NET_ADMIN capability.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			variant, err := impairment.ParseVariant(args[0])
			if err != nil {
				return err
			}

			if variant == impairment.Online || variant == impairment.All {
				return fmt.Errorf("variant %q cannot be scheduled, pick one of offline, satellite or cellular", variant)
			}

			logger := logrus.StandardLogger()

			a := agent.New(env, agent.Config{Profiler: profilerConfig}, logger)

			return a.Run(cmd.Context(), func(ctx context.Context) error {
				resolved, err := resolveInterface(ctx, env, iface)
				if err != nil {
					return err
				}

				controllers := impairment.BuildControllers(env.Executor(), impairment.Config{
					Interface: resolved,
					Satellite: satellite,
					Cellular:  cellular,
				})

				engine := harness.NewEngine(report.NewLog(logger), harness.SystemClock(), logger, nil)

				if err := engine.ResetBaseline(ctx, controllers); err != nil {
					return err
				}

				controller, err := controllers.For(variant)
				if err != nil {
					return err
				}

				hold := harness.FrequencyProfile{
					Offline: duration,
					Runs:    runcount.FromInt(1),
				}

				return engine.RunCycles(ctx, controller, []harness.FrequencyProfile{hold}, 0)
			})
		},
	}

	cmd.Flags().DurationVarP(&duration, "duration", "d", time.Minute, "how long the impairment stays enabled")
	cmd.Flags().StringVarP(&iface, "interface", "i", "",
		"interface to impair (default: the default route's interface)")
	cmd.Flags().DurationVar(&satellite.Delay, "satellite-delay", satellite.Delay,
		"one-way latency of the satellite link")
	cmd.Flags().DurationVar(&satellite.Jitter, "satellite-jitter", satellite.Jitter,
		"latency variation of the satellite link")
	cmd.Flags().IntVar(&satellite.Rate, "satellite-rate", satellite.Rate,
		"bandwidth cap of the satellite link, in kbit")
	cmd.Flags().DurationVar(&cellular.Delay, "cellular-delay", cellular.Delay,
		"one-way latency of the cellular link")
	cmd.Flags().DurationVar(&cellular.Jitter, "cellular-jitter", cellular.Jitter,
		"latency variation of the cellular link")
	cmd.Flags().Float64Var(&cellular.Loss, "cellular-loss", cellular.Loss,
		"packet loss of the cellular link, in percent")
	cmd.Flags().IntVar(&cellular.Rate, "cellular-rate", cellular.Rate,
		"bandwidth cap of the cellular link, in kbit")
	cmd.Flags().Float64Var(&cellular.ConnectionDropRate, "connection-drop-rate", cellular.ConnectionDropRate,
		"share of connections that stall on the cellular link")

	return cmd
}
