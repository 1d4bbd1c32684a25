package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/instabilitylab/netshaker/pkg/agent"
	"github.com/instabilitylab/netshaker/pkg/config"
	"github.com/instabilitylab/netshaker/pkg/harness"
	"github.com/instabilitylab/netshaker/pkg/impairment"
	"github.com/instabilitylab/netshaker/pkg/metrics"
	"github.com/instabilitylab/netshaker/pkg/report"
	"github.com/instabilitylab/netshaker/pkg/runtime"
	"github.com/instabilitylab/netshaker/pkg/runtime/profiler"
)

// BuildRunCmd returns a cobra command that runs an impairment campaign from
// a campaign file.
func BuildRunCmd(env runtime.Environment, profilerConfig *profiler.Config) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "run an impairment campaign",
		Long: "Resets the network baseline and schedules the campaign's impairment cycles,\n" +
			"verifying and reporting every status transition." +
			" Requires either to be run as root, or the NET_ADMIN capability.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			campaign, err := config.Load(configPath)
			if err != nil {
				return err
			}

			logger := logrus.StandardLogger()

			a := agent.New(env, agent.Config{
				Profiler:      profilerConfig,
				ShutdownGrace: campaign.ShutdownGrace,
			}, logger)

			return a.Run(cmd.Context(), runCampaign(env, campaign, logger))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "campaign.yaml", "path to the campaign file")

	return cmd
}

// runCampaign builds the agent task that executes the campaign.
func runCampaign(env runtime.Environment, campaign config.Campaign, logger *logrus.Logger) agent.Task {
	return func(ctx context.Context) error {
		reporters := []report.Reporter{report.NewLog(logger)}
		if campaign.Reporter.Endpoint != "" {
			reporters = append(reporters,
				report.NewHTTP(campaign.Reporter.Endpoint, campaign.TrackingID, campaign.ModuleID))
		}
		reporter := report.NewMulti(reporters...)

		var observer harness.Observer = harness.NopObserver{}
		if campaign.Metrics.Address != "" {
			collector, err := metrics.NewCollector(nil)
			if err != nil {
				return fmt.Errorf("building metrics collector: %w", err)
			}
			observer = collector

			go func() {
				if err := metrics.Serve(ctx, campaign.Metrics.Address, collector, logger); err != nil {
					logger.WithError(err).Error("metrics listener failed")
				}
			}()
		}

		iface, err := resolveInterface(ctx, env, campaign.Interface)
		if err != nil {
			return err
		}

		logger.WithFields(logrus.Fields{
			"variant":   string(campaign.Variant),
			"interface": iface,
		}).Info("starting campaign")

		if err := reporter.Info(ctx, campaignHeader(campaign, iface)); err != nil && ctx.Err() == nil {
			logger.WithError(err).Warn("reporting campaign header failed")
		}

		controllers := impairment.BuildControllers(env.Executor(), impairment.Config{
			Interface: iface,
			Satellite: campaign.Satellite,
			Cellular:  campaign.Cellular,
		})

		engine := harness.NewEngine(reporter, harness.SystemClock(), logger, observer)

		if err := engine.ResetBaseline(ctx, controllers); err != nil {
			return err
		}

		if campaign.Variant == impairment.Online {
			if err := reporter.Info(ctx, "baseline verified, campaign leaves the host online"); err != nil && ctx.Err() == nil {
				logger.WithError(err).Warn("reporting campaign status failed")
			}
			return ctx.Err()
		}

		controller, err := controllers.For(campaign.Variant)
		if err != nil {
			return err
		}

		return engine.RunCycles(ctx, controller, campaign.Profiles, campaign.StartDelay)
	}
}

// campaignHeader renders the free-text campaign description delivered to the
// reporter before the baseline reset.
func campaignHeader(campaign config.Campaign, iface string) string {
	header := fmt.Sprintf("campaign variant %s on interface %s", campaign.Variant, iface)

	if len(campaign.Profiles) == 0 {
		return header
	}

	rendered := make([]string, 0, len(campaign.Profiles))
	for _, profile := range campaign.Profiles {
		rendered = append(rendered, profile.String())
	}

	return header + "; profiles: " + strings.Join(rendered, "; ")
}
