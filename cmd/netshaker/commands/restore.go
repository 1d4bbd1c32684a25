package commands

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/instabilitylab/netshaker/pkg/agent"
	"github.com/instabilitylab/netshaker/pkg/harness"
	"github.com/instabilitylab/netshaker/pkg/impairment"
	"github.com/instabilitylab/netshaker/pkg/report"
	"github.com/instabilitylab/netshaker/pkg/runtime"
	"github.com/instabilitylab/netshaker/pkg/runtime/profiler"
)

// BuildRestoreCmd returns a cobra command that stops any running campaign
// and removes every impairment artifact from the host.
func BuildRestoreCmd(env runtime.Environment, profilerConfig *profiler.Config) *cobra.Command {
	var iface string
	var stopTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "stop any running campaign and restore the network baseline",
		Long: "Asks a running campaign to stop, waits for it to exit, and removes any\n" +
			"impairment artifact left on the host, including artifacts left by a\n" +
			"process that died mid-flight." +
			" Requires either to be run as root, or the NET_ADMIN capability.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := logrus.StandardLogger()

			if err := stopRunningInstance(cmd.Context(), env, stopTimeout, logger); err != nil {
				return err
			}

			a := agent.New(env, agent.Config{Profiler: profilerConfig}, logger)

			return a.Run(cmd.Context(), func(ctx context.Context) error {
				resolved, err := resolveInterface(ctx, env, iface)
				if err != nil {
					return err
				}

				controllers := impairment.BuildControllers(env.Executor(), impairment.Config{
					Interface: resolved,
					Satellite: impairment.DefaultSatelliteConfig(),
					Cellular:  impairment.DefaultCellularConfig(),
				})

				engine := harness.NewEngine(report.NewLog(logger), harness.SystemClock(), logger, nil)

				return engine.ResetBaseline(ctx, controllers)
			})
		},
	}

	cmd.Flags().StringVarP(&iface, "interface", "i", "",
		"interface to restore (default: the default route's interface)")
	cmd.Flags().DurationVar(&stopTimeout, "stop-timeout", 15*time.Second,
		"how long to wait for a running campaign to stop")

	return cmd
}

// stopRunningInstance signals the current lock owner, if any, and waits for
// the lock to become free. A stale lock left by a dead process needs no
// waiting; the next Acquire clears it.
func stopRunningInstance(ctx context.Context, env runtime.Environment, timeout time.Duration, logger *logrus.Logger) error {
	owner := env.Lock().Owner()
	if owner == -1 {
		return nil
	}

	err := syscall.Kill(owner, syscall.SIGTERM)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stopping running campaign (pid %d): %w", owner, err)
	}

	logger.WithField("pid", owner).Info("waiting for the running campaign to stop")

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		acquired, err := env.Lock().Acquire()
		if err != nil {
			return fmt.Errorf("could not acquire process lock: %w", err)
		}
		if acquired {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	return fmt.Errorf("running campaign (pid %d) did not stop within %s", owner, timeout)
}
