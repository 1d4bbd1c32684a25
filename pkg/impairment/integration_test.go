//go:build integration
// +build integration

package impairment_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"

	"github.com/instabilitylab/netshaker/pkg/impairment"
	"github.com/instabilitylab/netshaker/pkg/testutils/containers"
)

const probeTimeout = 2 * time.Second

// startFixtures launches the echo server and its privileged toolbox sidecar,
// returning the sidecar and the host address of the echo server.
func startFixtures(t *testing.T, ctx context.Context) (testcontainers.Container, string) {
	t.Helper()

	echoserver, err := containers.StartEchoServer(ctx)
	if err != nil {
		t.Fatalf("creating echoserver container: %v", err)
	}

	t.Cleanup(func() { require.NoError(t, echoserver.Terminate(ctx)) })

	toolbox, err := containers.StartToolbox(ctx, echoserver)
	if err != nil {
		t.Fatalf("creating toolbox container: %v", err)
	}

	t.Cleanup(func() { require.NoError(t, toolbox.Terminate(ctx)) })

	port, err := echoserver.MappedPort(ctx, nat.Port(containers.EchoServerPort))
	if err != nil {
		t.Fatalf("getting echoserver mapped port: %v", err)
	}

	return toolbox, net.JoinHostPort("localhost", port.Port())
}

func Test_OfflineCutsReachability(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	toolbox, address := startFixtures(t, ctx)

	controllers := impairment.BuildControllers(
		containers.Executor{Container: toolbox},
		impairment.Config{Interface: "eth0"},
	)

	offline, err := controllers.For(impairment.Offline)
	if err != nil {
		t.Fatalf("getting offline controller: %v", err)
	}

	if err := containers.Probe(address, probeTimeout); err != nil {
		t.Fatalf("echoserver unreachable before the impairment: %v", err)
	}

	if err := offline.Set(ctx, impairment.Enabled); err != nil {
		t.Fatalf("enabling offline impairment: %v", err)
	}

	status, err := offline.Status(ctx)
	if err != nil {
		t.Fatalf("querying offline status: %v", err)
	}
	if status != impairment.Enabled {
		t.Fatalf("offline impairment reports %s after enabling", status)
	}

	if err := containers.Probe(address, probeTimeout); err == nil {
		t.Fatal("echoserver still reachable while offline, probe should have failed")
	}

	if err := offline.Set(ctx, impairment.Disabled); err != nil {
		t.Fatalf("disabling offline impairment: %v", err)
	}

	status, err = offline.Status(ctx)
	if err != nil {
		t.Fatalf("querying offline status: %v", err)
	}
	if status != impairment.Disabled {
		t.Fatalf("offline impairment reports %s after disabling", status)
	}

	if err := containers.Probe(address, probeTimeout); err != nil {
		t.Fatalf("echoserver unreachable after restoring connectivity: %v", err)
	}
}

func Test_SatelliteInflatesRoundTrips(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	toolbox, address := startFixtures(t, ctx)

	controllers := impairment.BuildControllers(
		containers.Executor{Container: toolbox},
		impairment.Config{
			Interface: "eth0",
			Satellite: impairment.SatelliteConfig{Delay: 400 * time.Millisecond},
		},
	)

	satellite, err := controllers.For(impairment.Satellite)
	if err != nil {
		t.Fatalf("getting satellite controller: %v", err)
	}

	prober, err := containers.NewProber(address, probeTimeout)
	if err != nil {
		t.Fatalf("connecting to echoserver: %v", err)
	}

	t.Cleanup(func() { _ = prober.Close() })

	if err := prober.Echo(); err != nil {
		t.Fatalf("echo before the impairment: %v", err)
	}

	if err := satellite.Set(ctx, impairment.Enabled); err != nil {
		t.Fatalf("enabling satellite impairment: %v", err)
	}

	status, err := satellite.Status(ctx)
	if err != nil {
		t.Fatalf("querying satellite status: %v", err)
	}
	if status != impairment.Enabled {
		t.Fatalf("satellite impairment reports %s after enabling", status)
	}

	started := time.Now()
	if err := prober.Echo(); err != nil {
		t.Fatalf("echo under satellite impairment: %v", err)
	}

	if elapsed := time.Since(started); elapsed < 300*time.Millisecond {
		t.Fatalf("echo round trip took %s, expected the netem delay to stretch it beyond 300ms", elapsed)
	}

	if err := satellite.Set(ctx, impairment.Disabled); err != nil {
		t.Fatalf("disabling satellite impairment: %v", err)
	}

	status, err = satellite.Status(ctx)
	if err != nil {
		t.Fatalf("querying satellite status: %v", err)
	}
	if status != impairment.Disabled {
		t.Fatalf("satellite impairment reports %s after disabling", status)
	}
}

func Test_CellularDegradesWithoutCuttingOff(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	toolbox, address := startFixtures(t, ctx)

	// The connection dropper is left out: it needs the netlink socket of the
	// impaired namespace, while this test runs outside of it.
	controllers := impairment.BuildControllers(
		containers.Executor{Container: toolbox},
		impairment.Config{
			Interface: "eth0",
			Cellular: impairment.CellularConfig{
				Delay: 200 * time.Millisecond,
			},
		},
	)

	cellular, err := controllers.For(impairment.Cellular)
	if err != nil {
		t.Fatalf("getting cellular controller: %v", err)
	}

	if err := cellular.Set(ctx, impairment.Enabled); err != nil {
		t.Fatalf("enabling cellular impairment: %v", err)
	}

	status, err := cellular.Status(ctx)
	if err != nil {
		t.Fatalf("querying cellular status: %v", err)
	}
	if status != impairment.Enabled {
		t.Fatalf("cellular impairment reports %s after enabling", status)
	}

	started := time.Now()
	if err := containers.Probe(address, probeTimeout); err != nil {
		t.Fatalf("echoserver unreachable under cellular impairment: %v", err)
	}

	if elapsed := time.Since(started); elapsed < 150*time.Millisecond {
		t.Fatalf("probe took %s, expected the netem delay to stretch it beyond 150ms", elapsed)
	}

	if err := cellular.Set(ctx, impairment.Disabled); err != nil {
		t.Fatalf("disabling cellular impairment: %v", err)
	}

	status, err = cellular.Status(ctx)
	if err != nil {
		t.Fatalf("querying cellular status: %v", err)
	}
	if status != impairment.Disabled {
		t.Fatalf("cellular impairment reports %s after disabling", status)
	}
}
