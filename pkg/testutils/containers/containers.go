// Package containers provides docker-backed fixtures for reachability tests:
// an echo server to probe, a privileged network-tools sidecar sharing its
// network namespace, and an executor that runs commands inside that sidecar.
package containers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/exec"
	"github.com/testcontainers/testcontainers-go/wait"
)

// EchoServerPort is the TCP port the echo server fixture listens on.
const EchoServerPort = "6666"

// StartEchoServer builds and starts the echo server container, exposing its
// port on the host. The image build context is resolved relative to the
// calling test's directory, which is expected to live under pkg/<name>/.
func StartEchoServer(ctx context.Context) (testcontainers.Container, error) {
	return testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ProviderType: testcontainers.ProviderDocker,
		ContainerRequest: testcontainers.ContainerRequest{
			ExposedPorts: []string{EchoServerPort},
			FromDockerfile: testcontainers.FromDockerfile{
				Dockerfile: "Dockerfile",
				Context:    filepath.Join("..", "..", "testcontainers", "echoserver"),
			},
			WaitingFor: wait.ForExposedPort(),
		},
		Started: true,
	})
}

// StartToolbox starts a privileged network-tools sidecar inside the network
// namespace of the given container. Impairments applied through it degrade
// the target's connectivity, while commands keep running over the docker
// exec channel even when the namespace is cut off.
func StartToolbox(ctx context.Context, target testcontainers.Container) (testcontainers.Container, error) {
	return testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ProviderType: testcontainers.ProviderDocker,
		ContainerRequest: testcontainers.ContainerRequest{
			Image:       "nicolaka/netshoot",
			Cmd:         []string{"/bin/sh", "-c", "echo ready && sleep infinity"},
			Privileged:  true,
			NetworkMode: container.NetworkMode("container:" + target.GetContainerID()),
			WaitingFor:  wait.ForLog("ready"),
		},
		Started: true,
	})
}

// Executor runs commands inside a container, following the combined-output
// contract of the host executor: on a non-zero exit the captured output is
// returned along with the error, so callers can inspect diagnostics.
type Executor struct {
	Container testcontainers.Container
}

// Exec runs a command in the container and waits for its completion.
func (e Executor) Exec(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	command := append([]string{cmd}, args...)

	rc, output, err := e.Container.Exec(ctx, command, exec.Multiplexed())
	if err != nil {
		return nil, fmt.Errorf("running %q: %w", strings.Join(command, " "), err)
	}

	out, err := io.ReadAll(output)
	if err != nil {
		return nil, fmt.Errorf("reading output of %q: %w", strings.Join(command, " "), err)
	}

	if rc != 0 {
		return out, fmt.Errorf("%q exited with code %d", strings.Join(command, " "), rc)
	}

	return out, nil
}

// Prober checks reachability of a TCP echo server. Each prober keeps one
// connection; operations fail instead of blocking when the path is impaired.
type Prober struct {
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
}

// NewProber connects to the given address. The timeout bounds the dial and
// every subsequent echo round trip.
func NewProber(address string, timeout time.Duration) (*Prober, error) {
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", address, err)
	}

	return &Prober{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		timeout: timeout,
	}, nil
}

// Echo sends a line and checks the same line comes back before the timeout.
func (p *Prober) Echo() error {
	const line = "are you still there?\n"

	err := p.conn.SetDeadline(time.Now().Add(p.timeout))
	if err != nil {
		return fmt.Errorf("setting deadline: %w", err)
	}

	_, err = p.conn.Write([]byte(line))
	if err != nil {
		return fmt.Errorf("writing string: %w", err)
	}

	echoed, err := p.reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading back: %w", err)
	}

	if echoed != line {
		return fmt.Errorf("echoed string %q does not match sent %q", echoed, line)
	}

	return nil
}

// Close closes the connection to the echo server.
func (p *Prober) Close() error {
	return p.conn.Close()
}

// Probe dials the address and performs a single echo round trip.
func Probe(address string, timeout time.Duration) error {
	prober, err := NewProber(address, timeout)
	if err != nil {
		return err
	}

	defer func() {
		_ = prober.Close()
	}()

	return prober.Echo()
}
