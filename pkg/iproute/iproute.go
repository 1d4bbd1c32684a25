// Package iproute houses the IPRoute object, which answers queries about the
// host's interfaces and routes by wrapping the ip(8) command.
package iproute

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/instabilitylab/netshaker/pkg/runtime"
)

// IPRoute implements queries about the host's interfaces and routes.
type IPRoute struct {
	exec runtime.Executor
}

// New returns a new IPRoute.
func New(executor runtime.Executor) IPRoute {
	return IPRoute{
		exec: executor,
	}
}

// DefaultInterface returns the name of the interface carrying the default
// route. If the host has several default routes, the first one wins.
func (ip IPRoute) DefaultInterface(ctx context.Context) (string, error) {
	out, err := ip.exec.Exec(ctx, "ip", "-o", "route", "show", "default")
	if err != nil {
		return "", fmt.Errorf("running ip route operation: %q: %w", string(out), err)
	}

	route, _, _ := strings.Cut(string(out), "\n")
	fields := strings.Fields(route)
	for i := 0; i < len(fields)-1; i++ {
		if fields[i] == "dev" {
			return fields[i+1], nil
		}
	}

	return "", fmt.Errorf("host has no default route")
}

// LinkExists tells whether the given interface exists on the host.
func (ip IPRoute) LinkExists(ctx context.Context, dev string) (bool, error) {
	out, err := ip.exec.Exec(ctx, "ip", "link", "show", "dev", dev)
	if err != nil {
		if bytes.Contains(out, []byte("does not exist")) {
			return false, nil
		}
		return false, fmt.Errorf("running ip link operation: %q: %w", string(out), err)
	}

	return true, nil
}
