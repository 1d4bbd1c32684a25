// Package impairment defines the network impairment variants the harness can
// inflict on a host and the controllers that enable and disable them.
package impairment

import (
	"context"
	"fmt"
)

// Variant identifies a shape of network degradation.
type Variant string

const (
	// Offline blackholes all traffic on the interface.
	Offline Variant = "offline"
	// Satellite emulates a high-latency, low-bandwidth link.
	Satellite Variant = "satellite"
	// Cellular emulates a lossy link where a share of connections stall.
	Cellular Variant = "cellular"
	// Online is the absence of any impairment.
	Online Variant = "online"
	// All addresses every impairment variant at once. It is only meaningful
	// as the scope of a baseline reset, not as a variant to schedule.
	All Variant = "all"
)

// Variants returns the variants that are backed by a Controller.
func Variants() []Variant {
	return []Variant{Offline, Satellite, Cellular}
}

// ParseVariant validates the given string and returns it as a Variant.
func ParseVariant(value string) (Variant, error) {
	switch v := Variant(value); v {
	case Offline, Satellite, Cellular, Online, All:
		return v, nil
	default:
		return Variant(""), fmt.Errorf("unknown impairment variant %q", value)
	}
}

// Status is the on/off state of an impairment. The zero value is Disabled.
type Status int

const (
	// Disabled means no artifact of the impairment is present in the kernel.
	Disabled Status = iota
	// Enabled means at least one artifact of the impairment is present.
	Enabled
)

// String returns the status in the form used in events and logs.
func (s Status) String() string {
	if s == Enabled {
		return "enabled"
	}
	return "disabled"
}

// ParseStatus validates the given string and returns it as a Status.
func ParseStatus(value string) (Status, error) {
	switch value {
	case "enabled":
		return Enabled, nil
	case "disabled":
		return Disabled, nil
	default:
		return Disabled, fmt.Errorf("unknown status %q", value)
	}
}

// Controller enables and disables one impairment variant on the host.
// Implementations derive Status from the kernel's actual state, not from
// memory of their own actions, so artifacts left over by a previous process
// are detected and can be cleaned up.
type Controller interface {
	// Kind returns the variant this controller manipulates.
	Kind() Variant
	// Status inspects the host and reports whether any artifact of the
	// variant is currently present. Presence of any artifact means Enabled.
	Status(ctx context.Context) (Status, error)
	// Set drives the variant to the requested status. A nil return means the
	// mechanism reported success; callers confirm the transition by querying
	// Status afterwards.
	Set(ctx context.Context, status Status) error
}
