package impairment

import (
	"errors"
	"fmt"

	"github.com/instabilitylab/netshaker/pkg/iptables"
	"github.com/instabilitylab/netshaker/pkg/runtime"
	"github.com/instabilitylab/netshaker/pkg/tc"
)

// Config holds the tunables of all impairment controllers.
type Config struct {
	// Interface is the network interface the impairments act on.
	Interface string
	Satellite SatelliteConfig
	Cellular  CellularConfig
}

// ErrUnsupportedVariant is returned when no controller exists for a variant.
var ErrUnsupportedVariant = errors.New("no controller for impairment variant")

// Controllers holds the controller of each schedulable variant.
type Controllers map[Variant]Controller

// BuildControllers builds the controllers for every schedulable variant,
// sharing a single iptables and tc wrapper over the given executor.
func BuildControllers(executor runtime.Executor, config Config) Controllers {
	ipt := iptables.New(executor)
	shaper := tc.New(executor)

	return Controllers{
		Offline: OfflineController{
			Iptables:  ipt,
			Interface: config.Interface,
		},
		Satellite: SatelliteController{
			Tc:        shaper,
			Interface: config.Interface,
			Config:    config.Satellite,
		},
		Cellular: &CellularController{
			Tc:        shaper,
			Iptables:  ipt,
			Executor:  executor,
			Interface: config.Interface,
			Config:    config.Cellular,
		},
	}
}

// For returns the controller for the given variant.
func (c Controllers) For(variant Variant) (Controller, error) {
	controller, found := c[variant]
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVariant, variant)
	}

	return controller, nil
}
