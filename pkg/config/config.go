// Package config loads and validates campaign configuration files. The
// resulting Campaign value is immutable and passed explicitly into the
// engine; nothing reads configuration from ambient state.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/instabilitylab/netshaker/pkg/harness"
	"github.com/instabilitylab/netshaker/pkg/impairment"
	"github.com/instabilitylab/netshaker/pkg/types/runcount"
)

// DefaultModuleID identifies this module in reported events unless the
// campaign file overrides it.
const DefaultModuleID = "netshaker"

// DefaultShutdownGrace bounds how long shutdown waits for in-flight work.
const DefaultShutdownGrace = 5 * time.Second

// Campaign is the validated configuration of one run.
type Campaign struct {
	// TrackingID correlates reported events with the coordinating test run.
	TrackingID string
	// ModuleID names this module in reported events.
	ModuleID string
	// Variant is the impairment scheduled by this campaign. Online means no
	// impairment beyond the baseline reset.
	Variant impairment.Variant
	// Interface is the network interface to impair. Empty means the default
	// route's interface, discovered at startup.
	Interface string
	// StartDelay postpones the first profile.
	StartDelay time.Duration
	// Profiles is the ordered cycle schedule.
	Profiles []harness.FrequencyProfile
	Reporter Reporter
	// Satellite and Cellular carry the link characteristics for their
	// variants. An omitted section uses the built-in link defaults; a
	// present section is taken as given.
	Satellite impairment.SatelliteConfig
	Cellular  impairment.CellularConfig
	Metrics   Metrics
	// ShutdownGrace bounds the wait for in-flight work on shutdown.
	ShutdownGrace time.Duration
}

// Reporter configures status event delivery.
type Reporter struct {
	// Endpoint is the coordinator base URL. Empty means log-only reporting.
	Endpoint string
}

// Metrics configures the Prometheus listener.
type Metrics struct {
	// Address is the listen address. Empty disables the listener.
	Address string
}

// file mirrors the YAML document. Durations travel as strings so the
// campaign file can use forms like "90s" or "2m".
type file struct {
	TrackingID    string         `yaml:"tracking_id"`
	ModuleID      string         `yaml:"module_id"`
	Variant       string         `yaml:"variant"`
	Interface     string         `yaml:"interface"`
	StartDelay    string         `yaml:"start_delay"`
	Profiles      []fileProfile  `yaml:"profiles"`
	Reporter      fileReporter   `yaml:"reporter"`
	Satellite     *fileSatellite `yaml:"satellite"`
	Cellular      *fileCellular  `yaml:"cellular"`
	Metrics       fileMetrics    `yaml:"metrics"`
	ShutdownGrace string         `yaml:"shutdown_grace"`
}

type fileProfile struct {
	Offline string         `yaml:"offline"`
	Online  string         `yaml:"online"`
	Runs    runcount.Count `yaml:"runs"`
}

type fileReporter struct {
	Endpoint string `yaml:"endpoint"`
}

type fileSatellite struct {
	Delay  string `yaml:"delay"`
	Jitter string `yaml:"jitter"`
	Rate   int    `yaml:"rate"`
}

type fileCellular struct {
	Delay              string  `yaml:"delay"`
	Jitter             string  `yaml:"jitter"`
	Loss               float64 `yaml:"loss"`
	Rate               int     `yaml:"rate"`
	ConnectionDropRate float64 `yaml:"connection_drop_rate"`
}

type fileMetrics struct {
	Address string `yaml:"address"`
}

// Load reads, decodes, defaults, and validates the campaign file at path.
func Load(path string) (Campaign, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Campaign{}, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes a campaign document. Unknown fields are rejected so typos
// in a campaign file fail loudly instead of silently using defaults.
func Parse(data []byte) (Campaign, error) {
	var f file
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return Campaign{}, fmt.Errorf("parsing config: %w", err)
	}

	campaign, err := f.campaign()
	if err != nil {
		return Campaign{}, err
	}

	if err := campaign.Validate(); err != nil {
		return Campaign{}, err
	}

	return campaign, nil
}

func (f file) campaign() (Campaign, error) {
	campaign := Campaign{
		TrackingID:    f.TrackingID,
		ModuleID:      f.ModuleID,
		Interface:     f.Interface,
		Reporter:      Reporter{Endpoint: f.Reporter.Endpoint},
		Satellite:     impairment.DefaultSatelliteConfig(),
		Cellular:      impairment.DefaultCellularConfig(),
		Metrics:       Metrics{Address: f.Metrics.Address},
		ShutdownGrace: DefaultShutdownGrace,
	}
	if campaign.ModuleID == "" {
		campaign.ModuleID = DefaultModuleID
	}

	variant, err := impairment.ParseVariant(f.Variant)
	if err != nil {
		return Campaign{}, fmt.Errorf("variant: %w", err)
	}
	campaign.Variant = variant

	if campaign.StartDelay, err = parseDuration("start_delay", f.StartDelay); err != nil {
		return Campaign{}, err
	}

	if f.ShutdownGrace != "" {
		if campaign.ShutdownGrace, err = parseDuration("shutdown_grace", f.ShutdownGrace); err != nil {
			return Campaign{}, err
		}
	}

	for i, p := range f.Profiles {
		profile := harness.FrequencyProfile{Runs: p.Runs}
		if profile.Offline, err = parseDuration(fmt.Sprintf("profiles[%d].offline", i), p.Offline); err != nil {
			return Campaign{}, err
		}
		if profile.Online, err = parseDuration(fmt.Sprintf("profiles[%d].online", i), p.Online); err != nil {
			return Campaign{}, err
		}
		if p.Runs == "" {
			return Campaign{}, fmt.Errorf("profiles[%d].runs is required", i)
		}
		campaign.Profiles = append(campaign.Profiles, profile)
	}

	if f.Satellite != nil {
		satellite := impairment.SatelliteConfig{Rate: f.Satellite.Rate}
		if satellite.Delay, err = parseDuration("satellite.delay", f.Satellite.Delay); err != nil {
			return Campaign{}, err
		}
		if satellite.Jitter, err = parseDuration("satellite.jitter", f.Satellite.Jitter); err != nil {
			return Campaign{}, err
		}
		campaign.Satellite = satellite
	}

	if f.Cellular != nil {
		cellular := impairment.CellularConfig{
			Loss:               f.Cellular.Loss,
			Rate:               f.Cellular.Rate,
			ConnectionDropRate: f.Cellular.ConnectionDropRate,
		}
		if cellular.Delay, err = parseDuration("cellular.delay", f.Cellular.Delay); err != nil {
			return Campaign{}, err
		}
		if cellular.Jitter, err = parseDuration("cellular.jitter", f.Cellular.Jitter); err != nil {
			return Campaign{}, err
		}
		campaign.Cellular = cellular
	}

	return campaign, nil
}

// Validate checks the campaign for values the engine cannot run with.
func (c Campaign) Validate() error {
	if c.TrackingID == "" {
		return errors.New("tracking_id is required")
	}

	if c.Variant == impairment.All {
		return fmt.Errorf("variant: %q addresses the baseline reset only, pick one of offline, satellite, cellular or online", impairment.All)
	}

	if c.Variant != impairment.Online && len(c.Profiles) == 0 {
		return fmt.Errorf("profiles: at least one profile is required for variant %q", c.Variant)
	}

	if c.StartDelay < 0 {
		return errors.New("start_delay must not be negative")
	}
	if c.ShutdownGrace <= 0 {
		return errors.New("shutdown_grace must be positive")
	}

	for i, p := range c.Profiles {
		if p.Offline <= 0 {
			return fmt.Errorf("profiles[%d].offline must be positive", i)
		}
		if p.Online <= 0 {
			return fmt.Errorf("profiles[%d].online must be positive", i)
		}
	}

	switch c.Variant {
	case impairment.Satellite:
		if c.Satellite.Delay <= 0 {
			return errors.New("satellite.delay must be positive")
		}
		if c.Satellite.Jitter < 0 {
			return errors.New("satellite.jitter must not be negative")
		}
		if c.Satellite.Rate < 0 {
			return errors.New("satellite.rate must not be negative")
		}
	case impairment.Cellular:
		if c.Cellular.Delay < 0 {
			return errors.New("cellular.delay must not be negative")
		}
		if c.Cellular.Jitter < 0 {
			return errors.New("cellular.jitter must not be negative")
		}
		if c.Cellular.Loss < 0 || c.Cellular.Loss > 100 {
			return errors.New("cellular.loss must be within [0, 100]")
		}
		if c.Cellular.Rate < 0 {
			return errors.New("cellular.rate must not be negative")
		}
		if c.Cellular.ConnectionDropRate < 0 || c.Cellular.ConnectionDropRate > 1 {
			return errors.New("cellular.connection_drop_rate must be within [0, 1]")
		}
	}

	return nil
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}
