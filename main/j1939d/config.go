package main

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/jd3nn1s/j1939/forwarder"
)

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// Config is the daemon configuration. The [udp] table is optional; without
// it no positions are forwarded.
type Config struct {
	Source         string
	Follow         bool
	EndOnTimeout   bool     `toml:"end_on_timeout"`
	ReceiveTimeout duration `toml:"receive_timeout"`
	PollInterval   duration `toml:"poll_interval"`

	UDP     *forwarder.UDPConfig
	Metrics MetricsConfig
}

type MetricsConfig struct {
	Listen string
}

// defaultConfig suits a daemon on a vehicle: keep waiting through quiet
// spells on the bus rather than exiting.
func defaultConfig() Config {
	return Config{
		Source:         "can0",
		Follow:         true,
		EndOnTimeout:   false,
		ReceiveTimeout: duration{3 * time.Second},
		PollInterval:   duration{100 * time.Millisecond},
		Metrics:        MetricsConfig{Listen: ":7777"},
	}
}

// loadConfig reads the TOML configuration at path. A missing file is not
// an error, the defaults are used.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, errors.Wrapf(err, "unable to load configuration %s", path)
	}
	return cfg, nil
}
