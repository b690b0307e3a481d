// Package config loads the simulator configuration from TOML or YAML.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jd3nn1s/ecusim"
	"github.com/jd3nn1s/ecusim/forwarder"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type Simulator struct {
	Interval time.Duration `toml:"interval" yaml:"interval"`
	// zero runs until interrupted
	Count  int           `toml:"count" yaml:"count"`
	Seed   int64         `toml:"seed" yaml:"seed"`
	Mode   string        `toml:"mode" yaml:"mode"`
	Ranges ecusim.Ranges `toml:"ranges" yaml:"ranges"`
}

type Config struct {
	LogLevel    string `toml:"log_level" yaml:"log_level"`
	MetricsAddr string `toml:"metrics_addr" yaml:"metrics_addr"`

	Simulator Simulator `toml:"simulator" yaml:"simulator"`

	Stdout    bool                       `toml:"stdout" yaml:"stdout"`
	UDP       *forwarder.UDPConfig       `toml:"udp" yaml:"udp"`
	WebSocket *forwarder.WebSocketConfig `toml:"websocket" yaml:"websocket"`
	MQTT      *forwarder.MQTTConfig      `toml:"mqtt" yaml:"mqtt"`
	CAN       *forwarder.CANConfig       `toml:"can" yaml:"can"`
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		Simulator: Simulator{
			Interval: ecusim.DefaultInterval,
			Mode:     string(ecusim.ModeRandom),
			Ranges:   ecusim.DefaultRanges(),
		},
		Stdout: true,
	}
}

// Load decodes path over Default. Files ending in .yaml or .yml are read as
// YAML, anything else as TOML.
func Load(path string) (*Config, error) {
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		file, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to open file %s", path)
		}
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
			return nil, errors.Wrapf(err, "unable to decode yaml config %s", path)
		}
	default:
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to decode toml config %s", path)
		}
		for _, key := range md.Undecoded() {
			log.WithField("key", key.String()).Warn("unknown configuration key")
		}
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Simulator.Interval <= 0 {
		return errors.Errorf("interval must be positive, got %v", c.Simulator.Interval)
	}
	if c.Simulator.Count < 0 {
		return errors.Errorf("count must not be negative, got %d", c.Simulator.Count)
	}
	if _, err := ecusim.ParseMode(c.Simulator.Mode); err != nil {
		return err
	}
	if err := c.Simulator.Ranges.Validate(); err != nil {
		return err
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	if !c.Stdout && c.UDP == nil && c.WebSocket == nil && c.MQTT == nil && c.CAN == nil {
		return errors.New("no forwarders enabled")
	}
	return nil
}
