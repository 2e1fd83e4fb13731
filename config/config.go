// Package config holds the network-wide and per-node configuration
// consumed by the section core, loaded from TOML via naoina/toml — the
// teacher's own choice of config format for its node (cmd/utils flag
// plumbing fed a TOML file through the same library before that package
// was trimmed out of this pack).
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/naoina/toml"
)

// NetworkParams is the §6 external-interface configuration contract:
// ElderSize <= RecommendedSectionSize must hold.
type NetworkParams struct {
	ElderSize              int `toml:"elder_size"`
	RecommendedSectionSize int `toml:"recommended_section_size"`
}

// ErrInvalidNetworkParams is returned when ElderSize/RecommendedSectionSize
// fail the §6 invariant.
var ErrInvalidNetworkParams = errors.New("config: elder_size must be positive and <= recommended_section_size")

// Validate checks the §6 invariant: elder_size <= recommended_section_size,
// both positive.
func (p NetworkParams) Validate() error {
	if p.ElderSize <= 0 || p.RecommendedSectionSize <= 0 {
		return ErrInvalidNetworkParams
	}
	if p.ElderSize > p.RecommendedSectionSize {
		return ErrInvalidNetworkParams
	}
	return nil
}

// DefaultNetworkParams returns the typical {7, 10} pairing named in §6.
func DefaultNetworkParams() NetworkParams {
	return NetworkParams{ElderSize: 7, RecommendedSectionSize: 10}
}

// NodeConfig is the full per-node configuration: network params plus the
// bootstrap/gossip timing constants named in §4.7/§5.
type NodeConfig struct {
	Network NetworkParams `toml:"network"`

	// Contacts are hard-coded bootstrap addresses (§4.7).
	Contacts []string `toml:"contacts"`

	// First marks this node as the genesis node of a brand-new network.
	First bool `toml:"first"`

	BootstrapTimeout  time.Duration `toml:"-"`
	GossipInterval    time.Duration `toml:"-"`
	RTSummaryInterval time.Duration `toml:"-"`

	BootstrapTimeoutMillis  int64 `toml:"bootstrap_timeout_ms"`
	GossipIntervalMillis    int64 `toml:"gossip_interval_ms"`
	RTSummaryIntervalMillis int64 `toml:"rt_summary_interval_ms"`
}

// Default bootstrap/gossip timing constants from §4.7/§5: a 20s bootstrap
// cap (the Open Question resolved — BOOTSTRAP_TIMEOUT is reinstated), 2s
// elder gossip ticks, 15s routing-table summary ticks.
const (
	DefaultBootstrapTimeout  = 20 * time.Second
	DefaultGossipInterval    = 2 * time.Second
	DefaultRTSummaryInterval = 15 * time.Second
)

// DefaultNodeConfig returns a NodeConfig with every timing constant at its
// §4.7/§5 default and {7, 10} network params.
func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		Network:           DefaultNetworkParams(),
		BootstrapTimeout:  DefaultBootstrapTimeout,
		GossipInterval:    DefaultGossipInterval,
		RTSummaryInterval: DefaultRTSummaryInterval,
	}
}

// Load reads and parses a TOML node config from path, filling in any
// zero-valued timing constant with its default and validating Network.
func Load(path string) (NodeConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return NodeConfig{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a TOML node config from r.
func Decode(r io.Reader) (NodeConfig, error) {
	cfg := DefaultNodeConfig()
	if err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return NodeConfig{}, fmt.Errorf("config: decode: %w", err)
	}
	if cfg.BootstrapTimeoutMillis > 0 {
		cfg.BootstrapTimeout = time.Duration(cfg.BootstrapTimeoutMillis) * time.Millisecond
	}
	if cfg.GossipIntervalMillis > 0 {
		cfg.GossipInterval = time.Duration(cfg.GossipIntervalMillis) * time.Millisecond
	}
	if cfg.RTSummaryIntervalMillis > 0 {
		cfg.RTSummaryInterval = time.Duration(cfg.RTSummaryIntervalMillis) * time.Millisecond
	}
	if err := cfg.Network.Validate(); err != nil {
		return NodeConfig{}, err
	}
	return cfg, nil
}
