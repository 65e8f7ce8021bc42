// Package config loads and hot-reloads the node's TOML configuration,
// mirroring the original prototype's Config class (port, known_peers,
// node_id, language, logo_path) plus the signature-wait tuning parameter
// the consensus coordinator needs. Fields use naoina/toml's lowercase
// struct tag convention.
package config

import (
	"io/ioutil"
	"os"

	"github.com/naoina/toml"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"

	"github.com/libreledger/consensus-node/internal/log"
)

var logger = log.NewModuleLogger(log.Config)

// PeerAddr is one entry of the configured bootstrap peer list.
type PeerAddr struct {
	IP   string `toml:"ip"`
	Port int    `toml:"port"`
}

// Config is the node's full configuration surface.
type Config struct {
	Port                 int        `toml:"port"`
	KnownPeers           []PeerAddr `toml:"known_peers"`
	NodeID               string     `toml:"node_id"`
	SignatureWaitSeconds int        `toml:"signature_wait_seconds"`
	Language             string     `toml:"language"`
	LogoPath             string     `toml:"logo_path"`
	DatabaseDSN          string     `toml:"database_dsn"`
	APIPort              int        `toml:"api_port"`
	// RedisAddr, if set, backs the gossip dedup cache with a shared
	// Redis instance instead of each node's own in-process LRU — useful
	// when nodes in a cluster restart independently and would otherwise
	// re-relay envelopes the rest of the cluster already processed.
	RedisAddr string `toml:"redis_addr"`
}

// Default returns a configuration with the data model's documented
// defaults plus a freshly minted node id.
func Default() Config {
	return Config{
		Port:                 5000,
		NodeID:               uuid.NewV4().String(),
		SignatureWaitSeconds: 60,
		Language:             "en",
		DatabaseDSN:          "libre:libre@tcp(127.0.0.1:3306)/libreledger?parseTime=true",
		APIPort:              8080,
	}
}

// Load reads and parses a TOML configuration file. If it doesn't exist,
// a default configuration is written to path and returned, mirroring the
// prototype's "create on first run" behavior.
func Load(path string) (Config, error) {
	raw, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default()
		if werr := Save(path, cfg); werr != nil {
			return cfg, errors.Wrap(werr, "config: write default")
		}
		logger.Infow("wrote default configuration", "path", path)
		return cfg, nil
	}
	if err != nil {
		return Config{}, errors.Wrap(err, "config: read")
	}

	var cfg Config
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "config: parse")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg to path as TOML.
func Save(path string, cfg Config) error {
	raw, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "config: marshal")
	}
	return ioutil.WriteFile(path, raw, 0o644)
}

// Validate enforces the documented ranges, notably
// signature_wait_seconds ∈ [1, 600] and port ∈ [1024, 65535].
func (c Config) Validate() error {
	if c.Port < 1024 || c.Port > 65535 {
		return errors.Errorf("config: port %d out of range [1024, 65535]", c.Port)
	}
	if c.SignatureWaitSeconds < 1 || c.SignatureWaitSeconds > 600 {
		return errors.Errorf("config: signature_wait_seconds %d out of range [1, 600]", c.SignatureWaitSeconds)
	}
	return nil
}
