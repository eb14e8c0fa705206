// Package config parses coraxumd's process-wide configuration: the
// network selection, the block producer's keypair, and the storage
// backend to use, following the struct-tag driven CLI/config-file idiom
// jessevdk/go-flags provides throughout the decred tooling.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"

	"github.com/coraxum/coraxumd/address"
	"github.com/coraxum/coraxumd/chaincfg"
)

// Config is coraxumd's full set of recognized options, matching the
// {network, public_key, private_key, address, mongo} surface.
type Config struct {
	NetworkName string `long:"network" description:"mainnet, testnet, or regnet" default:"mainnet"`
	PublicKey   string `long:"public_key" description:"hex-encoded secp256k1 public key receiving the coinbase"`
	PrivateKey  string `long:"private_key" description:"hex-encoded secp256k1 private key signing produced blocks"`
	MongoURI    string `long:"mongo" description:"MongoDB connection URI; empty selects the embedded bbolt store"`
	BoltPath    string `long:"bolt_path" description:"path to the embedded bbolt database file" default:"coraxumd.db"`
	LogDir      string `long:"logdir" description:"directory for rotated log files" default:"logs"`
	LogLevel    string `long:"loglevel" description:"debug, info, warn, error, or off" default:"info"`
	RPCListen   string `long:"rpclisten" description:"address internal/rpc listens on" default:"127.0.0.1:8333"`

	// Address is derived, not parsed, from PublicKey once loaded.
	Address string `no-flag:"true"`
	net     chaincfg.Network
}

// Network returns the parsed chaincfg.Network selected by c.NetworkName.
func (c *Config) Network() chaincfg.Network {
	return c.net
}

// Load parses args (typically os.Args[1:]) into a Config, deriving Address
// from PublicKey and validating NetworkName and PublicKey. PrivateKey is
// not checked here.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	switch cfg.NetworkName {
	case "mainnet":
		cfg.net = chaincfg.Mainnet
	case "testnet":
		cfg.net = chaincfg.Testnet
	case "regnet":
		cfg.net = chaincfg.Regnet
	default:
		return nil, fmt.Errorf("config: unrecognized network %q", cfg.NetworkName)
	}

	if cfg.PublicKey != "" {
		addr, err := address.FromPublicKeyHex(cfg.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("config: invalid public_key: %w", err)
		}
		cfg.Address = addr
	}

	if err := os.MkdirAll(cfg.LogDir, 0700); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LogFilePath returns the rotated log file path under LogDir.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.LogDir, "coraxumd.log")
}
