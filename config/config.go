// Package config parses the node's command-line flags (spec §6) into a
// validated Config, the same job lnd.go's own flag-and-ini-file Config
// struct does for the teacher, adapted from jessevdk/go-flags' predecessor
// (btcsuite/go-flags) to its upstream form since this node carries no
// legacy ini-file compatibility burden to preserve.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	flags "github.com/jessevdk/go-flags"

	"github.com/raiden-network/raiden-core/primitives"
	"github.com/raiden-network/raiden-core/transport"
)

// ExitCode enumerates the process exit codes spec §6 defines.
type ExitCode int

const (
	ExitOK             ExitCode = 0
	ExitConfigError    ExitCode = 1
	ExitKeystoreError  ExitCode = 2
	ExitChainConnError ExitCode = 3
)

// Config is every flag spec §6 names, plus the ambient logging/retry
// knobs the teacher's own lnd.go Config exposes alongside its domain
// flags (DebugLevel, the network RPC endpoints).
type Config struct {
	KeystorePath   string `long:"keystore-path" description:"path to an encrypted Ethereum keystore file" required:"true"`
	Address        string `long:"address" description:"the keystore account address to unlock"`
	PasswordFile   string `long:"password-file" description:"path to a file containing the keystore password"`
	EthRPCEndpoint string `long:"eth-rpc-endpoint" description:"HTTP JSON-RPC endpoint of an Ethereum node" required:"true"`
	EthWSEndpoint  string `long:"eth-ws-endpoint" description:"WebSocket JSON-RPC endpoint of an Ethereum node"`
	ChainID        uint64 `long:"chain-id" description:"EIP-155 chain id to operate on" required:"true"`
	DataDir        string `long:"datadir" description:"directory for the persistent log and keystore cache" default:"raidendata"`

	LogLevel string `long:"log-level" description:"logging level: trace, debug, info, warn, error, critical" default:"info"`

	RetryTimeout    uint `long:"retry-timeout" description:"seconds between resends before backoff begins" default:"5"`
	RetryTimeoutMax uint `long:"retry-timeout-max" description:"maximum seconds between resends once backing off" default:"60"`
	RetryCount      uint `long:"retry-count" description:"fixed-interval resends before backoff begins" default:"10"`

	RPCListen string `long:"rpclisten" description:"host:port for the node's HTTP API" default:"127.0.0.1:5001"`
}

// Parsed is a Config that has passed validation and had its derived fields
// (ChainID, transport retry schedule) resolved.
type Parsed struct {
	Config
	ChainID   primitives.ChainID
	Transport transport.Config
}

// Load parses argv (normally os.Args[1:]) into a Config and validates it,
// returning the matching ExitCode on failure so cmd/raidennode can set
// os.Exit appropriately (spec §6: "exit codes 0 ok / 1 config error / 2
// keystore error / 3 chain-connect error").
func Load(argv []string) (*Parsed, ExitCode, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.ParseArgs(argv); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, ExitConfigError, err
	}

	if err := cfg.validate(); err != nil {
		return nil, ExitConfigError, err
	}

	return &Parsed{
		Config:  cfg,
		ChainID: primitives.ChainIDFromUint64(cfg.ChainID),
		Transport: transport.Config{
			RetryTimeout:    secondsToDuration(cfg.RetryTimeout),
			RetryTimeoutMax: secondsToDuration(cfg.RetryTimeoutMax),
			RetryCount:      int(cfg.RetryCount),
		},
	}, ExitOK, nil
}

func secondsToDuration(seconds uint) time.Duration {
	return time.Duration(seconds) * time.Second
}

func (c Config) validate() error {
	if c.KeystorePath == "" {
		return fmt.Errorf("config: --keystore-path is required")
	}
	if _, err := os.Stat(c.KeystorePath); err != nil {
		return fmt.Errorf("config: keystore path %q: %w", c.KeystorePath, err)
	}
	if c.EthRPCEndpoint == "" {
		return fmt.Errorf("config: --eth-rpc-endpoint is required")
	}
	if c.RetryTimeoutMax < c.RetryTimeout {
		return fmt.Errorf("config: --retry-timeout-max must be >= --retry-timeout")
	}
	return nil
}
