// Package config assembles gateway settings from defaults, an optional YAML
// file, the environment and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v2"
)

const (
	FlagConfig          = "config"
	FlagPort            = "port"
	FlagRPCURL          = "rpc-url"
	FlagPrivateKey      = "private-key"
	FlagContractAddress = "contract-address"
	FlagABIPath         = "abi-path"
	FlagStartLead       = "start-lead"
	FlagDuration        = "duration"
	FlagLogLevel        = "log-level"
	FlagLogFormat       = "log-format"
)

const (
	DefaultPort      = 3000
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

type Config struct {
	Port            int           `yaml:"port"`
	RPCURL          string        `yaml:"rpc_url"`
	PrivateKey      string        `yaml:"private_key"`
	ContractAddress string        `yaml:"contract_address"`
	ABIPath         string        `yaml:"abi_path"`
	StartLead       time.Duration `yaml:"start_lead"`
	Duration        time.Duration `yaml:"duration"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
}

func Default() Config {
	return Config{
		Port:      DefaultPort,
		StartLead: 120 * time.Second,
		Duration:  7200 * time.Second,
		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,
	}
}

// Flags returns the command-line flags, each bound to its environment
// variable.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    FlagConfig,
			Usage:   "path to a YAML configuration file",
			EnvVars: []string{"GATEWAY_CONFIG"},
		},
		&cli.IntFlag{
			Name:    FlagPort,
			Usage:   "HTTP listen port",
			EnvVars: []string{"PORT"},
		},
		&cli.StringFlag{
			Name:    FlagRPCURL,
			Usage:   "JSON-RPC endpoint of the ledger",
			EnvVars: []string{"RPC_URL"},
		},
		&cli.StringFlag{
			Name:    FlagPrivateKey,
			Usage:   "hex private key of the gateway operator",
			EnvVars: []string{"PRIVATE_KEY"},
		},
		&cli.StringFlag{
			Name:    FlagContractAddress,
			Usage:   "address of the deployed voting contract",
			EnvVars: []string{"CONTRACT_ADDRESS"},
		},
		&cli.StringFlag{
			Name:    FlagABIPath,
			Usage:   "contract ABI JSON, bare or as a build artifact (default: embedded ABI)",
			EnvVars: []string{"ABI_PATH"},
		},
		&cli.DurationFlag{
			Name:    FlagStartLead,
			Usage:   "delay before an auto-scheduled election opens",
			EnvVars: []string{"ELECTION_START_LEAD"},
		},
		&cli.DurationFlag{
			Name:    FlagDuration,
			Usage:   "length of an auto-scheduled election",
			EnvVars: []string{"ELECTION_DURATION"},
		},
		&cli.StringFlag{
			Name:    FlagLogLevel,
			Usage:   "log level (trace, debug, info, warn, error)",
			EnvVars: []string{"LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    FlagLogFormat,
			Usage:   "log format (text or json)",
			EnvVars: []string{"LOG_FORMAT"},
		},
	}
}

// LoadDotEnv reads variables from a .env file into the environment without
// overriding ones already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Load builds the configuration for a CLI invocation and validates it.
func Load(c *cli.Context) (Config, error) {
	cfg := Default()

	if path := c.String(FlagConfig); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	if c.IsSet(FlagPort) {
		cfg.Port = c.Int(FlagPort)
	}
	if c.IsSet(FlagRPCURL) {
		cfg.RPCURL = c.String(FlagRPCURL)
	}
	if c.IsSet(FlagPrivateKey) {
		cfg.PrivateKey = c.String(FlagPrivateKey)
	}
	if c.IsSet(FlagContractAddress) {
		cfg.ContractAddress = c.String(FlagContractAddress)
	}
	if c.IsSet(FlagABIPath) {
		cfg.ABIPath = c.String(FlagABIPath)
	}
	if c.IsSet(FlagStartLead) {
		cfg.StartLead = c.Duration(FlagStartLead)
	}
	if c.IsSet(FlagDuration) {
		cfg.Duration = c.Duration(FlagDuration)
	}
	if c.IsSet(FlagLogLevel) {
		cfg.LogLevel = c.String(FlagLogLevel)
	}
	if c.IsSet(FlagLogFormat) {
		cfg.LogFormat = c.String(FlagLogFormat)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (cfg Config) Validate() error {
	var missing []string
	if strings.TrimSpace(cfg.RPCURL) == "" {
		missing = append(missing, "RPC_URL")
	}
	if strings.TrimSpace(cfg.PrivateKey) == "" {
		missing = append(missing, "PRIVATE_KEY")
	}
	if strings.TrimSpace(cfg.ContractAddress) == "" {
		missing = append(missing, "CONTRACT_ADDRESS")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if !common.IsHexAddress(cfg.ContractAddress) {
		return fmt.Errorf("invalid contract address: %s", cfg.ContractAddress)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.StartLead <= 0 {
		return errors.New("election start lead must be positive")
	}
	if cfg.Duration <= 0 {
		return errors.New("election duration must be positive")
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	return nil
}

// Address returns the listen address for the HTTP server.
func (cfg Config) Address() string {
	return fmt.Sprintf(":%d", cfg.Port)
}

// ConfigureLogging applies the level and format to the standard logrus
// logger.
func (cfg Config) ConfigureLogging() error {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	if cfg.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
