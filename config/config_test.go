package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const (
	testKey     = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"
	testAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
)

var envVars = []string{
	"GATEWAY_CONFIG", "PORT", "RPC_URL", "PRIVATE_KEY", "CONTRACT_ADDRESS", "ABI_PATH",
	"ELECTION_START_LEAD", "ELECTION_DURATION", "LOG_LEVEL", "LOG_FORMAT",
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := load(t,
		"--rpc-url", "http://127.0.0.1:8545",
		"--private-key", testKey,
		"--contract-address", testAddress,
	)
	require.NoError(t, err)
	require.Equal(t, 3000, cfg.Port)
	require.Equal(t, 120*time.Second, cfg.StartLead)
	require.Equal(t, 7200*time.Second, cfg.Duration)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "text", cfg.LogFormat)
	require.Empty(t, cfg.ABIPath)
	require.Equal(t, ":3000", cfg.Address())
}

func TestLoad_Precedence(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "gateway.yaml")
	err := os.WriteFile(path, []byte(`
port: 4000
rpc_url: http://file:8545
private_key: `+testKey+`
contract_address: `+testAddress+`
start_lead: 60s
duration: 30m
log_level: debug
`), 0o600)
	require.NoError(t, err)

	t.Setenv("PORT", "5000")
	t.Setenv("ELECTION_DURATION", "45m")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := load(t, "--config", path, "--log-level", "error")
	require.NoError(t, err)

	require.Equal(t, 5000, cfg.Port)
	require.Equal(t, "http://file:8545", cfg.RPCURL)
	require.Equal(t, 60*time.Second, cfg.StartLead)
	require.Equal(t, 45*time.Minute, cfg.Duration)
	require.Equal(t, "error", cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		args []string
		err  string
	}{
		{
			name: "missing everything",
			err:  "missing required configuration: RPC_URL, PRIVATE_KEY, CONTRACT_ADDRESS",
		},
		{
			name: "bad address",
			args: []string{"--rpc-url", "x", "--private-key", testKey, "--contract-address", "0x123"},
			err:  "invalid contract address: 0x123",
		},
		{
			name: "non-positive duration",
			args: []string{"--rpc-url", "x", "--private-key", testKey, "--contract-address", testAddress, "--duration", "0s"},
			err:  "election duration must be positive",
		},
		{
			name: "non-positive lead",
			args: []string{"--rpc-url", "x", "--private-key", testKey, "--contract-address", testAddress, "--start-lead", "-1s"},
			err:  "election start lead must be positive",
		},
		{
			name: "bad log format",
			args: []string{"--rpc-url", "x", "--private-key", testKey, "--contract-address", testAddress, "--log-format", "xml"},
			err:  "invalid log format: xml",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)

			_, err := load(t, tc.args...)
			require.EqualError(t, err, tc.err)
		})
	}
}

func TestLoad_BadFile(t *testing.T) {
	clearEnv(t)

	_, err := load(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorContains(t, err, "failed to read config file")

	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte("unknown_key: 1\n"), 0o600))

	_, err = load(t, "--config", path)
	require.ErrorContains(t, err, "failed to parse config file")
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("RPC_URL=http://dotenv:8545\nPORT=7000\n"), 0o600))
	t.Setenv("PORT", "6000")

	require.NoError(t, LoadDotEnv(path))
	require.Equal(t, "http://dotenv:8545", os.Getenv("RPC_URL"))
	require.Equal(t, "6000", os.Getenv("PORT"))
}

func TestConfig_ConfigureLogging(t *testing.T) {
	defer log.SetLevel(log.GetLevel())
	defer log.SetFormatter(log.StandardLogger().Formatter)

	cfg := Default()
	cfg.LogLevel = "debug"
	cfg.LogFormat = "json"

	require.NoError(t, cfg.ConfigureLogging())
	require.Equal(t, log.DebugLevel, log.GetLevel())
	require.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)
}

func load(t *testing.T, args ...string) (Config, error) {
	t.Helper()

	var cfg Config
	var loadErr error

	app := &cli.App{
		Name:  "gateway",
		Flags: Flags(),
		Action: func(c *cli.Context) error {
			cfg, loadErr = Load(c)
			return nil
		},
	}

	require.NoError(t, app.Run(append([]string{"gateway"}, args...)))
	return cfg, loadErr
}

// clearEnv unsets the gateway variables for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envVars {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}
