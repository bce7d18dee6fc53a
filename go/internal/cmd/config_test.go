package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		port:          8080,
		logLevel:      "info",
		startDelay:    5,
		qrlDuration:   60,
		panicInterval: 250 * time.Millisecond,
		panicMinQCM:   10,
		panicMinQRL:   20,
		maxChatLength: 200,
	}
}

func TestNewCmd_Defaults(t *testing.T) {
	cfg := &Config{}
	newCmd(cfg)

	require.NoError(t, cfg.validate())
	assert.Equal(t, "0.0.0.0", cfg.bind)
	assert.Equal(t, 8080, cfg.port)
	assert.Equal(t, "games", cfg.catalogDir)
	assert.Equal(t, 5, cfg.startDelay)
	assert.Equal(t, 250*time.Millisecond, cfg.panicInterval)
	assert.Equal(t, 2*time.Minute, cfg.sessionConfig().HostTimeout)
	assert.Equal(t, "http://localhost:8080", cfg.joinBaseURL())
	assert.Equal(t, "0.0.0.0:8080", cfg.addr())
}

func TestNewCmd_Environment(t *testing.T) {
	t.Setenv("QUIZHUB_PORT", "9090")
	t.Setenv("QUIZHUB_START_DELAY", "0")
	t.Setenv("QUIZHUB_PANIC_INTERVAL", "100ms")
	t.Setenv("QUIZHUB_PUBLIC_URL", "https://quiz.example.com")
	t.Setenv("QUIZHUB_HOST_TIMEOUT", "30s")

	cfg := &Config{}
	newCmd(cfg)

	assert.Equal(t, 9090, cfg.port)
	assert.Equal(t, 0, cfg.startDelay)
	assert.Equal(t, 100*time.Millisecond, cfg.panicInterval)
	assert.Equal(t, "https://quiz.example.com", cfg.joinBaseURL())

	sessionCfg := cfg.sessionConfig()
	assert.Equal(t, 0, sessionCfg.StartDelay)
	assert.Equal(t, 60, sessionCfg.QRLDuration)
	assert.Equal(t, 30*time.Second, sessionCfg.HostTimeout)
	assert.Equal(t, 100*time.Millisecond, cfg.timerConfig().PanicInterval)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "port zero", mutate: func(c *Config) { c.port = 0 }},
		{name: "port too high", mutate: func(c *Config) { c.port = 70000 }},
		{name: "log level", mutate: func(c *Config) { c.logLevel = "loud" }},
		{name: "negative start delay", mutate: func(c *Config) { c.startDelay = -1 }},
		{name: "qrl duration", mutate: func(c *Config) { c.qrlDuration = 0 }},
		{name: "panic interval", mutate: func(c *Config) { c.panicInterval = 0 }},
		{name: "panic threshold", mutate: func(c *Config) { c.panicMinQRL = -5 }},
		{name: "chat length", mutate: func(c *Config) { c.maxChatLength = 0 }},
		{name: "negative host timeout", mutate: func(c *Config) { c.hostTimeout = -time.Second }},
	}

	require.NoError(t, validConfig().validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.validate())
		})
	}
}

func TestConfig_ValidateCatalog(t *testing.T) {
	cfg := validConfig()
	assert.Error(t, cfg.validateCatalog())

	cfg.catalogDSN = "postgres://localhost/quizhub"
	assert.NoError(t, cfg.validateCatalog())
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quizhub.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 7000\nlog-level: debug\nnats-url: nats://nats:4222\n"), 0o644))

	var port int
	var level, natsURL string
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.IntVar(&port, "port", 8080, "")
	fs.StringVar(&level, "log-level", "info", "")
	fs.StringVar(&natsURL, "nats-url", "", "")
	require.NoError(t, fs.Parse([]string{"--log-level", "warn"}))

	require.NoError(t, loadConfigFile(viper.New(), fs, path))

	assert.Equal(t, 7000, port)
	assert.Equal(t, "warn", level, "command line wins over the file")
	assert.Equal(t, "nats://nats:4222", natsURL)
}

func TestLoadConfigFile_Missing(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	assert.Error(t, loadConfigFile(viper.New(), fs, filepath.Join(t.TempDir(), "absent.yaml")))
	assert.NoError(t, loadConfigFile(viper.New(), fs, ""))
}
