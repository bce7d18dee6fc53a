package main

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mcdev12/quizhub/go/internal/quiz/session"
	"github.com/mcdev12/quizhub/go/internal/quiz/timer"
)

type Config struct {
	configFile     string
	bind           string
	port           int
	logLevel       string
	publicURL      string
	catalogDir     string
	catalogDSN     string
	historyEnabled bool
	natsURL        string
	startDelay     int
	qrlDuration    int
	panicInterval  time.Duration
	panicMinQCM    int
	panicMinQRL    int
	maxChatLength  int
	hostTimeout    time.Duration
	adminURL       string
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if _, err := zerolog.ParseLevel(c.logLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.logLevel)
	}
	if c.startDelay < 0 {
		return fmt.Errorf("invalid start delay (must not be negative): %d", c.startDelay)
	}
	if c.qrlDuration < 1 {
		return fmt.Errorf("invalid qrl duration (must be positive): %d", c.qrlDuration)
	}
	if c.panicInterval <= 0 {
		return fmt.Errorf("invalid panic interval (must be positive): %s", c.panicInterval)
	}
	if c.panicMinQCM < 0 || c.panicMinQRL < 0 {
		return errors.New("panic thresholds must not be negative")
	}
	if c.hostTimeout < 0 {
		return fmt.Errorf("invalid host timeout (must not be negative): %s", c.hostTimeout)
	}
	if c.maxChatLength < 1 {
		return fmt.Errorf("invalid max chat length (must be positive): %d", c.maxChatLength)
	}
	return nil
}

// validateCatalog is checked by the commands that read games.
func (c *Config) validateCatalog() error {
	if c.catalogDir == "" && c.catalogDSN == "" {
		return errors.New("one of --catalog-dir or --catalog-dsn is required")
	}
	return nil
}

func (c *Config) addr() string {
	return net.JoinHostPort(c.bind, strconv.Itoa(c.port))
}

// joinBaseURL is the address players are sent to by join links and QR codes.
func (c *Config) joinBaseURL() string {
	if c.publicURL != "" {
		return c.publicURL
	}
	host := c.bind
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.port))
}

func (c *Config) sessionConfig() session.Config {
	cfg := session.DefaultConfig()
	cfg.StartDelay = c.startDelay
	cfg.QRLDuration = c.qrlDuration
	cfg.PanicMinQCM = c.panicMinQCM
	cfg.PanicMinQRL = c.panicMinQRL
	cfg.MaxChatLength = c.maxChatLength
	cfg.HostTimeout = c.hostTimeout
	return cfg
}

func (c *Config) timerConfig() timer.Config {
	cfg := timer.DefaultConfig()
	cfg.PanicInterval = c.panicInterval
	return cfg
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("QUIZHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "quizhub",
		Short:         "Real-time multiplayer quiz server.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfigFile(v, cmd.Flags(), cfg.configFile); err != nil {
				return err
			}
			if err := cfg.validate(); err != nil {
				return err
			}
			return setupLogging(cfg.logLevel)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.validateCatalog(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.PersistentFlags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.configFile, "config", "c", "", "path to a yaml config file (env: QUIZHUB_CONFIG)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: QUIZHUB_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: QUIZHUB_PORT)")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "log level: trace, debug, info, warn, error (env: QUIZHUB_LOG_LEVEL)")
	fs.StringVar(&cfg.publicURL, "public-url", "", "public base URL used in join links (env: QUIZHUB_PUBLIC_URL)")
	fs.StringVar(&cfg.catalogDir, "catalog-dir", "games", "directory of yaml/json game definitions (env: QUIZHUB_CATALOG_DIR)")
	fs.StringVar(&cfg.catalogDSN, "catalog-dsn", "", "postgres URL of the game catalog, overrides --catalog-dir (env: QUIZHUB_CATALOG_DSN)")
	fs.BoolVar(&cfg.historyEnabled, "history-enabled", false, "record finished games in postgres using DB_* settings (env: QUIZHUB_HISTORY_ENABLED)")
	fs.StringVar(&cfg.natsURL, "nats-url", "", "NATS server URL, empty disables JetStream events (env: QUIZHUB_NATS_URL)")
	fs.IntVar(&cfg.startDelay, "start-delay", 5, "seconds of countdown before the first question (env: QUIZHUB_START_DELAY)")
	fs.IntVar(&cfg.qrlDuration, "qrl-duration", 60, "seconds allowed for open answer questions (env: QUIZHUB_QRL_DURATION)")
	fs.DurationVar(&cfg.panicInterval, "panic-interval", 250*time.Millisecond, "tick interval in panic mode (env: QUIZHUB_PANIC_INTERVAL)")
	fs.IntVar(&cfg.panicMinQCM, "panic-min-qcm", 10, "seconds that must remain to start panic mode on a choice question (env: QUIZHUB_PANIC_MIN_QCM)")
	fs.IntVar(&cfg.panicMinQRL, "panic-min-qrl", 20, "seconds that must remain to start panic mode on an open question (env: QUIZHUB_PANIC_MIN_QRL)")
	fs.IntVar(&cfg.maxChatLength, "max-chat-length", 200, "maximum characters per chat message (env: QUIZHUB_MAX_CHAT_LENGTH)")
	fs.DurationVar(&cfg.hostTimeout, "host-timeout", 2*time.Minute, "close rooms that no host joins within this delay, 0 disables (env: QUIZHUB_HOST_TIMEOUT)")
	fs.StringVar(&cfg.adminURL, "admin-url", "http://localhost:8080", "server address used by the rooms commands (env: QUIZHUB_ADMIN_URL)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.AddCommand(
		newImportCmd(cfg),
		newMigrateCmd(),
		newRoomsCmd(cfg),
	)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("quizhub v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

// loadConfigFile applies values from a yaml config file to every flag that
// was not set on the command line or through the environment.
func loadConfigFile(v *viper.Viper, fs *pflag.FlagSet, path string) error {
	if path == "" {
		return nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var setErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed || !v.InConfig(f.Name) {
			return
		}
		if err := fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil {
			setErr = errors.Join(setErr, fmt.Errorf("config %s: %w", f.Name, err))
		}
	})
	return setErr
}
