package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/dockyard/internal/app"
	"github.com/zjrosen/dockyard/internal/config"
	"github.com/zjrosen/dockyard/internal/log"
)

var (
	version    = "dev"
	cfgFile    string
	debugFlag  bool
	jsonOutput bool
	cfg        config.Config
	cfgErr     error
	logCleanup func()

	// clock is the time source for new timestamps and relative times.
	clock = time.Now
)

var rootCmd = &cobra.Command{
	Use:   "dockyard",
	Short: "Manage saved dashboard layouts",
	Long: `Dockyard keeps the named panel layouts of a dashboard: it creates,
renames, duplicates and deletes them, remembers which were opened last, and
moves single layouts between machines as portable snapshot files.

State lives in a JSON file next to the config by default; SQLite and S3
backends are available through store.backend.`,
	Version:      version,
	SilenceUsage: true,
	PersistentPostRun: func(*cobra.Command, []string) {
		if logCleanup != nil {
			logCleanup()
			logCleanup = nil
		}
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/dockyard/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false,
		"write a debug log (also DOCKYARD_DEBUG=1)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"print JSON instead of tables (list, recent, show, current)")
}

func initConfig() {
	viper.Reset()
	cfgErr = nil
	viper.SetEnvPrefix("DOCKYARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	defaults := config.Defaults()
	viper.SetDefault("store.backend", defaults.Store.Backend)
	viper.SetDefault("store.path", defaults.Store.Path)
	viper.SetDefault("store.flush_debounce", defaults.Store.FlushDebounce)
	viper.SetDefault("store.s3.bucket", defaults.Store.S3.Bucket)
	viper.SetDefault("store.s3.key", defaults.Store.S3.Key)
	viper.SetDefault("store.s3.region", defaults.Store.S3.Region)
	viper.SetDefault("store.s3.endpoint", defaults.Store.S3.Endpoint)
	viper.SetDefault("search.case_sensitive", defaults.Search.CaseSensitive)
	viper.SetDefault("search.locale", defaults.Search.Locale)
	viper.SetDefault("list.sort", defaults.List.Sort)
	viper.SetDefault("list.kind", defaults.List.Kind)
	viper.SetDefault("list.updated", defaults.List.Updated)
	viper.SetDefault("cache.ttl", defaults.Cache.TTL)
	viper.SetDefault("events.url", defaults.Events.URL)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)
	viper.SetDefault("log.path", defaults.Log.Path)
	viper.SetDefault("log.debug", defaults.Log.Debug)
	viper.SetDefault("log.level", defaults.Log.Level)

	// Config lookup order:
	// 1. --config
	// 2. .dockyard/config.yaml (current directory)
	// 3. ~/.config/dockyard/config.yaml (user config)
	switch {
	case cfgFile != "":
		viper.SetConfigFile(cfgFile)
	case fileExists(filepath.Join(".dockyard", "config.yaml")):
		viper.SetConfigFile(filepath.Join(".dockyard", "config.yaml"))
	default:
		viper.AddConfigPath(config.DefaultConfigDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || (cfgFile != "" && errors.Is(err, os.ErrNotExist)) {
			// Nothing to read: write the default config where it was expected.
			defaultPath := configPath()
			if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
				viper.SetConfigFile(defaultPath)
				_ = viper.ReadInConfig()
			}
		} else {
			cfgErr = fmt.Errorf("reading config: %w", err)
		}
	}

	cfg = config.Config{}
	if err := viper.Unmarshal(&cfg); err != nil {
		cfgErr = fmt.Errorf("decoding config: %w", err)
	}

	initLogging()
}

// initLogging starts the debug log when asked to by flag, environment or
// config. Failing to open it is not fatal.
func initLogging() {
	if logCleanup != nil {
		return
	}
	debug := os.Getenv("DOCKYARD_DEBUG") != "" || debugFlag || cfg.Log.Debug
	if !debug && cfg.Log.Path == "" {
		return
	}
	logPath := cfg.Log.Path
	if logPath == "" {
		logPath = filepath.Join(filepath.Dir(configPath()), "debug.log")
	}
	cleanup, err := log.Init(logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: debug log disabled: %v\n", err)
		return
	}
	logCleanup = cleanup
	if level, err := log.ParseLevel(cfg.Log.Level); err == nil {
		log.SetMinLevel(level)
	}
	log.Info(log.CatConfig, "dockyard starting", "version", version, "config", viper.ConfigFileUsed())
}

// configPath is the config file in use, or where the default one belongs.
func configPath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	if cfgFile != "" {
		return cfgFile
	}
	return filepath.Join(config.DefaultConfigDir(), "config.yaml")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// withSession opens the registry, runs fn, and saves before closing if fn
// changed anything.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *app.Session) error) (err error) {
	if cfgErr != nil {
		return cfgErr
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := app.Open(ctx, cfg, app.Options{
		ConfigDir: filepath.Dir(configPath()),
		Clock:     clock,
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing session: %w", closeErr)
		}
	}()

	// Commands taking several arguments may change the registry and still
	// fail for some arguments; whatever changed is saved either way.
	start := s.Registry.Revision()
	fnErr := fn(ctx, s)
	if s.Registry.Revision() != start {
		if syncErr := s.Sync(ctx); syncErr != nil {
			return errors.Join(fnErr, fmt.Errorf("saving layouts: %w", syncErr))
		}
	}
	return fnErr
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
