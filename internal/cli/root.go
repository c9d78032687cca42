package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/negcheck/internal/logging"
	"github.com/ppiankov/negcheck/internal/model"
)

// version is overridden at build time with -ldflags "-X .../internal/cli.version=..."
var version = "0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "negcheck",
	Short: "negcheck - negative-news report checker",
	Long: `negcheck reads a negative-news screening report (PDF, DOCX or text),
recovers its findings and checks every cited article.

A finding is confirmed only when the article page mentions the entity and a
keyword of the finding's category close together. Everything else is reported
with a note explaining why it could not be confirmed.

negcheck matches text. It does not judge whether an allegation is true.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "negcheck v%s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.negcheck/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	setDefaults(model.DefaultConfig())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(home + "/.negcheck")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// NEGCHECK_CONCURRENCY_WORKERS overrides concurrency.workers, and so on
	viper.SetEnvPrefix("NEGCHECK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	} else if err != nil && cfgFile != "" {
		fmt.Fprintf(os.Stderr, "✗ Could not read config file %s: %v\n", cfgFile, err)
	}
}

// setDefaults registers every config key so env vars and Unmarshal see it
func setDefaults(cfg model.Config) {
	defaults := map[string]any{
		"http.timeout":                      cfg.HTTP.Timeout,
		"http.user_agent":                   cfg.HTTP.UserAgent,
		"http.max_body_bytes":               cfg.HTTP.MaxBodyBytes,
		"http.max_redirects":                cfg.HTTP.MaxRedirects,
		"http.max_retries":                  cfg.HTTP.MaxRetries,
		"http.http_proxy":                   cfg.HTTP.HTTPProxy,
		"http.https_proxy":                  cfg.HTTP.HTTPSProxy,
		"http.no_proxy":                     cfg.HTTP.NoProxy,
		"http.respect_robots":               cfg.HTTP.RespectRobots,
		"concurrency.workers":               cfg.Concurrency.Workers,
		"rate_limiting.requests_per_second": cfg.RateLimiting.RequestsPerSecond,
		"rate_limiting.burst_size":          cfg.RateLimiting.BurstSize,
		"parser.entity_lookahead":           cfg.Parser.EntityLookahead,
		"parser.field_window":               cfg.Parser.FieldWindow,
		"matcher.preview_length":            cfg.Matcher.PreviewLength,
		"matcher.proximity_window":          cfg.Matcher.ProximityWindow,
		"matcher.margin":                    cfg.Matcher.Margin,
		"cache.enabled":                     cfg.Cache.Enabled,
		"cache.ttl":                         cfg.Cache.TTL,
		"server.addr":                       cfg.Server.Addr,
		"server.max_upload_bytes":           cfg.Server.MaxUploadBytes,
		"server.write_timeout":              cfg.Server.WriteTimeout,
		"log.level":                         cfg.Log.Level,
		"log.format":                        cfg.Log.Format,
		"log.file":                          cfg.Log.File,
	}
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}
}

// loadConfig decodes the effective configuration and installs the logger.
// Interactive commands keep the log quiet unless --verbose is given, since
// their progress goes to stderr already.
func loadConfig(interactive bool) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	switch {
	case verbose:
		cfg.Log.Level = "debug"
	case interactive && strings.EqualFold(cfg.Log.Level, "info"):
		cfg.Log.Level = "warn"
	}
	logging.Setup(cfg.Log)

	return &cfg, nil
}
