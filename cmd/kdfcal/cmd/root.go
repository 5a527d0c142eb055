package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/psantana5/kdfcal/internal/calibrate"
	"github.com/psantana5/kdfcal/pkg/logging"
	"github.com/psantana5/kdfcal/pkg/tracing"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// version is set at build time with -ldflags "-X .../cmd.version=..."
var version = "dev"

var cfgFile string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "kdfcal",
	Short: "Measure CPU throughput and pick scrypt parameters from it",
	Long: `kdfcal times a fixed-cost scrypt workload against the most precise clock the
platform offers, reports the achieved salsa20/8 throughput and turns it into
scrypt cost parameters that fit a time and memory budget.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return initConfig() },
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.kdfcal/config.yaml)")
	pf.StringP("output", "o", "text", "output format: text, json or yaml (recommend also takes bash)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.Bool("log-json", false, "write logs as JSON lines")
	pf.String("otlp-endpoint", "", "OTLP/HTTP trace endpoint, tracing is off when empty")

	bindFlags(pf, "", "output", "log-level", "log-json", "otlp-endpoint")
}

// bindFlags exposes flags to viper as prefix + name, dashes turned into
// underscores, so config keys and KDFCAL_* variables can set them
func bindFlags(fs *pflag.FlagSet, prefix string, names ...string) {
	for _, name := range names {
		key := prefix + strings.ReplaceAll(name, "-", "_")
		if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

// initConfig reads in config file and ENV variables if set
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".kdfcal"))
		}
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("KDFCAL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

func newLogger(cmd *cobra.Command) *logging.Logger {
	return logging.New(
		cmd.ErrOrStderr(),
		logging.ParseLevel(viper.GetString("log_level")),
		viper.GetBool("log_json"),
	)
}

func startTracing(ctx context.Context, logger *logging.Logger) (*tracing.Provider, error) {
	return tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "kdfcal",
		ServiceVersion: version,
		Environment:    viper.GetString("environment"),
		OTLPEndpoint:   viper.GetString("otlp_endpoint"),
		Insecure:       viper.GetBool("otlp_insecure"),
		SampleRatio:    viper.GetFloat64("otlp_sample_ratio"),
	}, logger)
}

// calibrationConfig builds the runner config from the estimate.* keys
func calibrationConfig() calibrate.Config {
	cfg := calibrate.DefaultConfig()
	if p := viper.GetInt("estimate.precision"); p > 0 {
		cfg.Precision = p
	}
	if r := viper.GetInt("estimate.retries"); r >= 0 {
		cfg.Retry.MaxRetries = r
	}
	return cfg
}
