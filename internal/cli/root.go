// Package cli wires the discovery engine into the gitrecon command tree.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/FranksOps/gitrecon/internal/tokenstore"
)

var (
	version = "dev"

	cfgFile     string
	tokensFile  string
	verbose     bool
	metricsPort int
	storeDSN    string
	extraTokens []string
)

var rootCmd = &cobra.Command{
	Use:   "gitrecon",
	Short: "gitrecon mines GitHub code search for subdomains and repository paths.",
	Long: `gitrecon is a reconnaissance tool that drives the GitHub code search and
git tree APIs through a rotating pool of access tokens. It extracts subdomains
of a target domain from matching file content, and path segments from
repository trees.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ~/.config/gitrecon/config.yaml)")
	pf.StringVar(&tokensFile, "tokens-file", "", "token config file (default ~/.config/gitrecon/conf.json)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	pf.IntVar(&metricsPort, "metrics-port", 0, "expose Prometheus metrics on this port (0 = disabled)")
	pf.StringVar(&storeDSN, "store", "", "persist findings (sqlite path, postgres:// DSN, .ndjson or .csv file)")
	pf.StringSliceVarP(&extraTokens, "token", "t", nil, "extra token(s) for this run, in addition to stored ones")
	rootCmd.PersistentFlags().BoolP("version", "V", false, "print version and exit")

	rootCmd.AddCommand(subCmd, pathCmd, tokenCmd)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Fprintf(cmd.OutOrStdout(), "gitrecon version %s\n", version)
			return nil
		}
		return cmd.Help()
	}
}

func initConfig(cmd *cobra.Command) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := os.UserConfigDir()
		if err == nil {
			viper.AddConfigPath(dir + "/gitrecon")
		}
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("gitrecon")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		// An explicit --config that cannot be read is fatal; a missing
		// default config is not.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" {
			return fmt.Errorf("read config: %w", err)
		}
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// newLogger builds the slog logger shared by all commands.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose || viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openTokenStore resolves the token config path and returns the store.
func openTokenStore() (*tokenstore.Store, error) {
	path := tokensFile
	if path == "" {
		path = viper.GetString("tokens-file")
	}
	if path == "" {
		var err error
		path, err = tokenstore.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return tokenstore.New(path), nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errPrefix(), err)
		os.Exit(1)
	}
}
