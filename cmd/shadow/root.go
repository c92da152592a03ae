package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pthm/shadow"
	"github.com/pthm/shadow/lib/generator"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "shadow",
	Short: "Registration tooling for shadow components",
	Long: `shadow writes static registration tables for packages of components.

Every struct embedding *shadow.Element gets a shadow.Link call in a
generated LinkComponents function, so applications register all of their
components with one call:

  if err := todo.LinkComponents(shadow.Default()); err != nil { ... }

Configuration is read from .shadow.yaml, SHADOW_* environment variables
and flags, in increasing order of priority.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .shadow.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	viper.SetDefault("output", generator.DefaultOutput)
	viper.SetDefault("func", generator.DefaultFunc)
	viper.SetDefault("patterns", []string{"./..."})

	rootCmd.AddCommand(generateCmd, cleanCmd, versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".shadow")
	}

	viper.SetEnvPrefix("SHADOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig returns the runtime settings from viper.
func loadConfig() shadow.Config {
	cfg := shadow.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: invalid config: %v\n", err)
	}
	return cfg
}

// logger builds the CLI logger from config.
func logger() *slog.Logger {
	return loadConfig().Logger(os.Stderr)
}

// patterns returns the package patterns from args or config.
func patterns(args []string) []string {
	if len(args) > 0 {
		return args
	}
	if p := viper.GetStringSlice("patterns"); len(p) > 0 {
		return p
	}
	return []string{"./..."}
}

func newGenerator(dryRun bool) *generator.Generator {
	return generator.New(generator.Options{
		DryRun: dryRun,
		Output: viper.GetString("output"),
		Func:   viper.GetString("func"),
		Log:    os.Stdout,
	})
}
