// Command rehearse runs conversation rehearsal sessions in the terminal.
//
// Usage:
//
//	rehearse [--config file] run [scenario-id]
//	rehearse scenarios
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	cfg "github.com/happycapy/rehearsal/config"
	"github.com/happycapy/rehearsal/scenario"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "rehearse",
	Short:         "Rehearse conversations with simulated personas",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default config/$CONFIG_ENV/config.yaml)")
}

func loadConfig() (*cfg.Root, *logrus.Logger, error) {
	conf, err := cfg.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log := logrus.New()
	log.SetOutput(os.Stderr)
	lvl, err := logrus.ParseLevel(conf.App.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("config: app.log_level: %w", err)
	}
	log.SetLevel(lvl)
	if conf.App.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return conf, log, nil
}

func loadCatalog(conf *cfg.Root) (*scenario.Catalog, error) {
	c, err := scenario.Load(conf.Paths.Scenarios)
	if err != nil {
		return nil, fmt.Errorf("scenarios: %w", err)
	}
	return c, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
