//go:build !tinygo

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const applicationName = "ember"

// flagKeys maps command line flags to their configuration keys.
var flagKeys = map[string]string{
	"headless":     "headless",
	"hz":           "hz",
	"ticks":        "ticks",
	"log-level":    "log.level",
	"metrics-addr": "metrics.addr",
	"max-tasks":    "kernel.maxTasks",
	"stack-cells":  "kernel.stackCells",
	"cell-bytes":   "kernel.cellBytes",
	"producers":    "demo.producers",
	"queue-depth":  "demo.queueDepth",
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(applicationName, pflag.ContinueOnError)
	fs.StringP("config", "c", "", "Configuration file (yaml, json or toml).")
	fs.Bool("headless", false, "Run without a window.")
	fs.Int("hz", 60, "Runner frame rate; ticks are emitted per elapsed millisecond.")
	fs.Uint64("ticks", 0, "Stop after N frames in headless mode (0 = run forever).")
	fs.String("log-level", "info", "Log level: debug, info, warn or error.")
	fs.String("metrics-addr", "", "Serve Prometheus metrics on this address (empty = off).")
	fs.Int("max-tasks", 16, "Task table capacity.")
	fs.Uint32("stack-cells", 2048, "Stack arena size in cells.")
	fs.Uint32("cell-bytes", 4, "Size of one stack cell.")
	fs.Int("producers", 2, "Number of producer tasks.")
	fs.Int("queue-depth", 8, "Sample queue capacity.")
	return fs
}

// newViper produces a Viper instance for the application: the config file is looked up as
// ember.{yaml,json,toml} under /etc/ember, $HOME/.ember and the working directory, and
// EMBER_-prefixed environment variables override it.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName(applicationName)
	v.AddConfigPath(fmt.Sprintf("/etc/%s", applicationName))
	v.AddConfigPath(fmt.Sprintf("$HOME/.%s", applicationName))
	v.AddConfigPath(".")

	v.SetEnvPrefix(applicationName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadConfig parses args and merges flags, environment and the optional config file.
func loadConfig(args []string) (*viper.Viper, error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := newViper()
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	if file, _ := fs.GetString("config"); file != "" {
		v.SetConfigFile(file)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}
