// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ManuGH/rigrec/internal/config"
	"github.com/ManuGH/rigrec/internal/log"
	"github.com/ManuGH/rigrec/internal/version"
	"github.com/spf13/cobra"
)

// defaultConfigFile is loaded from the working directory when --config is
// not given and the file exists.
const defaultConfigFile = "rigrec.yaml"

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	baseDir    string
	simulate   int
	sets       []string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rec := &recordOptions{}

	root := &cobra.Command{
		Use:           "rigrec",
		Short:         "Record all attached cameras and the positioning sensor",
		Long:          "rigrec discovers every attached stereo camera and the positioning sensor, records them concurrently into a timestamped session directory, and stops them all on Enter, SIGINT or SIGTERM.",
		Version:       version.Get().Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRecord(cmd, opts, rec)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "path to config file (YAML); defaults to ./"+defaultConfigFile+" when present")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	pf.StringVar(&opts.logFormat, "log-format", "", "log format (json, console, auto)")
	pf.StringVar(&opts.baseDir, "base-dir", "", "directory that receives session directories")
	pf.IntVar(&opts.simulate, "simulate", 0, "use N simulated cameras and a simulated positioning sensor")
	pf.StringArrayVar(&opts.sets, "set", nil, "override a config option, key=value (repeatable)")
	addRecordFlags(root, rec)

	info := version.Get()
	root.SetVersionTemplate(fmt.Sprintf("{{.Name}} %s\n  Commit:    %s\n  Built:     %s\n  Arch:      %s\n",
		info.Version, info.Commit, info.Date, info.Arch))

	root.AddCommand(
		newRecordCmd(opts),
		newDevicesCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

// loadConfig resolves the effective configuration. Precedence is flags,
// then environment, then file, then defaults.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (config.AppConfig, error) {
	path := strings.TrimSpace(opts.configPath)
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}

	cfg, err := config.NewLoader(path, version.Get().Version).Load()
	if err != nil {
		return cfg, err
	}

	overrides, err := flagOverrides(cmd, opts)
	if err != nil {
		return cfg, err
	}
	if len(overrides) == 0 {
		return cfg, nil
	}
	if err := cfg.Apply(overrides); err != nil {
		return cfg, err
	}
	if err := config.Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func flagOverrides(cmd *cobra.Command, opts *rootOptions) (map[string]string, error) {
	out := make(map[string]string)
	for _, kv := range opts.sets {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%w: --set %q is not key=value", config.ErrInvalidOption, kv)
		}
		out[strings.TrimSpace(k)] = v
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		out["log_level"] = opts.logLevel
	}
	if flags.Changed("log-format") {
		out["log_format"] = opts.logFormat
	}
	if flags.Changed("base-dir") {
		out["base_dir"] = opts.baseDir
	}
	if flags.Changed("simulate") {
		out["camera_driver"] = config.DriverSim
		out["positioning_driver"] = config.DriverSim
		out["camera_sim_count"] = strconv.Itoa(opts.simulate)
	}
	return out, nil
}

// configureLogging applies the log settings of cfg to the process logger.
func configureLogging(cmd *cobra.Command, cfg config.AppConfig) {
	log.Configure(log.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cmd.ErrOrStderr(),
		Service: "rigrec",
		Version: version.Get().Version,
	})
}
