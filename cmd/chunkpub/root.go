package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// defaultConfigPath is consulted when --config is not given; a missing file
// there is fine.
const defaultConfigPath = ".chunkpub.toml"

type rootOptions struct {
	configPath string
	url        string
	org        string
	project    string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "chunkpub",
		Short:         "Upload artifacts to a content-addressable assembly service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to TOML config file")
	flags.StringVar(&opts.url, "url", "", "API root URL")
	flags.StringVar(&opts.org, "org", "", "organization slug")
	flags.StringVar(&opts.project, "project", "", "project slug")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newUploadCmd(opts))
	return cmd
}

// resolveConfig merges file, environment, and flag values.
func (o *rootOptions) resolveConfig() (*Config, error) {
	path := o.configPath
	required := path != ""
	if path == "" {
		path = defaultConfigPath
	}
	cfg, err := loadConfig(path, required)
	if err != nil {
		return nil, err
	}
	if o.url != "" {
		cfg.URL = o.url
	}
	if o.org != "" {
		cfg.Organization = o.org
	}
	if o.project != "" {
		cfg.Project = o.project
	}
	return cfg, nil
}

// newLogger builds a console logger for CLI runs.
func (o *rootOptions) newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if o.verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}
