package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/asreview/prior/internal/api"
	"github.com/asreview/prior/internal/config"
	"github.com/asreview/prior/internal/models"
	"github.com/asreview/prior/internal/serve"
)

// addClientFlags registers the flags that override .prior/config.json
func addClientFlags(fs *pflag.FlagSet) {
	fs.String("api", "", "API base URL (default: config, then a running 'prior serve')")
	fs.StringP("project", "p", "", "Project ID")
	fs.String("token", "", "Bearer token")
	fs.Int("limit", 0, "Irrelevant decisions before the dialog suggests stopping")
}

// resolveSettings merges flags over the config file. With no API base in
// either, a running 'prior serve' for dir is used before the default.
func resolveSettings(fs *pflag.FlagSet, dir string) (models.Config, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return models.Config{}, fmt.Errorf("load config: %w", err)
	}

	if f := fs.Lookup("api"); f != nil && f.Changed {
		cfg.APIBase = f.Value.String()
	}
	if f := fs.Lookup("project"); f != nil && f.Changed {
		cfg.ProjectID = f.Value.String()
	}
	if f := fs.Lookup("token"); f != nil && f.Changed {
		cfg.Token = f.Value.String()
	}
	if f := fs.Lookup("limit"); f != nil && f.Changed {
		n, err := fs.GetInt("limit")
		if err != nil {
			return models.Config{}, err
		}
		if n <= 0 {
			return models.Config{}, fmt.Errorf("--limit must be positive, got %d", n)
		}
		cfg.ExclusionLimit = n
	}

	if cfg.APIBase == "" {
		if base, ok := serve.DiscoverAPIBase(dir); ok {
			cfg.APIBase = base
		}
	}
	return config.WithDefaults(cfg), nil
}

func newClient(cfg models.Config) *api.Client {
	var opts []api.Option
	if cfg.Token != "" {
		opts = append(opts, api.WithToken(cfg.Token))
	}
	return api.New(cfg.APIBase, opts...)
}

func logLevel(cmd *cobra.Command) slog.Level {
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// openLogFile returns a JSON logger writing to .prior/<name>. The returned
// closer must be called when done.
func openLogFile(dir, name string, level slog.Level) (*slog.Logger, io.Closer, error) {
	path := config.StatePath(dir, name)
	if err := os.MkdirAll(config.StatePath(dir, ""), 0755); err != nil {
		return nil, nil, fmt.Errorf("create state dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log: %w", err)
	}
	return slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})), f, nil
}
