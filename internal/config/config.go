package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/asreview/prior/internal/models"
)

const (
	// Dir is the per-project state directory
	Dir        = ".prior"
	configFile = Dir + "/config.json"

	DefaultAPIBase        = "http://localhost:5000/api"
	DefaultExclusionLimit = 5
)

// Path returns the config file location for baseDir
func Path(baseDir string) string {
	return filepath.Join(baseDir, configFile)
}

// StatePath returns a file path inside the state directory
func StatePath(baseDir, name string) string {
	return filepath.Join(baseDir, Dir, name)
}

// Load reads the config from disk
func Load(baseDir string) (*models.Config, error) {
	data, err := os.ReadFile(Path(baseDir))
	if err != nil {
		if os.IsNotExist(err) {
			return &models.Config{}, nil
		}
		return nil, err
	}

	var cfg models.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the config to disk
func Save(baseDir string, cfg *models.Config) error {
	configPath := Path(baseDir)

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	// Token may be present
	return os.WriteFile(configPath, data, 0600)
}

// WithDefaults returns a copy of cfg with unset fields filled in
func WithDefaults(cfg *models.Config) models.Config {
	out := models.Config{}
	if cfg != nil {
		out = *cfg
	}
	if out.APIBase == "" {
		out.APIBase = DefaultAPIBase
	}
	out.APIBase = strings.TrimRight(out.APIBase, "/")
	if out.ExclusionLimit <= 0 {
		out.ExclusionLimit = DefaultExclusionLimit
	}
	return out
}

// SetProject sets the active project ID
func SetProject(baseDir string, projectID string) error {
	cfg, err := Load(baseDir)
	if err != nil {
		return err
	}

	cfg.ProjectID = projectID
	return Save(baseDir, cfg)
}

// GetProject returns the active project ID
func GetProject(baseDir string) (string, error) {
	cfg, err := Load(baseDir)
	if err != nil {
		return "", err
	}
	return cfg.ProjectID, nil
}

// ClearProject clears the active project
func ClearProject(baseDir string) error {
	return SetProject(baseDir, "")
}
