package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// defaultsFileName is looked for in the current directory when the
// FROSTLINE_CONFIG environment variable is not set.
const defaultsFileName = "frostline.yaml"

// Defaults holds the CLI-level settings a defaults file may override.
// Command-line flags always win over the file.
type Defaults struct {
	Workdir         string `yaml:"workdir"`
	ModulesPath     string `yaml:"modules_path"`
	LogFormat       string `yaml:"log_format"`
	LogLevel        string `yaml:"log_level"`
	Workers         int    `yaml:"workers"`
	HealthcheckPort int    `yaml:"healthcheck_port"`
}

// builtinDefaults are used when no defaults file is present.
func builtinDefaults() Defaults {
	return Defaults{
		Workdir:     ".",
		ModulesPath: "modules",
		LogFormat:   "json",
		LogLevel:    "info",
		Workers:     4,
	}
}

// LoadDefaults reads the optional YAML defaults file. A missing file is not
// an error; a malformed one is.
func LoadDefaults() (Defaults, error) {
	defaults := builtinDefaults()

	path := os.Getenv("FROSTLINE_CONFIG")
	if path == "" {
		path = defaultsFileName
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return defaults, nil
		}
		return Defaults{}, fmt.Errorf("failed to read defaults file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, &defaults); err != nil {
		return Defaults{}, fmt.Errorf("failed to parse defaults file %s: %w", path, err)
	}
	return defaults, nil
}
