package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PipelinePath string // hcl files
	ModulesPath  string // hcl manifests + compiled-in handlers
	Workdir      string

	// RunNumber overrides run identity resolution when non-zero.
	RunNumber int

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	WorkerCount     int
}

// NewConfig validates a Config and returns it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinePath == "" {
		return nil, errors.New("PipelinePath is a required configuration field and cannot be empty")
	}
	if cfg.Workdir == "" {
		cfg.Workdir = "."
	}
	return &cfg, nil
}
