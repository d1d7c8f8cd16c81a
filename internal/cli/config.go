package cli

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RunConfig is the YAML run configuration. Every field has a flag
// counterpart; flags set explicitly on the command line win.
type RunConfig struct {
	InstallRoot  string        `yaml:"install_root"`
	ResultsDB    string        `yaml:"results_db"`
	CatalogURL   string        `yaml:"catalog_url"`
	StartTimeout time.Duration `yaml:"start_timeout"`
	KeepGoing    bool          `yaml:"keep_going"`
}

// LoadRunConfig reads and strictly decodes a run configuration file.
// Unknown keys are an error so typos fail loudly instead of being
// silently ignored.
func LoadRunConfig(path string) (*RunConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	var cfg RunConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &cfg, nil
}
