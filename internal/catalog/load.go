package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// #region constants
// MaxConfigFileSize caps the size of a configuration document.
const MaxConfigFileSize = 1 << 20

// #endregion constants

//go:embed sample.yaml
var sampleYAML []byte

// #region parse
// Parse decodes a YAML or JSON configuration document and builds a catalog.
// Keys the environment does not know are ignored.
func Parse(data []byte) (*Catalog, error) {
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// ParseConfig decodes a configuration document without building a catalog.
func ParseConfig(data []byte) (Config, error) {
	if len(data) > MaxConfigFileSize {
		return Config{}, fmt.Errorf("config is %d bytes, limit %d", len(data), MaxConfigFileSize)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Load reads and parses a configuration file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// #endregion parse

// #region sample
var (
	sampleOnce sync.Once
	sample     *Catalog
	sampleErr  error
)

// Sample returns the catalog built from the embedded sample configuration:
// two categories with three site types each over three periods.
func Sample() *Catalog {
	sampleOnce.Do(func() {
		sample, sampleErr = Parse(sampleYAML)
	})
	if sampleErr != nil {
		panic(fmt.Sprintf("embedded sample config: %v", sampleErr))
	}
	return sample
}

// SampleYAML returns a copy of the embedded sample configuration document.
func SampleYAML() []byte {
	return append([]byte(nil), sampleYAML...)
}

// #endregion sample
