package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/martinbechard/wslog/internal/broker"
)

// loadConfig reads a broker.Config from path. YAML is selected by a
// .yml/.yaml extension; everything else is parsed as JSON, mirroring
// pkg/cron_worker's DefaultConfig/Validate discipline: fill defaults,
// then overlay the file. The result is not validated here; the caller
// validates it after applying any flag overrides.
func loadConfig(path string) (broker.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return broker.Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := broker.DefaultConfig()
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yml" || ext == ".yaml" {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return broker.Config{}, fmt.Errorf("parsing yaml config %s: %w", path, err)
		}
		return cfg, nil
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return broker.Config{}, fmt.Errorf("parsing json config %s: %w", path, err)
	}
	return cfg, nil
}

// writeDefaultConfig writes broker.DefaultConfig() to path as indented
// JSON, for the --create-config flag.
func writeDefaultConfig(path string) error {
	cfg := broker.DefaultConfig()
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
