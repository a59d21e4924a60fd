package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed hqm.json
var embeddedConfig []byte

// loadEmbeddedConfig loads the embedded hqm.json file.
func loadEmbeddedConfig() (*JSONConfig, error) {
	var config JSONConfig
	if err := json.Unmarshal(embeddedConfig, &config); err != nil {
		return nil, fmt.Errorf("failed to parse embedded config file: %w", err)
	}
	return &config, nil
}
