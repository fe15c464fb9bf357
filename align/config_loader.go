package align

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MQTTConfig holds broker connection settings for the optional result
// publisher.
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// Config is the full configuration file: registration options plus optional
// publishing settings. MQTT is disabled when no broker is set.
type Config struct {
	Options Options     `yaml:"options" json:"options"`
	MQTT    *MQTTConfig `yaml:"mqtt,omitempty" json:"mqtt,omitempty"`
}

// LoadConfig loads and validates the configuration from a YAML file.
// Unset option fields fall back to defaults before validation, so a file
// only needs the fields it overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Config{Options: DefaultOptions()}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := config.Options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if config.MQTT != nil && config.MQTT.Broker == "" {
		return nil, fmt.Errorf("mqtt.broker is required when mqtt is configured")
	}
	return &config, nil
}

// SaveConfig writes the configuration back as YAML.
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
