package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

//ServerConfig defines config options for running the server
type ServerConfig struct {
	Scheme   string
	Hostname string
	Addr     string
	// Database is the sqlite database path; empty means in-memory.
	Database string
	// StrictJSONLD requires feed payloads carrying an @context to
	// expand cleanly as JSON-LD.
	StrictJSONLD bool `toml:"strict_jsonld"`
}

//Config is the config object
type Config struct {
	Server ServerConfig
}

// LoadConfig loads a config at configPath
func LoadConfig(configPath string) (*Config, error) {
	var conf Config
	md, err := toml.DecodeFile(configPath, &conf)
	if err != nil {
		return nil, err
	}

	undecoded := md.Undecoded()
	if len(undecoded) != 0 {
		return nil, fmt.Errorf("these config fields are unused: %q", undecoded)
	}

	err = ValidateConfig(conf)
	if err != nil {
		return nil, err
	}

	if conf.Server.Addr == "" {
		conf.Server.Addr = ":4815"
	}

	return &conf, nil
}

// ValidateConfig validates a Config
func ValidateConfig(conf Config) error {
	if conf.Server.Hostname == "" {
		return fmt.Errorf("no hostname given")
	}

	if conf.Server.Scheme == "" {
		return fmt.Errorf("no scheme given")
	}

	return nil
}
