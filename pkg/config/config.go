// Package config loads YAML configuration files with ${VAR} expansion.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Validator is implemented by configuration types that check themselves
// after loading.
type Validator interface {
	Validate() error
}

// Load reads filename, expands environment references and decodes the YAML
// over target, so fields missing from the file keep their current values.
// target is validated afterwards when it implements Validator.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	if err := decode(filename, data, target); err != nil {
		return err
	}
	return validate(target)
}

// LoadOptional behaves like Load but treats a missing file as empty: target
// keeps its defaults and is still validated.
func LoadOptional[T any](filename string, target *T) error {
	err := Load(filename, target)
	if errors.Is(err, os.ErrNotExist) {
		return validate(target)
	}
	return err
}

func decode[T any](filename string, data []byte, target *T) error {
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	return nil
}

func validate[T any](target *T) error {
	if v, ok := any(target).(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}
