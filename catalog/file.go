package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk shape of a model table:
//
//	default_model: gpt-4o
//	models:
//	  - name: gpt-4o
//	    provider: openai
//	    encoding: o200k_base
//	    pricing: {input: 0.005, output: 0.015}
type File struct {
	DefaultModel string      `yaml:"default_model"`
	Models       []ModelSpec `yaml:"models"`
}

// LoadFile merges the models declared in a YAML file into c.
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return c.LoadYAML(data)
}

// LoadYAML merges the models declared in data into c.
func (c *Catalog) LoadYAML(data []byte) error {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("catalog: parse model file: %w", err)
	}
	for _, spec := range f.Models {
		if err := c.Register(spec); err != nil {
			return err
		}
	}
	if f.DefaultModel != "" {
		return c.SetDefault(f.DefaultModel)
	}
	return nil
}
