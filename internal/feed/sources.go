package feed

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Source is one configured feed.
type Source struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// SourcesConfig is the YAML config structure
// feeds:
//   - name: ...
//     url: https://...
type SourcesConfig struct {
	Feeds []Source `yaml:"feeds"`
}

// LoadSources reads the feed list from a YAML file.
func LoadSources(path string) ([]Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg SourcesConfig
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode feeds config: %w", err)
	}

	for i, src := range cfg.Feeds {
		if src.URL == "" {
			return nil, fmt.Errorf("feed %d has no url", i)
		}
	}
	return cfg.Feeds, nil
}
