package config

import (
	"github.com/knadh/koanf/v2"
	"github.com/pelletier/go-toml/v2"
)

// tomlParser adapts go-toml to the koanf.Parser interface.
type tomlParser struct{}

var _ koanf.Parser = tomlParser{}

// TOMLParser returns a koanf parser for TOML documents.
func TOMLParser() koanf.Parser {
	return tomlParser{}
}

func (tomlParser) Unmarshal(b []byte) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := toml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (tomlParser) Marshal(o map[string]interface{}) ([]byte, error) {
	return toml.Marshal(o)
}
