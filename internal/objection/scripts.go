package objection

import (
	_ "embed"
	"fmt"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed scripts.yaml
var defaultScriptsYAML []byte

// universalFallback is returned when both the category pool and the
// strategy default pool are empty. The selector must never answer with an
// empty response.
const universalFallback = "Totally understand. I'll leave it here for now - if anything changes or you have questions down the road, I'm always happy to help."

// ScriptLibrary holds the response script pools: per (category, strategy)
// first, per strategy as fallback.
type ScriptLibrary struct {
	Pools    map[Category]map[Strategy][]string `yaml:"pools"`
	Defaults map[Strategy][]string              `yaml:"defaults"`
}

// LoadScripts parses a script library from YAML.
func LoadScripts(payload []byte) (*ScriptLibrary, error) {
	var lib ScriptLibrary
	if err := yaml.Unmarshal(payload, &lib); err != nil {
		return nil, fmt.Errorf("parse script library: %w", err)
	}
	return &lib, nil
}

// LoadScriptsFile reads an operator-supplied script library from disk. An
// empty path returns the embedded default library.
func LoadScriptsFile(path string) (*ScriptLibrary, error) {
	if path == "" {
		return LoadScripts(defaultScriptsYAML)
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script library: %w", err)
	}
	return LoadScripts(payload)
}

// Draw picks a script for the category and strategy: category pool first,
// strategy default pool second, universal fallback last. Selection within a
// pool is random for variety.
func (lib *ScriptLibrary) Draw(category Category, strategy Strategy) string {
	if lib != nil {
		if byStrategy, ok := lib.Pools[category]; ok {
			if pool := byStrategy[strategy]; len(pool) > 0 {
				return pool[rand.Intn(len(pool))]
			}
		}
		if pool := lib.Defaults[strategy]; len(pool) > 0 {
			return pool[rand.Intn(len(pool))]
		}
	}
	return universalFallback
}
