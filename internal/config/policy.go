package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fraudguard/honeytrap/internal/persona"
)

// Policy is the operator-editable part of the engagement behavior: the
// persona catalog and the suspicious-keyword vocabulary. Deployments that
// do not ship a policy file run on the built-in defaults.
type Policy struct {
	Personas []persona.Persona `yaml:"personas"`
	Keywords []string          `yaml:"keywords"`
}

// LoadPolicy reads a YAML policy file. An empty path returns the built-in
// defaults; a listed section replaces its default wholesale.
func LoadPolicy(path string) (*Policy, error) {
	policy := &Policy{}
	if path == "" {
		return policy.withDefaults(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(data, policy); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}

	policy = policy.withDefaults()
	for i, p := range policy.Personas {
		if p.Name == "" {
			return nil, fmt.Errorf("policy persona %d has no name", i)
		}
	}
	return policy, nil
}

func (p *Policy) withDefaults() *Policy {
	if len(p.Personas) == 0 {
		p.Personas = persona.DefaultCatalog()
	}
	if len(p.Keywords) == 0 {
		p.Keywords = nil // intel applies its own default vocabulary
	}
	return p
}
