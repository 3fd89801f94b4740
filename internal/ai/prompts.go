package ai

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptsYAML []byte

// Prompt names in the embedded catalog.
const (
	PromptTranslateZH = "translate_zh"
	PromptTranslateEN = "translate_en"
	PromptTags        = "tags"
	PromptExpand      = "expand"
	PromptRank        = "rank"
)

// Prompt is one system/user message pair plus sampling parameters.
type Prompt struct {
	System      string  `yaml:"system"`
	User        string  `yaml:"user"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`

	system *template.Template
	user   *template.Template
}

// Catalog maps prompt names to compiled prompts.
type Catalog map[string]*Prompt

// LoadCatalog parses a YAML prompt catalog and compiles its templates.
func LoadCatalog(data []byte) (Catalog, error) {
	raw := map[string]*Prompt{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}

	for name, p := range raw {
		if p == nil || p.User == "" {
			return nil, fmt.Errorf("prompt %q: missing user template", name)
		}
		var err error
		if p.system, err = template.New(name + ".system").Parse(p.System); err != nil {
			return nil, fmt.Errorf("prompt %q: %w", name, err)
		}
		if p.user, err = template.New(name + ".user").Parse(p.User); err != nil {
			return nil, fmt.Errorf("prompt %q: %w", name, err)
		}
	}
	return Catalog(raw), nil
}

// DefaultCatalog returns the embedded prompt catalog.
func DefaultCatalog() (Catalog, error) {
	return LoadCatalog(promptsYAML)
}

// Render fills both templates with data.
func (p *Prompt) Render(data any) (system, user string, err error) {
	var buf bytes.Buffer
	if err := p.system.Execute(&buf, data); err != nil {
		return "", "", err
	}
	system = buf.String()

	buf.Reset()
	if err := p.user.Execute(&buf, data); err != nil {
		return "", "", err
	}
	return system, buf.String(), nil
}
