// Package theme provides the color tables for the chat front end.
// Inspired by Dark Elegance: rich blacks, subtle depth, glowing accents.
package theme

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Theme defines the complete visual language as hex colors. Renderers and the
// syntax token table consume it; nothing in the core interprets the values.
type Theme struct {
	// Core palette
	Background    string `yaml:"background"`
	Surface       string `yaml:"surface"`
	SurfaceRaised string `yaml:"surface_raised"`

	// Text hierarchy
	TextPrimary   string `yaml:"text_primary"`
	TextSecondary string `yaml:"text_secondary"`
	TextMuted     string `yaml:"text_muted"`

	// Accents
	Accent    string `yaml:"accent"`
	AccentDim string `yaml:"accent_dim"`

	// Semantic colors
	Success string `yaml:"success"`
	Warning string `yaml:"warning"`
	Error   string `yaml:"error"`
	Info    string `yaml:"info"`

	// Message sources
	User      string `yaml:"user"`
	Assistant string `yaml:"assistant"`
	Tool      string `yaml:"tool"`
	Thinking  string `yaml:"thinking"`

	// Code blocks
	CodeBackground string `yaml:"code_background"`
	CodeKeyword    string `yaml:"code_keyword"`
	CodeString     string `yaml:"code_string"`
	CodeNumber     string `yaml:"code_number"`
	CodeComment    string `yaml:"code_comment"`
	CodeFunction   string `yaml:"code_function"`
	CodeType       string `yaml:"code_type"`
	CodeOperator   string `yaml:"code_operator"`
	CodeError      string `yaml:"code_error"`
}

// Default returns the Dark Elegance theme.
func Default() *Theme {
	return &Theme{
		Background:    "#0c0c10",
		Surface:       "#16161c",
		SurfaceRaised: "#202028",

		TextPrimary:   "#f0eee8",
		TextSecondary: "#a09e96",
		TextMuted:     "#64625c",

		Accent:    "#9a7ce8",
		AccentDim: "#6e58a8",

		Success: "#7ec87e",
		Warning: "#e8c468",
		Error:   "#e87878",
		Info:    "#68b4e8",

		User:      "#68b4e8",
		Assistant: "#9a7ce8",
		Tool:      "#e8c468",
		Thinking:  "#64625c",

		CodeBackground: "#08080a",
		CodeKeyword:    "#9a7ce8",
		CodeString:     "#7ec87e",
		CodeNumber:     "#e8c468",
		CodeComment:    "#64625c",
		CodeFunction:   "#6e58a8",
		CodeType:       "#68b4e8",
		CodeOperator:   "#a09e96",
		CodeError:      "#e87878",
	}
}

// Load reads a theme from a YAML file, filling unset colors from the default
// theme.
func Load(path string) (*Theme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading theme: %w", err)
	}

	t := Default()
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("parsing theme: %w", err)
	}
	return t, nil
}
