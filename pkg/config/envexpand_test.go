package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	tests := []struct {
		name  string
		input string
		env   map[string]string
		want  string
	}{
		{
			name:  "simple substitution with {{.VAR}}",
			input: "password: {{.GRAPH_PASSWORD}}",
			env:   map[string]string{"GRAPH_PASSWORD": "secret123"},
			want:  "password: secret123",
		},
		{
			name:  "literal ${VAR} is NOT expanded (no collision)",
			input: "pattern: svc_${SERVICE}_.*",
			env:   map[string]string{"SERVICE": "checkout"},
			want:  "pattern: svc_${SERVICE}_.*",
		},
		{
			name:  "regex anchors with $ preserved",
			input: "service_patterns: ['^payments-.*$']",
			env:   map[string]string{},
			want:  "service_patterns: ['^payments-.*$']",
		},
		{
			name:  "multiple substitutions in one line",
			input: "uri: {{.SCHEME}}://{{.HOST}}:{{.PORT}}",
			env: map[string]string{
				"SCHEME": "neo4j",
				"HOST":   "graph.internal",
				"PORT":   "7687",
			},
			want: "uri: neo4j://graph.internal:7687",
		},
		{
			name:  "missing variable expands to empty",
			input: "token: {{.MISSING_TOKEN}}",
			env:   map[string]string{},
			want:  "token: ",
		},
		{
			name:  "no substitution when no variables",
			input: "collection: incidents",
			env:   map[string]string{},
			want:  "collection: incidents",
		},
		{
			name:  "special characters in expanded value",
			input: "password: {{.DB_PASS}}",
			env:   map[string]string{"DB_PASS": "p@ss$word!123"},
			want:  "password: p@ss$word!123",
		},
		{
			name: "variables in nested YAML structure",
			input: `graph:
  uri: {{.GRAPH_URL}}
  password: {{.GRAPH_PASSWORD}}`,
			env: map[string]string{
				"GRAPH_URL":      "neo4j://localhost:7687",
				"GRAPH_PASSWORD": "pw",
			},
			want: `graph:
  uri: neo4j://localhost:7687
  password: pw`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got := ExpandEnv([]byte(tt.input))
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestExpandEnvMalformedTemplates(t *testing.T) {
	// Malformed template syntax passes through unchanged so the YAML
	// parser can produce the clearer error message.
	tests := []struct {
		name  string
		input string
	}{
		{name: "unclosed template", input: "token: {{.TOKEN"},
		{name: "missing dot", input: "token: {{TOKEN}}"},
		{name: "space in variable name", input: "token: {{.MY TOKEN}}"},
		{name: "undefined function", input: "token: {{env \"TOKEN\"}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpandEnv([]byte(tt.input))
			assert.Equal(t, tt.input, string(got))
		})
	}
}

func TestExpandEnvWithEmptyInput(t *testing.T) {
	assert.Empty(t, ExpandEnv([]byte{}))
}
