package config

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

// ExpandEnv substitutes {{.VAR}} references in raw YAML with the value
// of the VAR environment variable. Template syntax is used instead of
// $VAR so literal dollars survive untouched; they are everywhere in
// this config's values:
//
//	service patterns   ^payments-.*$
//	PromQL             rate(http_requests_total{job="$job"}[5m])
//	credentials        p@ss$word
//
// Unknown variables expand to the empty string and are left for
// validation to reject. Content that does not parse as a template is
// returned unchanged, so plain YAML never fails here.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("strands.yaml").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	env := make(map[string]string, len(os.Environ()))
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			env[k] = v
		}
	}

	var out bytes.Buffer
	if err := tmpl.Execute(&out, env); err != nil {
		return data
	}
	return out.Bytes()
}
