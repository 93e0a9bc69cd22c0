package masking

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaskedSecretValue replaces Kubernetes Secret data values.
const MaskedSecretValue = "[MASKED_SECRET_DATA]"

// The YAML form allows indentation so Secrets nested in List items
// still trigger the masker.
var (
	yamlKindSecret = regexp.MustCompile(`(?m)^\s*(?:- )?kind:\s*Secret(List)?\s*$`)
	jsonKindSecret = regexp.MustCompile(`"kind"\s*:\s*"Secret(List)?"`)
)

// secretManifestMasker blanks the data and stringData values of
// Kubernetes Secret manifests embedded in alert text, in YAML or JSON,
// including Secrets inside list items and the last-applied-configuration
// annotation. ConfigMaps and every other kind pass through untouched.
type secretManifestMasker struct{}

func (secretManifestMasker) Name() string { return "kubernetes_secret" }

func (secretManifestMasker) AppliesTo(data string) bool {
	if !strings.Contains(data, "Secret") {
		return false
	}
	return yamlKindSecret.MatchString(data) || jsonKindSecret.MatchString(data)
}

// Mask detects JSON against YAML by the first byte so the YAML parser
// never consumes a JSON document and re-serialises it as YAML.
func (m secretManifestMasker) Mask(data string) string {
	trimmed := strings.TrimSpace(data)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if masked, ok := m.maskJSON(data); ok {
			return masked
		}
	}
	if masked, ok := m.maskYAML(data); ok {
		return masked
	}
	return data
}

func (secretManifestMasker) maskJSON(data string) (string, bool) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return "", false
	}
	if !scrubResource(doc) {
		return "", false
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", false
	}
	return matchTrailingNewline(string(out), data), true
}

// maskYAML handles multi-document input; the document separators are
// re-emitted by the encoder.
func (secretManifestMasker) maskYAML(data string) (string, bool) {
	dec := yaml.NewDecoder(strings.NewReader(data))
	var docs []map[string]any
	scrubbed := false
	for {
		var doc map[string]any
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", false
		}
		if doc == nil {
			continue
		}
		if scrubResource(doc) {
			scrubbed = true
		}
		docs = append(docs, doc)
	}
	if !scrubbed || len(docs) == 0 {
		return "", false
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	for _, doc := range docs {
		if err := enc.Encode(doc); err != nil {
			return "", false
		}
	}
	if err := enc.Close(); err != nil {
		return "", false
	}
	return matchTrailingNewline(buf.String(), data), true
}

// scrubResource masks one manifest in place, recursing into list items.
// It reports whether anything was a Secret.
func scrubResource(doc map[string]any) bool {
	kind, _ := doc["kind"].(string)
	switch {
	case kind == "Secret":
		scrubSecretData(doc)
		scrubAnnotations(doc)
		return true
	case kind == "SecretList":
		// SecretList items carry no per-item kind; every item is a Secret.
		items, _ := doc["items"].([]any)
		for _, item := range items {
			if m, ok := item.(map[string]any); ok {
				scrubSecretData(m)
				scrubAnnotations(m)
			}
		}
		return true
	case strings.HasSuffix(kind, "List"):
		items, _ := doc["items"].([]any)
		scrubbed := false
		for _, item := range items {
			if m, ok := item.(map[string]any); ok && scrubResource(m) {
				scrubbed = true
			}
		}
		return scrubbed
	default:
		return false
	}
}

func scrubSecretData(secret map[string]any) {
	for _, field := range []string{"data", "stringData"} {
		values, ok := secret[field].(map[string]any)
		if !ok {
			continue
		}
		for key := range values {
			values[key] = MaskedSecretValue
		}
	}
}

// scrubAnnotations handles the kubectl last-applied-configuration
// annotation, which embeds a full JSON copy of the Secret.
func scrubAnnotations(secret map[string]any) {
	metadata, _ := secret["metadata"].(map[string]any)
	annotations, _ := metadata["annotations"].(map[string]any)
	for key, val := range annotations {
		text, ok := val.(string)
		if !ok || !strings.Contains(text, "Secret") {
			continue
		}
		var embedded map[string]any
		if err := json.Unmarshal([]byte(text), &embedded); err != nil {
			continue
		}
		if !scrubResource(embedded) {
			continue
		}
		if masked, err := json.Marshal(embedded); err == nil {
			annotations[key] = string(masked)
		}
	}
}

// matchTrailingNewline mirrors the original's trailing newline onto the
// masked output.
func matchTrailingNewline(masked, original string) string {
	if !strings.HasSuffix(original, "\n") {
		return strings.TrimRight(masked, "\n")
	}
	if !strings.HasSuffix(masked, "\n") {
		masked += "\n"
	}
	return masked
}

var _ Masker = secretManifestMasker{}
