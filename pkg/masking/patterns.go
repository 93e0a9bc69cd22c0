package masking

import (
	"fmt"
	"regexp"
)

// Pattern is one compiled regex rule. Key/value rules rewrite the whole
// match into a canonical key so downstream parsers keep working.
type Pattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

// sensitiveKeyPattern matches label keys that name a credential. Word
// boundaries do not cover snake_case, so segment edges are spelled out.
var sensitiveKeyPattern = regexp.MustCompile(
	`(?i)(?:^|[-_.])(?:api[-_]?key|apikey|password|passwd|pwd|token|secret|bearer|credentials?|private[-_]?key|access[-_]?key)(?:[-_.]|$)`)

// builtinPatterns is the regex rule catalogue, compiled once at load.
var builtinPatterns = compileBuiltins(map[string]patternDef{
	"api_key": {
		pattern:     `(?i)(?:api[_-]?key|apikey)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-]{16,})["']?`,
		replacement: `"api_key": "__MASKED_API_KEY__"`,
	},
	"password": {
		pattern:     `(?i)(?:password|passwd|pwd)["']?\s*[:=]\s*["']?([^"'\s\n]{6,})["']?`,
		replacement: `"password": "__MASKED_PASSWORD__"`,
	},
	"token": {
		pattern:     `(?i)(?:token|bearer|jwt)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-.]{20,})["']?`,
		replacement: `"token": "__MASKED_TOKEN__"`,
	},
	"private_key": {
		pattern:     `(?i)(?:private[_-]?key)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-.]{20,})["']?`,
		replacement: `"private_key": "__MASKED_PRIVATE_KEY__"`,
	},
	"secret_key": {
		pattern:     `(?i)(?:secret[_-]?key)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-.]{20,})["']?`,
		replacement: `"secret_key": "__MASKED_SECRET_KEY__"`,
	},
	"certificate": {
		pattern:     `(?s)-----BEGIN [A-Z ]+-----.*?-----END [A-Z ]+-----`,
		replacement: `__MASKED_CERTIFICATE__`,
	},
	"certificate_authority_data": {
		pattern:     `(?i)certificate-authority-data:\s*([A-Za-z0-9+/]{20,}={0,2})`,
		replacement: `certificate-authority-data: __MASKED_CA_DATA__`,
	},
	"ssh_key": {
		pattern:     `ssh-(?:rsa|dss|ed25519|ecdsa)\s+[A-Za-z0-9+/=]+`,
		replacement: `__MASKED_SSH_KEY__`,
	},
	"email": {
		pattern:     `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9]+(?:[.-][A-Za-z0-9]+)*\.[A-Za-z]{2,63}\b`,
		replacement: `__MASKED_EMAIL__`,
	},
	"aws_access_key": {
		pattern:     `\bAKIA[A-Z0-9]{16}\b`,
		replacement: `__MASKED_AWS_ACCESS_KEY__`,
	},
	"aws_secret_key": {
		pattern:     `(?i)(?:aws[_-]?secret[_-]?access[_-]?key)["']?\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`,
		replacement: `"aws_secret_access_key": "__MASKED_AWS_SECRET_KEY__"`,
	},
	"github_token": {
		pattern:     `\bgh[pousr]_[A-Za-z0-9_]{36,255}\b`,
		replacement: `__MASKED_GITHUB_TOKEN__`,
	},
	"slack_token": {
		pattern:     `\bxox[baprs]-[A-Za-z0-9-]{10,72}\b`,
		replacement: `__MASKED_SLACK_TOKEN__`,
	},
	// Aggressive: matches any long base64 run. Only the "all" group
	// carries it.
	"base64_secret": {
		pattern:     `\b([A-Za-z0-9+/]{24,}={0,2})\b`,
		replacement: `__MASKED_BASE64_VALUE__`,
	},
})

type patternDef struct {
	pattern     string
	replacement string
}

func compileBuiltins(defs map[string]patternDef) map[string]*Pattern {
	out := make(map[string]*Pattern, len(defs))
	for name, def := range defs {
		out[name] = &Pattern{
			Name:        name,
			Regex:       regexp.MustCompile(def.pattern),
			Replacement: def.replacement,
		}
	}
	return out
}

// structuralMaskers maps masker names referenced by groups to their
// constructors.
var structuralMaskers = map[string]func() Masker{
	"kubernetes_secret": func() Masker { return secretManifestMasker{} },
}

// patternGroups names curated rule bundles for the config file.
var patternGroups = map[string][]string{
	"basic":   {"api_key", "password"},
	"secrets": {"api_key", "password", "token", "private_key", "secret_key"},
	"security": {"api_key", "password", "token", "private_key", "secret_key",
		"certificate", "certificate_authority_data", "ssh_key", "email"},
	"kubernetes": {"kubernetes_secret", "api_key", "password", "certificate_authority_data"},
	"cloud":      {"aws_access_key", "aws_secret_key", "api_key", "token"},
	"all": {"kubernetes_secret", "api_key", "password", "token", "private_key",
		"secret_key", "certificate", "certificate_authority_data", "ssh_key",
		"email", "aws_access_key", "aws_secret_key", "github_token",
		"slack_token", "base64_secret"},
}

// resolve expands groups, named patterns, and custom patterns into the
// ordered rule set. Duplicates collapse on first mention; order is
// groups as declared, then named patterns, then custom patterns.
func resolve(cfg Config) ([]Masker, []*Pattern, error) {
	if !cfg.Enabled {
		return nil, nil, nil
	}

	var (
		maskers  []Masker
		patterns []*Pattern
		seen     = make(map[string]bool)
	)
	add := func(name string) error {
		if seen[name] {
			return nil
		}
		seen[name] = true
		if build, ok := structuralMaskers[name]; ok {
			maskers = append(maskers, build())
			return nil
		}
		p, ok := builtinPatterns[name]
		if !ok {
			return newResolveError("unknown masking pattern %q", name)
		}
		patterns = append(patterns, p)
		return nil
	}

	for _, group := range cfg.PatternGroups {
		names, ok := patternGroups[group]
		if !ok {
			return nil, nil, newResolveError("unknown pattern group %q", group)
		}
		for _, name := range names {
			if err := add(name); err != nil {
				return nil, nil, err
			}
		}
	}
	for _, name := range cfg.Patterns {
		if err := add(name); err != nil {
			return nil, nil, err
		}
	}
	for i, cp := range cfg.CustomPatterns {
		name := cp.Name
		if name == "" {
			name = fmt.Sprintf("%d", i)
		}
		name = "custom:" + name
		if seen[name] {
			return nil, nil, newResolveError("duplicate custom pattern %q", name)
		}
		seen[name] = true
		re, err := regexp.Compile(cp.Pattern)
		if err != nil {
			return nil, nil, newResolveError("custom pattern %q does not compile: %v", name, err)
		}
		patterns = append(patterns, &Pattern{Name: name, Regex: re, Replacement: cp.Replacement})
	}

	return maskers, patterns, nil
}
