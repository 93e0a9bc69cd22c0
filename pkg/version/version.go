// Package version reports which build of strands is running. The commit
// comes from -ldflags when set (container builds strip .git), otherwise
// from the VCS stamp Go embeds, with "dev" as the last resort.
package version

import "runtime/debug"

// AppName prefixes version strings in logs and handshakes.
const AppName = "strands"

// commit is injected with -ldflags "-X .../pkg/version.commit=<sha>".
var commit string

// GitCommit is the short commit hash for this build, "dev" when unknown.
// Locally modified trees get a "-dirty" suffix.
var GitCommit = resolve()

// Full returns "strands/<commit>", the form the logs and the health
// payload use.
func Full() string { return AppName + "/" + GitCommit }

func resolve() string {
	if commit != "" {
		return shorten(commit)
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}
	rev, dirty := "", false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if rev == "" {
		return "dev"
	}
	if dirty {
		return shorten(rev) + "-dirty"
	}
	return shorten(rev)
}

func shorten(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}
