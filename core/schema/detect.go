package schema

import (
	"path"
	"strings"
)

// Default schema file names.
const (
	DefaultSchema = "tei-all.rng"
	NovelProfile  = "tei-novel"
)

// DefaultProfiles maps declared document profiles to schema files.
var DefaultProfiles = map[string]string{
	NovelProfile: "tei-novel.rng",
}

// DetectPath maps a document's declared profile to a schema path under
// baseDir. Unknown or empty profiles resolve to def (DefaultSchema when
// empty). A profile that already names a grammar file is used directly.
func DetectPath(profile, baseDir string, profiles map[string]string, def string) string {
	if def == "" {
		def = DefaultSchema
	}
	if profiles == nil {
		profiles = DefaultProfiles
	}

	profile = strings.TrimSpace(profile)
	file := def
	switch {
	case profile == "":
	case profiles[profile] != "":
		file = profiles[profile]
	case isGrammarFile(profile):
		file = profile
	}
	if baseDir == "" {
		return file
	}
	return path.Join(baseDir, file)
}

func isGrammarFile(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".rng", ".rnc":
		return true
	}
	return false
}
