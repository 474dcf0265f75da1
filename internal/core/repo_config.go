package core

// RepoConfig represents the structure of the .devflow.yml file that controls
// which files of a repository are indexed into the snippet store.
type RepoConfig struct {
	// High-performance exclusion of entire directories by name.
	// Example: ["dist", "build", "docs"]
	ExcludeDirs []string `yaml:"exclude_dirs"`

	// Exclusion of files based on their extension.
	// The leading dot is optional. Example: [".md", "lock", ".log"]
	ExcludeExts []string `yaml:"exclude_exts"`
}

// DefaultRepoConfig returns a config with default values.
func DefaultRepoConfig() *RepoConfig {
	return &RepoConfig{
		ExcludeDirs: []string{"vendor", "node_modules", "venv", ".venv", "migrations"},
		ExcludeExts: []string{},
	}
}
