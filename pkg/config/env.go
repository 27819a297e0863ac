package config

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/joho/godotenv"
)

// envVarPattern recognizes ${VAR}, ${VAR:-default}, and bare $VAR forms.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// ExpandEnvVars replaces ${VAR}, ${VAR:-default}, and $VAR references in
// raw with values from the process environment, applied to the raw YAML
// text before unmarshalling.
func ExpandEnvVars(raw string) string {
	return envVarPattern.ReplaceAllStringFunc(raw, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name := groups[1]
		def := groups[3]
		if name == "" {
			name = groups[4]
		}
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return def
	})
}

// LoadEnvFiles loads .env.local then .env from dir via godotenv, in
// that priority order. godotenv never overrides variables already
// present in the process environment.
func LoadEnvFiles(dir string) error {
	for _, name := range []string{".env.local", ".env"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return err
		}
	}
	return nil
}
