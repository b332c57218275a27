package secrets

import (
	"fmt"
	"os"
	"strings"
)

// Source describes where a secret value may come from.
type Source struct {
	// Name is used in error messages to give more context about the secret.
	Name string
	// Value is an inline secret value provided via configuration or flags.
	Value string
	// File points to a file containing the secret value.
	File string
	// Env names an environment variable holding the secret.
	Env string
}

// Load resolves the secret from the source. File wins over Value, and Value
// wins over Env. The returned secret is always trimmed.
func Load(src Source) (string, error) {
	secret, err := Lookup(src)
	if err != nil {
		return "", err
	}

	if secret == "" {
		return "", fmt.Errorf("%s is not configured", sourceName(src))
	}

	return secret, nil
}

// Lookup behaves like Load but treats a missing secret as empty rather than
// an error. An explicitly configured empty file is still an error.
func Lookup(src Source) (string, error) {
	name := sourceName(src)

	if file := strings.TrimSpace(src.File); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s from file %q: %w", name, file, err)
		}

		secret := strings.TrimSpace(string(data))
		if secret == "" {
			return "", fmt.Errorf("%s file %q is empty", name, file)
		}
		return secret, nil
	}

	if secret := strings.TrimSpace(src.Value); secret != "" {
		return secret, nil
	}

	if env := strings.TrimSpace(src.Env); env != "" {
		return strings.TrimSpace(os.Getenv(env)), nil
	}

	return "", nil
}

func sourceName(src Source) string {
	if name := strings.TrimSpace(src.Name); name != "" {
		return name
	}
	return "secret"
}
