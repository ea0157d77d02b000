package env

import "os"

// prefix matches the envconfig prefix used by pkg/config.
const prefix = "TABWIRE_"

// Get returns the value of the given environment variable or a fallback. A
// TABWIRE_-prefixed variant wins over the bare name so deployments can scope
// overrides to this process.
func Get(key, fallback string) string {
	if val := os.Getenv(prefix + key); val != "" {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
