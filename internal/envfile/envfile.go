// Package envfile reads per-instance .env files and resolves credentials
// and database names from them. The platform does not standardize variable
// names across service templates, so every credential role is looked up
// through an ordered list of accepted spellings.
package envfile

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

// Read parses an env file into a map. A missing file yields an empty map,
// not an error; instances without env files are common.
func Read(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}
	env, err := godotenv.Unmarshal(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse env file %s: %w", path, err)
	}
	return env, nil
}

// FirstPresent returns the value of the first key that is set and
// non-empty, in the given priority order.
func FirstPresent(env map[string]string, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := env[k]; ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// databaseNameDenylist holds variable-name prefixes that look like
// database-name declarations but are not (platform-internal service naming
// and phpMyAdmin settings).
var databaseNameDenylist = []string{"SERVICE_NAME_", "SERVICE_FQDN_", "PMA_"}

// DatabaseNames aggregates the list of databases to dump: the explicit
// values given by the caller (override list and the engine's default
// variable) unioned with every *_DATABASE / *_DB variable that is not
// denylisted. The result is deduplicated and sorted.
func DatabaseNames(env map[string]string, explicit ...string) []string {
	seen := map[string]bool{}
	var names []string
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
	}

	for _, name := range explicit {
		add(name)
	}
	for key, value := range env {
		if !strings.HasSuffix(key, "_DATABASE") && !strings.HasSuffix(key, "_DB") {
			continue
		}
		if denylisted(key) {
			continue
		}
		add(value)
	}

	sort.Strings(names)
	return names
}

func denylisted(key string) bool {
	for _, prefix := range databaseNameDenylist {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}
