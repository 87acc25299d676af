package env

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// LoadDotEnv parses a .env file and returns key-value pairs.
// Supports: KEY=value, KEY="quoted value", KEY='single quoted',
// export KEY=value and # comments. Nothing is exported to the process
// environment.
func LoadDotEnv(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open env file: %w", err)
	}
	defer file.Close()

	result := make(map[string]string)
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}

		result[key] = unquote(value)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading env file: %w", err)
	}

	return result, nil
}

func unquote(value string) string {
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			return value[1 : len(value)-1]
		}
	}
	return value
}

// Merge returns base ("KEY=value" entries, as from os.Environ) extended
// with vars. Variables already present in base win, so the calling shell can
// always override a .env file. Added entries are sorted by key.
func Merge(base []string, vars map[string]string) []string {
	present := make(map[string]bool, len(base))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		present[key] = true
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		if !present[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	merged := append([]string(nil), base...)
	for _, k := range keys {
		merged = append(merged, k+"="+vars[k])
	}
	return merged
}
