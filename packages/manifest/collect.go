package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/abdul-hamid-achik/depspec/packages/core/config"
)

// Collect expands the given files and directories into manifest paths.
// Directories are walked recursively; project config files are never
// treated as manifests.
func Collect(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			err := filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if info.IsDir() && path != arg && strings.HasPrefix(info.Name(), ".") {
					return filepath.SkipDir
				}
				if !info.IsDir() && IsManifestFile(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else if IsManifestFile(arg) {
			files = append(files, arg)
		}
	}

	return files, nil
}

// IsManifestFile reports whether path looks like a manifest.
func IsManifestFile(path string) bool {
	if slices.Contains(config.ConfigFilenames, filepath.Base(path)) {
		return false
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
