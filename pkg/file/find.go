package file

import (
	"os"
	"path/filepath"
	"strings"
)

// FindSibling looks for a file in dir that shares the base name of ref and
// carries one of the given extensions. Used to pair an audio file with the
// subtitle file sitting next to it.
func FindSibling(dir, ref string, exts []string) (string, bool) {
	base := BaseName(filepath.Base(ref))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if BaseName(name) != base {
			continue
		}
		for _, ext := range exts {
			if strings.EqualFold(filepath.Ext(name), ext) {
				return filepath.Join(dir, name), true
			}
		}
	}
	return "", false
}
