package signature

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Directories never included in the fingerprint walk.
var skipDirs = map[string]bool{
	".git":         true,
	".miow":        true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"out":          true,
	".next":        true,
	"target":       true,
	"coverage":     true,
	"__pycache__":  true,
}

// sourceExtensions are the files that participate in the codebase fingerprint.
var sourceExtensions = map[string]bool{
	".ts": true, ".tsx": true, ".js": true, ".jsx": true,
	".py": true, ".rs": true, ".go": true, ".css": true, ".json": true,
	".toml": true, ".yaml": true, ".yml": true, ".lock": true,
}

// Fingerprint derives a content fingerprint for the codebase from the file
// list plus per-file content hashes. Timestamps are deliberately excluded so
// clock skew and rapid edits cannot produce stale or flapping fingerprints.
func Fingerprint(root string) (string, error) {
	var lines []string

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip inaccessible entries, keep walking
		}
		if info.IsDir() {
			if skipDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !sourceExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		hash, hashErr := HashFile(path)
		if hashErr != nil {
			return nil // unreadable file drops out of the fingerprint
		}
		lines = append(lines, filepath.ToSlash(rel)+":"+hash)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("fingerprint walk: %w", err)
	}

	sort.Strings(lines)
	h := sha256.New()
	for _, line := range lines {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// HashFile computes the SHA-256 of a file's content.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
