package indexer

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/DhavalSuthar-24/miow-context-master/internal/config"
	"github.com/DhavalSuthar-24/miow-context-master/internal/extract"
)

// Directories never walked, independent of configuration.
var skipDirs = map[string]bool{
	".git":        true,
	".miow":       true,
	"__pycache__": true,
}

// walker enumerates indexable source files under a root, honoring the
// codebase's .gitignore plus the configured excludes.
type walker struct {
	root      string
	excludes  []string
	maxSize   int64
	gitignore *ignore.GitIgnore
}

func newWalker(root string, cfg config.IndexConfig) *walker {
	w := &walker{
		root:     root,
		excludes: cfg.Excludes,
		maxSize:  int64(cfg.MaxFileSizeBytes),
	}
	if gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
		w.gitignore = gi
	}
	return w
}

// files returns the relative paths of all indexable files, sorted for
// deterministic processing order.
func (w *walker) files() ([]string, error) {
	var out []string

	err := filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip inaccessible entries, keep walking
		}
		rel, relErr := filepath.Rel(w.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if rel == "." {
				return nil
			}
			if skipDirs[info.Name()] || w.isExcluded(rel) {
				return filepath.SkipDir
			}
			if w.gitignore != nil && w.gitignore.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if _, ok := extract.LanguageFromExtension(filepath.Ext(path)); !ok {
			return nil
		}
		if w.maxSize > 0 && info.Size() > w.maxSize {
			return nil
		}
		if w.isExcluded(rel) {
			return nil
		}
		if w.gitignore != nil && w.gitignore.MatchesPath(rel) {
			return nil
		}

		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(out)
	return out, nil
}

// isExcluded checks config excludes as glob patterns and directory prefixes,
// matching on forward-slash paths.
func (w *walker) isExcluded(rel string) bool {
	for _, pattern := range w.excludes {
		p := filepath.ToSlash(pattern)
		if matched, _ := filepath.Match(p, rel); matched {
			return true
		}
		dir := strings.TrimSuffix(p, "/")
		if rel == dir || strings.HasPrefix(rel, dir+"/") {
			return true
		}
	}
	return false
}
