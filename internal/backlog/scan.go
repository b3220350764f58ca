package backlog

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/calvinalkan/backlog-webview/internal/fs"
)

const (
	markdownExt      = ".md"
	manifestFileName = "manifest.json"
	trashDirName     = "_trash"
)

// isMarkdownFile reports whether path has the tracked markdown extension.
func isMarkdownFile(path string) bool {
	return filepath.Ext(path) == markdownExt
}

// shouldSkipPath filters out files the scan never tracks: README.md,
// generated *.index.md files, and anything under a _trash directory.
func shouldSkipPath(path string) bool {
	name := filepath.Base(path)
	if name == "README.md" || strings.HasSuffix(name, ".index.md") {
		return true
	}

	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == trashDirName {
			return true
		}
	}

	return false
}

// walkFiles calls fn for every regular file under root, depth-first in
// ReadDir's name order. Discovery order is therefore deterministic for a
// given tree. Unreadable subdirectories are skipped; per-file problems are
// the record builders' concern.
func walkFiles(fsys fs.FS, root string, fn func(path string)) {
	entries, err := fsys.ReadDir(root)
	if err != nil {
		return
	}

	for _, entry := range entries {
		path := filepath.Join(root, entry.Name())
		if entry.IsDir() {
			walkFiles(fsys, path, fn)

			continue
		}

		fn(path)
	}
}

// markdownFiles returns the tracked markdown files under root in discovery
// order.
func markdownFiles(fsys fs.FS, root string) []string {
	var files []string

	walkFiles(fsys, root, func(path string) {
		if isMarkdownFile(path) && !shouldSkipPath(path) {
			files = append(files, path)
		}
	})

	return files
}

// manifestFiles returns the manifest.json path of every immediate
// subdirectory of root that has one, in name order. Topics and worksets are
// one level deep by layout.
func manifestFiles(fsys fs.FS, root string) []string {
	entries, err := fsys.ReadDir(root)
	if err != nil {
		return nil
	}

	var files []string

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		manifestPath := filepath.Join(root, entry.Name(), manifestFileName)

		ok, err := fsys.Exists(manifestPath)
		if err != nil || !ok {
			continue
		}

		files = append(files, manifestPath)
	}

	return files
}

// trackedRoots lists the four directory roots a product's cache depends on.
// Items and decisions are per-product; topics and worksets live beside the
// products directory and are shared workspace-wide.
func trackedRoots(productsRoot, product string) []string {
	productRoot := filepath.Join(productsRoot, product)
	backlogRoot := filepath.Dir(productsRoot)

	return []string{
		filepath.Join(productRoot, "items"),
		filepath.Join(productRoot, "decisions"),
		filepath.Join(backlogRoot, "topics"),
		filepath.Join(backlogRoot, "worksets"),
	}
}

// scanLatestMtime returns the newest modification time across every tracked
// file of a product. Walks the same file set as a full load so no edit can
// escape the staleness check.
func scanLatestMtime(fsys fs.FS, productsRoot, product string) time.Time {
	var latest time.Time

	for _, root := range trackedRoots(productsRoot, product) {
		walkFiles(fsys, root, func(path string) {
			tracked := isMarkdownFile(path) || filepath.Base(path) == manifestFileName
			if !tracked || shouldSkipPath(path) {
				return
			}

			info, err := fsys.Stat(path)
			if err != nil {
				return
			}

			if mtime := info.ModTime(); mtime.After(latest) {
				latest = mtime
			}
		})
	}

	return latest
}
