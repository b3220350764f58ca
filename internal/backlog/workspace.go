package backlog

import (
	"path/filepath"
	"strings"

	"github.com/calvinalkan/backlog-webview/internal/fs"
)

// WorkspaceInfo describes the active roots. The workspace root is the
// parent of the products root; topics and worksets live under it.
type WorkspaceInfo struct {
	ProductsRoot  string `json:"products_root"`
	WorkspaceRoot string `json:"workspace_root"`
}

// ResolveProductsRoot locates the products directory for a user-typed path.
// Accepted layouts, tried in order:
//
//	<path>/products
//	<path> itself, when its last segment is "products"
//	<path>/_kano/backlog/products
//
// The first existing directory wins. Fails with ErrWorkspaceNotFound when
// none exist, ErrMissingWorkspace when the input is blank.
func ResolveProductsRoot(fsys fs.FS, inputPath string) (string, error) {
	trimmed := strings.TrimSpace(inputPath)
	if trimmed == "" {
		return "", ErrMissingWorkspace
	}

	candidates := []string{
		filepath.Join(trimmed, "products"),
		trimmed,
		filepath.Join(trimmed, "_kano", "backlog", "products"),
	}

	for i, candidate := range candidates {
		if i == 1 && filepath.Base(candidate) != "products" {
			continue
		}

		ok, err := fsys.IsDir(candidate)
		if err == nil && ok {
			return canonicalize(candidate), nil
		}
	}

	return "", ErrWorkspaceNotFound
}

// canonicalize resolves the path to an absolute form with symlinks and
// relative segments cleaned up, best-effort. A resolution failure is
// non-fatal; the cleaned input path is used as-is.
func canonicalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return abs
	}

	return resolved
}

// WorkspaceInfo returns the active roots.
func (s *Service) WorkspaceInfo() WorkspaceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	return WorkspaceInfo{
		ProductsRoot:  s.productsRoot,
		WorkspaceRoot: filepath.Dir(s.productsRoot),
	}
}

// SwitchWorkspace resolves inputPath to a products root and atomically
// swaps the active root, dropping every cached product. Mtime watermarks
// are meaningless against a different root, so nothing survives the swap.
// The version bump makes any in-flight rebuild against the old root discard
// its result instead of committing it.
func (s *Service) SwitchWorkspace(inputPath string) (WorkspaceInfo, error) {
	resolved, err := ResolveProductsRoot(s.fsys, inputPath)
	if err != nil {
		return WorkspaceInfo{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.productsRoot = resolved
	s.version++
	s.caches = make(map[string]*productCache)

	return WorkspaceInfo{
		ProductsRoot:  s.productsRoot,
		WorkspaceRoot: filepath.Dir(s.productsRoot),
	}, nil
}
