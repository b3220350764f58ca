package backlog

import (
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/calvinalkan/backlog-webview/internal/fs"
)

// Product names are path segments; anything outside this set is rejected
// before it can reach the filesystem.
var productNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Service owns the per-product caches and answers every query the HTTP
// layer exposes. It is safe for concurrent use.
//
// Staleness is checked lazily on read: a request either hits a fresh cache
// or waits for a complete rebuild. Rebuilds produce a whole new cache value
// that replaces the old one atomically, so readers never observe a
// half-populated product.
type Service struct {
	fsys fs.FS

	mu           sync.Mutex
	productsRoot string
	version      uint64 // bumped on workspace switch; stale rebuilds discard
	caches       map[string]*productCache
}

// NewService creates a service rooted at productsRoot. The root does not
// need to exist yet; ListProducts is empty until it does.
func NewService(fsys fs.FS, productsRoot string) *Service {
	return &Service{
		fsys:         fsys,
		productsRoot: productsRoot,
		caches:       make(map[string]*productCache),
	}
}

// ListItemsResult is the flat indexed list view.
type ListItemsResult struct {
	Items    []ItemView `json:"items"`
	Warnings []string   `json:"warnings"`
	CachedAt string     `json:"cached_at"`
}

// GetItemResult is the detail view for one id.
type GetItemResult struct {
	Item       ItemView   `json:"item"`
	Duplicates []ItemView `json:"duplicates"`
}

// RefreshResult names what was dropped.
type RefreshResult struct {
	Refreshed string `json:"refreshed"`
}

// ListProducts returns the product names under the active root,
// alphabetically. Only directories containing an items subdirectory
// qualify. A missing products root is not an error; the list is empty.
func (s *Service) ListProducts() []string {
	s.mu.Lock()
	root := s.productsRoot
	s.mu.Unlock()

	entries, err := s.fsys.ReadDir(root)
	if err != nil {
		return []string{}
	}

	products := []string{}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		ok, err := s.fsys.IsDir(filepath.Join(root, entry.Name(), "items"))
		if err != nil || !ok {
			continue
		}

		products = append(products, entry.Name())
	}

	sort.Strings(products)

	return products
}

// ListItems returns one entry per distinct id among the product's valid
// records, each annotated with its duplicate count when an id appears in
// more than one file.
func (s *Service) ListItems(product string, forceRefresh bool) (ListItemsResult, error) {
	pc, err := s.ensureLoaded(product, forceRefresh)
	if err != nil {
		return ListItemsResult{}, err
	}

	return ListItemsResult{
		Items:    pc.primaryViews(),
		Warnings: copyWarnings(pc.warnings),
		CachedAt: isoString(pc.latestMtime),
	}, nil
}

// GetItem returns the primary record for id, including its full content,
// plus every record sharing that id.
func (s *Service) GetItem(product, id string, forceRefresh bool) (GetItemResult, error) {
	pc, err := s.ensureLoaded(product, forceRefresh)
	if err != nil {
		return GetItemResult{}, err
	}

	primary, ok := pc.primaryByID[id]
	if !ok {
		return GetItemResult{}, ErrItemNotFound
	}

	result := GetItemResult{
		Item:       pc.allItems[primary].view(true),
		Duplicates: []ItemView{},
	}

	for _, index := range pc.idIndexes[id] {
		result.Duplicates = append(result.Duplicates, pc.allItems[index].view(false))
	}

	return result, nil
}

// BuildTree returns the hierarchy view. Tree-structural warnings come
// first, followed by the product's load warnings.
func (s *Service) BuildTree(product string, forceRefresh bool) (TreeResult, error) {
	pc, err := s.ensureLoaded(product, forceRefresh)
	if err != nil {
		return TreeResult{}, err
	}

	result := buildTree(pc.primaryViews())
	result.Warnings = append(result.Warnings, pc.warnings...)

	return result, nil
}

// BuildKanban returns the kanban view over all primary items.
func (s *Service) BuildKanban(product string, forceRefresh bool) (KanbanResult, error) {
	pc, err := s.ensureLoaded(product, forceRefresh)
	if err != nil {
		return KanbanResult{}, err
	}

	result := buildKanban(pc.primaryViews())
	result.Warnings = append(result.Warnings, pc.warnings...)

	return result, nil
}

// Refresh drops the named product's cache, forcing a rebuild on next
// access. An empty product drops every cached product.
func (s *Service) Refresh(product string) (RefreshResult, error) {
	if product == "" {
		s.mu.Lock()
		s.caches = make(map[string]*productCache)
		s.mu.Unlock()

		return RefreshResult{Refreshed: "all"}, nil
	}

	if !productNamePattern.MatchString(product) {
		return RefreshResult{}, ErrInvalidProductName
	}

	s.mu.Lock()
	delete(s.caches, product)
	s.mu.Unlock()

	return RefreshResult{Refreshed: product}, nil
}

// ensureLoaded returns a fresh cache for product, rebuilding when forced,
// missing, or stale. The rebuild happens outside the lock; the result
// commits only when no workspace switch happened in the meantime, otherwise
// the scan restarts against the new root.
func (s *Service) ensureLoaded(product string, forceRefresh bool) (*productCache, error) {
	if !productNamePattern.MatchString(product) {
		return nil, ErrInvalidProductName
	}

	for {
		s.mu.Lock()
		root := s.productsRoot
		version := s.version
		cached := s.caches[product]
		s.mu.Unlock()

		if cached != nil && !forceRefresh {
			latest := scanLatestMtime(s.fsys, root, product)
			if !latest.After(cached.latestMtime) {
				return cached, nil
			}
		}

		ok, err := s.fsys.IsDir(filepath.Join(root, product))
		if err != nil || !ok {
			return nil, ErrProductNotFound
		}

		pc := buildProductCache(s.fsys, root, product)

		s.mu.Lock()
		if s.version == version {
			s.caches[product] = pc
			s.mu.Unlock()

			return pc, nil
		}
		s.mu.Unlock()

		// Workspace switched while scanning; the result is for the wrong
		// root. Discard and start over.
		forceRefresh = false
	}
}

// isoString renders the staleness watermark for responses. The zero time
// means no tracked file was ever observed and renders empty.
func isoString(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// copyWarnings returns a non-nil copy so callers can serialize and append
// without aliasing cache state.
func copyWarnings(warnings []string) []string {
	out := make([]string, len(warnings))
	copy(out, warnings)

	return out
}
