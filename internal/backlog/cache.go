package backlog

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/calvinalkan/backlog-webview/internal/fs"
)

// productCache holds everything derived from one product's files at scan
// time. A cache is built complete and then swapped in; it is never patched
// incrementally, so readers can use it without locking.
type productCache struct {
	allItems    []ItemRecord
	idIndexes   map[string][]int // id -> positions in allItems, discovery order
	primaryByID map[string]int   // id -> position of the chosen primary
	latestMtime time.Time        // staleness watermark
	warnings    []string
}

// buildProductCache scans a product and returns a fully populated cache.
// Discovery order is items, then decisions, then workspace topics, then
// workspace worksets. Per-record failures become warnings, never errors.
func buildProductCache(fsys fs.FS, productsRoot, product string) *productCache {
	pc := &productCache{
		idIndexes:   make(map[string][]int),
		primaryByID: make(map[string]int),
		latestMtime: scanLatestMtime(fsys, productsRoot, product),
	}

	productRoot := filepath.Join(productsRoot, product)
	backlogRoot := filepath.Dir(productsRoot)
	itemsRoot := filepath.Join(productRoot, "items")

	// A product without an items directory still caches, so the staleness
	// watermark holds and the caller sees the problem as a warning.
	if ok, err := fsys.IsDir(itemsRoot); err != nil || !ok {
		pc.warnings = append(pc.warnings, "Missing items directory")

		return pc
	}

	for _, path := range markdownFiles(fsys, itemsRoot) {
		pc.append(parseItem(fsys, path, productRoot), "Invalid item")
	}

	for _, path := range markdownFiles(fsys, filepath.Join(productRoot, "decisions")) {
		pc.append(parseDecision(fsys, path, productRoot), "Invalid decision")
	}

	for _, path := range manifestFiles(fsys, filepath.Join(backlogRoot, "topics")) {
		pc.append(parseTopicManifest(fsys, path, backlogRoot), "Invalid topic")
	}

	for _, path := range manifestFiles(fsys, filepath.Join(backlogRoot, "worksets")) {
		pc.append(parseWorksetManifest(fsys, path, backlogRoot), "Invalid workset")
	}

	pc.index()

	return pc
}

// append adds a record and, when invalid, a warning naming its location.
func (pc *productCache) append(item ItemRecord, category string) {
	if !item.Valid {
		pc.warnings = append(pc.warnings,
			fmt.Sprintf("%s: %s - %s", category, item.RelativePath, item.ParseError))
	}

	pc.allItems = append(pc.allItems, item)
}

// index builds the id index and chooses a primary per id. Duplicates across
// files are expected and tracked, not rejected. Invalid records never enter
// the index.
//
// The primary is the record with the greatest updated string; on an exact
// tie the lexicographically smaller relative path wins. The rule depends
// only on record contents, not on discovery order, so repeated scans of an
// unchanged tree always pick the same primary.
func (pc *productCache) index() {
	for i, item := range pc.allItems {
		if !item.Valid || item.ID == "" {
			continue
		}

		pc.idIndexes[item.ID] = append(pc.idIndexes[item.ID], i)
	}

	for id, indexes := range pc.idIndexes {
		primary := indexes[0]

		for _, index := range indexes[1:] {
			candidate := &pc.allItems[index]
			current := &pc.allItems[primary]

			if candidate.Updated > current.Updated {
				primary = index

				continue
			}

			if candidate.Updated == current.Updated && candidate.RelativePath < current.RelativePath {
				primary = index
			}
		}

		pc.primaryByID[id] = primary
	}
}

// primaries returns the positions of all primary records in discovery
// order. List, tree and kanban views are built only from these.
func (pc *productCache) primaries() []int {
	var out []int

	for i, item := range pc.allItems {
		if !item.Valid || item.ID == "" {
			continue
		}

		if pc.primaryByID[item.ID] == i {
			out = append(out, i)
		}
	}

	return out
}

// primaryViews renders the primary records in serving shape, annotating
// duplicate counts where an id appears more than once.
func (pc *productCache) primaryViews() []ItemView {
	indexes := pc.primaries()
	views := make([]ItemView, 0, len(indexes))

	for _, i := range indexes {
		item := &pc.allItems[i]

		v := item.view(false)
		if n := len(pc.idIndexes[item.ID]); n > 1 {
			v.DuplicateCount = n
		}

		views = append(views, v)
	}

	return views
}
