// Package backlog ingests a directory tree of markdown and JSON backlog
// files and derives read views over them: a flat indexed item list, a
// parent/child tree, and a kanban-lane grouping by state.
//
// Loaded products are cached per product and rebuilt wholesale when the
// newest file modification time moves past the cached watermark. Freshness
// is only ever checked on demand; there is no file watching and no write
// path to the source files.
package backlog

// Item types. Type is free-form in frontmatter; these are the values the
// views care about.
const (
	TypeEpic      = "Epic"
	TypeFeature   = "Feature"
	TypeUserStory = "UserStory"
	TypeTask      = "Task"
	TypeBug       = "Bug"
	TypeTheme     = "Theme"
	TypeADR       = "ADR"
	TypeTopic     = "Topic"
	TypeWorkset   = "Workset"
	TypeUnknown   = "Unknown"
)

// Source kinds tag where a record came from.
const (
	SourceItem     = "Item"
	SourceDecision = "Decision"
	SourceTopic    = "Topic"
	SourceWorkset  = "Workset"
)

// Defaults applied when a source file omits a field.
const (
	defaultTitle         = "(untitled)"
	defaultItemState     = "Proposed"
	defaultManifestState = "open"
)

// ItemRecord is one parsed unit of work or decision.
//
// A record is either Valid with a non-empty ID, or invalid with a non-empty
// ParseError. Invalid records are retained so their location shows up in
// warnings, but they never participate in id indexing or the derived views.
type ItemRecord struct {
	ID           string
	Type         string
	SourceKind   string
	Title        string
	State        string
	Parent       string
	Created      string // ISO-ish date string, compared lexicographically
	Updated      string // ISO-ish date string, compared lexicographically
	RelativePath string // relative to the owning root; stable tie-break
	RawContent   string // full file body, kept for detail views
	Valid        bool
	ParseError   string
}

// ItemView is the JSON shape served to callers. Content is only populated
// for single-item detail responses, DuplicateCount only when an id appears
// in more than one file.
type ItemView struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	SourceKind     string `json:"source_kind"`
	Title          string `json:"title"`
	State          string `json:"state"`
	Parent         string `json:"parent"`
	Created        string `json:"created"`
	Updated        string `json:"updated"`
	Path           string `json:"path"`
	Valid          bool   `json:"valid"`
	ParseError     string `json:"parse_error,omitempty"`
	DuplicateCount int    `json:"duplicate_count,omitempty"`
	Content        string `json:"content,omitempty"`
}

// view converts a record to its serving shape.
func (r *ItemRecord) view(includeContent bool) ItemView {
	v := ItemView{
		ID:         r.ID,
		Type:       r.Type,
		SourceKind: r.SourceKind,
		Title:      r.Title,
		State:      r.State,
		Parent:     r.Parent,
		Created:    r.Created,
		Updated:    r.Updated,
		Path:       r.RelativePath,
		Valid:      r.Valid,
		ParseError: r.ParseError,
	}

	if includeContent {
		v.Content = r.RawContent
	}

	return v
}

// hierarchyEligible reports whether a type participates in the tree view.
// ADRs, topics and worksets are flat by nature.
func hierarchyEligible(itemType string) bool {
	switch itemType {
	case TypeEpic, TypeFeature, TypeUserStory, TypeTask, TypeBug, TypeTheme:
		return true
	}

	return false
}
