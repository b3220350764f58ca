package backlog

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"

	"github.com/calvinalkan/backlog-webview/internal/frontmatter"
	"github.com/calvinalkan/backlog-webview/internal/fs"
)

// manifest is the JSON shape of topic and workset manifest.json files.
// Manifests are hand-edited, so parsing goes through hujson to tolerate
// comments and trailing commas.
type manifest struct {
	Topic     string `json:"topic"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// parseItem builds a record from a markdown file under a product's items
// tree. The record is invalid when the file is unreadable, frontmatter is
// malformed, id is missing, or id is a null spelling.
func parseItem(fsys fs.FS, itemPath, productRoot string) ItemRecord {
	item := ItemRecord{
		SourceKind:   SourceItem,
		RelativePath: relativePath(productRoot, itemPath),
	}

	content, err := fsys.ReadFile(itemPath)
	if err != nil {
		item.ParseError = "failed to read file"

		return item
	}

	item.RawContent = string(content)

	fm, err := frontmatter.Parse(item.RawContent)
	if err != nil {
		item.ParseError = err.Error()

		return item
	}

	item.ID = fm["id"]
	item.Type = typeFromPath(itemPath, fm["type"])
	item.Title = fm["title"]
	item.State = fm["state"]
	item.Parent = fm["parent"]
	item.Created = fm["created"]
	item.Updated = fm["updated"]

	if item.ID == "" {
		item.ParseError = "missing id"

		return item
	}

	if strings.ToLower(item.ID) == "null" {
		item.ParseError = "invalid id"

		return item
	}

	if item.Title == "" {
		item.Title = defaultTitle
	}

	if item.State == "" {
		item.State = defaultItemState
	}

	item.Valid = true

	return item
}

// parseDecision builds an ADR record from a markdown file under a product's
// decisions tree. Unlike items, decisions fall back to the file's base name
// for id and title, and track their state under the status key.
func parseDecision(fsys fs.FS, decisionPath, productRoot string) ItemRecord {
	item := ItemRecord{
		SourceKind:   SourceDecision,
		Type:         TypeADR,
		RelativePath: relativePath(productRoot, decisionPath),
	}

	content, err := fsys.ReadFile(decisionPath)
	if err != nil {
		item.ParseError = "failed to read file"

		return item
	}

	item.RawContent = string(content)

	fm, err := frontmatter.Parse(item.RawContent)
	if err != nil {
		item.ParseError = err.Error()

		return item
	}

	base := baseName(decisionPath)

	item.ID = fm["id"]
	if item.ID == "" {
		item.ID = base
	}

	item.Title = fm["title"]
	if item.Title == "" {
		item.Title = base
	}

	item.State = fm["status"]
	if item.State == "" {
		item.State = defaultItemState
	}

	item.Created = fm["date"]
	item.Updated = fm["date"]
	item.Valid = true

	return item
}

// parseTopicManifest builds a record from a topic directory's manifest.json.
// The topic's brief.md is preferred as content when readable; the manifest
// text is the fallback.
func parseTopicManifest(fsys fs.FS, manifestPath, backlogRoot string) ItemRecord {
	item := ItemRecord{
		SourceKind:   SourceTopic,
		Type:         TypeTopic,
		RelativePath: relativePath(backlogRoot, manifestPath),
	}

	m, raw, err := readManifest(fsys, manifestPath)
	if err != nil {
		item.ParseError = err.Error()

		return item
	}

	slug := m.Topic
	if slug == "" {
		slug = filepath.Base(filepath.Dir(manifestPath))
	}

	item.ID = "TOPIC-" + slug
	item.Title = slug
	item.State = m.Status

	if item.State == "" {
		item.State = defaultManifestState
	}

	item.Created = m.CreatedAt
	item.Updated = m.UpdatedAt

	item.RawContent = string(raw)

	briefPath := filepath.Join(filepath.Dir(manifestPath), "brief.md")
	if brief, briefErr := fsys.ReadFile(briefPath); briefErr == nil {
		item.RawContent = string(brief)
	}

	item.Valid = true

	return item
}

// parseWorksetManifest builds a record from a workset directory's
// manifest.json. Worksets are keyed by the manifest's name field and have
// no companion body file.
func parseWorksetManifest(fsys fs.FS, manifestPath, backlogRoot string) ItemRecord {
	item := ItemRecord{
		SourceKind:   SourceWorkset,
		Type:         TypeWorkset,
		RelativePath: relativePath(backlogRoot, manifestPath),
	}

	m, raw, err := readManifest(fsys, manifestPath)
	if err != nil {
		item.ParseError = err.Error()

		return item
	}

	name := m.Name
	if name == "" {
		name = filepath.Base(filepath.Dir(manifestPath))
	}

	item.ID = "WORKSET-" + name
	item.Title = name
	item.State = m.Status

	if item.State == "" {
		item.State = defaultManifestState
	}

	item.Created = m.CreatedAt
	item.Updated = m.UpdatedAt
	item.RawContent = string(raw)
	item.Valid = true

	return item
}

// readManifest reads and decodes a manifest.json, returning both the decoded
// manifest and the raw file text.
func readManifest(fsys fs.FS, manifestPath string) (manifest, []byte, error) {
	raw, err := fsys.ReadFile(manifestPath)
	if err != nil {
		return manifest{}, nil, fmt.Errorf("failed to read file: %w", err)
	}

	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return manifest{}, raw, fmt.Errorf("malformed manifest: %w", err)
	}

	var m manifest

	err = json.Unmarshal(standardized, &m)
	if err != nil {
		return manifest{}, raw, fmt.Errorf("malformed manifest: %w", err)
	}

	return m, raw, nil
}

// typeFromPath returns the declared type when present, otherwise infers the
// type from the grandparent directory of the item file. Items live in
// <type>/<group>/<file>.md layouts, so the grandparent names the type.
func typeFromPath(itemPath, declaredType string) string {
	if declaredType != "" {
		return declaredType
	}

	grandparent := filepath.Base(filepath.Dir(filepath.Dir(itemPath)))

	switch grandparent {
	case "story", "userstory":
		return TypeUserStory
	case "epic":
		return TypeEpic
	case "feature":
		return TypeFeature
	case "task":
		return TypeTask
	case "bug":
		return TypeBug
	}

	return TypeUnknown
}

// relativePath renders path relative to root with forward slashes, falling
// back to the input path when it is not under root.
func relativePath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}

	return filepath.ToSlash(rel)
}

// baseName returns the file name without its extension.
func baseName(path string) string {
	base := filepath.Base(path)

	return strings.TrimSuffix(base, filepath.Ext(base))
}
