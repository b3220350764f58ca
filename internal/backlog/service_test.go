package backlog_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/backlog-webview/internal/backlog"
	"github.com/calvinalkan/backlog-webview/internal/fs"
)

// workspace is a throwaway backlog tree: <root>/products/<product>/items
// plus workspace-wide topics/ and worksets/ beside products/.
type workspace struct {
	t    *testing.T
	root string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()

	return &workspace{t: t, root: t.TempDir()}
}

func (w *workspace) productsRoot() string {
	return filepath.Join(w.root, "products")
}

func (w *workspace) write(rel, content string) string {
	w.t.Helper()

	path := filepath.Join(w.root, filepath.FromSlash(rel))
	require.NoError(w.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(w.t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func (w *workspace) service() *backlog.Service {
	w.t.Helper()

	return backlog.NewService(fs.NewReal(), w.productsRoot())
}

// itemDoc renders a minimal item markdown file.
func itemDoc(id, itemType, state, parent, updated string) string {
	return "---\n" +
		"id: " + id + "\n" +
		"type: " + itemType + "\n" +
		"title: Title " + id + "\n" +
		"state: " + state + "\n" +
		"parent: " + orNull(parent) + "\n" +
		"created: 2024-01-01\n" +
		"updated: " + updated + "\n" +
		"---\n" +
		"Body of " + id + "\n"
}

func orNull(s string) string {
	if s == "" {
		return "null"
	}

	return s
}

func Test_ListProducts_ReturnsSortedDirsWithItems_When_RootMixed(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t)
	w.write("products/zeta/items/epic/E-1/epic.md", itemDoc("E-1", "Epic", "Proposed", "", "2024-01-01"))
	w.write("products/acme/items/task/T-1/task.md", itemDoc("T-1", "Task", "Proposed", "", "2024-01-01"))
	// No items directory: does not qualify.
	w.write("products/empty/decisions/ADR-1.md", "---\nid: ADR-1\n---\n")
	// Stray file at the products root: ignored.
	w.write("products/notes.md", "scratch\n")

	svc := w.service()

	require.Equal(t, []string{"acme", "zeta"}, svc.ListProducts())
}

func Test_ListProducts_ReturnsEmpty_When_RootMissing(t *testing.T) {
	t.Parallel()

	svc := backlog.NewService(fs.NewReal(), filepath.Join(t.TempDir(), "nope", "products"))

	require.Empty(t, svc.ListProducts())
}

func Test_ListItems_Fails_When_ProductInvalidOrMissing(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t)
	w.write("products/acme/items/task/T-1/task.md", itemDoc("T-1", "Task", "Proposed", "", "2024-01-01"))

	svc := w.service()

	_, err := svc.ListItems("../etc", false)
	require.ErrorIs(t, err, backlog.ErrInvalidProductName)

	_, err = svc.ListItems("ghost", false)
	require.ErrorIs(t, err, backlog.ErrProductNotFound)
}

func Test_ListItems_ChoosesPrimary_When_IDDuplicatedAcrossFiles(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t)
	w.write("products/acme/items/task/T-1/a.md", itemDoc("X", "Task", "Proposed", "", "2024-01-02"))
	w.write("products/acme/items/task/T-2/b.md", itemDoc("X", "Task", "Done", "", "2024-01-01"))

	result, err := w.service().ListItems("acme", false)
	require.NoError(t, err)

	require.Len(t, result.Items, 1)
	require.Equal(t, "X", result.Items[0].ID)
	require.Equal(t, "items/task/T-1/a.md", result.Items[0].Path, "newer updated wins")
	require.Equal(t, 2, result.Items[0].DuplicateCount)
}

func Test_ListItems_BreaksTieBySmallerPath_When_UpdatedEqual(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t)
	w.write("products/acme/items/task/T-2/b.md", itemDoc("X", "Task", "Proposed", "", "2024-01-01"))
	w.write("products/acme/items/task/T-1/a.md", itemDoc("X", "Task", "Proposed", "", "2024-01-01"))

	result, err := w.service().ListItems("acme", false)
	require.NoError(t, err)

	require.Len(t, result.Items, 1)
	require.Equal(t, "items/task/T-1/a.md", result.Items[0].Path)
}

func Test_ListItems_WarnsAndSkipsIndexing_When_RecordsInvalid(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t)
	w.write("products/acme/items/task/T-1/task.md", itemDoc("T-1", "Task", "Proposed", "", "2024-01-01"))
	w.write("products/acme/items/task/T-2/broken.md", "no frontmatter here\n")

	result, err := w.service().ListItems("acme", false)
	require.NoError(t, err)

	require.Len(t, result.Items, 1)
	require.Equal(t, "T-1", result.Items[0].ID)
	require.Len(t, result.Warnings, 1)
	require.Contains(t, result.Warnings[0], "Invalid item: items/task/T-2/broken.md - ")
	require.NotEmpty(t, result.CachedAt)
}

func Test_ListItems_WarnsMissingItemsDir_When_ProductDirExists(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t)
	w.write("products/acme/decisions/ADR-1.md", "---\nstatus: Accepted\ndate: 2024-01-01\n---\n")

	result, err := w.service().ListItems("acme", false)
	require.NoError(t, err)

	require.Empty(t, result.Items)
	require.Equal(t, []string{"Missing items directory"}, result.Warnings)
}

func Test_ListItems_SkipsUntrackedFiles_When_TreeHasNoise(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t)
	w.write("products/acme/items/task/T-1/task.md", itemDoc("T-1", "Task", "Proposed", "", "2024-01-01"))
	w.write("products/acme/items/README.md", "readme\n")
	w.write("products/acme/items/task/all.index.md", "generated\n")
	w.write("products/acme/items/_trash/task/T-9/task.md", itemDoc("T-9", "Task", "Proposed", "", "2024-01-01"))
	w.write("products/acme/items/task/T-1/notes.txt", "not markdown\n")

	result, err := w.service().ListItems("acme", false)
	require.NoError(t, err)

	require.Len(t, result.Items, 1)
	require.Equal(t, "T-1", result.Items[0].ID)
	require.Empty(t, result.Warnings)
}

func Test_ListItems_MergesAllSources_InDiscoveryOrder(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t)
	w.write("products/acme/items/epic/E-1/epic.md", itemDoc("E-1", "Epic", "Proposed", "", "2024-01-01"))
	w.write("products/acme/decisions/ADR-1.md", "---\nstatus: Accepted\ndate: 2024-01-02\n---\n")
	w.write("topics/payments/manifest.json", `{"topic": "payments", "status": "open"}`)
	w.write("worksets/sprint-1/manifest.json", `{"name": "sprint-1", "status": "active"}`)

	result, err := w.service().ListItems("acme", false)
	require.NoError(t, err)

	ids := make([]string, 0, len(result.Items))
	for _, item := range result.Items {
		ids = append(ids, item.ID)
	}

	require.Equal(t, []string{"E-1", "ADR-1", "TOPIC-payments", "WORKSET-sprint-1"}, ids)
}

func Test_ListItems_ServesCache_When_NothingChanged(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t)
	path := w.write("products/acme/items/task/T-1/task.md", itemDoc("T-1", "Task", "Proposed", "", "2024-01-01"))

	probe := fs.NewCounting(fs.NewReal())
	svc := backlog.NewService(probe, w.productsRoot())

	_, err := svc.ListItems("acme", false)
	require.NoError(t, err)

	readsAfterLoad := probe.FileReads()
	require.Positive(t, readsAfterLoad)

	// Fresh cache: the staleness scan stats files but reads none.
	_, err = svc.ListItems("acme", false)
	require.NoError(t, err)
	require.Equal(t, readsAfterLoad, probe.FileReads())

	// Touching a tracked file moves the watermark and forces a rebuild.
	require.NoError(t, os.Chtimes(path, time.Now().Add(2*time.Second), time.Now().Add(2*time.Second)))

	result, err := svc.ListItems("acme", false)
	require.NoError(t, err)
	require.Greater(t, probe.FileReads(), readsAfterLoad)
	require.Len(t, result.Items, 1)
}

func Test_ListItems_Rebuilds_When_ForceRefreshRequested(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t)
	w.write("products/acme/items/task/T-1/task.md", itemDoc("T-1", "Task", "Proposed", "", "2024-01-01"))

	probe := fs.NewCounting(fs.NewReal())
	svc := backlog.NewService(probe, w.productsRoot())

	_, err := svc.ListItems("acme", false)
	require.NoError(t, err)

	readsAfterLoad := probe.FileReads()

	_, err = svc.ListItems("acme", true)
	require.NoError(t, err)
	require.Greater(t, probe.FileReads(), readsAfterLoad)
}

func Test_Refresh_DropsCaches_When_CalledWithProductOrAll(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t)
	w.write("products/acme/items/task/T-1/task.md", itemDoc("T-1", "Task", "Proposed", "", "2024-01-01"))

	probe := fs.NewCounting(fs.NewReal())
	svc := backlog.NewService(probe, w.productsRoot())

	_, err := svc.ListItems("acme", false)
	require.NoError(t, err)

	result, err := svc.Refresh("acme")
	require.NoError(t, err)
	require.Equal(t, "acme", result.Refreshed)

	readsBefore := probe.FileReads()

	_, err = svc.ListItems("acme", false)
	require.NoError(t, err)
	require.Greater(t, probe.FileReads(), readsBefore, "dropped cache must rebuild")

	result, err = svc.Refresh("")
	require.NoError(t, err)
	require.Equal(t, "all", result.Refreshed)

	_, err = svc.Refresh("not/a/name")
	require.ErrorIs(t, err, backlog.ErrInvalidProductName)
}

func Test_GetItem_ReturnsContentAndDuplicates_When_IDShared(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t)
	w.write("products/acme/items/task/T-1/a.md", itemDoc("X", "Task", "Proposed", "", "2024-01-02"))
	w.write("products/acme/items/task/T-2/b.md", itemDoc("X", "Task", "Done", "", "2024-01-01"))

	svc := w.service()

	result, err := svc.GetItem("acme", "X", false)
	require.NoError(t, err)

	require.Equal(t, "items/task/T-1/a.md", result.Item.Path)
	require.Contains(t, result.Item.Content, "Body of X")
	require.Len(t, result.Duplicates, 2)
	require.Empty(t, result.Duplicates[0].Content, "duplicates are listed without content")

	_, err = svc.GetItem("acme", "nope", false)
	require.ErrorIs(t, err, backlog.ErrItemNotFound)
}

func Test_BuildTree_AssemblesForest_When_LoadedFromFiles(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t)
	w.write("products/acme/items/epic/E-1/epic.md", itemDoc("E-1", "Epic", "Proposed", "", "2024-01-01"))
	w.write("products/acme/items/story/S-1/story.md", itemDoc("S-1", "UserStory", "Proposed", "E-1", "2024-01-01"))
	w.write("products/acme/items/task/T-1/task.md", itemDoc("T-1", "Task", "Proposed", "GHOST", "2024-01-01"))
	w.write("products/acme/decisions/ADR-1.md", "---\nstatus: Accepted\ndate: 2024-01-01\n---\n")

	result, err := w.service().BuildTree("acme", false)
	require.NoError(t, err)

	require.Len(t, result.Roots, 2, "epic plus promoted orphan; ADR excluded")
	require.Equal(t, "E-1", result.Roots[0].ID)
	require.Len(t, result.Roots[0].Children, 1)
	require.Equal(t, "S-1", result.Roots[0].Children[0].ID)
	require.Equal(t, "T-1", result.Roots[1].ID)
	require.Contains(t, result.Warnings, "Orphan parent missing for item T-1: GHOST")
}

func Test_BuildKanban_GroupsByState_When_LoadedFromFiles(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t)
	w.write("products/acme/items/task/T-1/task.md", itemDoc("T-1", "Task", "InProgress", "", "2024-01-01"))
	w.write("products/acme/items/task/T-2/task.md", itemDoc("T-2", "Task", "done", "", "2024-01-01"))
	w.write("products/acme/items/task/T-3/task.md", itemDoc("T-3", "Task", "Weird", "", "2024-01-01"))

	result, err := w.service().BuildKanban("acme", false)
	require.NoError(t, err)

	require.Len(t, result.Lanes.Doing, 1)
	require.Len(t, result.Lanes.Done, 1)
	require.Len(t, result.Lanes.Backlog, 1)
	require.Empty(t, result.Lanes.Blocked)
	require.Empty(t, result.Lanes.Review)
}
