package book_test

import (
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booklog/internal/book"
	"booklog/pkg/database"
	"booklog/pkg/models"
)

const owner = "owner"

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func TestUpsertAndGet_Roundtrip(t *testing.T) {
	db := testDB(t)
	pageCount := 96
	in := models.Entry{
		ID:          "9780140328721",
		Kind:        models.KindBook,
		Title:       "Fantastic Mr Fox",
		Authors:     []string{"Roald Dahl"},
		Publishers:  []string{"Puffin"},
		PublishDate: "1988",
		PageCount:   &pageCount,
		Description: "A story.",
		CoverURL:    "https://example.com/c.jpg",
		Subjects:    []string{"Juvenile Fiction"},
		Status:      models.StatusNone,
	}

	_, err := book.Upsert(db, owner, in)
	require.NoError(t, err)

	got, err := book.Get(db, owner, in.ID)
	require.NoError(t, err)
	assert.False(t, got.LastLookedUp.IsZero())
	if diff := cmp.Diff(in, got, cmpopts.IgnoreFields(models.Entry{}, "LastLookedUp")); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}
}

func TestUpsert_RefreshKeepsLifecycleFields(t *testing.T) {
	db := testDB(t)
	order := 3
	page := 50
	_, err := book.Upsert(db, owner, models.Entry{
		ID: "b1", Kind: models.KindBook, Title: "Old", Authors: []string{"A"},
		Status: models.StatusBacklog, BacklogDate: models.Date("2026-01-01"),
		CurrentPage: &page,
	})
	require.NoError(t, err)
	_, err = book.Apply(db, owner, "b1", book.Patch{BacklogOrder: &order})
	require.NoError(t, err)

	// A re-resolve writes fresh bibliographic data with zero lifecycle state.
	got, err := book.Upsert(db, owner, models.Entry{
		ID: "b1", Kind: models.KindBook, Title: "New", Authors: []string{"A"},
	})
	require.NoError(t, err)
	assert.Equal(t, "New", got.Title)
	assert.Equal(t, models.StatusBacklog, got.Status)
	assert.Equal(t, models.Date("2026-01-01"), got.BacklogDate)
	require.NotNil(t, got.BacklogOrder)
	assert.Equal(t, 3, *got.BacklogOrder)
	require.NotNil(t, got.CurrentPage)
	assert.Equal(t, 50, *got.CurrentPage)
}

func TestGet_Missing(t *testing.T) {
	db := testDB(t)
	_, err := book.Get(db, owner, "nope")
	require.ErrorIs(t, err, book.ErrNotFound)
}

func TestGet_ScopedToOwner(t *testing.T) {
	db := testDB(t)
	_, err := book.Upsert(db, "alice", models.Entry{
		ID: "b1", Kind: models.KindBook, Title: "T", Authors: []string{"A"},
	})
	require.NoError(t, err)

	_, err = book.Get(db, "bob", "b1")
	require.ErrorIs(t, err, book.ErrNotFound)
}

func TestApply_PartialPatch(t *testing.T) {
	db := testDB(t)
	_, err := book.Upsert(db, owner, models.Entry{
		ID: "b1", Kind: models.KindBook, Title: "Old Title",
		Authors: []string{"A"}, Description: "keep me",
	})
	require.NoError(t, err)

	newTitle := "New Title"
	started := models.Date("2026-08-01")
	got, err := book.Apply(db, owner, "b1", book.Patch{Title: &newTitle, StartedDate: &started})
	require.NoError(t, err)
	assert.Equal(t, "New Title", got.Title)
	assert.Equal(t, started, got.StartedDate)
	assert.Equal(t, "keep me", got.Description, "unpatched fields stay put")
}

func TestApply_Missing(t *testing.T) {
	db := testDB(t)
	title := "x"
	_, err := book.Apply(db, owner, "nope", book.Patch{Title: &title})
	require.ErrorIs(t, err, book.ErrNotFound)
}

func TestDelete_CascadesProgressEvents(t *testing.T) {
	db := testDB(t)
	_, err := book.Upsert(db, owner, models.Entry{
		ID: "b1", Kind: models.KindBook, Title: "T", Authors: []string{"A"},
	})
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO progress_events(owner_id, entry_id, date, delta) VALUES(?,?,?,?)`,
		owner, "b1", "2026-08-01", 10)
	require.NoError(t, err)

	require.NoError(t, book.Delete(db, owner, "b1"))

	_, err = book.Get(db, owner, "b1")
	require.ErrorIs(t, err, book.ErrNotFound)
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM progress_events WHERE owner_id = ?`, owner).Scan(&n))
	assert.Zero(t, n)

	require.ErrorIs(t, book.Delete(db, owner, "b1"), book.ErrNotFound)
}

func TestHistory_OrderedByRecency(t *testing.T) {
	db := testDB(t)
	for _, id := range []string{"b1", "b2", "b3"} {
		_, err := book.Upsert(db, owner, models.Entry{
			ID: id, Kind: models.KindBook, Title: "T " + id, Authors: []string{"A"},
		})
		require.NoError(t, err)
	}
	// Touch order decides history order, not insert order.
	_, err := db.Exec(`UPDATE entries SET last_looked_up = ? WHERE id = 'b1'`, "2026-08-30 10:00:00")
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE entries SET last_looked_up = ? WHERE id = 'b2'`, "2026-08-30 12:00:00")
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE entries SET last_looked_up = ? WHERE id = 'b3'`, "2026-08-30 11:00:00")
	require.NoError(t, err)

	entries, err := book.History(db, owner, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b2", entries[0].ID)
	assert.Equal(t, "b3", entries[1].ID)
}

func TestCreateArticle_DefaultsToBacklog(t *testing.T) {
	db := testDB(t)
	today := models.Date("2026-08-30")

	a, err := book.CreateArticle(db, owner, book.NewArticleParams{Title: "An Essay"}, today)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(a.ID, "article-"), "generated id: %s", a.ID)
	assert.Equal(t, models.KindArticle, a.Kind)
	assert.Equal(t, models.StatusBacklog, a.Status)
	assert.Equal(t, today, a.BacklogDate)
	require.NotNil(t, a.BacklogOrder)
	assert.Equal(t, 0, *a.BacklogOrder)
	assert.Equal(t, []string{"Unknown"}, a.Authors)

	b, err := book.CreateArticle(db, owner, book.NewArticleParams{Title: "Another"}, today)
	require.NoError(t, err)
	assert.Equal(t, 1, *b.BacklogOrder)
}

func TestCreateArticle_BacklogRowNeverLacksOrder(t *testing.T) {
	db := testDB(t)
	today := models.Date("2026-08-30")
	for i := 0; i < 3; i++ {
		_, err := book.CreateArticle(db, owner, book.NewArticleParams{
			Title: fmt.Sprintf("Essay %d", i),
		}, today)
		require.NoError(t, err)
	}

	var n int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM entries WHERE status = 'backlog' AND backlog_order IS NULL`).Scan(&n))
	assert.Zero(t, n, "a backlog row must always carry its order slot")
}

func TestCreateArticle_PoemInProgressStampsStarted(t *testing.T) {
	db := testDB(t)
	today := models.Date("2026-08-30")

	p, err := book.CreateArticle(db, owner, book.NewArticleParams{
		Title: "A Poem", Kind: models.KindPoem, Status: models.StatusInProgress,
	}, today)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.ID, "poem-"))
	assert.Equal(t, today, p.StartedDate)
	assert.Nil(t, p.BacklogOrder)
}

func TestCreateArticle_RequiresTitle(t *testing.T) {
	db := testDB(t)
	_, err := book.CreateArticle(db, owner, book.NewArticleParams{Title: "  "}, models.Date("2026-08-30"))
	require.Error(t, err)
}

func TestNextBacklogOrder(t *testing.T) {
	db := testDB(t)
	next, err := book.NextBacklogOrder(db, owner, models.KindBook)
	require.NoError(t, err)
	assert.Zero(t, next, "empty partition starts at 0")

	order := 4
	_, err = book.Upsert(db, owner, models.Entry{
		ID: "b1", Kind: models.KindBook, Title: "T", Authors: []string{"A"},
		Status: models.StatusBacklog,
	})
	require.NoError(t, err)
	_, err = book.Apply(db, owner, "b1", book.Patch{BacklogOrder: &order})
	require.NoError(t, err)

	next, err = book.NextBacklogOrder(db, owner, models.KindBook)
	require.NoError(t, err)
	assert.Equal(t, 5, next)

	next, err = book.NextBacklogOrder(db, owner, models.KindPoem)
	require.NoError(t, err)
	assert.Zero(t, next, "other partitions are unaffected")
}
