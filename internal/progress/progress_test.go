package progress_test

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booklog/internal/book"
	"booklog/internal/progress"
	"booklog/pkg/database"
	"booklog/pkg/models"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func TestParsePageInput(t *testing.T) {
	testCases := []struct {
		name    string
		raw     string
		current int
		want    int
		ok      bool
	}{
		{name: "Literal", raw: "160", current: 10, want: 160, ok: true},
		{name: "LeadingPlusIsRelative", raw: "+20", current: 144, want: 164, ok: true},
		{name: "GroupSumIgnoresCurrent", raw: "144+20", current: 999, want: 164, ok: true},
		{name: "ThreeGroups", raw: "100+20+4", current: 0, want: 124, ok: true},
		{name: "Zero", raw: "0", current: 50, want: 0, ok: true},
		{name: "RelativeZero", raw: "+0", current: 50, want: 50, ok: true},
		{name: "SurroundingWhitespace", raw: "  42 ", current: 0, want: 42, ok: true},
		{name: "Empty", raw: "", current: 10, ok: false},
		{name: "Whitespace", raw: "   ", current: 10, ok: false},
		{name: "Letters", raw: "abc", current: 10, ok: false},
		{name: "Negative", raw: "-5", current: 10, ok: false},
		{name: "TrailingPlus", raw: "20+", current: 10, ok: false},
		{name: "BarePlus", raw: "+", current: 10, ok: false},
		{name: "MixedGarbage", raw: "12+x", current: 10, ok: false},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			got, ok := progress.ParsePageInput(testCase.raw, testCase.current)
			require.Equal(t, testCase.ok, ok)
			if testCase.ok {
				assert.Equal(t, testCase.want, got)
			}
		})
	}
}

func seedEntry(t *testing.T, db *sql.DB, owner, id string, currentPage int) models.Entry {
	t.Helper()
	e, err := book.Upsert(db, owner, models.Entry{
		ID:          id,
		Kind:        models.KindBook,
		Title:       "Some Book",
		Authors:     []string{"Someone"},
		Status:      models.StatusInProgress,
		CurrentPage: &currentPage,
	})
	require.NoError(t, err)
	return e
}

func TestRecord_PersistsPageAndAppendsEvent(t *testing.T) {
	db := testDB(t)
	seedEntry(t, db, "owner", "isbn-1", 0)
	today := models.Date("2026-08-30")

	e, err := progress.Record(db, "owner", "isbn-1", "160", today)
	require.NoError(t, err)
	require.NotNil(t, e.CurrentPage)
	assert.Equal(t, 160, *e.CurrentPage)
	assert.Equal(t, today, e.LastProgress)

	events, err := progress.Events(db, "owner", "isbn-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 160, events[0].Delta)
	assert.Equal(t, today, events[0].Date)
}

func TestRecord_CorrectionProducesNegativeDelta(t *testing.T) {
	db := testDB(t)
	seedEntry(t, db, "owner", "isbn-1", 100)
	today := models.Date("2026-08-30")

	e, err := progress.Record(db, "owner", "isbn-1", "80", today)
	require.NoError(t, err)
	assert.Equal(t, 80, *e.CurrentPage)

	events, err := progress.Events(db, "owner", "isbn-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, -20, events[0].Delta, "corrections must be visible as negative deltas")
}

func TestRecord_ZeroDeltaStillRecorded(t *testing.T) {
	db := testDB(t)
	seedEntry(t, db, "owner", "isbn-1", 42)

	_, err := progress.Record(db, "owner", "isbn-1", "42", models.Date("2026-08-30"))
	require.NoError(t, err)

	events, err := progress.Events(db, "owner", "isbn-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 0, events[0].Delta)
}

func TestRecord_InvalidInputIsSilentlyIgnored(t *testing.T) {
	db := testDB(t)
	seedEntry(t, db, "owner", "isbn-1", 100)

	e, err := progress.Record(db, "owner", "isbn-1", "not a page", models.Date("2026-08-30"))
	require.NoError(t, err)
	assert.Equal(t, 100, *e.CurrentPage, "entry must not change on malformed input")
	assert.True(t, e.LastProgress.IsZero())

	events, err := progress.Events(db, "owner", "isbn-1")
	require.NoError(t, err)
	assert.Empty(t, events, "no event may be written when parsing fails")
}

func TestRecord_RelativeInputUsesStoredPage(t *testing.T) {
	db := testDB(t)
	seedEntry(t, db, "owner", "isbn-1", 144)

	e, err := progress.Record(db, "owner", "isbn-1", "+20", models.Date("2026-08-30"))
	require.NoError(t, err)
	assert.Equal(t, 164, *e.CurrentPage)
}

func TestRecord_UnknownEntry(t *testing.T) {
	db := testDB(t)

	_, err := progress.Record(db, "owner", "nope", "10", models.Date("2026-08-30"))
	require.ErrorIs(t, err, book.ErrNotFound)
}
