package lookup_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booklog/internal/lookup"
)

func TestGoogleBooks_LookupISBN(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "isbn:9780140328721", r.URL.Query().Get("q"))
		w.Write([]byte(`{
			"totalItems": 1,
			"items": [{
				"volumeInfo": {
					"title": "Fantastic Mr Fox",
					"authors": ["Roald Dahl"],
					"publisher": "Puffin",
					"publishedDate": "1988",
					"pageCount": 96,
					"description": "A story.",
					"categories": ["Juvenile Fiction"],
					"imageLinks": {"thumbnail": "http://books.google.com/thumb.jpg"}
				}
			}]
		}`))
	}))
	defer srv.Close()

	g := lookup.NewGoogleBooks("")
	g.BaseURL = srv.URL

	rec, err := g.LookupISBN(context.Background(), "9780140328721")
	require.NoError(t, err)
	assert.Equal(t, "9780140328721", rec.ISBN)
	assert.Equal(t, "Fantastic Mr Fox", rec.Title)
	assert.Equal(t, []string{"Roald Dahl"}, rec.Authors)
	assert.Equal(t, []string{"Puffin"}, rec.Publishers)
	require.NotNil(t, rec.PageCount)
	assert.Equal(t, 96, *rec.PageCount)

	norm := lookup.NormalizeRecord(rec)
	assert.Equal(t, "https://books.google.com/thumb.jpg", norm.CoverURL)
}

func TestGoogleBooks_LookupISBN_NoItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"totalItems": 0}`))
	}))
	defer srv.Close()

	g := lookup.NewGoogleBooks("")
	g.BaseURL = srv.URL

	_, err := g.LookupISBN(context.Background(), "9780140328721")
	require.ErrorIs(t, err, lookup.ErrNotFound)
}

func TestGoogleBooks_LookupISBN_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := lookup.NewGoogleBooks("")
	g.BaseURL = srv.URL

	_, err := g.LookupISBN(context.Background(), "9780140328721")
	require.Error(t, err)
	require.NotErrorIs(t, err, lookup.ErrNotFound)
}

func TestOpenLibrary_LookupISBN(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/isbn/9780140328721.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{
			"title": "Fantastic Mr. Fox",
			"authors": [{"key": "/authors/OL34184A"}],
			"publishers": ["Puffin"],
			"publish_date": "October 1, 1988",
			"number_of_pages": 96,
			"covers": [8739161],
			"subjects": ["Foxes", {"name": "Fiction"}],
			"description": {"type": "/type/text", "value": "The fox family's story."}
		}`))
	})
	mux.HandleFunc("/authors/OL34184A.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"name": "Roald Dahl"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	o := lookup.NewOpenLibrary()
	o.BaseURL = srv.URL
	o.CoversURL = "https://covers.example.org"

	rec, err := o.LookupISBN(context.Background(), "9780140328721")
	require.NoError(t, err)
	assert.Equal(t, "Fantastic Mr. Fox", rec.Title)
	assert.Equal(t, []string{"Roald Dahl"}, rec.Authors)
	assert.Equal(t, []string{"Puffin"}, rec.Publishers)
	require.NotNil(t, rec.PageCount)
	assert.Equal(t, 96, *rec.PageCount)
	assert.Equal(t, "https://covers.example.org/b/id/8739161-M.jpg", rec.CoverURL)
	assert.Equal(t, []string{"Foxes", "Fiction"}, rec.Subjects)
	assert.Equal(t, "The fox family's story.", rec.Description)
}

func TestOpenLibrary_LookupISBN_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	o := lookup.NewOpenLibrary()
	o.BaseURL = srv.URL

	_, err := o.LookupISBN(context.Background(), "9780140328721")
	require.ErrorIs(t, err, lookup.ErrNotFound)
}

func TestOpenLibrary_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search.json", r.URL.Path)
		assert.Equal(t, "mr fox", r.URL.Query().Get("title"))
		w.Write([]byte(`{
			"docs": [{
				"title": "Fantastic Mr. Fox",
				"author_name": ["Roald Dahl"],
				"first_publish_year": 1970,
				"number_of_pages_median": 96,
				"isbn": ["9780140328721"],
				"cover_i": 8739161
			}]
		}`))
	}))
	defer srv.Close()

	o := lookup.NewOpenLibrary()
	o.BaseURL = srv.URL
	o.CoversURL = "https://covers.example.org"

	recs, err := o.Search(context.Background(), "mr fox", "")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "9780140328721", recs[0].ISBN)
	assert.Equal(t, "1970", recs[0].PublishDate)
}
