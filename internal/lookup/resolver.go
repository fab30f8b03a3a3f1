// Package lookup resolves ISBNs and free-text queries to bibliographic
// records, cache-first with a two-provider fallback chain.
package lookup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"booklog/internal/book"
	"booklog/pkg/models"
)

var (
	// ErrInvalidISBN: the identifier isn't ISBN-shaped. User-correctable.
	ErrInvalidISBN = errors.New("invalid isbn: must be at least 10 digits (spaces/dashes allowed)")
	// ErrNotFound: no provider had the record. Nothing is cached, so the
	// lookup stays retryable.
	ErrNotFound = errors.New("no record found for this isbn")
	// ErrProvider: upstream failure or quota. Transient, retry allowed.
	ErrProvider = errors.New("provider error")
)

// Record is a provider response normalized to the common shape.
type Record struct {
	ISBN        string   `json:"isbn"`
	Title       string   `json:"title"`
	Authors     []string `json:"authors"`
	Publishers  []string `json:"publishers"`
	PublishDate string   `json:"publish_date,omitempty"`
	PageCount   *int     `json:"page_count,omitempty"`
	CoverURL    string   `json:"cover_url,omitempty"`
	Subjects    []string `json:"subjects"`
	Description string   `json:"description,omitempty"`
}

// Entry converts a record into a fresh store entry (status none).
func (r Record) Entry() models.Entry {
	return models.Entry{
		ID:          r.ISBN,
		Kind:        models.KindBook,
		Title:       r.Title,
		Authors:     r.Authors,
		Publishers:  r.Publishers,
		PublishDate: r.PublishDate,
		PageCount:   r.PageCount,
		CoverURL:    r.CoverURL,
		Subjects:    r.Subjects,
		Description: r.Description,
		Status:      models.StatusNone,
	}
}

// Provider is one external metadata source. LookupISBN returns ErrNotFound
// when the source has no record; any other error counts as a provider
// failure.
type Provider interface {
	LookupISBN(ctx context.Context, isbn string) (Record, error)
	Search(ctx context.Context, title, author string) ([]Record, error)
}

// NormalizeISBN strips spaces and dashes. The result must be purely numeric
// and at least 10 digits (covers ISBN-10 and ISBN-13).
func NormalizeISBN(raw string) (string, error) {
	isbn := strings.ReplaceAll(raw, " ", "")
	isbn = strings.ReplaceAll(isbn, "-", "")
	isbn = strings.TrimSpace(isbn)
	if len(isbn) < 10 {
		return "", ErrInvalidISBN
	}
	for _, r := range isbn {
		if r < '0' || r > '9' {
			return "", ErrInvalidISBN
		}
	}
	return isbn, nil
}

type Resolver struct {
	db        *sql.DB
	primary   Provider
	secondary Provider
}

func NewResolver(db *sql.DB, primary, secondary Provider) *Resolver {
	return &Resolver{db: db, primary: primary, secondary: secondary}
}

// Resolve looks up an ISBN. A cached entry short-circuits every external
// call (its last_looked_up is touched). On a miss the primary provider is
// tried first, then the secondary; a success is normalized and persisted
// with status none. A failed lookup persists nothing, so it never pollutes
// the cache. forceRefresh skips the cache read entirely and overwrites the
// stored bibliographic fields on success, leaving them untouched on failure.
func (r *Resolver) Resolve(ctx context.Context, ownerID, rawISBN string, forceRefresh bool) (models.Entry, error) {
	isbn, err := NormalizeISBN(rawISBN)
	if err != nil {
		return models.Entry{}, err
	}

	if !forceRefresh {
		_, err := book.Get(r.db, ownerID, isbn)
		if err == nil {
			if err := book.TouchLastLookedUp(r.db, ownerID, isbn); err != nil {
				return models.Entry{}, err
			}
			// Re-read so the response carries the timestamp just written.
			return book.Get(r.db, ownerID, isbn)
		}
		if !errors.Is(err, book.ErrNotFound) {
			return models.Entry{}, err
		}
	}

	rec, err := r.lookupProviders(ctx, isbn)
	if err != nil {
		return models.Entry{}, err
	}
	rec = NormalizeRecord(rec)

	return book.Upsert(r.db, ownerID, rec.Entry())
}

func (r *Resolver) lookupProviders(ctx context.Context, isbn string) (Record, error) {
	rec, primaryErr := r.primary.LookupISBN(ctx, isbn)
	if primaryErr == nil {
		return rec, nil
	}

	// Secondary can at least recover a page count or partial data.
	rec, secondaryErr := r.secondary.LookupISBN(ctx, isbn)
	if secondaryErr == nil {
		return rec, nil
	}

	if errors.Is(primaryErr, ErrNotFound) && errors.Is(secondaryErr, ErrNotFound) {
		return Record{}, ErrNotFound
	}
	if !errors.Is(primaryErr, ErrNotFound) {
		return Record{}, fmt.Errorf("%w: %v", ErrProvider, primaryErr)
	}
	return Record{}, fmt.Errorf("%w: %v", ErrProvider, secondaryErr)
}

// Search fans a free-text query out to the primary provider, falling back to
// the secondary only when the primary returns zero results — either/or,
// never merged. Results are not cached.
func (r *Resolver) Search(ctx context.Context, title, author string) ([]Record, error) {
	recs, err := r.primary.Search(ctx, title, author)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if len(recs) == 0 {
		recs, err = r.secondary.Search(ctx, title, author)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProvider, err)
		}
	}
	for i := range recs {
		recs[i] = NormalizeRecord(recs[i])
	}
	return recs, nil
}

// NormalizeRecord fills the defaults of the common record shape: "Unknown"
// title and authors, empty (not nil) publishers and subjects, at most 10
// subjects, https cover URLs, trimmed descriptions.
func NormalizeRecord(rec Record) Record {
	if strings.TrimSpace(rec.Title) == "" {
		rec.Title = "Unknown"
	}
	if len(rec.Authors) == 0 {
		rec.Authors = []string{"Unknown"}
	}
	if rec.Publishers == nil {
		rec.Publishers = []string{}
	}
	if rec.Subjects == nil {
		rec.Subjects = []string{}
	}
	if len(rec.Subjects) > 10 {
		rec.Subjects = rec.Subjects[:10]
	}
	if strings.HasPrefix(rec.CoverURL, "http:") {
		rec.CoverURL = "https:" + rec.CoverURL[len("http:"):]
	}
	rec.Description = strings.TrimSpace(rec.Description)
	return rec
}
