package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// OpenLibrary is the secondary provider. It often has editions the primary
// misses and is good for recovering a page count.
type OpenLibrary struct {
	BaseURL    string
	CoversURL  string
	HTTPClient *http.Client
}

func NewOpenLibrary() *OpenLibrary {
	return &OpenLibrary{
		BaseURL:    "https://openlibrary.org",
		CoversURL:  "https://covers.openlibrary.org",
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type olEdition struct {
	Title         string            `json:"title"`
	Authors       []olKeyRef        `json:"authors"`
	Publishers    []string          `json:"publishers"`
	PublishDate   string            `json:"publish_date"`
	NumberOfPages *int              `json:"number_of_pages"`
	Covers        []int64           `json:"covers"`
	Subjects      []json.RawMessage `json:"subjects"`
	Description   json.RawMessage   `json:"description"`
}

type olKeyRef struct {
	Key string `json:"key"`
}

type olAuthor struct {
	Name string `json:"name"`
}

type olSearchResponse struct {
	Docs []olSearchDoc `json:"docs"`
}

type olSearchDoc struct {
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	Publisher        []string `json:"publisher"`
	FirstPublishYear int      `json:"first_publish_year"`
	NumberOfPages    *int     `json:"number_of_pages_median"`
	ISBN             []string `json:"isbn"`
	Subject          []string `json:"subject"`
	CoverID          int64    `json:"cover_i"`
}

func (o *OpenLibrary) getJSON(ctx context.Context, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+path, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "booklog/1.0")

	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}
	return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
}

func (o *OpenLibrary) LookupISBN(ctx context.Context, isbn string) (Record, error) {
	var edition olEdition
	status, err := o.getJSON(ctx, "/isbn/"+url.PathEscape(isbn)+".json", &edition)
	if err != nil {
		return Record{}, err
	}
	if status == http.StatusNotFound {
		return Record{}, ErrNotFound
	}
	if status != http.StatusOK {
		return Record{}, fmt.Errorf("open library: status %d", status)
	}

	var coverURL string
	if len(edition.Covers) > 0 {
		coverURL = o.CoversURL + "/b/id/" + strconv.FormatInt(edition.Covers[0], 10) + "-M.jpg"
	}

	return Record{
		ISBN:        isbn,
		Title:       edition.Title,
		Authors:     o.resolveAuthors(ctx, edition.Authors),
		Publishers:  edition.Publishers,
		PublishDate: edition.PublishDate,
		PageCount:   edition.NumberOfPages,
		CoverURL:    coverURL,
		Subjects:    subjectNames(edition.Subjects),
		Description: descriptionText(edition.Description),
	}, nil
}

// resolveAuthors follows edition author keys to names, at most five. A failed
// author fetch just drops that name.
func (o *OpenLibrary) resolveAuthors(ctx context.Context, refs []olKeyRef) []string {
	if len(refs) > 5 {
		refs = refs[:5]
	}
	var names []string
	for _, ref := range refs {
		if ref.Key == "" {
			continue
		}
		var a olAuthor
		status, err := o.getJSON(ctx, ref.Key+".json", &a)
		if err != nil || status != http.StatusOK || a.Name == "" {
			continue
		}
		names = append(names, a.Name)
	}
	return names
}

func (o *OpenLibrary) Search(ctx context.Context, title, author string) ([]Record, error) {
	q := url.Values{}
	if title != "" {
		q.Set("title", title)
	}
	if author != "" {
		q.Set("author", author)
	}
	q.Set("limit", "10")

	var data olSearchResponse
	status, err := o.getJSON(ctx, "/search.json?"+q.Encode(), &data)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("open library search: status %d", status)
	}

	recs := make([]Record, 0, len(data.Docs))
	for _, doc := range data.Docs {
		var isbn string
		if len(doc.ISBN) > 0 {
			isbn = doc.ISBN[0]
		}
		var publishDate string
		if doc.FirstPublishYear > 0 {
			publishDate = strconv.Itoa(doc.FirstPublishYear)
		}
		var coverURL string
		if doc.CoverID > 0 {
			coverURL = o.CoversURL + "/b/id/" + strconv.FormatInt(doc.CoverID, 10) + "-M.jpg"
		}
		recs = append(recs, Record{
			ISBN:        isbn,
			Title:       doc.Title,
			Authors:     doc.AuthorName,
			Publishers:  doc.Publisher,
			PublishDate: publishDate,
			PageCount:   doc.NumberOfPages,
			CoverURL:    coverURL,
			Subjects:    doc.Subject,
		})
	}
	return recs, nil
}

// subjectNames handles both edition subjects (plain strings) and work
// subjects ({name: ...} objects).
func subjectNames(raw []json.RawMessage) []string {
	var names []string
	for _, r := range raw {
		var s string
		if json.Unmarshal(r, &s) == nil {
			names = append(names, s)
			continue
		}
		var obj olAuthor
		if json.Unmarshal(r, &obj) == nil && obj.Name != "" {
			names = append(names, obj.Name)
		}
	}
	return names
}

// descriptionText handles the two shapes Open Library uses for descriptions:
// a plain string or {type, value}.
func descriptionText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var obj struct {
		Value string `json:"value"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return obj.Value
	}
	return ""
}
