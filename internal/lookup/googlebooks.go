package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// GoogleBooks is the primary provider (volumes API). An API key is optional
// but unkeyed requests can get throttled.
type GoogleBooks struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewGoogleBooks(apiKey string) *GoogleBooks {
	return &GoogleBooks{
		BaseURL:    "https://www.googleapis.com/books/v1",
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type gbResponse struct {
	TotalItems int      `json:"totalItems"`
	Items      []gbItem `json:"items"`
}

type gbItem struct {
	VolumeInfo gbVolumeInfo `json:"volumeInfo"`
}

type gbVolumeInfo struct {
	Title               string   `json:"title"`
	Authors             []string `json:"authors"`
	Publisher           string   `json:"publisher"`
	PublishedDate       string   `json:"publishedDate"`
	PageCount           *int     `json:"pageCount"`
	Description         string   `json:"description"`
	Categories          []string `json:"categories"`
	IndustryIdentifiers []struct {
		Type       string `json:"type"`
		Identifier string `json:"identifier"`
	} `json:"industryIdentifiers"`
	ImageLinks struct {
		Thumbnail      string `json:"thumbnail"`
		SmallThumbnail string `json:"smallThumbnail"`
	} `json:"imageLinks"`
}

func (g *GoogleBooks) get(ctx context.Context, query string, out *gbResponse) error {
	u := g.BaseURL + "/volumes?q=" + query
	if g.APIKey != "" {
		u += "&key=" + url.QueryEscape(g.APIKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "booklog/1.0")

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("google books: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (g *GoogleBooks) LookupISBN(ctx context.Context, isbn string) (Record, error) {
	var data gbResponse
	if err := g.get(ctx, "isbn:"+url.QueryEscape(isbn), &data); err != nil {
		return Record{}, err
	}
	if data.TotalItems < 1 || len(data.Items) == 0 {
		return Record{}, ErrNotFound
	}
	return recordFromVolume(data.Items[0].VolumeInfo, isbn), nil
}

func (g *GoogleBooks) Search(ctx context.Context, title, author string) ([]Record, error) {
	var terms string
	if title != "" {
		terms = "intitle:" + title
	}
	if author != "" {
		if terms != "" {
			terms += "+"
		}
		terms += "inauthor:" + author
	}
	var data gbResponse
	if err := g.get(ctx, url.QueryEscape(terms), &data); err != nil {
		return nil, err
	}

	recs := make([]Record, 0, len(data.Items))
	for _, item := range data.Items {
		recs = append(recs, recordFromVolume(item.VolumeInfo, isbn13Of(item.VolumeInfo)))
	}
	return recs, nil
}

func isbn13Of(vi gbVolumeInfo) string {
	var isbn10 string
	for _, id := range vi.IndustryIdentifiers {
		switch id.Type {
		case "ISBN_13":
			return id.Identifier
		case "ISBN_10":
			isbn10 = id.Identifier
		}
	}
	return isbn10
}

func recordFromVolume(vi gbVolumeInfo, isbn string) Record {
	var publishers []string
	if vi.Publisher != "" {
		publishers = []string{vi.Publisher}
	}
	thumbnail := vi.ImageLinks.Thumbnail
	if thumbnail == "" {
		thumbnail = vi.ImageLinks.SmallThumbnail
	}
	return Record{
		ISBN:        isbn,
		Title:       vi.Title,
		Authors:     vi.Authors,
		Publishers:  publishers,
		PublishDate: vi.PublishedDate,
		PageCount:   vi.PageCount,
		CoverURL:    thumbnail,
		Subjects:    vi.Categories,
		Description: vi.Description,
	}
}
