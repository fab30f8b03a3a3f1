package main

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"booklog/internal/auth"
	"booklog/internal/backlog"
	"booklog/internal/book"
	"booklog/internal/calendar"
	"booklog/internal/config"
	"booklog/internal/lifecycle"
	"booklog/internal/lookup"
	"booklog/internal/progress"
	"booklog/internal/user"
	"booklog/pkg/models"
)

func newRouter(db *sql.DB, cfg config.Config, resolver *lookup.Resolver) *gin.Engine {
	r := gin.Default()
	loc := cfg.Location()
	secret := []byte(cfg.JWTSecret)

	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	// AUTH
	r.POST("/auth/register", func(c *gin.Context) { handleRegister(c, db) })
	r.POST("/auth/login", func(c *gin.Context) { handleLogin(c, db, secret) })

	// Everything below operates on the owner from the bearer token.
	api := r.Group("/api")
	api.Use(auth.RequireJWT(secret))

	api.GET("/books/isbn/:isbn", func(c *gin.Context) { handleLookupISBN(c, resolver) })
	api.GET("/books/search", func(c *gin.Context) { handleSearch(c, resolver) })
	api.GET("/books/history", func(c *gin.Context) { handleHistory(c, db) })
	api.GET("/books/backlog", func(c *gin.Context) { handleBacklogList(c, db) })
	api.GET("/books/in-progress", func(c *gin.Context) { handleInProgressList(c, db) })
	api.GET("/books/finished", func(c *gin.Context) { handleFinishedList(c, db) })
	api.POST("/books/backlog", func(c *gin.Context) { handleAddToBacklog(c, db, resolver, loc) })
	api.PUT("/books/backlog/order", func(c *gin.Context) { handleReorderBacklog(c, db) })
	api.GET("/books/:id", func(c *gin.Context) { handleEntryDetail(c, db) })
	api.PATCH("/books/:id", func(c *gin.Context) { handleEditEntry(c, db, loc) })
	api.DELETE("/books/:id", func(c *gin.Context) { handleDeleteEntry(c, db) })
	api.POST("/books/:id/progress", func(c *gin.Context) { handleRecordProgress(c, db, loc) })
	api.GET("/books/:id/events", func(c *gin.Context) { handleProgressEvents(c, db) })
	api.POST("/books/:id/move", func(c *gin.Context) { handleMove(c, db) })
	api.POST("/articles", func(c *gin.Context) { handleCreateArticle(c, db, loc) })
	api.GET("/calendar", func(c *gin.Context) { handleCalendar(c, db, loc) })
	api.POST("/calendar/toggle", func(c *gin.Context) { handleCalendarToggle(c, db, loc) })
	api.GET("/stats", func(c *gin.Context) { handleStats(c, db, loc) })
	api.GET("/stats/month", func(c *gin.Context) { handleMonthStats(c, db, loc) })

	return r
}

func ownerID(c *gin.Context) string {
	return c.GetString(auth.CtxOwnerIDKey)
}

func handleRegister(c *gin.Context, db *sql.DB) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username/password required"})
		return
	}

	if _, err := user.Create(db, req.Username, req.Password); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ok": true})
}

func handleLogin(c *gin.Context, db *sql.DB, secret []byte) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	u, err := user.VerifyLogin(db, req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := auth.SignJWT(secret, u.ID, u.Username, 24*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign token failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

func handleLookupISBN(c *gin.Context, resolver *lookup.Resolver) {
	refresh := c.Query("refresh") == "1" || c.Query("refresh") == "true"
	entry, err := resolver.Resolve(c.Request.Context(), ownerID(c), c.Param("isbn"), refresh)
	if err != nil {
		switch {
		case errors.Is(err, lookup.ErrInvalidISBN):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, lookup.ErrNotFound), errors.Is(err, book.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "book not found for this isbn"})
		case errors.Is(err, lookup.ErrProvider):
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		}
		return
	}
	c.JSON(http.StatusOK, entry)
}

func handleSearch(c *gin.Context, resolver *lookup.Resolver) {
	title := c.Query("title")
	author := c.Query("author")
	if title == "" && author == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title or author required"})
		return
	}
	recs, err := resolver.Search(c.Request.Context(), title, author)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": recs})
}

func handleHistory(c *gin.Context, db *sql.DB) {
	limit := parseInt(c.Query("limit"), 20)
	entries, err := book.History(db, ownerID(c), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func handleBacklogList(c *gin.Context, db *sql.DB) {
	kind := models.Kind(c.Query("kind"))
	if kind != "" && !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown kind"})
		return
	}
	entries, err := book.ListBacklog(db, ownerID(c), kind)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func handleInProgressList(c *gin.Context, db *sql.DB) {
	entries, err := book.ListInProgress(db, ownerID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func handleFinishedList(c *gin.Context, db *sql.DB) {
	entries, err := book.ListFinished(db, ownerID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func handleEntryDetail(c *gin.Context, db *sql.DB) {
	owner := ownerID(c)
	entry, err := book.Get(db, owner, c.Param("id"))
	if err != nil {
		if errors.Is(err, book.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	// Viewing counts as a lookup for history-recency purposes.
	_ = book.TouchLastLookedUp(db, owner, entry.ID)
	c.JSON(http.StatusOK, entry)
}

func handleAddToBacklog(c *gin.Context, db *sql.DB, resolver *lookup.Resolver, loc *time.Location) {
	var req struct {
		ISBN string `json:"isbn"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ISBN == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "isbn required"})
		return
	}
	owner := ownerID(c)

	entry, err := resolver.Resolve(c.Request.Context(), owner, req.ISBN, false)
	if err != nil {
		switch {
		case errors.Is(err, lookup.ErrInvalidISBN):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, lookup.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "book not found for this isbn"})
		case errors.Is(err, lookup.ErrProvider):
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		}
		return
	}

	updated, err := lifecycle.Transition(db, owner, entry.ID, models.StatusBacklog,
		lifecycle.Options{}, models.Today(loc))
	if err != nil {
		if errors.Is(err, lifecycle.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, updated)
}

func handleCreateArticle(c *gin.Context, db *sql.DB, loc *time.Location) {
	var req struct {
		Title       string   `json:"title"`
		EntryType   string   `json:"entry_type"`
		Authors     []string `json:"authors"`
		Publishers  []string `json:"publishers"`
		PublishDate string   `json:"publish_date"`
		PageCount   *int     `json:"number_of_pages"`
		Description string   `json:"description"`
		Status      string   `json:"status"`
		StartedDate string   `json:"started_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title required"})
		return
	}

	kind := models.Kind(req.EntryType)
	if kind == "" {
		kind = models.KindArticle
	}
	if kind != models.KindArticle && kind != models.KindPoem {
		c.JSON(http.StatusBadRequest, gin.H{"error": "entry_type must be article or poem"})
		return
	}
	status := models.Status(req.Status)
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}
	started, err := models.ParseDate(req.StartedDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := book.CreateArticle(db, ownerID(c), book.NewArticleParams{
		Title:       req.Title,
		Kind:        kind,
		Authors:     req.Authors,
		Publishers:  req.Publishers,
		PublishDate: req.PublishDate,
		PageCount:   req.PageCount,
		Description: req.Description,
		Status:      status,
		StartedDate: started,
	}, models.Today(loc))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// handleEditEntry is the generic edit: metadata and lifecycle dates are
// applied verbatim (date ordering is deliberately not re-validated here), a
// status change goes through the lifecycle engine, and a page change goes
// through the progress tracker.
func handleEditEntry(c *gin.Context, db *sql.DB, loc *time.Location) {
	var req struct {
		Title        *string   `json:"title"`
		Authors      *[]string `json:"authors"`
		Publishers   *[]string `json:"publishers"`
		PublishDate  *string   `json:"publish_date"`
		PageCount    *int      `json:"number_of_pages"`
		Description  *string   `json:"description"`
		CoverURL     *string   `json:"cover_url"`
		Subjects     *[]string `json:"subjects"`
		Status       *string   `json:"status"`
		BacklogDate  *string   `json:"backlog_date"`
		StartedDate  *string   `json:"started_date"`
		FinishedDate *string   `json:"finished_date"`
		CurrentPage  *int      `json:"current_page"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Title != nil && *req.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title cannot be empty"})
		return
	}
	owner := ownerID(c)
	id := c.Param("id")
	today := models.Today(loc)

	patch := book.Patch{
		Title:       req.Title,
		Authors:     req.Authors,
		Publishers:  req.Publishers,
		PublishDate: req.PublishDate,
		PageCount:   req.PageCount,
		Description: req.Description,
		CoverURL:    req.CoverURL,
		Subjects:    req.Subjects,
	}

	var started, finished models.Date
	if req.StartedDate != nil {
		d, err := models.ParseDate(*req.StartedDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		started = d
	}
	if req.FinishedDate != nil {
		d, err := models.ParseDate(*req.FinishedDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		finished = d
	}
	if req.BacklogDate != nil {
		d, err := models.ParseDate(*req.BacklogDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		patch.BacklogDate = &d
	}

	// Raw date edits apply verbatim; a status change in the same body also
	// carries them into the transition below so it can stamp and validate
	// the date it owns.
	if req.StartedDate != nil {
		patch.StartedDate = &started
	}
	if req.FinishedDate != nil {
		patch.FinishedDate = &finished
	}

	// The patch and the transition commit together: a rejected transition
	// rolls back the field edits sent in the same body.
	tx, err := db.Begin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	defer func() { _ = tx.Rollback() }()

	entry, err := book.Apply(tx, owner, id, patch)
	if err != nil {
		if errors.Is(err, book.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}

	if req.Status != nil {
		entry, err = lifecycle.Transition(tx, owner, id, models.Status(*req.Status),
			lifecycle.Options{EffectiveDate: started, FinishedDate: finished}, today)
		if err != nil {
			if errors.Is(err, lifecycle.ErrValidation) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
	}

	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}

	if req.CurrentPage != nil {
		entry, err = progress.Record(db, owner, id, strconv.Itoa(*req.CurrentPage), today)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
	}

	c.JSON(http.StatusOK, entry)
}

func handleDeleteEntry(c *gin.Context, db *sql.DB) {
	err := book.Delete(db, ownerID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, book.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func handleRecordProgress(c *gin.Context, db *sql.DB, loc *time.Location) {
	var req struct {
		Pages string `json:"pages"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	// Malformed page input is deliberately ignored: the entry comes back
	// unchanged.
	entry, err := progress.Record(db, ownerID(c), c.Param("id"), req.Pages, models.Today(loc))
	if err != nil {
		if errors.Is(err, book.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

func handleProgressEvents(c *gin.Context, db *sql.DB) {
	owner := ownerID(c)
	id := c.Param("id")
	if _, err := book.Get(db, owner, id); err != nil {
		if errors.Is(err, book.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}

	events, err := progress.Events(db, owner, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func handleReorderBacklog(c *gin.Context, db *sql.DB) {
	var req struct {
		Kind string   `json:"kind"`
		IDs  []string `json:"ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ids required"})
		return
	}
	kind := models.Kind(req.Kind)
	if kind == "" {
		kind = models.KindBook
	}
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown kind"})
		return
	}

	if err := backlog.Reorder(db, ownerID(c), kind, req.IDs); err != nil {
		if errors.Is(err, backlog.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func handleMove(c *gin.Context, db *sql.DB) {
	var req struct {
		Position  *int    `json:"position"`
		Direction *string `json:"direction"`
		Kind      *string `json:"kind"` // drop target partition, for drag-and-drop
	}
	if err := c.ShouldBindJSON(&req); err != nil || (req.Position == nil && req.Direction == nil) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "position or direction required"})
		return
	}
	owner := ownerID(c)
	id := c.Param("id")

	var err error
	switch {
	case req.Direction != nil:
		err = backlog.MoveAdjacent(db, owner, id, *req.Direction)
	case req.Kind != nil:
		err = backlog.Drop(db, owner, id, models.Kind(*req.Kind), *req.Position)
	default:
		err = backlog.MoveToPosition(db, owner, id, *req.Position)
	}
	if err != nil {
		switch {
		case errors.Is(err, book.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		case errors.Is(err, backlog.ErrConflict):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func handleCalendar(c *gin.Context, db *sql.DB, loc *time.Location) {
	dates, err := calendar.ActiveDates(db, ownerID(c), models.Today(loc))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"dates": dates})
}

func handleCalendarToggle(c *gin.Context, db *sql.DB, loc *time.Location) {
	var req struct {
		Date string `json:"date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date required"})
		return
	}
	date, err := models.ParseDate(req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	show, err := calendar.Toggle(db, ownerID(c), date, models.Today(loc))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "show": show})
}

func handleStats(c *gin.Context, db *sql.DB, loc *time.Location) {
	stats, err := calendar.Summarize(db, ownerID(c), models.Today(loc))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func handleMonthStats(c *gin.Context, db *sql.DB, loc *time.Location) {
	year := parseInt(c.Query("year"), 0)
	month := parseInt(c.Query("month"), 0)
	if year < 1 || month < 1 || month > 12 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "year and month required"})
		return
	}

	summary, err := calendar.SummarizeMonth(db, ownerID(c), year, month, models.Today(loc))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
