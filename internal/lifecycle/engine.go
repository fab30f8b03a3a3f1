// Package lifecycle owns the entry status state machine:
//
//	none → backlog → in_progress → finished
//
// none is reachable from every state (remove from list), in_progress directly
// from none or backlog, finished from in_progress or backlog (tracking
// progress first is not required).
package lifecycle

import (
	"errors"
	"fmt"

	"booklog/internal/book"
	"booklog/pkg/models"
)

var ErrValidation = errors.New("invalid transition")

// Options carries caller-supplied dates for a transition. EffectiveDate is
// the started_date for a move to in_progress (defaults to today).
// FinishedDate is required for a move to finished.
type Options struct {
	EffectiveDate models.Date
	FinishedDate  models.Date
}

// Transition validates and applies a status change, stamping the lifecycle
// date owned by that transition. Validation failures reject before any
// mutation. A transition to the current status is a no-op. Callers that pair
// a transition with other writes pass their transaction as q.
func Transition(q book.Queryer, ownerID, id string, newStatus models.Status, opts Options, today models.Date) (models.Entry, error) {
	if !newStatus.Valid() {
		return models.Entry{}, fmt.Errorf("%w: unknown status %q", ErrValidation, newStatus)
	}

	e, err := book.Get(q, ownerID, id)
	if err != nil {
		return models.Entry{}, err
	}
	from := e.Status
	if from == "" {
		from = models.StatusNone
	}
	if from == newStatus {
		return e, nil
	}

	var patch book.Patch
	patch.Status = &newStatus

	switch newStatus {
	case models.StatusBacklog:
		if from != models.StatusNone {
			return models.Entry{}, fmt.Errorf("%w: %s -> backlog", ErrValidation, from)
		}
		next, err := book.NextBacklogOrder(q, ownerID, e.Kind)
		if err != nil {
			return models.Entry{}, err
		}
		patch.BacklogOrder = &next
		patch.BacklogDate = &today

	case models.StatusInProgress:
		if from != models.StatusNone && from != models.StatusBacklog {
			return models.Entry{}, fmt.Errorf("%w: %s -> in_progress", ErrValidation, from)
		}
		started := opts.EffectiveDate
		if started.IsZero() {
			started = today
		}
		patch.StartedDate = &started
		if e.CurrentPage == nil {
			zero := 0
			patch.CurrentPage = &zero
		}
		patch.ClearBacklogOrder = true

	case models.StatusFinished:
		if from != models.StatusInProgress && from != models.StatusBacklog {
			return models.Entry{}, fmt.Errorf("%w: %s -> finished", ErrValidation, from)
		}
		if opts.FinishedDate.IsZero() {
			return models.Entry{}, fmt.Errorf("%w: finished requires a finished_date", ErrValidation)
		}
		if !e.StartedDate.IsZero() && opts.FinishedDate.Before(e.StartedDate) {
			return models.Entry{}, fmt.Errorf("%w: finished_date before started_date", ErrValidation)
		}
		patch.FinishedDate = &opts.FinishedDate
		patch.ClearBacklogOrder = true

	case models.StatusNone:
		// Removal is non-destructive: dates and current_page stay.
		patch.ClearBacklogOrder = true
	}

	return book.Apply(q, ownerID, id, patch)
}
