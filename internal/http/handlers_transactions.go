package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"ailedger/internal/core"
	applog "ailedger/internal/log"
)

type listResponse struct {
	Transactions []core.Transaction `json:"transactions"`
	// Filtered summarizes only the listed transactions.
	Filtered   core.Aggregates `json:"filtered"`
	Aggregates core.Aggregates `json:"aggregates"`
	Version    int64           `json:"version"`
}

type createResponse struct {
	Transaction core.Transaction `json:"transaction"`
	View        core.View        `json:"view"`
}

// inputErrors are reported as 422 with the error text.
var inputErrors = []error{
	core.ErrInvalidAmount,
	core.ErrInvalidType,
	core.ErrInvalidDate,
	core.ErrEmptyNote,
	core.ErrNoteTooLong,
	core.ErrInvalidTheme,
	core.ErrInvalidFilter,
}

// writeError maps domain and request errors to responses. Anything
// unrecognized is logged and reported as 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	for _, target := range inputErrors {
		if errors.Is(err, target) {
			UnprocessableEntityError(err.Error()).Write(w)
			return
		}
	}
	switch {
	case errors.Is(err, errBodyTooLarge):
		RequestTooLargeError(err.Error()).Write(w)
	case errors.Is(err, core.ErrNotFound):
		NotFoundError(err.Error()).Write(w)
	default:
		applog.FromContext(r.Context()).LogError(r.Context(), "Request failed", err, op, nil)
		InternalServerError("internal error").Write(w)
	}
}

// parseBody reads the body once; malformed content is a 400 and an
// oversized one a 413.
func (s *Server) parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			RequestTooLargeError(err.Error()).Write(w)
		} else {
			BadRequestError(err.Error()).Write(w)
		}
		return nil, false
	}
	return p, true
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseFilter(r.URL.Query())
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}

	snap := s.ledger.Snapshot()
	txs := filter.Apply(snap.Transactions, time.Now())
	if txs == nil {
		txs = []core.Transaction{}
	}
	OK(listResponse{
		Transactions: txs,
		Filtered:     core.Summarize(txs),
		Aggregates:   snap.Aggregates,
		Version:      snap.Version,
	}).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	in, err := ParseNewTransaction(p)
	if err != nil {
		s.writeError(w, r, applog.OpCreate, err)
		return
	}

	tx, err := s.ledger.Add(r.Context(), in)
	if err != nil {
		s.writeError(w, r, applog.OpCreate, err)
		return
	}
	s.appMetrics.created.Add(1)

	Created(createResponse{Transaction: tx, View: core.ViewHome}).
		Header("Location", "/api/transactions/"+tx.ID).
		Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.ledger.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	OK(tx).Write(w)
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	note := p.Get("note")
	if strings.TrimSpace(note) == "" {
		s.writeError(w, r, applog.OpUpdate, core.ErrEmptyNote)
		return
	}

	id := r.PathValue("id")
	updated, err := s.ledger.UpdateNote(r.Context(), id, note)
	if err != nil {
		s.writeError(w, r, applog.OpUpdate, err)
		return
	}
	if !updated {
		s.writeError(w, r, applog.OpUpdate, core.ErrNotFound)
		return
	}

	tx, err := s.ledger.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, applog.OpUpdate, err)
		return
	}
	OK(tx).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if !ConfirmRequested(r) {
		ConfirmationRequiredError(core.ConfirmDeletePrompt).Write(w)
		return
	}

	removed, err := s.ledger.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, applog.OpDelete, err)
		return
	}
	if !removed {
		s.writeError(w, r, applog.OpDelete, core.ErrNotFound)
		return
	}
	NoContent().Write(w)
}

func (s *Server) handleClearTransactions(w http.ResponseWriter, r *http.Request) {
	if !ConfirmRequested(r) {
		ConfirmationRequiredError(core.ConfirmClearPrompt).Write(w)
		return
	}

	removed, err := s.ledger.Clear(r.Context())
	if err != nil {
		s.writeError(w, r, applog.OpClear, err)
		return
	}
	OK(map[string]int{"removed": removed}).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	OK(s.ledger.Aggregates()).Write(w)
}

func (s *Server) handleCategoryStats(w http.ResponseWriter, r *http.Request) {
	totals := s.categoryTotals()
	if totals == nil {
		totals = []core.CategoryAmount{}
	}
	OK(map[string]any{
		"categories": totals,
		"expense":    s.ledger.Aggregates().Expense,
	}).Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	OK(core.KnownCategories()).Write(w)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	snap := s.ledger.Snapshot()
	s.hub.ServeWS(w, r, LiveMessage{
		Type:       MessageSnapshot,
		Aggregates: snap.Aggregates,
		Version:    snap.Version,
	})
}
