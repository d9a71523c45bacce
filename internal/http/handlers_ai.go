package http

import (
	"errors"
	"net/http"

	"ailedger/internal/core"
	"ailedger/internal/services"
)

// draftResponse carries either a draft or the message explaining why none
// was produced. A missing draft is never an HTTP error.
type draftResponse struct {
	Draft   *core.Draft `json:"draft"`
	Message string      `json:"message,omitempty"`
}

func (s *Server) writeDraft(w http.ResponseWriter, d *core.Draft) {
	if d == nil {
		s.appMetrics.draftsFailed.Add(1)
		OK(draftResponse{Message: services.UnavailableMessage}).Write(w)
		return
	}
	s.appMetrics.drafts.Add(1)
	OK(draftResponse{Draft: d}).Write(w)
}

func (s *Server) handleDraftFromText(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	d, _ := s.assist.FromText(r.Context(), p.Get("text"))
	s.writeDraft(w, d)
}

func (s *Server) handleDraftFromReceipt(w http.ResponseWriter, r *http.Request) {
	data, mimeType, err := ParseReceipt(r)
	switch {
	case errors.Is(err, errBodyTooLarge):
		RequestTooLargeError(err.Error()).Write(w)
		return
	case errors.Is(err, errMissingFile):
		BadRequestError(err.Error()).Write(w)
		return
	case err != nil:
		// Undecodable uploads yield no draft, like any other recognition failure.
		s.writeDraft(w, nil)
		return
	}

	d, _ := s.assist.FromReceipt(r.Context(), data, mimeType)
	s.writeDraft(w, d)
}
