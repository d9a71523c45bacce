package http

import (
	"net/http"

	"ailedger/internal/core"
	applog "ailedger/internal/log"
)

type themeResponse struct {
	Theme core.Theme `json:"theme"`
}

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	OK(themeResponse{Theme: s.prefs.Theme(r.Context())}).Write(w)
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	p, ok := s.parseBody(w, r)
	if !ok {
		return
	}
	theme, err := core.ParseTheme(p.Get("theme"))
	if err != nil {
		s.writeError(w, r, applog.OpUpdate, err)
		return
	}
	if err := s.prefs.SetTheme(r.Context(), theme); err != nil {
		s.writeError(w, r, applog.OpUpdate, err)
		return
	}
	OK(themeResponse{Theme: theme}).Write(w)
}

func (s *Server) handleToggleTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := s.prefs.Toggle(r.Context())
	if err != nil {
		s.writeError(w, r, applog.OpUpdate, err)
		return
	}
	OK(themeResponse{Theme: theme}).Write(w)
}
