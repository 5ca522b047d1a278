package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/btriapitsyn/openchamber-sub004/pkg/syntax"
	"github.com/btriapitsyn/openchamber-sub004/pkg/theme"
)

type highlightRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

type highlightResponse struct {
	Lines  []syntax.Line     `json:"lines"`
	Styles syntax.TokenTable `json:"styles"`
}

// handleHighlight tokenizes a code block for the browser's code renderer.
// The style table rides along so clients restyle on theme changes without a
// second round trip.
func (s *Server) handleHighlight(w http.ResponseWriter, r *http.Request) {
	var req highlightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "code required")
		return
	}
	writeJSON(w, http.StatusOK, highlightResponse{
		Lines:  syntax.HighlightLines(req.Code, req.Language),
		Styles: syntax.Table(s.Theme()),
	})
}

// Theme returns the active theme.
func (s *Server) Theme() *theme.Theme {
	s.themeMu.RLock()
	defer s.themeMu.RUnlock()
	return s.theme
}

// SetTheme swaps the active theme; the watcher calls this on file reload.
func (s *Server) SetTheme(t *theme.Theme) {
	if t == nil {
		return
	}
	s.themeMu.Lock()
	s.theme = t
	s.themeMu.Unlock()
}
