package api

import (
	"net/http"

	"github.com/dgallion1/guidex/internal/template"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"queue_depth": s.orchestrator.QueueDepth(),
		"processing":  s.orchestrator.Stats().Snapshot(),
	})
}

// handleTemplates lists the known report variants and their constants.
func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	out := make([]map[string]any, 0, len(template.Variants))
	for _, v := range template.Variants {
		c, ok := s.templates[v]
		if !ok {
			continue
		}
		out = append(out, map[string]any{
			"variant":   v,
			"constants": c,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": out})
}
