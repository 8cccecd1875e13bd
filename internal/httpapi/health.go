package httpapi

import "net/http"

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	toJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			toJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	toJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
