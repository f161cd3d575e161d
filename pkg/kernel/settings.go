package kernel

import (
	"encoding/json"
	"net/http"
)

// GET /v1/settings returns the settings with the API key masked.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.settings.GetMaskedConfig())
}

// PUT /v1/settings accepts a partial document; omitted fields keep their
// current value.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	update := s.settings.GetMaskedConfig()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(update); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return
	}

	if err := s.settings.UpdateConfig(r.Context(), update); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.settings.GetMaskedConfig())
}
