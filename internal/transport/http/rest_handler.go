package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"quizzler-live/internal/domain"
)

// RoomStatus confirms room existence before a join attempt.
// GET /api/rooms/{code}
func (h *Handler) RoomStatus(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(r.PathValue("code"))
	status, err := h.directory.Status(code)
	if err != nil {
		writeJSON(w, http.StatusNotFound, domain.NewError(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// RoomResults serves the archived scoreboard of a closed room.
// GET /api/rooms/{code}/results
func (h *Handler) RoomResults(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(r.PathValue("code"))
	board, err := h.results.LoadScoreboard(r.Context(), code)
	if errors.Is(err, domain.ErrResultsNotFound) {
		writeJSON(w, http.StatusNotFound, domain.NewError(err.Error()))
		return
	}
	if err != nil {
		log.Printf("load results for %s: %v", code, err)
		writeJSON(w, http.StatusInternalServerError, domain.NewError("could not load results"))
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}
