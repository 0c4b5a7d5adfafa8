package api

import (
	"net/http"
	"time"
)

// quarantinedCallResponse is a stored quarantine.
type quarantinedCallResponse struct {
	ID            string    `json:"id"`
	LocationID    int64     `json:"location_id"`
	Kind          string    `json:"kind"`
	Reason        string    `json:"reason"`
	Step          string    `json:"step"`
	CallingNumber string    `json:"calling_number"`
	CalledNumber  string    `json:"called_number"`
	StartTime     time.Time `json:"start_time"`
	Duration      int       `json:"duration"`
	CreatedAt     time.Time `json:"created_at"`
}

// handleListQuarantines returns stored quarantines, newest first.
func (s *Server) handleListQuarantines(w http.ResponseWriter, r *http.Request) {
	p, msg := parsePagination(r)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	calls, err := s.quarantines.List(r.Context(), p.Limit, p.Offset)
	if err != nil {
		s.logger.Error("failed to list quarantined calls", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	counts, err := s.quarantines.CountByKind(r.Context())
	if err != nil {
		s.logger.Error("failed to count quarantined calls", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	total := 0
	for _, n := range counts {
		total += int(n)
	}

	items := make([]quarantinedCallResponse, len(calls))
	for i, c := range calls {
		items[i] = quarantinedCallResponse{
			ID:            c.ID,
			LocationID:    c.LocationID,
			Kind:          string(c.Kind),
			Reason:        c.Reason,
			Step:          c.Step,
			CallingNumber: c.CallingNumber,
			CalledNumber:  c.CalledNumber,
			StartTime:     c.StartTime,
			Duration:      c.Duration,
			CreatedAt:     c.CreatedAt,
		}
	}

	writeJSON(w, http.StatusOK, PaginatedResponse{
		Items:  items,
		Total:  total,
		Limit:  p.Limit,
		Offset: p.Offset,
	})
}
