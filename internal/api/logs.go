package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aaal/envanter/internal/audit"
	"github.com/aaal/envanter/internal/model"
)

// LogsHandler serves the activity log (admin only).
type LogsHandler struct {
	Audit *audit.Recorder
}

// List handles GET /api/logs?userId=&action=&startDate=&endDate=&limit=.
// Dates are RFC 3339 timestamps or plain YYYY-MM-DD days; a plain endDate
// includes the whole day.
func (h *LogsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := audit.Query{
		UserID: q.Get("userId"),
		Action: model.LogAction(q.Get("action")),
	}

	var err error
	if query.Since, err = parseDate(q.Get("startDate"), false); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid startDate")
		return
	}
	if query.Until, err = parseDate(q.Get("endDate"), true); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid endDate")
		return
	}
	if s := q.Get("limit"); s != "" {
		query.Limit, err = strconv.Atoi(s)
		if err != nil || query.Limit <= 0 {
			jsonError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	logs, err := h.Audit.Find(r.Context(), query)
	if err != nil {
		writeError(w, err, "failed to list logs")
		return
	}
	if logs == nil {
		logs = []model.LogEntry{}
	}
	jsonResponse(w, http.StatusOK, map[string]any{"logs": logs})
}

func parseDate(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
