package www

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/icodeforyou/ostrom-go/logging"
)

type logEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Attrs     string    `json:"attrs,omitempty"`
}

type logPage struct {
	Page     int        `json:"page"`
	PageSize int        `json:"pageSize"`
	Entries  []logEntry `json:"entries"`
}

// NewLogHandler pages through the stored log, newest first. Query parameters:
// page, pageSize and level.
func NewLogHandler(logger *slog.Logger, db Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := intOrDefault(r.URL, "page", 1)
		pageSize := intOrDefault(r.URL, "pageSize", 25)
		level := slog.LevelDebug
		if lvl := r.URL.Query().Get("level"); lvl != "" {
			level = logging.LevelFromString(&lvl)
		}

		rows, err := db.GetLogEntries(r.Context(), level, page, pageSize)
		if err != nil {
			logger.Error("handling log request", slog.Any("error", err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		data := logPage{Page: max(page, 1), PageSize: pageSize, Entries: make([]logEntry, 0, len(rows))}
		for _, row := range rows {
			data.Entries = append(data.Entries, logEntry{
				Timestamp: row.Timestamp,
				Level:     slog.Level(row.Level).String(),
				Message:   row.Message,
				Attrs:     row.Attrs,
			})
		}

		writeJSON(w, logger, http.StatusOK, data)
	}
}
