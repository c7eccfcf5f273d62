package www

import (
	"log/slog"
	"net/http"
	"runtime"
	"time"
)

type SysInfo struct {
	Version      string    `json:"version"`
	GoVersion    string    `json:"goVersion"`
	StartedAt    time.Time `json:"startedAt"`
	State        string    `json:"state"`
	RetryPending bool      `json:"retryPending"`
}

func NewSysInfoHandler(logger *slog.Logger, coord Coordinator, sysInfo SysInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info := sysInfo
		info.GoVersion = runtime.Version()
		info.State = coord.State().String()
		info.RetryPending = coord.RetryPending()
		writeJSON(w, logger, http.StatusOK, info)
	}
}
