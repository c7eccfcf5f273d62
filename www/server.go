package www

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/icodeforyou/ostrom-go/config"
	"github.com/icodeforyou/ostrom-go/coordinator"
	"github.com/icodeforyou/ostrom-go/database"
	"github.com/icodeforyou/ostrom-go/hours"
	"github.com/icodeforyou/ostrom-go/sensor"
	"github.com/icodeforyou/ostrom-go/types"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Coordinator is the part of the refresh coordinator the server reads from.
type Coordinator interface {
	Snapshot() (types.Snapshot, bool)
	Refresh(ctx context.Context) types.Snapshot
	Reinitialize(ctx context.Context) types.Snapshot
	State() coordinator.State
	RetryPending() bool
}

// Store is the part of the database the server reads from.
type Store interface {
	GetLogEntries(ctx context.Context, minLvl slog.Level, page, pageSize int) ([]database.LogEntryRow, error)
	SpotPricesFrom(ctx context.Context, from time.Time) ([]types.SpotPrice, error)
}

type Server struct {
	logger  *slog.Logger
	config  config.AppConfigApi
	coord   Coordinator
	hub     *Hub
	mux     *http.ServeMux
	loc     *time.Location
	now     func() time.Time
	sysInfo SysInfo
}

func NewServer(coord Coordinator, db Store, config config.AppConfigApi, version string) *Server {
	logger := slog.Default().With("module", "www")

	s := &Server{
		logger: logger,
		config: config,
		coord:  coord,
		hub:    NewHub(logger),
		mux:    http.NewServeMux(),
		loc:    hours.Location(),
		now:    time.Now,
		sysInfo: SysInfo{
			Version:   version,
			StartedAt: time.Now(),
		},
	}

	logReqMW := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.logger.Debug("http request",
				slog.String("method", r.Method),
				slog.String("url", r.URL.String()),
				slog.String("remoteAddr", r.RemoteAddr))
			next.ServeHTTP(w, r)
		})
	}

	handler := func(name string) *slog.Logger {
		return logger.With(slog.String("handler", name))
	}

	s.mux.Handle("GET /api/snapshot", logReqMW(NewSnapshotHandler(handler("snapshot"), coord)))
	s.mux.Handle("GET /api/forecast", logReqMW(NewForecastHandler(handler("forecast"), coord, s.clock)))
	s.mux.Handle("GET /api/minimum", logReqMW(NewMinimumHandler(handler("minimum"), coord, s.clock)))
	s.mux.Handle("POST /api/refresh", logReqMW(NewRefreshHandler(handler("refresh"), coord)))
	s.mux.Handle("GET /api/chart", logReqMW(NewChartHandler(handler("chart"), coord, s.clock, s.loc)))
	s.mux.Handle("GET /api/prices", logReqMW(NewPricesHandler(handler("prices"), db, s.clock, s.loc)))
	s.mux.Handle("GET /api/log", logReqMW(NewLogHandler(handler("log"), db)))
	s.mux.Handle("GET /api/sys_info", logReqMW(NewSysInfoHandler(handler("sys_info"), coord, s.sysInfo)))
	s.mux.Handle("GET /metrics", promhttp.Handler())

	s.mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		name := r.Header.Get("User-Agent")
		client, err := NewClient(s.hub, w, r, name)
		if err != nil {
			s.logger.Error("new websocket client failed", slog.Any("error", err))
			return
		}
		if snap, ok := coord.Snapshot(); ok {
			if msg, err := json.Marshal(sensor.FromSnapshot(snap)); err == nil {
				client.send <- msg
			}
		}
		select {
		case s.hub.Register <- client:
			go client.WritePump()
		case <-s.hub.Done():
			client.conn.Close()
		}
	})

	return s
}

func (s *Server) clock() time.Time {
	return s.now()
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Publish pushes the sensor state of snap to every websocket client.
func (s *Server) Publish(snap types.Snapshot) {
	msg, err := json.Marshal(sensor.FromSnapshot(snap))
	if err != nil {
		s.logger.Error("marshalling sensor state failed", slog.Any("error", err))
		return
	}
	select {
	case s.hub.Broadcast <- msg:
	default:
		s.logger.Warn("websocket hub busy, dropping update")
	}
}

func (s *Server) Run(ctx context.Context) {
	s.logger.Info("starting server...", "port", s.config.Port)
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.config.Address, s.config.Port),
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.hub.Run(ctx)

	srvErrors := make(chan error, 1)
	go func() {
		srvErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-srvErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", slog.Any("error", err))
		}

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown failed", slog.Any("error", err))
		}
	}
}
