// Package webstatus serves the shared telemetry snapshot to browsers: a
// JSON status endpoint for one-shot reads and a websocket that pushes
// the snapshot on the configured refresh interval. It only ever reads
// the state store.
package webstatus

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	bridge "github.com/enVId-tech/Forza-Telemetry-Interpreter"
)

type Server struct {
	store    *bridge.StateStore
	interval time.Duration
	upgrader websocket.Upgrader
	srv      *http.Server
}

func New(store *bridge.StateStore, interval time.Duration) *Server {
	return &Server{
		store:    store,
		interval: interval,
		upgrader: websocket.Upgrader{
			// the dashboard is served from anywhere on the bench network
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Router builds the HTTP surface. Split out from Run for tests.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/api/status", s.status)
	r.GET("/ws", s.push)
	return r
}

// Run serves until Shutdown.
func (s *Server) Run(addr string) error {
	s.srv = &http.Server{Addr: addr, Handler: s.Router()}
	log.WithField("listen", addr).Info("status server started")
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Snapshot())
}

func (s *Server) push(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithField("err", err).Warn("websocket upgrade failed")
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.WithField("err", err).Debug("unable to close websocket")
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for range ticker.C {
		if err := conn.SetWriteDeadline(time.Now().Add(time.Second)); err != nil {
			return
		}
		if err := conn.WriteJSON(s.store.Snapshot()); err != nil {
			return
		}
	}
}
