// Package api serves the peer's introspection endpoints: health, metrics and
// read-only views of the mirrored archives.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dyluth/parliament/pkg/parliament"
	"github.com/gin-gonic/gin"
	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	healthTimeout   = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Peer is the subset of a parliament peer the server reads from.
type Peer interface {
	Name() string
	Role() parliament.Role
	Joined() bool
	Backend() *parliament.Backend
	Store() *parliament.Store
	Subscriptions() *parliament.Subscriptions
}

// Server exposes a peer over HTTP.
type Server struct {
	peer   Peer
	addr   string
	engine *gin.Engine
}

// NewServer creates a server for peer listening on addr.
func NewServer(peer Peer, addr string) *Server {
	s := &Server{peer: peer, addr: addr}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	engine.GET("/healthz", s.health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/archives", s.listArchives)
	engine.GET("/archives/:class/:attr/:value", s.getArchive)
	engine.GET("/subscriptions", s.listSubscriptions)
	s.engine = engine

	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.engine,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		glog.Infof("[API] Listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server on %s: %w", s.addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down api server: %w", err)
		}
		return nil
	}
}

// HealthResponse is the JSON body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Joined bool   `json:"joined"`
	Redis  string `json:"redis,omitempty"`
	Error  string `json:"error,omitempty"`
}

// health returns 200 while Redis is reachable and 503 otherwise.
func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	resp := HealthResponse{
		Status: "healthy",
		Name:   s.peer.Name(),
		Role:   string(s.peer.Role()),
		Joined: s.peer.Joined(),
		Redis:  "connected",
	}

	if err := s.peer.Backend().Ping(ctx); err != nil {
		resp.Status = "unhealthy"
		resp.Redis = "disconnected"
		resp.Error = err.Error()
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ArchiveList is the JSON body of GET /archives.
type ArchiveList struct {
	Count    int              `json:"count"`
	Archives []parliament.Key `json:"archives"`
}

func (s *Server) listArchives(c *gin.Context) {
	keys := s.peer.Store().Keys()
	c.JSON(http.StatusOK, ArchiveList{Count: len(keys), Archives: keys})
}

func (s *Server) getArchive(c *gin.Context) {
	key := parliament.Key{
		Class: c.Param("class"),
		Attr:  c.Param("attr"),
		Value: c.Param("value"),
	}

	archive, ok := s.peer.Store().Get(key)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no archive for %s", key)})
		return
	}

	snapshot, err := archive.Snapshot()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Data(http.StatusOK, "application/json", snapshot)
}

// listSubscriptions reports the observer table as this peer sees it. Only a
// senator holds a populated table.
func (s *Server) listSubscriptions(c *gin.Context) {
	subs := s.peer.Subscriptions()
	out := make(map[string][]parliament.Key)
	for _, name := range subs.Names() {
		out[name] = subs.Keys(name)
	}
	c.JSON(http.StatusOK, out)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if glog.V(2) {
			glog.Infof("[API] %s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
		}
	}
}
