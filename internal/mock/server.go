// Package mock serves a stand-in for the transaction ingestion endpoint so
// load tests can run without the fraud pipeline.
package mock

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fraudload/internal/payload"
)

const (
	IngestPath     = "/api/v1/transactions"
	defaultRecent  = 50
	recentCapacity = 500
)

type Config struct {
	Port         int
	Latency      time.Duration // added before every response
	FailureRatio float64       // share of accepted payloads answered with 500
}

func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("mock: port %d out of range", c.Port)
	}
	if c.Latency < 0 {
		return fmt.Errorf("mock: latency must not be negative, got %v", c.Latency)
	}
	if c.FailureRatio < 0 || c.FailureRatio > 1 {
		return fmt.Errorf("mock: failure ratio must be within [0,1], got %v", c.FailureRatio)
	}
	return nil
}

// Counters is what the mock has seen so far.
type Counters struct {
	Accepted uint64 `json:"accepted"`
	Rejected uint64 `json:"rejected"`
	Failed   uint64 `json:"failed"`
}

type Server struct {
	cfg    Config
	log    *zap.Logger
	router *gin.Engine
	srv    *http.Server

	seq      uint64
	accepted uint64
	rejected uint64
	failed   uint64

	mu     sync.Mutex
	recent []payload.TransactionRecord
}

func New(cfg Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	s := &Server{
		cfg:    cfg,
		log:    log,
		router: router,
	}

	router.GET("/healthz", s.handleHealth)
	api := router.Group(IngestPath)
	{
		api.POST("", s.handleIngest)
		api.GET("", s.handleRecent)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              ":" + strconv.Itoa(s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("mock ingestion endpoint listening",
			zap.String("addr", s.srv.Addr),
			zap.Duration("latency", s.cfg.Latency),
			zap.Float64("failure_ratio", s.cfg.FailureRatio),
		)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	c := s.Counters()
	s.log.Info("mock ingestion endpoint stopped",
		zap.Uint64("accepted", c.Accepted),
		zap.Uint64("rejected", c.Rejected),
		zap.Uint64("failed", c.Failed),
	)
	return nil
}

func (s *Server) Counters() Counters {
	return Counters{
		Accepted: atomic.LoadUint64(&s.accepted),
		Rejected: atomic.LoadUint64(&s.rejected),
		Failed:   atomic.LoadUint64(&s.failed),
	}
}

func (s *Server) handleIngest(c *gin.Context) {
	var rec payload.TransactionRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		atomic.AddUint64(&s.rejected, 1)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if s.cfg.Latency > 0 {
		t := time.NewTimer(s.cfg.Latency)
		select {
		case <-t.C:
		case <-c.Request.Context().Done():
			t.Stop()
			return
		}
	}

	n := atomic.AddUint64(&s.seq, 1) - 1
	if shouldFail(n, s.cfg.FailureRatio) {
		atomic.AddUint64(&s.failed, 1)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "injected failure"})
		return
	}

	atomic.AddUint64(&s.accepted, 1)
	s.remember(rec)
	c.JSON(http.StatusAccepted, rec)
}

func (s *Server) handleRecent(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultRecent)))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return
	}
	c.JSON(http.StatusOK, s.Recent(limit))
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.Counters())
}

func (s *Server) remember(rec payload.TransactionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.recent) == recentCapacity {
		copy(s.recent, s.recent[1:])
		s.recent = s.recent[:recentCapacity-1]
	}
	s.recent = append(s.recent, rec)
}

// Recent returns up to limit accepted records, newest first.
func (s *Server) Recent(limit int) []payload.TransactionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.recent) {
		limit = len(s.recent)
	}
	res := make([]payload.TransactionRecord, 0, limit)
	for i := len(s.recent) - 1; i >= 0 && len(res) < limit; i-- {
		res = append(res, s.recent[i])
	}
	return res
}

// shouldFail spreads failures evenly: request n (0-based) fails when it
// pushes floor(count*ratio) up by one, so any prefix of N requests holds
// floor(N*ratio) failures.
func shouldFail(n uint64, ratio float64) bool {
	if ratio <= 0 {
		return false
	}
	if ratio >= 1 {
		return true
	}
	return math.Floor(float64(n+1)*ratio) > math.Floor(float64(n)*ratio)
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if ce := log.Check(zap.DebugLevel, "request"); ce != nil {
			ce.Write(
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", c.Writer.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("request_tag", c.GetHeader("X-Request-Tag")),
			)
		}
	}
}
