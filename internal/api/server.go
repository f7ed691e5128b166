package api

import (
	"context"
	"errors"
	"net/http"
	"signalbot/internal/audit"
	"signalbot/internal/logger"
	"signalbot/internal/metrics"
	"signalbot/internal/models"
	"signalbot/internal/tracker"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

// Server exposes tracker state and metrics over HTTP. All routes are read-only.
type Server struct {
	router  *gin.Engine
	addr    string
	tracker *tracker.Tracker
	history audit.Reader
	log     *logger.Logger
	started time.Time
}

// NewServer builds the router. history may be nil when the audit driver cannot be queried.
func NewServer(addr string, tr *tracker.Tracker, history audit.Reader, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:  gin.New(),
		addr:    addr,
		tracker: tr,
		history: history,
		log:     log,
		started: time.Now(),
	}
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes()
	return s
}

func (s *Server) logEntry() *logrus.Entry {
	return s.log.WithComponent("api")
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := s.router.Group("/api")
	{
		api.GET("/orders", s.handleOrders)
		api.GET("/orders/:ticket", s.handleOrder)
		api.GET("/history", s.handleHistory)
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logEntry().WithField("addr", s.addr).Info("HTTP-сервер запущен.")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logEntry().Info("HTTP-сервер остановлен.")
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logEntry().WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("HTTP-запрос.")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"uptime":  time.Since(s.started).Round(time.Second).String(),
		"tracked": s.tracker.Len(),
	})
}

// handleOrders lists tracked orders, optionally filtered by ?status=PENDING|ACTIVE_POSITION.
func (s *Server) handleOrders(c *gin.Context) {
	orders := s.tracker.Snapshot()

	if status := strings.ToUpper(strings.TrimSpace(c.Query("status"))); status != "" {
		filtered := make([]models.TrackedOrder, 0, len(orders))
		for _, o := range orders {
			if string(o.Status) == status {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}

	c.JSON(http.StatusOK, gin.H{
		"orders":    orders,
		"count":     len(orders),
		"by_status": s.tracker.CountByStatus(),
	})
}

func (s *Server) handleOrder(c *gin.Context) {
	order, ok := s.tracker.Get(models.Ticket(c.Param("ticket")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "ордер не найден"})
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "история недоступна для текущего драйвера аудита"})
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "некорректный limit"})
			return
		}
		limit = n
	}

	orders, err := s.history.Recent(limit)
	if err != nil {
		s.logEntry().WithError(err).Error("Не удалось прочитать историю ордеров.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ошибка чтения истории"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}
