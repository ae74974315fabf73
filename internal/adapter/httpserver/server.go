package httpserver

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/magicaleks/qudata-broker/internal/impls"
)

type Server struct {
	http *http.Server
}

func NewServer(port int, api *API, secret string, logger impls.Logger) *Server {
	if strings.TrimSpace(secret) == "" {
		logger.Warn("server.secret is empty: API authentication is DISABLED; set server.secret or BROKER_SECRET")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.CustomRecovery(requestRecoveryWithLog(logger)))
	router.Use(requestLogger(logger))
	router.Use(authMiddleware(secret))
	api.RegisterRoutes(router)

	s := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", port),
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{http: s}
}

func (s *Server) Run() error {
	return s.http.ListenAndServe()
}
