/*
Package server implements the application's network transport layer.
It initializes the HTTP server, configures timeouts, and wires the
nutrition pipeline and the optional database into the router.
*/
package server

import (
	"fmt"
	"net/http"
	"time"

	"NutriLens/internal/config"
	"NutriLens/internal/database"
	"NutriLens/internal/nutrition"
	"NutriLens/internal/utility"
)

// Server defines the configuration and dependencies for the HTTP service.
type Server struct {
	// port specifies the TCP port the server will listen on.
	port int

	cfg *config.Config

	// db is nil when persistence is disabled.
	db database.Service

	nutrition *nutrition.Service
	limiter   *utility.IPRateLimiter
	startTime time.Time
}

// New builds the Server without binding a listener.
func New(cfg *config.Config, db database.Service, svc *nutrition.Service) *Server {
	return &Server{
		port:      cfg.Port,
		cfg:       cfg,
		db:        db,
		nutrition: svc,
		limiter:   utility.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		startTime: time.Now(),
	}
}

// NewServer returns a configured *http.Server with production-ready network timeouts.
func NewServer(cfg *config.Config, db database.Service, svc *nutrition.Service) *http.Server {
	newApp := New(cfg, db, svc)

	// WriteTimeout must outlast a full candidate walk against the upstream model.
	writeTimeout := 30 * time.Second
	if walk := cfg.GeminiTimeout*time.Duration(cfg.GeminiMaxCandidates) + 5*time.Second; walk > writeTimeout {
		writeTimeout = walk
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", newApp.port),
		Handler:      newApp.RegisterRoutes(),
		IdleTimeout:  time.Minute,      // Time to wait for the next request on keep-alive connections.
		ReadTimeout:  10 * time.Second, // Maximum duration for reading the entire request.
		WriteTimeout: writeTimeout,
	}

	return server
}
