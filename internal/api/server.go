package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/kestrelhq/respond/internal/api/middleware"
	"github.com/kestrelhq/respond/internal/log"
)

// Server wraps a gin.Engine with the lifecycle methods cmd/respondd
// drives from an fx.Hook.
type Server struct {
	*gin.Engine

	Config Config
	server *http.Server
}

func New(config Config) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.Recovery())
	engine.Use(middleware.WithTrace(config.Trace))
	engine.Use(middleware.AccessLog())

	if config.CORS.Enabled {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = config.CORS.AllowedOrigins
		corsConfig.AllowMethods = config.CORS.AllowedMethods
		corsConfig.AllowHeaders = config.CORS.AllowedHeaders
		corsConfig.ExposeHeaders = config.CORS.ExposedHeaders
		corsConfig.AllowCredentials = config.CORS.AllowCredentials
		corsConfig.MaxAge = config.CORS.MaxAge

		corsHandler := cors.New(corsConfig)
		engine.Use(corsHandler)
		engine.OPTIONS("*any", corsHandler)
	}

	return &Server{Config: config, Engine: engine}
}

func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)

	log.Info(context.Background(), "run server", log.String("addr", addr))

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Engine,
		ReadTimeout:  s.Config.ReadTimeout,
		WriteTimeout: max(s.Config.RequestTimeout, s.Config.LLMRequestTimeout),
	}

	err := s.server.ListenAndServe()
	if err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	return s.server.Shutdown(ctx)
}
