// Package web serves the QuickDesk UI: server-rendered pages and
// fragments over gin, plus an SSE stream of notifications.
package web

import (
	"context"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/zulandar/quickdesk/internal/app"
	"github.com/zulandar/quickdesk/internal/render"
)

// StartOpts holds configuration for the UI server.
type StartOpts struct {
	Controller *app.Controller
	Port       int
	Out        io.Writer
	Logger     zerolog.Logger
}

// Start launches the UI server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Controller == nil {
		return fmt.Errorf("web: controller is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router, err := NewRouter(opts.Controller, opts.Logger)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "QuickDesk running at http://localhost:%d\n", opts.Port)
	}
	opts.Logger.Info().Int("port", opts.Port).Msg("web server listening")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine with templates and routes registered.
func NewRouter(ctrl *app.Controller, log zerolog.Logger) (*gin.Engine, error) {
	if ctrl == nil {
		return nil, fmt.Errorf("web: controller is required")
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("web: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	fragments, err := render.NewHTML()
	if err != nil {
		return nil, fmt.Errorf("web: %w", err)
	}

	h := &handlers{ctrl: ctrl, html: fragments, log: log}
	registerRoutes(router, h)
	return router, nil
}

// parseTemplates loads the embedded page templates.
func parseTemplates() (*template.Template, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}

// requestLogger logs each request at debug level.
func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	}
}
