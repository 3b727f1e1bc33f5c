package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mohammad-safakhou/intelliweb/internal/assistant"
	"github.com/mohammad-safakhou/intelliweb/internal/runtime"
	"github.com/mohammad-safakhou/intelliweb/models"
)

var httpLogger = log.New(log.Writer(), "[HTTP] ", log.LstdFlags)

// New builds the chat API around a.
func New(a Assistant, tel *runtime.Telemetry) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = errorHandler
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(tel.MetricsHandler()))

	h := &SessionsHandler{Assistant: a}
	h.Register(e.Group("/api/sessions"))
	return e
}

// errorHandler logs every failed request and answers with {"error": msg}.
func errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
	}
	req := c.Request()
	httpLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
	if !c.Response().Committed {
		_ = c.JSON(code, map[string]string{"error": msg})
	}
}

// apiError maps pipeline errors onto HTTP statuses.
func apiError(err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrSessionNotFound):
		code = http.StatusNotFound
	case errors.Is(err, assistant.ErrEmptyQuery):
		code = http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidTurn):
		code = http.StatusConflict
	case errors.Is(err, assistant.ErrSynthesis):
		code = http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		code = http.StatusServiceUnavailable
	}
	return echo.NewHTTPError(code, err.Error()).SetInternal(err)
}

// Run serves e on addr until ctx is cancelled, then drains in-flight requests.
func Run(ctx context.Context, e *echo.Echo, addr string) error {
	errc := make(chan error, 1)
	go func() {
		httpLogger.Printf("listening on %s", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpLogger.Printf("shutting down")
	return e.Shutdown(shutdownCtx)
}
