package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/intelliweb/internal/assistant"
	"github.com/mohammad-safakhou/intelliweb/models"
)

// Assistant is what the chat API needs from the pipeline.
type Assistant interface {
	NewSession(ctx context.Context) (string, error)
	EndSession(ctx context.Context, sessionID string) error
	Transcript(ctx context.Context, sessionID string) (models.Transcript, error)
	ProcessTurn(ctx context.Context, sessionID, query string, stream bool) (*assistant.TurnResult, error)
}

type SessionsHandler struct {
	Assistant Assistant
}

func (h *SessionsHandler) Register(g *echo.Group) {
	g.POST("", h.create)
	g.GET("/:id/transcript", h.transcript)
	g.DELETE("/:id", h.delete)
	g.POST("/:id/turns", h.turn)
}

type SessionResponse struct {
	SessionID string `json:"session_id"`
}

type TurnRequest struct {
	Query  string `json:"query"`
	Stream bool   `json:"stream"`
}

type TurnResponse struct {
	Answer     string        `json:"answer"`
	References []string      `json:"references"`
	Source     models.Source `json:"source"`
	FollowUps  []string      `json:"follow_ups"`
}

// DoneEvent closes a streamed turn.
type DoneEvent struct {
	References []string      `json:"references"`
	Source     models.Source `json:"source"`
	FollowUps  []string      `json:"follow_ups"`
}

type TokenEvent struct {
	Token string `json:"token"`
}

func (h *SessionsHandler) create(c echo.Context) error {
	id, err := h.Assistant.NewSession(c.Request().Context())
	if err != nil {
		return apiError(err)
	}
	return c.JSON(http.StatusCreated, SessionResponse{SessionID: id})
}

func (h *SessionsHandler) transcript(c echo.Context) error {
	t, err := h.Assistant.Transcript(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apiError(err)
	}
	if t == nil {
		t = models.Transcript{}
	}
	return c.JSON(http.StatusOK, t)
}

func (h *SessionsHandler) delete(c echo.Context) error {
	if err := h.Assistant.EndSession(c.Request().Context(), c.Param("id")); err != nil {
		return apiError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *SessionsHandler) turn(c echo.Context) error {
	var req TurnRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	res, err := h.Assistant.ProcessTurn(c.Request().Context(), c.Param("id"), req.Query, req.Stream)
	if err != nil {
		return apiError(err)
	}
	if req.Stream {
		return streamTurn(c, res)
	}
	return c.JSON(http.StatusOK, TurnResponse{
		Answer:     res.Answer,
		References: nonNil(res.References),
		Source:     res.Source,
		FollowUps:  nonNil(res.FollowUps()),
	})
}

// streamTurn writes each token as a data frame and finishes with a done
// event. A client that goes away closes the stream, so nothing is recorded.
func streamTurn(c echo.Context, res *assistant.TurnResult) error {
	defer res.Stream.Close()
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctx := c.Request().Context()
	for {
		if ctx.Err() != nil {
			return nil
		}
		tok, err := res.Stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			httpLogger.Printf("stream aborted: %v", err)
			return writeEvent(w, "error", map[string]string{"error": fmt.Errorf("%w: %w", assistant.ErrSynthesis, err).Error()})
		}
		if err := writeEvent(w, "", TokenEvent{Token: tok}); err != nil {
			return nil
		}
	}
	return writeEvent(w, "done", DoneEvent{
		References: nonNil(res.References),
		Source:     res.Source,
		FollowUps:  nonNil(res.FollowUps()),
	})
}

func writeEvent(w *echo.Response, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	w.Flush()
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
