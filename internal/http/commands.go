package http

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/jrjocham/apihub/internal/metrics"
	"github.com/jrjocham/apihub/internal/model"
)

const CommandAck = "Command received. You will get a reply shortly."

type CommandPublisher interface {
	PublishCommand(ctx context.Context, env model.CommandEnvelope) error
}

// commandsHandler queues the command for the worker, which parses it and
// replies out of band.
func commandsHandler(p CommandPublisher) echo.HandlerFunc {
	return func(c echo.Context) error {
		msg := inbound(c)
		env := model.CommandEnvelope{
			ID:   uuid.NewString(),
			From: msg.From,
			Text: strings.TrimSpace(msg.Body),
		}
		if err := p.PublishCommand(c.Request().Context(), env); err != nil {
			return fmt.Errorf("enqueue command: %w", err)
		}

		metrics.CommandsTotal.WithLabelValues("queued", "pending").Inc()

		return reply(c, CommandAck)
	}
}
