package http

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/jrjocham/apihub/internal/model"
)

type Router interface {
	Route(ctx context.Context, msg model.InboundMessage) string
}

// whatsappHandler answers every relay delivery with 200 and TwiML; the
// router turns agent failures into reply text.
func whatsappHandler(r Router) echo.HandlerFunc {
	return func(c echo.Context) error {
		return reply(c, r.Route(c.Request().Context(), inbound(c)))
	}
}

// inbound reads the relay's form fields. A malformed form yields whatever
// fields did parse, so the sender still gets a TwiML answer instead of a 400.
func inbound(c echo.Context) model.InboundMessage {
	return model.InboundMessage{
		From:       c.FormValue("From"),
		Body:       c.FormValue("Body"),
		MessageSid: c.FormValue("MessageSid"),
	}
}
