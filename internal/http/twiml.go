package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/twilio/twilio-go/twiml"
)

// renderTwiML builds a <Response> with one <Message> per text. No texts gives
// an empty response, which the relay treats as "no reply".
func renderTwiML(texts ...string) (string, error) {
	verbs := make([]twiml.Element, 0, len(texts))
	for _, t := range texts {
		verbs = append(verbs, &twiml.MessagingMessage{Body: t})
	}

	return twiml.Messages(verbs)
}

func reply(c echo.Context, texts ...string) error {
	doc, err := renderTwiML(texts...)
	if err != nil {
		return err
	}

	return c.Blob(http.StatusOK, echo.MIMETextXMLCharsetUTF8, []byte(doc))
}
