package command

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func newTestExecutor(t *testing.T, h http.HandlerFunc) *Executor {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	e, err := NewExecutor(context.Background(), Options{
		CalendarEndpoint: srv.URL + "/calendar/v3/",
		DriveEndpoint:    srv.URL + "/drive/v3/",
		GmailEndpoint:    srv.URL + "/",
		Timeout:          time.Second,
		HTTPClient:       srv.Client(),
	})
	require.NoError(t, err)

	return e
}

func TestExecute_Calendar(t *testing.T) {
	e := newTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/calendar/v3/calendars/primary/events", r.URL.Path)

		var body struct {
			Summary string `json:"summary"`
			Start   struct {
				DateTime string `json:"dateTime"`
			} `json:"start"`
			End struct {
				DateTime string `json:"dateTime"`
				TimeZone string `json:"timeZone"`
			} `json:"end"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "standup", body.Summary)
		assert.Equal(t, "2025-03-01T09:00:00", body.Start.DateTime)
		assert.Equal(t, "2025-03-01T09:15:00", body.End.DateTime)
		assert.Equal(t, "UTC", body.End.TimeZone)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"evt_1"}`))
	})

	out, err := e.Execute(context.Background(), CalendarEvent{
		Name:  "standup",
		Start: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 1, 9, 15, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "Event created: evt_1", out)
}

func TestExecute_DriveMultipart(t *testing.T) {
	e := newTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/files"), r.URL.Path)
		assert.Equal(t, "multipart", r.URL.Query().Get("uploadType"))

		mt, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		assert.Equal(t, "multipart/related", mt)

		mr := multipart.NewReader(r.Body, params["boundary"])

		meta, err := mr.NextPart()
		require.NoError(t, err)
		var m map[string]any
		require.NoError(t, json.NewDecoder(meta).Decode(&m))
		assert.Equal(t, "notes", m["name"])
		assert.Equal(t, "text/plain", m["mimeType"])

		media, err := mr.NextPart()
		require.NoError(t, err)
		b, _ := io.ReadAll(media)
		assert.Equal(t, "buy milk", string(b))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"file_9"}`))
	})

	out, err := e.Execute(context.Background(), DriveUpload{Name: "notes", Contents: "buy milk"})
	require.NoError(t, err)
	assert.Equal(t, "File uploaded: file_9", out)
}

func TestExecute_MailDraft(t *testing.T) {
	e := newTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gmail/v1/users/me/drafts", r.URL.Path)

		var body struct {
			Message struct {
				Raw string `json:"raw"`
			} `json:"message"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		raw, err := base64.URLEncoding.DecodeString(body.Message.Raw)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(raw), "To: bob@example.com\r\nSubject: hello\r\n"))
		assert.True(t, strings.HasSuffix(string(raw), "\r\n\r\nsee you"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"r-1","message":{"id":"m-1"}}`))
	})

	out, err := e.Execute(context.Background(), MailDraft{To: "bob@example.com", Subject: "hello", Body: "see you"})
	require.NoError(t, err)
	assert.Equal(t, "Draft created: r-1", out)
}

func TestExecute_APIError(t *testing.T) {
	e := newTestExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"insufficient scope"}}`))
	})

	_, err := e.Execute(context.Background(), CalendarEvent{Name: "x"})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), string(KindCalendar)+": "))

	var gerr *googleapi.Error
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, http.StatusForbidden, gerr.Code)
}

func TestRFC822_EncodesSubject(t *testing.T) {
	raw := string(rfc822(MailDraft{To: "a@b.c", Subject: "héllo", Body: "x"}))
	assert.Contains(t, raw, "Subject: =?utf-8?q?")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nx"))
}

type bogus struct{}

func (bogus) Kind() Kind { return KindUnknown }

func TestExecute_UnsupportedCommand(t *testing.T) {
	e, err := NewExecutor(context.Background(), Options{})
	require.NoError(t, err)

	_, err = e.Execute(context.Background(), bogus{})
	assert.ErrorIs(t, err, ErrUnknownCommand)
}
