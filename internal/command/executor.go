package command

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/jrjocham/apihub/internal/config"
)

// Scopes requested from Application Default Credentials.
var Scopes = []string{
	calendar.CalendarEventsScope,
	drive.DriveFileScope,
	gmail.GmailComposeScope,
}

type Options struct {
	CalendarEndpoint string
	DriveEndpoint    string
	GmailEndpoint    string
	Timeout          time.Duration
	// HTTPClient must attach credentials; NewGoogleHTTPClient builds one.
	HTTPClient *http.Client
}

func OptionsFrom(cfg config.CloudConfig, hc *http.Client) Options {
	return Options{
		CalendarEndpoint: cfg.CalendarEndpoint,
		DriveEndpoint:    cfg.DriveEndpoint,
		GmailEndpoint:    cfg.GmailEndpoint,
		Timeout:          cfg.Timeout,
		HTTPClient:       hc,
	}
}

// NewGoogleHTTPClient returns a client authorized with Application Default
// Credentials (GOOGLE_APPLICATION_CREDENTIALS or the metadata server).
func NewGoogleHTTPClient(ctx context.Context, timeout time.Duration) (*http.Client, error) {
	hc, err := google.DefaultClient(ctx, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("google default credentials: %w", err)
	}

	hc.Timeout = timeout

	return hc, nil
}

type Executor struct {
	calendar *calendar.Service
	drive    *drive.Service
	gmail    *gmail.Service
}

func NewExecutor(ctx context.Context, opts Options) (*Executor, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	clientOpts := func(endpoint string) []option.ClientOption {
		o := []option.ClientOption{option.WithHTTPClient(hc)}
		if endpoint != "" {
			o = append(o, option.WithEndpoint(endpoint))
		}
		return o
	}

	cal, err := calendar.NewService(ctx, clientOpts(opts.CalendarEndpoint)...)
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}

	drv, err := drive.NewService(ctx, clientOpts(opts.DriveEndpoint)...)
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}

	gm, err := gmail.NewService(ctx, clientOpts(opts.GmailEndpoint)...)
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}

	return &Executor{calendar: cal, drive: drv, gmail: gm}, nil
}

// Execute runs cmd and returns a confirmation carrying the created resource id.
// API failures wrap *googleapi.Error.
func (e *Executor) Execute(ctx context.Context, cmd Command) (string, error) {
	switch c := cmd.(type) {
	case CalendarEvent:
		id, err := e.createEvent(ctx, c)
		if err != nil {
			return "", fmt.Errorf("%s: %w", KindCalendar, err)
		}
		return "Event created: " + id, nil
	case DriveUpload:
		id, err := e.uploadFile(ctx, c)
		if err != nil {
			return "", fmt.Errorf("%s: %w", KindDrive, err)
		}
		return "File uploaded: " + id, nil
	case MailDraft:
		id, err := e.createDraft(ctx, c)
		if err != nil {
			return "", fmt.Errorf("%s: %w", KindMail, err)
		}
		return "Draft created: " + id, nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}
}

func (e *Executor) createEvent(ctx context.Context, c CalendarEvent) (string, error) {
	ev, err := e.calendar.Events.Insert("primary", &calendar.Event{
		Summary: c.Name,
		Start:   &calendar.EventDateTime{DateTime: c.Start.Format(TimeLayout), TimeZone: "UTC"},
		End:     &calendar.EventDateTime{DateTime: c.End.Format(TimeLayout), TimeZone: "UTC"},
	}).Context(ctx).Do()
	if err != nil {
		return "", err
	}

	return ev.Id, nil
}

func (e *Executor) uploadFile(ctx context.Context, c DriveUpload) (string, error) {
	f, err := e.drive.Files.Create(&drive.File{Name: c.Name, MimeType: "text/plain"}).
		Media(strings.NewReader(c.Contents), googleapi.ContentType("text/plain")).
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}

	return f.Id, nil
}

func (e *Executor) createDraft(ctx context.Context, c MailDraft) (string, error) {
	d, err := e.gmail.Users.Drafts.Create("me", &gmail.Draft{
		Message: &gmail.Message{Raw: base64.URLEncoding.EncodeToString(rfc822(c))},
	}).Context(ctx).Do()
	if err != nil {
		return "", err
	}

	return d.Id, nil
}

// rfc822 renders a plain-text message for the Gmail raw field.
func rfc822(c MailDraft) []byte {
	var msg strings.Builder
	msg.WriteString("To: " + c.To + "\r\n")
	msg.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", c.Subject) + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(c.Body)

	return []byte(msg.String())
}
