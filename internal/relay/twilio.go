// Package relay sends outbound WhatsApp messages through the relay
// provider's Messages API.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	api "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/jrjocham/apihub/internal/config"
	"github.com/jrjocham/apihub/internal/util"
)

var ErrNotConfigured = errors.New("relay credentials not configured")

type Options struct {
	APIBase    string // scheme and host only; empty keeps the SDK default
	AccountSID string
	AuthToken  string
	FromNumber string
	Timeout    time.Duration
}

func OptionsFrom(cfg config.RelayConfig, accountSID, authToken, fromNumber string) Options {
	return Options{
		APIBase:    cfg.APIBase,
		AccountSID: accountSID,
		AuthToken:  authToken,
		FromNumber: fromNumber,
		Timeout:    cfg.Timeout,
	}
}

type Client struct {
	rest *twilio.RestClient
	from string
}

func NewClient(opts Options) (*Client, error) {
	if opts.AccountSID == "" || opts.AuthToken == "" || opts.FromNumber == "" {
		return nil, ErrNotConfigured
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	hc := &http.Client{Timeout: opts.Timeout}
	if opts.APIBase != "" {
		base, err := url.Parse(opts.APIBase)
		if err != nil || base.Host == "" {
			return nil, fmt.Errorf("relay api base %q: invalid url", opts.APIBase)
		}
		hc.Transport = &rebase{to: base, next: http.DefaultTransport}
	}

	c := &client.Client{
		Credentials: client.NewCredentials(opts.AccountSID, opts.AuthToken),
		HTTPClient:  hc,
	}
	c.SetAccountSid(opts.AccountSID)

	return &Client{
		rest: twilio.NewRestClientWithParams(twilio.ClientParams{Client: c}),
		from: util.WhatsAppAddress(opts.FromNumber),
	}, nil
}

// Send delivers body to a WhatsApp recipient and returns the message sid.
// API failures come back as *client.TwilioRestError.
func (c *Client) Send(ctx context.Context, to, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &api.CreateMessageParams{}
	params.SetFrom(c.from)
	params.SetTo(util.WhatsAppAddress(to))
	params.SetBody(body)

	msg, err := c.rest.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("relay send: %w", err)
	}

	if msg.Sid == nil {
		return "", nil
	}

	return *msg.Sid, nil
}

// rebase points SDK requests at another scheme and host, keeping the path.
type rebase struct {
	to   *url.URL
	next http.RoundTripper
}

func (r *rebase) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = r.to.Scheme
	out.URL.Host = r.to.Host
	out.Host = r.to.Host

	return r.next.RoundTrip(out)
}
