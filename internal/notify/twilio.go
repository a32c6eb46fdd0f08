// Package notify wraps the notification service collaborator.
//
// This file implements SMS delivery via the Twilio REST API.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Opts holds configuration options for the Twilio SMS client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	Resolver   RecipientResolver
}

// Option defines a configuration option for the Twilio SMS client.
type Option func(*Opts)

// RecipientResolver maps an owner id to a deliverable phone number.
type RecipientResolver func(ownerID string) (string, error)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromNumber sets the sending phone number.
func WithFromNumber(from string) Option {
	return func(o *Opts) { o.FromNumber = from }
}

// WithRecipientResolver sets the owner-to-phone-number resolver.
func WithRecipientResolver(r RecipientResolver) Option {
	return func(o *Opts) { o.Resolver = r }
}

// WithStaticRecipient delivers every notification to a single number,
// which fits single-user deployments.
func WithStaticRecipient(number string) Option {
	return func(o *Opts) {
		o.Resolver = func(string) (string, error) { return number, nil }
	}
}

// TwilioClient delivers notifications as SMS messages via Twilio.
type TwilioClient struct {
	client   *twilio.RestClient
	from     string
	resolver RecipientResolver
}

// NewTwilioClient creates a Twilio SMS notification client.
// Credentials fall back to TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and
// TWILIO_FROM_NUMBER when not supplied via options.
func NewTwilioClient(opts ...Option) (*TwilioClient, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio client config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromNumber_set", cfg.FromNumber != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("from number must be provided")
	}
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("recipient resolver must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &TwilioClient{client: client, from: cfg.FromNumber, resolver: cfg.Resolver}, nil
}

// SendNotification resolves the owner's number and sends the message as SMS.
func (c *TwilioClient) SendNotification(ctx context.Context, n Notification) error {
	to, err := c.resolver(n.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to resolve recipient for owner %s: %w", n.OwnerID, err)
	}

	body := n.Message
	if n.Title != "" {
		body = n.Title + ": " + n.Message
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(c.from)
	params.SetBody(body)

	if _, err := c.client.Api.CreateMessage(params); err != nil {
		slog.Error("notify.TwilioClient SendNotification failed", "error", err, "owner", n.OwnerID)
		return fmt.Errorf("twilio send failed: %w", err)
	}
	slog.Debug("notify.TwilioClient SendNotification succeeded", "owner", n.OwnerID)
	return nil
}
