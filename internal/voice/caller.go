// Package voice implements outbound reminder calls through the Twilio REST
// API and the TwiML documents served to it.
package voice

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pcosta/lembrabot/internal/config"
	"github.com/pcosta/lembrabot/internal/reminder"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// Caller places grouped reminder calls. The call's voice document is fetched
// by Twilio from the configured webhook URL, which carries the medication
// context as query parameters.
type Caller struct {
	httpClient  *http.Client
	logger      *slog.Logger
	accountSID  string
	authToken   string
	fromNumber  string
	callbackURL string
}

// NewCaller creates the voice dialing boundary. When the Twilio credentials
// are not configured a no-op caller is returned and escalation stays in chat.
func NewCaller(cfg config.TwilioConfig, logger *slog.Logger) reminder.VoiceCaller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	log := logger.With("component", "voice_caller")

	if !cfg.Enabled() {
		log.Info("Voice calls disabled, no Twilio credentials configured")
		return &disabledCaller{logger: log}
	}

	return &Caller{
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		logger:      log,
		accountSID:  cfg.AccountSID,
		authToken:   cfg.AuthToken,
		fromNumber:  cfg.FromNumber,
		callbackURL: cfg.CallbackURL,
	}
}

// PlaceCall creates one outbound call for the grouped reminder.
func (c *Caller) PlaceCall(ctx context.Context, call reminder.CallRequest) error {
	voiceURL, err := c.buildVoiceURL(call)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("To", call.Phone)
	form.Set("From", c.fromNumber)
	form.Set("Url", voiceURL)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", twilioAPIBase, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build call request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to place call to %s: %w", call.Phone, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("twilio rejected call to %s: status %d: %s", call.Phone, resp.StatusCode, string(body))
	}

	c.logger.InfoContext(ctx, "Voice call placed",
		"phone", call.Phone, "scheduled_time", call.ScheduledTime, "medications", len(call.MedicationNames))
	return nil
}

// buildVoiceURL attaches the medication context so the webhook can answer the
// DTMF choice without any call state on our side.
func (c *Caller) buildVoiceURL(call reminder.CallRequest) (string, error) {
	if c.callbackURL == "" {
		return "", fmt.Errorf("voice callback URL not configured")
	}
	u, err := url.Parse(c.callbackURL)
	if err != nil {
		return "", fmt.Errorf("invalid voice callback URL: %w", err)
	}
	q := u.Query()
	q.Set("medId", call.RepresentativeID)
	q.Set("scheduledTime", call.ScheduledTime)
	q.Set("medNames", strings.Join(call.MedicationNames, ","))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// disabledCaller drops every call request. Used when Twilio is unconfigured.
type disabledCaller struct {
	logger *slog.Logger
}

func (d *disabledCaller) PlaceCall(ctx context.Context, call reminder.CallRequest) error {
	d.logger.DebugContext(ctx, "Dropping voice call, dialing disabled",
		"phone", call.Phone, "scheduled_time", call.ScheduledTime)
	return nil
}
