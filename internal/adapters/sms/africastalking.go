// Package sms delivers text messages through Africa's Talking.
package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// Client sends bulk SMS through the Africa's Talking messaging API.
type Client struct {
	username string
	apiKey   string
	senderID string
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

type Options struct {
	Username   string
	APIKey     string
	SenderID   string
	BaseURL    string
	RatePerSec float64
}

func NewClient(opts Options) *Client {
	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}
	return &Client{
		username: opts.Username,
		apiKey:   opts.APIKey,
		senderID: opts.SenderID,
		endpoint: strings.TrimRight(opts.BaseURL, "/") + "/messaging",
		client:   &http.Client{Timeout: 15 * time.Second},
		limiter:  rate.NewLimiter(limit, 1),
	}
}

type sendResponse struct {
	SMSMessageData struct {
		Message    string      `json:"Message"`
		Recipients []recipient `json:"Recipients"`
	} `json:"SMSMessageData"`
}

type recipient struct {
	Number     string `json:"number"`
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
	MessageID  string `json:"messageId"`
}

// Send delivers message to every number in to with a single API call. It
// fails when the request fails or when no recipient was accepted.
func (c *Client) Send(ctx context.Context, to []string, message string) error {
	if len(to) == 0 {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	form := url.Values{}
	form.Set("username", c.username)
	form.Set("to", strings.Join(to, ","))
	form.Set("message", message)
	if c.senderID != "" {
		form.Set("from", c.senderID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apiKey", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("send sms: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out sendResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	var failed []string
	for _, r := range out.SMSMessageData.Recipients {
		if r.Status != "Success" {
			failed = append(failed, r.Number+" ("+r.Status+")")
		}
	}
	if len(out.SMSMessageData.Recipients) == 0 || len(failed) == len(out.SMSMessageData.Recipients) {
		return fmt.Errorf("send sms: no recipient accepted: %s", out.SMSMessageData.Message)
	}
	return nil
}

// LogSender stands in for the gateway when no API key is configured.
type LogSender struct {
	Log *log.Logger
}

func (s LogSender) Send(_ context.Context, to []string, message string) error {
	s.Log.Info("sms not sent: gateway not configured", "recipients", len(to), "chars", len(message))
	return nil
}
