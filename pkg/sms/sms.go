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

	"github.com/diagnosis/seat-reservations/pkg/config"
	"github.com/diagnosis/seat-reservations/pkg/logger"
)

type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

func New(cfg config.SMSConfig) Sender {
	if cfg.DevMode || cfg.APIKey == "" {
		return NewDevSender()
	}
	return NewGateway(cfg.APIURL, cfg.Username, cfg.APIKey, cfg.SenderID)
}

// Gateway posts to an Africa's Talking compatible messaging endpoint.
type Gateway struct {
	endpoint string
	username string
	apiKey   string
	senderID string
	client   *http.Client
}

func NewGateway(endpoint, username, apiKey, senderID string) *Gateway {
	return &Gateway{
		endpoint: endpoint,
		username: username,
		apiKey:   apiKey,
		senderID: senderID,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type gatewayResponse struct {
	SMSMessageData struct {
		Message    string `json:"Message"`
		Recipients []struct {
			Number string `json:"number"`
			Status string `json:"status"`
		} `json:"Recipients"`
	} `json:"SMSMessageData"`
}

func (g *Gateway) Send(ctx context.Context, phone, message string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return fmt.Errorf("empty recipient phone")
	}

	form := url.Values{}
	form.Set("username", g.username)
	form.Set("to", phone)
	form.Set("message", message)
	if g.senderID != "" {
		form.Set("from", g.senderID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apiKey", g.apiKey)

	res, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("sms gateway error: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed gatewayResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("decode sms gateway response: %w", err)
	}
	for _, r := range parsed.SMSMessageData.Recipients {
		if r.Status != "Success" {
			return fmt.Errorf("sms to %s not accepted: %s", r.Number, r.Status)
		}
	}
	return nil
}

// DevSender logs messages instead of sending them.
type DevSender struct{}

func NewDevSender() *DevSender { return &DevSender{} }

func (d *DevSender) Send(ctx context.Context, phone, message string) error {
	logger.InfoContext(ctx, "[DEV SMS] message", "to", phone, "message", message)
	return nil
}
