package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"paypal-billing/internal/config"
)

// ErrUnverified means PayPal did not vouch for the notification.
var ErrUnverified = errors.New("paypal notification failed verification")

type PaypalClient interface {
	// VerifyWebhookSignature asks PayPal whether body was sent by PayPal for
	// the configured webhook. It returns ErrUnverified on a negative answer.
	VerifyWebhookSignature(ctx context.Context, headers http.Header, body []byte) error
}

type paypalClientImpl struct {
	httpClient         *http.Client
	baseApiURL         string
	paypalClientID     string
	paypalClientSecret string
	webhookID          string
}

type verifyWebhookSignatureRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type verifyWebhookSignatureResponse struct {
	VerificationStatus string `json:"verification_status"`
}

func NewPaypalClient(paypalCfg *config.Paypal) PaypalClient {
	return &paypalClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseApiURL:         strings.TrimRight(paypalCfg.BaseApiURL, "/"),
		paypalClientID:     paypalCfg.ClientID,
		paypalClientSecret: paypalCfg.ClientSecret,
		webhookID:          paypalCfg.WebhookID,
	}
}

func (c *paypalClientImpl) getAccessToken(ctx context.Context) (string, error) {
	auth := base64.StdEncoding.EncodeToString(
		[]byte(c.paypalClientID + ":" + c.paypalClientSecret),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseApiURL+"/v1/oauth2/token",
		bytes.NewBufferString("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("paypal token error %d: %s", resp.StatusCode, string(b))
	}

	var res struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	return res.AccessToken, nil
}

func (c *paypalClientImpl) VerifyWebhookSignature(ctx context.Context, headers http.Header, body []byte) error {
	if headers.Get("PAYPAL-TRANSMISSION-SIG") == "" {
		return fmt.Errorf("%w: missing transmission signature", ErrUnverified)
	}
	if !json.Valid(body) {
		return fmt.Errorf("%w: body is not json", ErrUnverified)
	}

	accessToken, err := c.getAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("get paypal access token: %w", err)
	}

	payload, err := json.Marshal(verifyWebhookSignatureRequest{
		AuthAlgo:         headers.Get("PAYPAL-AUTH-ALGO"),
		CertURL:          headers.Get("PAYPAL-CERT-URL"),
		TransmissionID:   headers.Get("PAYPAL-TRANSMISSION-ID"),
		TransmissionSig:  headers.Get("PAYPAL-TRANSMISSION-SIG"),
		TransmissionTime: headers.Get("PAYPAL-TRANSMISSION-TIME"),
		WebhookID:        c.webhookID,
		WebhookEvent:     body,
	})
	if err != nil {
		return fmt.Errorf("marshal verify payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/v1/notifications/verify-webhook-signature",
		bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paypal verify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("paypal verify failed: status=%d body=%s", resp.StatusCode, string(b))
	}

	var result verifyWebhookSignatureResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode verify response: %w", err)
	}
	if result.VerificationStatus != "SUCCESS" {
		return fmt.Errorf("%w: verification_status=%s", ErrUnverified, result.VerificationStatus)
	}

	return nil
}
