package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"paypal-billing/internal/config"
)

type IpnClient interface {
	// VerifyIPN posts the message back to PayPal with cmd=_notify-validate.
	// It returns ErrUnverified when PayPal answers INVALID.
	VerifyIPN(ctx context.Context, body []byte) error
}

type ipnClientImpl struct {
	httpClient *http.Client
	ipnURL     string
}

func NewIpnClient(paypalCfg *config.Paypal) IpnClient {
	return &ipnClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		ipnURL: paypalCfg.IpnURL,
	}
}

func (c *ipnClientImpl) VerifyIPN(ctx context.Context, body []byte) error {
	payload := append([]byte("cmd=_notify-validate&"), body...)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ipnURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "paypal-billing-ipn")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paypal ipn verify request failed: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read ipn verify response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("paypal ipn verify failed: status=%d body=%s", resp.StatusCode, string(b))
	}

	switch strings.TrimSpace(string(b)) {
	case "VERIFIED":
		return nil
	case "INVALID":
		return ErrUnverified
	default:
		return fmt.Errorf("unexpected ipn verify response %q", string(b))
	}
}
