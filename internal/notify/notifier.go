package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"bloodbank/internal/core"
)

// Notifier sends a low-stock notification for a blood type. Failures are
// logged by the dispatcher and never reach the issuance caller.
type Notifier interface {
	NotifyLowStock(ctx context.Context, bloodType core.BloodType, remaining int) error
}

// lowStockMessage is the payload posted to the email and SMS gateways.
type lowStockMessage struct {
	BloodType string `json:"blood_type"`
	Remaining int    `json:"remaining_quantity"`
	Threshold int    `json:"threshold"`
	Message   string `json:"message"`
}

// GatewayNotifier delivers low-stock alerts to external email and SMS
// gateways over HTTP. Either URL may be empty; both configured channels are
// attempted and their failures joined.
type GatewayNotifier struct {
	client   *http.Client
	emailURL string
	smsURL   string
}

func NewGatewayNotifier(emailURL, smsURL string) *GatewayNotifier {
	return &GatewayNotifier{
		client:   &http.Client{Timeout: 10 * time.Second},
		emailURL: emailURL,
		smsURL:   smsURL,
	}
}

func (n *GatewayNotifier) NotifyLowStock(ctx context.Context, bt core.BloodType, remaining int) error {
	msg := lowStockMessage{
		BloodType: string(bt),
		Remaining: remaining,
		Threshold: core.LowStockThreshold,
		Message: fmt.Sprintf("Low blood stock: %s is down to %d units (threshold %d)",
			bt, remaining, core.LowStockThreshold),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode alert payload: %w", err)
	}

	var errs []error
	for _, url := range []string{n.emailURL, n.smsURL} {
		if url == "" {
			continue
		}
		if err := n.post(ctx, url, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *GatewayNotifier) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("alert gateway %s unreachable: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert gateway %s returned %d", url, resp.StatusCode)
	}
	return nil
}

// LogNotifier records alerts to the log only. Used when no gateway is
// configured so low-stock conditions still leave a trace.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) NotifyLowStock(_ context.Context, bt core.BloodType, remaining int) error {
	n.log.Warn("low blood stock", "blood_type", bt, "remaining", remaining,
		"threshold", core.LowStockThreshold)
	return nil
}
