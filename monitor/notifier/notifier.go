// Package notifier formats alerts and pushes them to an external channel
// (spec.md §4.13). Disabled mode is a first-class no-op; failures are
// logged, never surfaced to the caller.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/wayfind/Cortex/domain/alert"
	"github.com/wayfind/Cortex/platform/logging"
	"github.com/wayfind/Cortex/platform/retrypolicy"
)

// Notifier pushes formatted alert messages to a Telegram-shaped bot API,
// paced so a burst of alerts doesn't exceed the upstream channel's rate
// limit.
type Notifier struct {
	enabled  bool
	botToken string
	chatID   string
	client   *http.Client
	limiter  *rate.Limiter
	log      *logging.Logger
}

// New builds a Notifier. When enabled is false, Send always succeeds as a
// no-op (spec.md §4.13).
func New(enabled bool, botToken, chatID string, client *http.Client, log *logging.Logger) *Notifier {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Notifier{
		enabled: enabled, botToken: botToken, chatID: chatID,
		client: client, limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1), log: log,
	}
}

// Send formats a and pushes it, with the fast retry profile. Any failure
// is logged and swallowed; the caller's correctness never depends on the
// notifier (spec.md §4.13, §7).
func (n *Notifier) Send(ctx context.Context, a alert.Alert) {
	if !n.enabled {
		return
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return
	}

	message := format(a)
	err := retrypolicy.Run(ctx, retrypolicy.Fast(), func() error {
		return n.push(ctx, message)
	})
	if err != nil {
		n.log.WithContext(ctx).WithError(err).Warn("notifier: send failed, giving up")
	}
}

func format(a alert.Alert) string {
	return fmt.Sprintf("[%s] %s/%s: %s", a.Severity, a.AgentID, a.Type, a.Description)
}

func (n *Notifier) push(ctx context.Context, message string) error {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.botToken)
	body, err := json.Marshal(map[string]string{"chat_id": n.chatID, "text": message})
	if err != nil {
		return fmt.Errorf("encode notifier payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notifier channel replied with status %d", resp.StatusCode)
	}
	return nil
}
