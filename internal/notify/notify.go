// Package notify is the Notification Hook (C12): a best-effort push of a
// scan-summary message after a scheduler cycle completes. Failures are
// logged and never retried or surfaced — matching spec §7's propagation
// policy for this concern.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Notifier is the external collaborator the core consumes (§6): something
// that can push a title+body message somewhere. The core ships one
// generic webhook implementation; a specific push-vendor SDK is out of
// scope (SPEC_FULL.md non-goals).
type Notifier interface {
	Send(ctx context.Context, title, body string) error
}

// Summary is what one scheduler cycle reports to C12.
type Summary struct {
	NewItemsBySource map[string]int
	Duration         time.Duration
	Aborted          bool
}

// HasNewItems reports whether any source discovered at least one new item
// this cycle — the gate spec.md §4.12 requires before a notification fires.
func (s Summary) HasNewItems() bool {
	for _, n := range s.NewItemsBySource {
		if n > 0 {
			return true
		}
	}
	return false
}

// BuildMessage renders a Summary into a short title and a multi-line body,
// using go-humanize for human-readable counts and durations.
func BuildMessage(s Summary) (title, body string) {
	total := 0
	for _, n := range s.NewItemsBySource {
		total += n
	}
	title = fmt.Sprintf("bili-sync: %s new", humanize.Comma(int64(total)))
	if s.Aborted {
		title += " (risk-control abort)"
	}
	var lines []string
	for src, n := range s.NewItemsBySource {
		if n == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s new", src, humanize.Comma(int64(n))))
	}
	lines = append(lines, fmt.Sprintf("cycle took %s", humanize.RelTime(time.Now().Add(-s.Duration), time.Now(), "", "")))
	body = strings.Join(lines, "\n")
	return title, body
}

// Notify builds the message for a Summary and sends it through n,
// swallowing and logging any error — §4.12 is explicit that a failed
// notification is never retried and never surfaces to the user.
func Notify(ctx context.Context, n Notifier, s Summary) {
	if n == nil || !s.HasNewItems() {
		return
	}
	title, body := BuildMessage(s)
	if err := n.Send(ctx, title, body); err != nil {
		log.Printf("notify: send failed: %v", err)
	}
}

// WebhookNotifier posts {title, body} as JSON to a configured URL —
// grounded on internal/httpclient's Default() construction (bounded
// timeouts so a dead webhook endpoint never blocks a scheduler cycle).
type WebhookNotifier struct {
	Client *http.Client
	URL    string
}

type webhookPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (w *WebhookNotifier) Send(ctx context.Context, title, body string) error {
	if w.URL == "" {
		return fmt.Errorf("notify: webhook URL not configured")
	}
	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	payload, err := json.Marshal(webhookPayload{Title: title, Body: body})
	if err != nil {
		return fmt.Errorf("notify: marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: webhook request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned %s", resp.Status)
	}
	return nil
}
