package simd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/marketsim/pkg/logger"
	"github.com/GoSim-25-26J-441/marketsim/pkg/models"
	"github.com/GoSim-25-26J-441/marketsim/pkg/utils"
)

// CallbackSecretHeader carries the per-run callback secret
const CallbackSecretHeader = "X-Marketsim-Callback-Secret"

// Callback is where a run reports its terminal status
type Callback struct {
	URL    string
	Secret string
}

// NotificationPayload is the JSON body posted to a callback URL
type NotificationPayload struct {
	RunID     string             `json:"run_id"`
	Status    models.RunStatus   `json:"status"`
	Dataset   string             `json:"dataset,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	StartedAt time.Time          `json:"started_at,omitzero"`
	EndedAt   time.Time          `json:"ended_at,omitzero"`
	Error     string             `json:"error,omitempty"`
	Summary   *models.RunSummary `json:"summary,omitempty"`
	Files     []string           `json:"files,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// Notifier posts terminal run states to callback URLs
type Notifier struct {
	httpClient *http.Client
	maxRetries int
	backoff    utils.BackoffStrategy
	wg         sync.WaitGroup
}

// NewNotifier creates a new notification service
func NewNotifier() *Notifier {
	return &Notifier{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		maxRetries: 3,
		backoff:    utils.NewExponentialBackoff(time.Second, 30*time.Second, 2, false),
	}
}

// ValidateCallbackURL accepts absolute http(s) URLs with a host
func ValidateCallbackURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid callback_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid callback_url: scheme must be http or https")
	}
	if u.Hostname() == "" {
		return fmt.Errorf("invalid callback_url: missing host")
	}
	return nil
}

// Notify sends the run's state to cb asynchronously. {run_id} in the URL is
// replaced with the run ID.
func (n *Notifier) Notify(cb Callback, rec *RunRecord) {
	if cb.URL == "" || rec == nil || rec.Run == nil {
		return
	}
	run := rec.Run
	payload := NotificationPayload{
		RunID:     run.ID,
		Status:    run.Status,
		Dataset:   run.Dataset,
		CreatedAt: run.CreatedAt,
		StartedAt: run.StartedAt,
		EndedAt:   run.EndedAt,
		Error:     run.Error,
		Summary:   run.Summary,
		Files:     run.Files,
		Timestamp: time.Now().UTC(),
	}
	finalURL := strings.ReplaceAll(cb.URL, "{run_id}", run.ID)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.sendNotification(finalURL, cb.Secret, payload)
	}()
}

// Wait blocks until in-flight notifications finish.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// sendNotification performs the actual HTTP POST with retry logic
func (n *Notifier) sendNotification(callbackURL, secret string, payload NotificationPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal notification payload", "run_id", payload.RunID, "error", err)
		return
	}

	var lastErr error
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(n.backoff.NextDelay(attempt - 1))
		}

		req, err := http.NewRequest(http.MethodPost, callbackURL, bytes.NewReader(body))
		if err != nil {
			lastErr = fmt.Errorf("failed to create request: %w", err)
			break
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "marketsim/1.0")
		if secret != "" {
			req.Header.Set(CallbackSecretHeader, secret)
		}

		resp, err := n.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			logger.Warn("Notification attempt failed", "run_id", payload.RunID, "attempt", attempt+1, "error", err)
			continue
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<10))
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			logger.Info("Notification sent", "run_id", payload.RunID, "status", payload.Status, "status_code", resp.StatusCode)
			return
		}
		lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		logger.Warn("Notification returned non-2xx status", "run_id", payload.RunID, "status_code", resp.StatusCode, "attempt", attempt+1)
	}

	logger.Error("Failed to send notification after retries",
		"callback_url", callbackURL,
		"run_id", payload.RunID,
		"max_retries", n.maxRetries,
		"last_error", lastErr)
}
