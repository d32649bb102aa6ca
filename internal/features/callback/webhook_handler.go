package callback

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookHandler delivers callback payloads as HMAC-signed JSON POSTs.
// Network errors and 5xx responses are retryable; a 4xx means the receiver
// rejected the payload and retrying will not help.
type WebhookHandler struct {
	name       string
	url        string
	secret     string
	httpClient *http.Client
}

func NewWebhookHandler(name, url, secret string) *WebhookHandler {
	return &WebhookHandler{
		name:   name,
		url:    url,
		secret: secret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (h *WebhookHandler) Name() string { return h.name }

func (h *WebhookHandler) Handle(p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal callback payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, h.url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("create callback request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Bank-Approvals-Callback")
	req.Header.Set("X-Approval-Event", p.Event)
	req.Header.Set("X-Approval-Delivery", fmt.Sprintf("%d", time.Now().UnixNano()))

	if h.secret != "" {
		mac := hmac.New(sha256.New, []byte(h.secret))
		mac.Write(body)
		req.Header.Set("X-Approval-Signature", "sha256="+hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return &RetryableError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return &RetryableError{Err: fmt.Errorf("webhook %s returned %d", h.url, resp.StatusCode)}
	case resp.StatusCode >= 400:
		return fmt.Errorf("webhook %s returned %d", h.url, resp.StatusCode)
	}
	return nil
}
