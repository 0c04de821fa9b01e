package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DataBus publishes events to the external message bus over HTTP.
// Delivery is fire and forget: failures are logged and retried once
// after a short pause, then dropped.
type DataBus struct {
	baseURL    string
	senderID   string
	httpClient *http.Client
	logger     *slog.Logger

	retryDelay time.Duration
}

// NewDataBus creates a bus client with connection pooling. senderID
// identifies this service in the events it emits.
func NewDataBus(baseURL, senderID string, logger *slog.Logger) *DataBus {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &DataBus{
		baseURL:  baseURL,
		senderID: senderID,
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		},
		logger:     logger.With("component", "databus"),
		retryDelay: 5 * time.Second,
	}
}

type busEnvelope struct {
	Destination string `json:"destination"`
	Broadcast   bool   `json:"broadcast"`
	Event       Event  `json:"event"`
}

// Publish implements Publisher. The send happens in the background so
// the producing operation never waits on the bus.
func (b *DataBus) Publish(ctx context.Context, destination string, broadcast bool, ev Event) {
	ev.SenderID = b.senderID

	// The operation's context may end before the send completes.
	sendCtx := context.WithoutCancel(ctx)
	go b.send(sendCtx, busEnvelope{Destination: destination, Broadcast: broadcast, Event: ev})
}

func (b *DataBus) send(ctx context.Context, env busEnvelope) {
	err := b.post(ctx, env)
	if err == nil {
		return
	}
	b.logger.Warn("event delivery failed, retrying",
		"event_id", env.Event.ID, "event_type", env.Event.Type, "error", err)

	select {
	case <-time.After(b.retryDelay):
	case <-ctx.Done():
		return
	}

	if err := b.post(ctx, env); err != nil {
		b.logger.Error("event dropped after retry",
			"event_id", env.Event.ID, "event_type", env.Event.Type, "error", err)
	}
}

func (b *DataBus) post(ctx context.Context, env busEnvelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/events", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, respBody)
	}
	return nil
}
