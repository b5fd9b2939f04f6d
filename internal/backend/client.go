package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

const maxResponseBytes = 64 << 20

// RawResponse is an undecoded downstream reply.
type RawResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Dispatcher owns the pooled HTTP client shared by every backend call.
// It is safe for concurrent use.
type Dispatcher struct {
	httpClient *http.Client
}

func NewDispatcher() *Dispatcher {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	// Deadlines come from the per-call context, not the client.
	return &Dispatcher{httpClient: &http.Client{Transport: transport}}
}

// Send posts payload to url and reads the full response within timeout.
func (d *Dispatcher) Send(ctx context.Context, backendName, url string, payload Payload, timeout time.Duration) (RawResponse, *Error) {
	return d.do(ctx, backendName, http.MethodPost, url, payload, timeout)
}

// Get fetches url within timeout.
func (d *Dispatcher) Get(ctx context.Context, backendName, url string, timeout time.Duration) (RawResponse, *Error) {
	return d.do(ctx, backendName, http.MethodGet, url, Payload{}, timeout)
}

func (d *Dispatcher) do(ctx context.Context, backendName, method, url string, payload Payload, timeout time.Duration) (RawResponse, *Error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if payload.Body != nil {
		body = bytes.NewReader(payload.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return RawResponse{}, Unavailable(backendName, fmt.Errorf("failed to create request: %w", err))
	}
	if payload.ContentType != "" {
		req.Header.Set("Content-Type", payload.ContentType)
	}

	log.WithFields(log.Fields{
		"backend": backendName,
		"method":  method,
		"url":     url,
	}).Debug("dispatching request to backend")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return RawResponse{}, Unavailable(backendName, classify(ctx, err, timeout))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return RawResponse{}, Unavailable(backendName, classify(ctx, fmt.Errorf("failed to read response body: %w", err), timeout))
	}

	return RawResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

func classify(ctx context.Context, err error, timeout time.Duration) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("timed out after %s: %w", timeout, context.DeadlineExceeded)
	}
	return err
}

// Close releases pooled connections.
func (d *Dispatcher) Close() {
	d.httpClient.CloseIdleConnections()
}
