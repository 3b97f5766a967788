package webhook

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/kacperjurak/goarraycore/pkg/config"
	"github.com/kacperjurak/goarraycore/pkg/models"
)

// Client handles webhook HTTP requests with optimized connection pooling
type Client struct {
	url        string
	httpClient *http.Client
	config     *config.Config
	bufferPool sync.Pool // Pool for JSON marshaling buffers
}

// NewClient creates a new webhook client with optimized connection pooling
func NewClient(url string, cfg *config.Config) *Client {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,

		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,

		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},

		ResponseHeaderTimeout: 30 * time.Second,

		DisableCompression: true,
		ForceAttemptHTTP2:  false,
	}

	return &Client{
		url:    url,
		config: cfg,
		httpClient: &http.Client{
			Timeout:   45 * time.Second,
			Transport: transport,
		},
		bufferPool: sync.Pool{
			New: func() interface{} {
				// A 181-point pattern with theta is roughly 4KB of JSON.
				return bytes.NewBuffer(make([]byte, 0, 4096))
			},
		},
	}
}

// URL returns the webhook endpoint.
func (c *Client) URL() string {
	return c.url
}

// Send posts one analysis result to the webhook endpoint
func (c *Client) Send(item models.WebhookItem) error {
	payload := Payload(item)

	buf := c.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer c.bufferPool.Put(buf)

	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return fmt.Errorf("failed to marshal webhook data: %w", err)
	}

	if !c.config.Quiet {
		log.WithFields(log.Fields{
			"request_id": payload.ID,
			"kind":       payload.Kind,
			"points":     len(payload.Pattern),
			"elements":   len(payload.Elements),
		}).Debug("Webhook payload")
	}

	resp, err := c.httpClient.Post(c.url, "application/json", bytes.NewReader(buf.Bytes()))
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if !c.config.Quiet {
		log.WithFields(log.Fields{
			"request_id": payload.ID,
			"gain":       payload.Gain,
			"kind":       payload.Kind,
			"status":     resp.StatusCode,
		}).Info("Webhook sent")
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}

	return nil
}
