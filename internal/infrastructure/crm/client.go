// Package crm talks to the remote CRM through its single action-dispatch endpoint.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/feerecon/backend/internal/domain/crmsync"
	"github.com/feerecon/backend/internal/infrastructure/logger"
	"github.com/feerecon/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

// maxResponseSize is the maximum accepted response body (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Tokens supplies bearer tokens to the client
type Tokens interface {
	GetValidToken(ctx context.Context) (string, error)
	Invalidate(ctx context.Context)
}

// ClientConfig holds dispatch endpoint settings
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Client implements crmsync.Dispatcher over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     Tokens
	logger     *zap.Logger
}

// NewClient creates a new dispatch client
func NewClient(cfg ClientConfig, tokens Tokens, log *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("crm: base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tokens:     tokens,
		logger:     log.Named("crm"),
	}, nil
}

var _ crmsync.Dispatcher = (*Client)(nil)

type invokeRequest struct {
	Action crmsync.Action `json:"action"`
	Params any            `json:"params,omitempty"`
}

// errRetryAuth signals a rejected token that should be refreshed once
var errRetryAuth = errors.New("crm: token rejected")

// Invoke implements crmsync.Dispatcher. A rejected token is refreshed and the
// call retried once. Throttling becomes *crmsync.RateLimitError; a remote
// refusal returns the envelope together with crmsync.ErrRemoteRejected.
func (c *Client) Invoke(ctx context.Context, action crmsync.Action, params any) (*crmsync.Response, error) {
	ctx, span := telemetry.StartClientSpan(ctx, "crm."+string(action), telemetry.SpanAttrCRMAction, string(action))
	defer span.End()

	body, err := json.Marshal(invokeRequest{Action: action, Params: params})
	if err != nil {
		return nil, fmt.Errorf("crm: failed to encode %s params: %w", action, err)
	}

	start := time.Now()
	resp, err := c.do(ctx, body)
	if errors.Is(err, errRetryAuth) {
		c.tokens.Invalidate(ctx)
		resp, err = c.do(ctx, body)
		if errors.Is(err, errRetryAuth) {
			err = fmt.Errorf("%w: token rejected after refresh", crmsync.ErrUnauthorized)
		}
	}

	log := logger.Enrich(ctx, c.logger).With(zap.String("action", string(action)), zap.Duration("elapsed", time.Since(start)))
	if err != nil {
		telemetry.RecordError(span, err)
		if retry, ok := crmsync.RetryAfterOf(err); ok {
			log.Warn("CRM rate limited", zap.Duration("retry_after", retry))
		} else if !errors.Is(err, crmsync.ErrRemoteRejected) {
			log.Error("CRM call failed", zap.Error(err))
		}
		return resp, err
	}
	log.Debug("CRM call succeeded")
	return resp, nil
}

func (c *Client) do(ctx context.Context, body []byte) (*crmsync.Response, error) {
	token, err := c.tokens.GetValidToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("crm: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Zoho-oauthtoken "+token)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", crmsync.ErrTransport, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", crmsync.ErrTransport, err)
	}

	switch {
	case httpResp.StatusCode == http.StatusUnauthorized:
		return nil, errRetryAuth
	case httpResp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: HTTP %d", crmsync.ErrTransport, httpResp.StatusCode)
	}

	var resp crmsync.Response
	decodeErr := json.Unmarshal(raw, &resp)

	if httpResp.StatusCode == http.StatusTooManyRequests {
		retry := resp.RetryAfterSeconds
		if retry == 0 {
			retry = retryAfterHeader(httpResp.Header)
		}
		return nil, crmsync.NewRateLimitError(retry, resp.Error)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", crmsync.ErrInvalidResponse, decodeErr)
	}
	if !resp.Success {
		switch resp.Code {
		case crmsync.RateLimitCode:
			return &resp, crmsync.NewRateLimitError(resp.RetryAfterSeconds, resp.Error)
		case "INVALID_TOKEN", "AUTHENTICATION_FAILURE":
			return nil, errRetryAuth
		}
		return &resp, fmt.Errorf("%w: %s %s", crmsync.ErrRemoteRejected, resp.Code, resp.Error)
	}
	if httpResp.StatusCode >= http.StatusBadRequest {
		return &resp, fmt.Errorf("%w: HTTP %d", crmsync.ErrRemoteRejected, httpResp.StatusCode)
	}
	return &resp, nil
}
