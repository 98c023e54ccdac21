package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/feerecon/backend/internal/domain/crmsync"
	"github.com/feerecon/backend/internal/infrastructure/cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Token is an OAuth access token and its expiry
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// TokenSource obtains a fresh access token
type TokenSource interface {
	Token(ctx context.Context) (Token, error)
}

// RefreshTokenConfig holds the OAuth refresh-token grant settings
type RefreshTokenConfig struct {
	AccountsURL  string
	ClientID     string
	ClientSecret string
	RefreshToken string
	Timeout      time.Duration
}

// RefreshTokenSource exchanges a long-lived refresh token for access tokens
type RefreshTokenSource struct {
	cfg        RefreshTokenConfig
	httpClient *http.Client
	now        func() time.Time
}

// NewRefreshTokenSource creates a new RefreshTokenSource
func NewRefreshTokenSource(cfg RefreshTokenConfig) (*RefreshTokenSource, error) {
	if cfg.AccountsURL == "" {
		return nil, errors.New("crm: accounts URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &RefreshTokenSource{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
	}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	Error       string `json:"error"`
}

// Token implements TokenSource
func (s *RefreshTokenSource) Token(ctx context.Context) (Token, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", s.cfg.ClientID)
	form.Set("client_secret", s.cfg.ClientSecret)
	form.Set("refresh_token", s.cfg.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.AccountsURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("crm: failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("%w: token refresh: %v", crmsync.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Token{}, fmt.Errorf("%w: token refresh: %v", crmsync.ErrTransport, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return Token{}, crmsync.NewRateLimitError(retryAfterHeader(resp.Header), "token refresh throttled")
	case resp.StatusCode >= http.StatusInternalServerError:
		return Token{}, fmt.Errorf("%w: token refresh: HTTP %d", crmsync.ErrTransport, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return Token{}, fmt.Errorf("%w: token refresh: %v", crmsync.ErrInvalidResponse, err)
	}
	if tr.Error != "" || tr.AccessToken == "" || resp.StatusCode >= http.StatusBadRequest {
		reason := tr.Error
		if reason == "" {
			reason = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return Token{}, fmt.Errorf("%w: %s", crmsync.ErrUnauthorized, reason)
	}

	expiresIn := time.Duration(tr.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = time.Hour
	}
	return Token{AccessToken: tr.AccessToken, ExpiresAt: s.now().Add(expiresIn)}, nil
}

func retryAfterHeader(h http.Header) int {
	secs, err := strconv.Atoi(strings.TrimSpace(h.Get("Retry-After")))
	if err != nil || secs < 0 {
		return 0
	}
	return secs
}

// DefaultTokenMargin is how long before expiry a cached token is treated as stale
const DefaultTokenMargin = 5 * time.Minute

// TokenProvider hands out a valid access token, refreshing through its source
// when the cached one is missing or close to expiry. Concurrent callers share
// one in-flight refresh.
type TokenProvider struct {
	source TokenSource
	cache  cache.TokenCache
	key    string
	margin time.Duration
	group  singleflight.Group
	logger *zap.Logger
	now    func() time.Time
}

// NewTokenProvider creates a new TokenProvider
func NewTokenProvider(source TokenSource, tc cache.TokenCache, key string, margin time.Duration, logger *zap.Logger) *TokenProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if key == "" {
		key = "crm:access_token"
	}
	if margin < 0 {
		margin = 0
	}
	return &TokenProvider{
		source: source,
		cache:  tc,
		key:    key,
		margin: margin,
		logger: logger,
		now:    time.Now,
	}
}

// GetValidToken returns a cached token or refreshes one.
// The refresh runs detached from any single caller's cancellation.
func (p *TokenProvider) GetValidToken(ctx context.Context) (string, error) {
	if v, ok, err := p.cache.Get(ctx, p.key); err != nil {
		p.logger.Warn("Token cache read failed", zap.Error(err))
	} else if ok {
		return v, nil
	}

	ch := p.group.DoChan(p.key, func() (any, error) {
		refreshCtx := context.WithoutCancel(ctx)
		tok, err := p.source.Token(refreshCtx)
		if err != nil {
			return "", err
		}
		ttl := tok.ExpiresAt.Sub(p.now()) - p.margin
		if ttl > 0 {
			if err := p.cache.Set(refreshCtx, p.key, tok.AccessToken, ttl); err != nil {
				p.logger.Warn("Token cache write failed", zap.Error(err))
			}
		}
		p.logger.Debug("Refreshed CRM access token", zap.Time("expires_at", tok.ExpiresAt))
		return tok.AccessToken, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops the cached token so the next call refreshes
func (p *TokenProvider) Invalidate(ctx context.Context) {
	if err := p.cache.Delete(ctx, p.key); err != nil {
		p.logger.Warn("Token cache delete failed", zap.Error(err))
	}
}
