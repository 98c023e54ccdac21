package crm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/feerecon/backend/internal/domain/crmsync"
	"github.com/feerecon/backend/internal/domain/reconciliation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeTokens struct {
	token         string
	err           error
	invalidations int
}

func (f *fakeTokens) GetValidToken(context.Context) (string, error) {
	return f.token, f.err
}

func (f *fakeTokens) Invalidate(context.Context) {
	f.invalidations++
	f.token = "refreshed"
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *fakeTokens) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	tokens := &fakeTokens{token: "initial"}
	c, err := NewClient(ClientConfig{BaseURL: server.URL, Timeout: 5 * time.Second}, tokens, zaptest.NewLogger(t))
	require.NoError(t, err)
	return c, tokens
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(ClientConfig{}, &fakeTokens{}, nil)
	assert.Error(t, err)
}

func TestClient_Invoke(t *testing.T) {
	t.Run("sends action envelope with bearer token", func(t *testing.T) {
		var got invokeRequest
		var auth string
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			writeJSON(w, http.StatusOK, `{"success":true,"data":{"id":"m-1"}}`)
		})

		resp, err := c.Invoke(context.Background(), crmsync.ActionCreateMatch, map[string]any{"x": 1})
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.JSONEq(t, `{"id":"m-1"}`, string(resp.Data))
		assert.Equal(t, crmsync.ActionCreateMatch, got.Action)
		assert.Equal(t, "Zoho-oauthtoken initial", auth)
	})

	t.Run("HTTP 429 maps to rate limit with header hint", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "30")
			writeJSON(w, http.StatusTooManyRequests, `{"success":false,"error":"slow down"}`)
		})

		_, err := c.Invoke(context.Background(), crmsync.ActionGetPayments, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, crmsync.ErrRateLimited)
		retry, ok := crmsync.RetryAfterOf(err)
		assert.True(t, ok)
		assert.Equal(t, 30*time.Second, retry)
	})

	t.Run("rate limit code in body", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{"success":false,"code":"ZOHO_RATE_LIMIT","error":"limit","retryAfterSeconds":45}`)
		})

		_, err := c.Invoke(context.Background(), crmsync.ActionCreateMatchBatch, nil)
		retry, ok := crmsync.RetryAfterOf(err)
		require.True(t, ok)
		assert.Equal(t, 45*time.Second, retry)
	})

	t.Run("rejected token is refreshed once", func(t *testing.T) {
		var calls atomic.Int32
		var auths []string
		c, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			auths = append(auths, r.Header.Get("Authorization"))
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			writeJSON(w, http.StatusOK, `{"success":true}`)
		})

		_, err := c.Invoke(context.Background(), crmsync.ActionGetProviders, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, tokens.invalidations)
		assert.Equal(t, []string{"Zoho-oauthtoken initial", "Zoho-oauthtoken refreshed"}, auths)
	})

	t.Run("token rejected twice is unauthorized", func(t *testing.T) {
		c, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{"success":false,"code":"INVALID_TOKEN"}`)
		})

		_, err := c.Invoke(context.Background(), crmsync.ActionGetProviders, nil)
		assert.ErrorIs(t, err, crmsync.ErrUnauthorized)
		assert.Equal(t, 1, tokens.invalidations)
	})

	t.Run("server error is transport failure", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := c.Invoke(context.Background(), crmsync.ActionGetProviders, nil)
		assert.ErrorIs(t, err, crmsync.ErrTransport)
	})

	t.Run("malformed body is invalid response", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `<html>`)
		})

		_, err := c.Invoke(context.Background(), crmsync.ActionGetProviders, nil)
		assert.ErrorIs(t, err, crmsync.ErrInvalidResponse)
	})

	t.Run("remote refusal keeps the envelope", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `{"success":false,"code":"INVALID_DATA","error":"bad lookup"}`)
		})

		resp, err := c.Invoke(context.Background(), crmsync.ActionCreateMatch, nil)
		assert.ErrorIs(t, err, crmsync.ErrRemoteRejected)
		require.NotNil(t, resp)
		assert.Equal(t, "INVALID_DATA", resp.Code)
	})

	t.Run("token failure is returned", func(t *testing.T) {
		c, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})
		tokens.err = crmsync.ErrUnauthorized

		_, err := c.Invoke(context.Background(), crmsync.ActionGetProviders, nil)
		assert.ErrorIs(t, err, crmsync.ErrUnauthorized)
	})
}

// ---------------------------------------------------------------------------
// Gateway
// ---------------------------------------------------------------------------

type stubDispatcher struct {
	action crmsync.Action
	params any
	data   string
	err    error
}

func (s *stubDispatcher) Invoke(_ context.Context, action crmsync.Action, params any) (*crmsync.Response, error) {
	s.action = action
	s.params = params
	if s.err != nil {
		return nil, s.err
	}
	return &crmsync.Response{Success: true, Data: json.RawMessage(s.data)}, nil
}

func TestGateway_CreateMatchBatch(t *testing.T) {
	d := &stubDispatcher{data: `{"results":[{"success":true,"id":"r-1"},{"success":false,"code":"INVALID_DATA","message":"bad expectation"}]}`}
	g := NewGateway(d)
	records := []crmsync.MatchRecord{
		{LocalID: uuid.New(), PaymentRemoteID: "p1", LineItemRemoteID: "li-1", ExpectationRemoteID: "e1",
			Amount: decimal.RequireFromString("502.5"), Quality: reconciliation.MatchQualityGood, Method: reconciliation.MatchMethodManual,
			MatchedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
		{LocalID: uuid.New(), PaymentRemoteID: "p1", LineItemRemoteID: "li-2", ExpectationRemoteID: "e2"},
	}

	outcomes, err := g.CreateMatchBatch(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].Success)
	assert.Equal(t, "r-1", outcomes[0].RemoteID)
	assert.False(t, outcomes[1].Success)
	assert.Equal(t, "INVALID_DATA", outcomes[1].Code)

	assert.Equal(t, crmsync.ActionCreateMatchBatch, d.action)
	wire := d.params.(map[string]any)["records"].([]matchRecordWire)
	assert.Equal(t, "502.50", wire[0].MatchedAmount)
	assert.Equal(t, "li-1", wire[0].LineItem)
	assert.Equal(t, "2024-03-01T09:00:00Z", wire[0].MatchedDate)
}

func TestGateway_RejectsOversizedBatch(t *testing.T) {
	g := NewGateway(&stubDispatcher{})
	_, err := g.CreateMatchBatch(context.Background(), make([]crmsync.MatchRecord, crmsync.MaxBatchSize+1))
	assert.ErrorIs(t, err, crmsync.ErrValidation)
	_, err = g.UpdateRecordsBatch(context.Background(), crmsync.ModuleExpectations, make([]crmsync.RecordUpdate, crmsync.MaxBatchSize+1))
	assert.ErrorIs(t, err, crmsync.ErrValidation)
}

func TestGateway_UpdateRecordsBatch(t *testing.T) {
	d := &stubDispatcher{data: `{"results":[{"success":true,"id":"e1"}]}`}
	g := NewGateway(d)

	outcomes, err := g.UpdateRecordsBatch(context.Background(), crmsync.ModuleExpectations, []crmsync.RecordUpdate{
		{RemoteID: "e1", Fields: map[string]any{crmsync.FieldStatus: crmsync.RemoteStatusMatched}},
	})
	require.NoError(t, err)
	assert.Len(t, outcomes, 1)

	params := d.params.(map[string]any)
	assert.Equal(t, crmsync.ModuleExpectations, params["module"])
	rec := params["records"].([]map[string]any)[0]
	assert.Equal(t, "e1", rec["id"])
	assert.Equal(t, crmsync.RemoteStatusMatched, rec[crmsync.FieldStatus])
}

func TestGateway_GetPayments(t *testing.T) {
	d := &stubDispatcher{data: `{
		"records": [{
			"id": "p1",
			"Provider": {"id": "prov-1", "name": "Acme Life"},
			"Payment_Reference": "BACS-1",
			"Amount": "622.50",
			"Payment_Date": "2024-03-01",
			"Reconciled_Amount": 0,
			"Status": "Unreconciled",
			"Line_Items": [{"id": "li-1", "Plan_Reference": "PLAN-1", "Amount": 502.5, "Matched_Expectation": "e1"}]
		}],
		"hasMore": true
	}`}
	g := NewGateway(d)

	page, err := g.GetPayments(context.Background(), 2, 50)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.True(t, page.HasMore)
	require.Len(t, page.Items, 1)
	p := page.Items[0]
	assert.Equal(t, "Acme Life", p.ProviderName)
	assert.True(t, p.Amount.Equal(decimal.RequireFromString("622.50")))
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), p.PaymentDate)
	require.Len(t, p.LineItems, 1)
	assert.Equal(t, "e1", p.LineItems[0].MatchedExpectationID)
	assert.Equal(t, map[string]any{"page": 2, "perPage": 50}, d.params)
}

func TestGateway_GetExpectationsAndProviders(t *testing.T) {
	d := &stubDispatcher{data: `{"records":[{"id":"e1","Plan_Reference":"PLAN-1","Expected_Amount":"500","Provider":"Acme Life","Calculation_Date":"2024-02-28T00:00:00Z","Status":"Unmatched"}]}`}
	g := NewGateway(d)

	page, err := g.GetExpectations(context.Background(), 1, 200)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Acme Life", page.Items[0].ProviderName)
	assert.False(t, page.HasMore)

	d.data = `[{"id":"prov-1","Name":"Acme Life"}]`
	providers, err := g.GetProviders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []crmsync.RemoteProvider{{ID: "prov-1", Name: "Acme Life"}}, providers)
}

func TestGateway_Errors(t *testing.T) {
	t.Run("dispatcher error passes through", func(t *testing.T) {
		g := NewGateway(&stubDispatcher{err: crmsync.NewRateLimitError(10, "")})
		_, err := g.CreateMatch(context.Background(), crmsync.MatchRecord{})
		assert.True(t, errors.Is(err, crmsync.ErrRateLimited))
	})

	t.Run("undecodable data", func(t *testing.T) {
		g := NewGateway(&stubDispatcher{data: `{"results": "nope"}`})
		_, err := g.CreateMatchBatch(context.Background(), nil)
		assert.ErrorIs(t, err, crmsync.ErrInvalidResponse)
	})

	t.Run("data check defaults modules", func(t *testing.T) {
		g := NewGateway(&stubDispatcher{data: `{"issues":["3 payments without provider"]}`})
		report, err := g.DataCheck(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, report.Modules)
		assert.Len(t, report.Issues, 1)
	})
}
