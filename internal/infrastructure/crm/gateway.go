package crm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/feerecon/backend/internal/domain/crmsync"
)

// Gateway implements the crmsync read and write ports over a Dispatcher
type Gateway struct {
	dispatcher crmsync.Dispatcher
}

// NewGateway creates a new Gateway
func NewGateway(d crmsync.Dispatcher) *Gateway {
	return &Gateway{dispatcher: d}
}

var (
	_ crmsync.CRM    = (*Gateway)(nil)
	_ crmsync.Source = (*Gateway)(nil)
)

func (g *Gateway) invoke(ctx context.Context, action crmsync.Action, params any, out any) error {
	resp, err := g.dispatcher.Invoke(ctx, action, params)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("%w: %s: %v", crmsync.ErrInvalidResponse, action, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Write side
// ---------------------------------------------------------------------------

// CreateMatchBatch implements crmsync.CRM
func (g *Gateway) CreateMatchBatch(ctx context.Context, records []crmsync.MatchRecord) ([]crmsync.RecordOutcome, error) {
	if len(records) > crmsync.MaxBatchSize {
		return nil, fmt.Errorf("%w: batch of %d exceeds %d", crmsync.ErrValidation, len(records), crmsync.MaxBatchSize)
	}
	wire := make([]matchRecordWire, len(records))
	for i, r := range records {
		wire[i] = toMatchRecordWire(r)
	}
	var result batchResultWire
	if err := g.invoke(ctx, crmsync.ActionCreateMatchBatch, map[string]any{"records": wire}, &result); err != nil {
		return nil, err
	}
	return result.outcomes(), nil
}

// CreateMatch implements crmsync.CRM
func (g *Gateway) CreateMatch(ctx context.Context, record crmsync.MatchRecord) (string, error) {
	var created createdWire
	if err := g.invoke(ctx, crmsync.ActionCreateMatch, map[string]any{"record": toMatchRecordWire(record)}, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// UpdateRecordsBatch implements crmsync.CRM
func (g *Gateway) UpdateRecordsBatch(ctx context.Context, module crmsync.Module, updates []crmsync.RecordUpdate) ([]crmsync.RecordOutcome, error) {
	if len(updates) > crmsync.MaxBatchSize {
		return nil, fmt.Errorf("%w: batch of %d exceeds %d", crmsync.ErrValidation, len(updates), crmsync.MaxBatchSize)
	}
	records := make([]map[string]any, len(updates))
	for i, u := range updates {
		rec := make(map[string]any, len(u.Fields)+1)
		for k, v := range u.Fields {
			rec[k] = v
		}
		rec["id"] = u.RemoteID
		records[i] = rec
	}
	var result batchResultWire
	params := map[string]any{"module": module, "records": records}
	if err := g.invoke(ctx, crmsync.ActionUpdateRecordsBatch, params, &result); err != nil {
		return nil, err
	}
	return result.outcomes(), nil
}

// UpdateRecord implements crmsync.CRM
func (g *Gateway) UpdateRecord(ctx context.Context, module crmsync.Module, update crmsync.RecordUpdate) error {
	params := map[string]any{"module": module, "id": update.RemoteID, "data": update.Fields}
	return g.invoke(ctx, crmsync.ActionUpdateRecord, params, nil)
}

// ---------------------------------------------------------------------------
// Read side
// ---------------------------------------------------------------------------

// GetProviders implements crmsync.Source
func (g *Gateway) GetProviders(ctx context.Context) ([]crmsync.RemoteProvider, error) {
	var wire []providerWire
	if err := g.invoke(ctx, crmsync.ActionGetProviders, nil, &wire); err != nil {
		return nil, err
	}
	out := make([]crmsync.RemoteProvider, len(wire))
	for i, p := range wire {
		out[i] = crmsync.RemoteProvider{ID: p.ID, Name: p.Name}
	}
	return out, nil
}

// GetPayments implements crmsync.Source
func (g *Gateway) GetPayments(ctx context.Context, page, perPage int) (crmsync.Page[crmsync.RemotePayment], error) {
	var wire pageWire[paymentWire]
	params := map[string]any{"page": page, "perPage": perPage}
	if err := g.invoke(ctx, crmsync.ActionGetPayments, params, &wire); err != nil {
		return crmsync.Page[crmsync.RemotePayment]{}, err
	}
	out := crmsync.Page[crmsync.RemotePayment]{Page: page, HasMore: wire.HasMore, Items: make([]crmsync.RemotePayment, len(wire.Records))}
	for i, p := range wire.Records {
		out.Items[i] = p.toRemote()
	}
	return out, nil
}

// GetPaymentLineItems implements crmsync.Source
func (g *Gateway) GetPaymentLineItems(ctx context.Context, paymentID string) ([]crmsync.RemoteLineItem, error) {
	var wire []lineItemWire
	if err := g.invoke(ctx, crmsync.ActionGetPaymentLineItems, map[string]any{"paymentId": paymentID}, &wire); err != nil {
		return nil, err
	}
	out := make([]crmsync.RemoteLineItem, len(wire))
	for i, li := range wire {
		out[i] = li.toRemote()
	}
	return out, nil
}

// GetExpectations implements crmsync.Source
func (g *Gateway) GetExpectations(ctx context.Context, page, perPage int) (crmsync.Page[crmsync.RemoteExpectation], error) {
	var wire pageWire[expectationWire]
	params := map[string]any{"page": page, "perPage": perPage}
	if err := g.invoke(ctx, crmsync.ActionGetExpectations, params, &wire); err != nil {
		return crmsync.Page[crmsync.RemoteExpectation]{}, err
	}
	out := crmsync.Page[crmsync.RemoteExpectation]{Page: page, HasMore: wire.HasMore, Items: make([]crmsync.RemoteExpectation, len(wire.Records))}
	for i, e := range wire.Records {
		out.Items[i] = e.toRemote()
	}
	return out, nil
}

// DataCheck implements crmsync.Source
func (g *Gateway) DataCheck(ctx context.Context) (*crmsync.DataCheckReport, error) {
	var report crmsync.DataCheckReport
	if err := g.invoke(ctx, crmsync.ActionDataCheck, nil, &report); err != nil {
		return nil, err
	}
	if report.Modules == nil {
		report.Modules = make(map[string]int)
	}
	return &report, nil
}
