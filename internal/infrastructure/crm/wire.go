package crm

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/feerecon/backend/internal/domain/crmsync"
	"github.com/shopspring/decimal"
)

// Remote field names follow the CRM module layouts.

type matchRecordWire struct {
	LocalID            string `json:"Local_ID"`
	Payment            string `json:"Payment"`
	LineItem           string `json:"Payment_Line_Item"`
	Expectation        string `json:"Expectation"`
	MatchedAmount      string `json:"Matched_Amount"`
	ExpectedAmount     string `json:"Expected_Amount"`
	Variance           string `json:"Variance"`
	VariancePercentage string `json:"Variance_Percentage"`
	Quality            string `json:"Match_Quality"`
	Method             string `json:"Match_Method"`
	Notes              string `json:"Notes,omitempty"`
	MatchedBy          string `json:"Matched_By,omitempty"`
	MatchedDate        string `json:"Matched_Date"`
}

func toMatchRecordWire(r crmsync.MatchRecord) matchRecordWire {
	return matchRecordWire{
		LocalID:            r.LocalID.String(),
		Payment:            r.PaymentRemoteID,
		LineItem:           r.LineItemRemoteID,
		Expectation:        r.ExpectationRemoteID,
		MatchedAmount:      r.Amount.StringFixed(2),
		ExpectedAmount:     r.ExpectedAmount.StringFixed(2),
		Variance:           r.Variance.StringFixed(2),
		VariancePercentage: r.VariancePercentage.StringFixed(2),
		Quality:            string(r.Quality),
		Method:             string(r.Method),
		Notes:              r.Notes,
		MatchedBy:          r.Actor,
		MatchedDate:        r.MatchedAt.UTC().Format(time.RFC3339),
	}
}

type outcomeWire struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type batchResultWire struct {
	Results []outcomeWire `json:"results"`
}

func (b batchResultWire) outcomes() []crmsync.RecordOutcome {
	out := make([]crmsync.RecordOutcome, len(b.Results))
	for i, r := range b.Results {
		out[i] = crmsync.RecordOutcome{RemoteID: r.ID, Success: r.Success, Code: r.Code, Message: r.Message}
	}
	return out
}

type createdWire struct {
	ID string `json:"id"`
}

type providerWire struct {
	ID   string `json:"id"`
	Name string `json:"Name"`
}

// wireDate accepts date-only and RFC 3339 timestamps
type wireDate struct {
	time.Time
}

func (d *wireDate) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// lookupWire accepts either a bare id or a {"id","name"} lookup object
type lookupWire struct {
	ID   string
	Name string
}

func (l *lookupWire) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		l.ID = s
		return nil
	}
	var obj struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	l.ID, l.Name = obj.ID, obj.Name
	return nil
}

type lineItemWire struct {
	ID                 string          `json:"id"`
	ClientName         string          `json:"Client_Name"`
	PlanReference      string          `json:"Plan_Reference"`
	AgencyCode         string          `json:"Agency_Code"`
	FeeCategory        string          `json:"Fee_Category"`
	Amount             decimal.Decimal `json:"Amount"`
	Status             string          `json:"Status"`
	MatchedExpectation *lookupWire     `json:"Matched_Expectation"`
	Notes              string          `json:"Notes"`
}

func (w lineItemWire) toRemote() crmsync.RemoteLineItem {
	li := crmsync.RemoteLineItem{
		ID:            w.ID,
		ClientName:    w.ClientName,
		PlanReference: w.PlanReference,
		AgencyCode:    w.AgencyCode,
		FeeCategory:   w.FeeCategory,
		Amount:        w.Amount,
		Status:        w.Status,
		Notes:         w.Notes,
	}
	if w.MatchedExpectation != nil {
		li.MatchedExpectationID = w.MatchedExpectation.ID
	}
	return li
}

type paymentWire struct {
	ID               string          `json:"id"`
	Provider         lookupWire      `json:"Provider"`
	PaymentReference string          `json:"Payment_Reference"`
	Amount           decimal.Decimal `json:"Amount"`
	PaymentDate      wireDate        `json:"Payment_Date"`
	ReconciledAmount decimal.Decimal `json:"Reconciled_Amount"`
	Status           string          `json:"Status"`
	Notes            string          `json:"Notes"`
	LineItems        []lineItemWire  `json:"Line_Items"`
}

func (w paymentWire) toRemote() crmsync.RemotePayment {
	p := crmsync.RemotePayment{
		ID:               w.ID,
		ProviderName:     w.Provider.Name,
		PaymentReference: w.PaymentReference,
		Amount:           w.Amount,
		PaymentDate:      w.PaymentDate.Time,
		ReconciledAmount: w.ReconciledAmount,
		Status:           w.Status,
		Notes:            w.Notes,
	}
	if p.ProviderName == "" {
		p.ProviderName = w.Provider.ID
	}
	for _, li := range w.LineItems {
		p.LineItems = append(p.LineItems, li.toRemote())
	}
	return p
}

type expectationWire struct {
	ID              string          `json:"id"`
	ClientName      string          `json:"Client_Name"`
	PlanReference   string          `json:"Plan_Reference"`
	ExpectedAmount  decimal.Decimal `json:"Expected_Amount"`
	CalculationDate wireDate        `json:"Calculation_Date"`
	FeeCategory     string          `json:"Fee_Category"`
	FeeType         string          `json:"Fee_Type"`
	Provider        lookupWire      `json:"Provider"`
	AdviserName     string          `json:"Adviser_Name"`
	GroupingCompany string          `json:"Grouping_Company"`
	Status          string          `json:"Status"`
	AllocatedAmount decimal.Decimal `json:"Allocated_Amount"`
}

func (w expectationWire) toRemote() crmsync.RemoteExpectation {
	e := crmsync.RemoteExpectation{
		ID:              w.ID,
		ClientName:      w.ClientName,
		PlanReference:   w.PlanReference,
		ExpectedAmount:  w.ExpectedAmount,
		CalculationDate: w.CalculationDate.Time,
		FeeCategory:     w.FeeCategory,
		FeeType:         w.FeeType,
		ProviderName:    w.Provider.Name,
		AdviserName:     w.AdviserName,
		GroupingCompany: w.GroupingCompany,
		Status:          w.Status,
		AllocatedAmount: w.AllocatedAmount,
	}
	if e.ProviderName == "" {
		e.ProviderName = w.Provider.ID
	}
	return e
}

type pageWire[T any] struct {
	Records []T  `json:"records"`
	Page    int  `json:"page"`
	HasMore bool `json:"hasMore"`
}
