package dto

// SelectPaymentRequest selects the working payment
type SelectPaymentRequest struct {
	PaymentID string `json:"payment_id" binding:"required,uuid"`
}

// SelectLineItemRequest highlights a line item; an empty id clears the selection
type SelectLineItemRequest struct {
	LineItemID string `json:"line_item_id" binding:"omitempty,uuid"`
}

// ToleranceRequest sets the session tolerance. Accepts a percent such as "5"
// or "2.5%", or "inf" for no limit.
type ToleranceRequest struct {
	Tolerance string `json:"tolerance" binding:"required,max=16"`
}

// AddPendingMatchRequest stages a manual pairing
type AddPendingMatchRequest struct {
	LineItemID    string `json:"line_item_id" binding:"required,uuid"`
	ExpectationID string `json:"expectation_id" binding:"required,uuid"`
}

// NotesRequest carries optional free-text notes
type NotesRequest struct {
	Notes string `json:"notes" binding:"max=2000"`
}

// RequiredNotesRequest carries mandatory notes
type RequiredNotesRequest struct {
	Notes string `json:"notes" binding:"required,max=2000"`
}

// InvalidateExpectationRequest withdraws an expectation from matching
type InvalidateExpectationRequest struct {
	Reason string `json:"reason" binding:"required,max=2000"`
}

// LineItemIDRequest binds the lineItemId path parameter
type LineItemIDRequest struct {
	LineItemID string `uri:"lineItemId" binding:"required,uuid"`
}

// PrescreenNextResponse is the result of a single prescreen step
type PrescreenNextResponse struct {
	Ran  bool `json:"ran"`
	Pass any  `json:"pass,omitempty"`
}

// CountResponse reports how many records an action changed
type CountResponse struct {
	Count int `json:"count"`
}

// HealthResponse is the service health report
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Driver   string `json:"driver,omitempty"`
}
