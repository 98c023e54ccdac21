package handler

import (
	appreconciliation "github.com/feerecon/backend/internal/application/reconciliation"
	"github.com/feerecon/backend/internal/domain/reconciliation"
	"github.com/feerecon/backend/internal/interfaces/http/dto"
	"github.com/feerecon/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReconciliationHandler exposes the reconciliation session over HTTP
type ReconciliationHandler struct {
	BaseHandler
	service *appreconciliation.Service
}

// NewReconciliationHandler creates a new ReconciliationHandler
func NewReconciliationHandler(service *appreconciliation.Service) *ReconciliationHandler {
	return &ReconciliationHandler{service: service}
}

// Routes returns the reconciliation route group
func (h *ReconciliationHandler) Routes() *router.DomainGroup {
	g := router.NewDomainGroup("reconciliation", "/reconciliation")

	g.GET("/session", h.GetSession)
	g.POST("/session/select-payment", h.SelectPayment)
	g.POST("/session/select-line-item", h.SelectLineItem)
	g.PUT("/session/tolerance", h.SetTolerance)
	g.GET("/payments/:id/summary", h.GetPaymentSummary)

	g.POST("/pending", h.AddPendingMatch)
	g.DELETE("/pending/:lineItemId", h.RemovePendingMatch)
	g.DELETE("/pending", h.ClearPendingMatches)

	g.POST("/auto-match", h.AutoMatch)
	g.GET("/prescreen", h.GetPrescreenStatus)
	g.GET("/prescreen/preview", h.PrescreenPreview)
	g.POST("/prescreen/next", h.PrescreenNext)
	g.POST("/prescreen/run-all", h.PrescreenRunAll)
	g.POST("/confirm", h.Confirm)

	g.POST("/line-items/:id/approve-unmatched", h.ApproveUnmatched)
	g.POST("/payment/complete", h.CompletePayment)
	g.POST("/expectations/:id/invalidate", h.InvalidateExpectation)

	g.POST("/sync", h.Sync)
	g.POST("/sync/pairings/:id", h.SyncPairing)
	g.POST("/sync/propagation/retry", h.RetryPropagation)
	g.GET("/sync/data-check", h.DataCheck)
	g.POST("/download", h.Download)
	return g
}

// GetSession returns the current session view
// @ID           getReconciliationSession
// @Summary      Get the session view
// @Description  Returns the working session: data, selection, staged pairings and unsynced count
// @Tags         reconciliation
// @Produce      json
// @Success      200 {object} dto.Response{data=appreconciliation.SessionView}
// @Failure      500 {object} dto.Response
// @Router       /reconciliation/session [get]
func (h *ReconciliationHandler) GetSession(c *gin.Context) {
	h.Success(c, h.service.State(c.Request.Context()))
}

// SelectPayment makes a payment the working payment
// @ID           selectReconciliationPayment
// @Summary      Select the working payment
// @Description  Makes a payment the working payment and resets staging and prescreening
// @Tags         reconciliation
// @Accept       json
// @Produce      json
// @Param        request body dto.SelectPaymentRequest true "Payment to select"
// @Success      200 {object} dto.Response{data=appreconciliation.SessionView}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Router       /reconciliation/session/select-payment [post]
func (h *ReconciliationHandler) SelectPayment(c *gin.Context) {
	var req dto.SelectPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	ctx := c.Request.Context()
	if err := h.service.SelectPayment(ctx, uuid.MustParse(req.PaymentID)); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, h.service.State(ctx))
}

// SelectLineItem highlights a line item of the working payment
// @ID           selectReconciliationLineItem
// @Summary      Select a line item
// @Description  Highlights a line item of the working payment. An empty id clears the selection
// @Tags         reconciliation
// @Accept       json
// @Produce      json
// @Param        request body dto.SelectLineItemRequest true "Line item to select"
// @Success      200 {object} dto.Response{data=appreconciliation.SessionView}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Router       /reconciliation/session/select-line-item [post]
func (h *ReconciliationHandler) SelectLineItem(c *gin.Context) {
	var req dto.SelectLineItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	var id *uuid.UUID
	if req.LineItemID != "" {
		parsed := uuid.MustParse(req.LineItemID)
		id = &parsed
	}
	ctx := c.Request.Context()
	if err := h.service.SelectLineItem(ctx, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, h.service.State(ctx))
}

// SetTolerance changes the session tolerance
// @ID           setReconciliationTolerance
// @Summary      Set the session tolerance
// @Description  Sets the variance tolerance used by auto-match and quality grading
// @Tags         reconciliation
// @Accept       json
// @Produce      json
// @Param        request body dto.ToleranceRequest true "Tolerance such as 5, 2.5% or inf"
// @Success      200 {object} dto.Response{data=reconciliation.Tolerance}
// @Failure      400 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Router       /reconciliation/session/tolerance [put]
func (h *ReconciliationHandler) SetTolerance(c *gin.Context) {
	var req dto.ToleranceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	t, err := reconciliation.ParseTolerance(req.Tolerance)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"tolerance": h.service.SetTolerance(c.Request.Context(), t)})
}

// GetPaymentSummary returns the progress view of a payment
// @ID           getReconciliationPaymentSummary
// @Summary      Get payment progress
// @Description  Returns matched, approved and open counts with the remaining amount of a payment
// @Tags         reconciliation
// @Produce      json
// @Param        id path string true "Payment ID" format(uuid)
// @Success      200 {object} dto.Response{data=reconciliation.PaymentSummary}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Router       /reconciliation/payments/{id}/summary [get]
func (h *ReconciliationHandler) GetPaymentSummary(c *gin.Context) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	summary, err := h.service.Summary(c.Request.Context(), uuid.MustParse(req.ID))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// AddPendingMatch stages a manual pairing
// @ID           addReconciliationPendingMatch
// @Summary      Stage a manual pairing
// @Description  Stages a line item of the working payment against an expectation
// @Tags         reconciliation
// @Accept       json
// @Produce      json
// @Param        request body dto.AddPendingMatchRequest true "Pairing to stage"
// @Success      200 {object} dto.Response{data=appreconciliation.SessionView}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Router       /reconciliation/pending [post]
func (h *ReconciliationHandler) AddPendingMatch(c *gin.Context) {
	var req dto.AddPendingMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	ctx := c.Request.Context()
	err := h.service.AddPendingMatch(ctx, uuid.MustParse(req.LineItemID), uuid.MustParse(req.ExpectationID))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, h.service.State(ctx))
}

// RemovePendingMatch withdraws a staged pairing
// @ID           removeReconciliationPendingMatch
// @Summary      Withdraw a staged pairing
// @Description  Removes the staged pairing of a line item
// @Tags         reconciliation
// @Produce      json
// @Param        lineItemId path string true "Line item ID" format(uuid)
// @Success      200 {object} dto.Response{data=appreconciliation.SessionView}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Router       /reconciliation/pending/{lineItemId} [delete]
func (h *ReconciliationHandler) RemovePendingMatch(c *gin.Context) {
	var req dto.LineItemIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	ctx := c.Request.Context()
	if err := h.service.RemovePendingMatch(ctx, uuid.MustParse(req.LineItemID)); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, h.service.State(ctx))
}

// ClearPendingMatches empties the staging set
// @ID           clearReconciliationPendingMatches
// @Summary      Clear staged pairings
// @Description  Empties the staging set and reports how many pairings were removed
// @Tags         reconciliation
// @Produce      json
// @Success      200 {object} dto.Response{data=dto.CountResponse}
// @Failure      500 {object} dto.Response
// @Router       /reconciliation/pending [delete]
func (h *ReconciliationHandler) ClearPendingMatches(c *gin.Context) {
	h.Success(c, dto.CountResponse{Count: h.service.ClearPendingMatches(c.Request.Context())})
}

// AutoMatch stages reference-join candidates within the session tolerance
// @ID           autoMatchReconciliation
// @Summary      Run auto-match
// @Description  Stages reference-join candidates of the working payment within the session tolerance
// @Tags         reconciliation
// @Produce      json
// @Success      200 {object} dto.Response{data=reconciliation.AutoMatchResult}
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Router       /reconciliation/auto-match [post]
func (h *ReconciliationHandler) AutoMatch(c *gin.Context) {
	result, err := h.service.AutoMatch(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// GetPrescreenStatus returns ladder progress for the working payment
// @ID           getReconciliationPrescreenStatus
// @Summary      Get prescreening status
// @Description  Returns ladder progress, the passes run so far and a preview for the working payment
// @Tags         reconciliation
// @Produce      json
// @Success      200 {object} dto.Response{data=reconciliation.PrescreenStatus}
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Router       /reconciliation/prescreen [get]
func (h *ReconciliationHandler) GetPrescreenStatus(c *gin.Context) {
	status, err := h.service.PrescreenStatus(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, status)
}

// PrescreenPreview projects staging counts per ladder tolerance
// @ID           previewReconciliationPrescreen
// @Summary      Preview prescreening
// @Description  Projects how many pairings each ladder tolerance would stage without staging anything
// @Tags         reconciliation
// @Produce      json
// @Success      200 {object} dto.Response{data=[]reconciliation.PreviewEntry}
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Router       /reconciliation/prescreen/preview [get]
func (h *ReconciliationHandler) PrescreenPreview(c *gin.Context) {
	preview, err := h.service.PrescreenPreview(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, preview)
}

// PrescreenNext runs the next ladder tolerance
// @ID           runNextReconciliationPrescreenPass
// @Summary      Run the next prescreening pass
// @Description  Runs the next ladder tolerance. ran is false once the ladder is exhausted
// @Tags         reconciliation
// @Produce      json
// @Success      200 {object} dto.Response{data=dto.PrescreenNextResponse}
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Router       /reconciliation/prescreen/next [post]
func (h *ReconciliationHandler) PrescreenNext(c *gin.Context) {
	pass, ran, err := h.service.RunNextPrescreenPass(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	resp := dto.PrescreenNextResponse{Ran: ran}
	if ran {
		resp.Pass = pass
	}
	h.Success(c, resp)
}

// PrescreenRunAll runs every remaining ladder tolerance
// @ID           runAllReconciliationPrescreenPasses
// @Summary      Run every prescreening pass
// @Description  Runs every remaining ladder tolerance in order
// @Tags         reconciliation
// @Produce      json
// @Success      200 {object} dto.Response{data=[]reconciliation.PrescreenPass}
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Router       /reconciliation/prescreen/run-all [post]
func (h *ReconciliationHandler) PrescreenRunAll(c *gin.Context) {
	passes, err := h.service.RunAllPrescreenPasses(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, passes)
}

// Confirm commits the staged pairings as one match
// @ID           confirmReconciliationMatch
// @Summary      Confirm staged pairings
// @Description  Commits the staged pairings of the working payment as one match, optionally syncing it straight away
// @Tags         reconciliation
// @Accept       json
// @Produce      json
// @Param        request body dto.NotesRequest false "Optional notes"
// @Success      200 {object} dto.Response{data=appreconciliation.ConfirmResult}
// @Failure      400 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Router       /reconciliation/confirm [post]
func (h *ReconciliationHandler) Confirm(c *gin.Context) {
	var req dto.NotesRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		h.BindingError(c, err)
		return
	}
	result, err := h.service.Confirm(c.Request.Context(), req.Notes)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ApproveUnmatched resolves a line item without a match
// @ID           approveReconciliationLineItemUnmatched
// @Summary      Approve a line item unmatched
// @Description  Resolves a line item without an expectation. Notes are required
// @Tags         reconciliation
// @Accept       json
// @Produce      json
// @Param        id path string true "Line item ID" format(uuid)
// @Param        request body dto.RequiredNotesRequest true "Approval notes"
// @Success      200 {object} dto.Response{data=appreconciliation.SessionView}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Router       /reconciliation/line-items/{id}/approve-unmatched [post]
func (h *ReconciliationHandler) ApproveUnmatched(c *gin.Context) {
	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BindingError(c, err)
		return
	}
	var req dto.RequiredNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	ctx := c.Request.Context()
	if err := h.service.ApproveLineItemUnmatched(ctx, uuid.MustParse(uri.ID), req.Notes); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, h.service.State(ctx))
}

// CompletePayment closes the working payment
// @ID           completeReconciliationPayment
// @Summary      Complete the working payment
// @Description  Closes the working payment and approves every open line item
// @Tags         reconciliation
// @Accept       json
// @Produce      json
// @Param        request body dto.RequiredNotesRequest true "Completion notes"
// @Success      200 {object} dto.Response{data=dto.CountResponse}
// @Failure      400 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Router       /reconciliation/payment/complete [post]
func (h *ReconciliationHandler) CompletePayment(c *gin.Context) {
	var req dto.RequiredNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	n, err := h.service.CompletePayment(c.Request.Context(), req.Notes)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.CountResponse{Count: n})
}

// InvalidateExpectation withdraws an expectation from matching
// @ID           invalidateReconciliationExpectation
// @Summary      Invalidate an expectation
// @Description  Permanently withdraws an expectation from matching
// @Tags         reconciliation
// @Accept       json
// @Produce      json
// @Param        id path string true "Expectation ID" format(uuid)
// @Param        request body dto.InvalidateExpectationRequest true "Invalidation reason"
// @Success      200 {object} dto.Response{data=appreconciliation.SessionView}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      422 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Router       /reconciliation/expectations/{id}/invalidate [post]
func (h *ReconciliationHandler) InvalidateExpectation(c *gin.Context) {
	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BindingError(c, err)
		return
	}
	var req dto.InvalidateExpectationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	ctx := c.Request.Context()
	if err := h.service.InvalidateExpectation(ctx, uuid.MustParse(uri.ID), req.Reason); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, h.service.State(ctx))
}

// Sync pushes unsynced confirmed pairings to the CRM
// @ID           syncReconciliationPairings
// @Summary      Sync unsynced pairings
// @Description  Pushes every confirmed pairing the CRM has not acknowledged in rate-limited batches. Falls back to the mirrored backlog when the session holds none
// @Tags         reconciliation
// @Produce      json
// @Success      200 {object} dto.Response{data=crmsync.BatchSyncResult}
// @Failure      429 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Failure      502 {object} dto.Response
// @Router       /reconciliation/sync [post]
func (h *ReconciliationHandler) Sync(c *gin.Context) {
	result, err := h.service.Sync(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// SyncPairing pushes one unsynced pairing to the CRM
// @ID           syncReconciliationPairing
// @Summary      Sync one pairing
// @Description  Creates the match for one unsynced pairing, then updates the line item and expectation status. Status update failures come back as warnings
// @Tags         reconciliation
// @Produce      json
// @Param        id path string true "Pairing ID" format(uuid)
// @Success      200 {object} dto.Response{data=crmsync.SingleSyncResult}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      429 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Failure      502 {object} dto.Response
// @Router       /reconciliation/sync/pairings/{id} [post]
func (h *ReconciliationHandler) SyncPairing(c *gin.Context) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BindingError(c, err)
		return
	}
	result, err := h.service.SyncPairing(c.Request.Context(), uuid.MustParse(req.ID))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// RetryPropagation re-sends queued status updates
// @ID           retryReconciliationPropagation
// @Summary      Retry status propagation
// @Description  Re-sends queued line item and expectation status updates
// @Tags         reconciliation
// @Produce      json
// @Success      200 {object} dto.Response{data=crmsync.PropagationResult}
// @Failure      429 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Failure      502 {object} dto.Response
// @Router       /reconciliation/sync/propagation/retry [post]
func (h *ReconciliationHandler) RetryPropagation(c *gin.Context) {
	result, err := h.service.RetryPropagation(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// DataCheck reports remote record counts
// @ID           checkReconciliationCRMData
// @Summary      Check CRM data
// @Description  Reports remote record counts and field health
// @Tags         reconciliation
// @Produce      json
// @Success      200 {object} dto.Response{data=crmsync.DataCheckReport}
// @Failure      429 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Failure      502 {object} dto.Response
// @Router       /reconciliation/sync/data-check [get]
func (h *ReconciliationHandler) DataCheck(c *gin.Context) {
	report, err := h.service.DataCheck(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// Download replaces the session data with a fresh copy from the CRM
// @ID           downloadReconciliationData
// @Summary      Download working data
// @Description  Replaces the session data with a fresh copy from the CRM. Refused while confirmed pairings are unsynced
// @Tags         reconciliation
// @Produce      json
// @Success      200 {object} dto.Response{data=crmsyncapp.DownloadResult}
// @Failure      409 {object} dto.Response
// @Failure      429 {object} dto.Response
// @Failure      500 {object} dto.Response
// @Failure      502 {object} dto.Response
// @Router       /reconciliation/download [post]
func (h *ReconciliationHandler) Download(c *gin.Context) {
	result, err := h.service.Download(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// bindOptionalJSON binds a JSON body when one was sent
func bindOptionalJSON(c *gin.Context, obj any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(obj)
}
