package approvals

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-events/backend/internal/lifecycle"
	"github.com/aura-events/backend/internal/middleware"
	"github.com/aura-events/backend/pkg/response"
)

// SubmitRequest is the body for POST /events/:id/invitees.
type SubmitRequest struct {
	InviteeIDs []uuid.UUID `json:"invitee_ids"`
	Notes      string      `json:"notes"`
}

// DecisionRequest is the body for the bulk approve, reject and cancel endpoints.
type DecisionRequest struct {
	IDs    []uuid.UUID `json:"event_invitee_ids"`
	Notes  string      `json:"notes"`
	Reason string      `json:"reason"`
}

// ResubmitRequest is the body for POST /approvals/:id/resubmit.
type ResubmitRequest struct {
	Notes string `json:"notes"`
}

// Counts summarizes a submission.
type Counts struct {
	Requested            int `json:"requested"`
	Successful           int `json:"successful"`
	CrossGroupDuplicates int `json:"cross_group_duplicates"`
	AlreadyInvited       int `json:"already_invited"`
	QuotaExceeded        int `json:"quota_exceeded"`
	Failed               int `json:"failed"`
}

// SubmitResponse is the grouped result of a submission.
type SubmitResponse struct {
	lifecycle.SubmissionBuckets
	Counts   Counts   `json:"counts"`
	Message  string   `json:"message"`
	Warnings []string `json:"warnings"`
}

// DecisionResponse is the result of a bulk decision.
type DecisionResponse struct {
	Items        []lifecycle.ItemResult `json:"items"`
	SuccessCount int                    `json:"success_count"`
	FailedCount  int                    `json:"failed_count"`
	Errors       []string               `json:"errors"`
	Warnings     []string               `json:"warnings"`
}

// NewSubmitResponse groups res into buckets and counts.
func NewSubmitResponse(res *lifecycle.BatchResult) SubmitResponse {
	b := res.Buckets()
	out := SubmitResponse{
		SubmissionBuckets: b,
		Counts: Counts{
			Requested:            len(res.Items),
			Successful:           len(b.Successful),
			CrossGroupDuplicates: len(b.CrossGroupDuplicates),
			AlreadyInvited:       len(b.AlreadyInvited),
			QuotaExceeded:        len(b.QuotaExceeded),
			Failed:               len(b.Failed),
		},
		Warnings: res.Warnings(),
	}
	out.Message = fmt.Sprintf("%d of %d invitees submitted for approval", out.Counts.Successful, out.Counts.Requested)
	if out.Counts.QuotaExceeded > 0 {
		out.Warnings = append(out.Warnings, fmt.Sprintf("%d invitees exceed the group quota", out.Counts.QuotaExceeded))
	}
	if out.Counts.CrossGroupDuplicates > 0 {
		out.Warnings = append(out.Warnings, fmt.Sprintf("%d invitees were already invited by another group", out.Counts.CrossGroupDuplicates))
	}
	return out
}

// NewDecisionResponse flattens a bulk decision.
func NewDecisionResponse(res *lifecycle.BatchResult) DecisionResponse {
	return DecisionResponse{
		Items:        res.Items,
		SuccessCount: res.Count(lifecycle.OutcomeSuccessful),
		FailedCount:  res.Failures(),
		Errors:       res.Errors(),
		Warnings:     res.Warnings(),
	}
}

// Handler exposes the submission and approval workflow.
type Handler struct {
	mgr    *lifecycle.Manager
	logger *zap.Logger
}

// NewHandler creates an approvals handler.
func NewHandler(mgr *lifecycle.Manager, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{mgr: mgr, logger: logger}
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	status := lifecycle.HTTPStatus(err)
	if status >= 500 {
		h.logger.Error(op, zap.Error(err))
		response.Internal(c, op+" failed")
		return
	}
	response.Fail(c, status, err.Error())
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func optionalUUID(c *gin.Context, key string) (*uuid.UUID, bool) {
	v := c.Query(key)
	if v == "" {
		return nil, true
	}
	id, err := uuid.Parse(v)
	if err != nil {
		response.BadRequest(c, "invalid "+key)
		return nil, false
	}
	return &id, true
}

// Submit handles POST /events/:id/invitees.
func (h *Handler) Submit(c *gin.Context) {
	eventID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}
	res, err := h.mgr.SubmitForApproval(c.Request.Context(), eventID, req.InviteeIDs, req.Notes, middleware.ActorFrom(c))
	if err != nil {
		h.fail(c, "submit", err)
		return
	}
	response.OK(c, NewSubmitResponse(res))
}

// MyQuota handles GET /events/:id/my-quota, the caller's group quota for the event.
func (h *Handler) MyQuota(c *gin.Context) {
	eventID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	actor := middleware.ActorFrom(c)
	if actor.GroupID == nil {
		response.BadRequest(c, "you are not a member of an inviter group")
		return
	}
	gq, err := h.mgr.CheckQuota(c.Request.Context(), eventID, *actor.GroupID)
	if err != nil {
		h.fail(c, "check quota", err)
		return
	}
	response.OK(c, gq)
}

func (h *Handler) decide(c *gin.Context, op string,
	fn func(ids []uuid.UUID, req DecisionRequest) (*lifecycle.BatchResult, error)) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Invalid(c, err)
		return
	}
	res, err := fn(req.IDs, req)
	if err != nil {
		h.fail(c, op, err)
		return
	}
	response.OK(c, NewDecisionResponse(res))
}

// Approve handles POST /approvals/approve.
func (h *Handler) Approve(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	h.decide(c, "approve", func(ids []uuid.UUID, req DecisionRequest) (*lifecycle.BatchResult, error) {
		return h.mgr.Approve(c.Request.Context(), ids, req.Notes, actor)
	})
}

// Reject handles POST /approvals/reject.
func (h *Handler) Reject(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	h.decide(c, "reject", func(ids []uuid.UUID, req DecisionRequest) (*lifecycle.BatchResult, error) {
		return h.mgr.Reject(c.Request.Context(), ids, req.Notes, actor)
	})
}

// Cancel handles POST /approvals/cancel. A reason is required.
func (h *Handler) Cancel(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	h.decide(c, "cancel approval", func(ids []uuid.UUID, req DecisionRequest) (*lifecycle.BatchResult, error) {
		reason := req.Reason
		if reason == "" {
			reason = req.Notes
		}
		return h.mgr.CancelApproval(c.Request.Context(), ids, reason, actor)
	})
}

// Resubmit handles POST /approvals/:id/resubmit.
func (h *Handler) Resubmit(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req ResubmitRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Invalid(c, err)
			return
		}
	}
	ei, err := h.mgr.Resubmit(c.Request.Context(), id, req.Notes, middleware.ActorFrom(c))
	if err != nil {
		h.fail(c, "resubmit", err)
		return
	}
	response.OK(c, ei)
}

// Pending handles GET /approvals/pending?event_id=.
func (h *Handler) Pending(c *gin.Context) {
	eventID, ok := optionalUUID(c, "event_id")
	if !ok {
		return
	}
	list, err := h.mgr.ListPending(c.Request.Context(), eventID, middleware.ActorFrom(c))
	if err != nil {
		h.fail(c, "list pending", err)
		return
	}
	response.OK(c, list)
}

// Approved handles GET /approvals/approved?event_id=.
func (h *Handler) Approved(c *gin.Context) {
	eventID, ok := optionalUUID(c, "event_id")
	if !ok {
		return
	}
	list, err := h.mgr.ListApproved(c.Request.Context(), eventID, middleware.ActorFrom(c))
	if err != nil {
		h.fail(c, "list approved", err)
		return
	}
	response.OK(c, list)
}

// History handles GET /invitees/:id/history.
func (h *Handler) History(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	list, err := h.mgr.History(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "history", err)
		return
	}
	response.OK(c, list)
}
