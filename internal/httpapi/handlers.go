package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"callcenter-analytics/internal/apperr"
	"callcenter-analytics/internal/auth"
	"callcenter-analytics/internal/calls"
	"callcenter-analytics/internal/feedback"
	"callcenter-analytics/internal/knowledge"
	"callcenter-analytics/internal/kpi"
	"callcenter-analytics/pkg/logger"

	"github.com/gin-gonic/gin"
)

// CallStore is the read/delete surface the HTTP layer needs from the call
// repository.
type CallStore interface {
	List(ctx context.Context, filter calls.ListFilter, page calls.Page) ([]calls.ListItem, int, error)
	GetByID(ctx context.Context, id string) (calls.Call, error)
	Delete(ctx context.Context, id string) error
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth      *auth.Manager
	Calls     CallStore
	Feedback  *feedback.Service
	KPI       *kpi.Service
	Knowledge *knowledge.Service
}

// --- Calls ---

// ListCalls serves the paginated, filterable call listing. The external
// "state" parameter maps to the internal status filter.
func (h Handlers) ListCalls(c *gin.Context) {
	from, until, err := calls.ParseDateRange(c.Query("fromDate"), c.Query("untilDate"))
	if err != nil {
		respondError(c, err)
		return
	}

	page := calls.Page{
		Page:     intQuery(c, "page"),
		PageSize: intQuery(c, "pageSize"),
	}.Normalized()

	filter := calls.ListFilter{
		FromDate:  from,
		UntilDate: until,
		Status:    c.Query("state"),
		AgentID:   c.Query("agentId"),
		UserID:    c.Query("userId"),
	}

	items, total, err := h.Calls.List(c.Request.Context(), filter, page)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"calls":      items,
		"pagination": calls.NewPagination(page, total),
	})
}

type callDetail struct {
	calls.Call
	Feedback []feedback.Feedback `json:"feedback"`
}

// GetCall returns one call with its feedback rows attached.
func (h Handlers) GetCall(c *gin.Context) {
	id := c.Param("call_id")

	call, err := h.Calls.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	rows, err := h.Feedback.ListByCall(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"call":    callDetail{Call: call, Feedback: rows},
	})
}

// DeleteCall removes a call record. Feedback rows cascade away with it.
// Admin surface only; route wiring enforces the role.
func (h Handlers) DeleteCall(c *gin.Context) {
	id := c.Param("call_id")
	if err := h.Calls.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	uid, _ := auth.UserID(c.Request.Context())
	logger.FromGin(c).Info("call deleted", "call_id", id, "user_id", uid)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Call deleted successfully",
	})
}

// --- KPIs ---

// GetKPIs aggregates call KPIs over a mandatory date range.
func (h Handlers) GetKPIs(c *gin.Context) {
	fromRaw, untilRaw := c.Query("fromDate"), c.Query("untilDate")
	if fromRaw == "" || untilRaw == "" {
		respondError(c, apperr.Validation("fromDate and untilDate are required"))
		return
	}
	from, until, err := calls.ParseDateRange(fromRaw, untilRaw)
	if err != nil {
		respondError(c, err)
		return
	}

	report, err := h.KPI.Report(c.Request.Context(), *from, *until)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"total_calls":       report.TotalCalls,
		"avg_call_duration": report.AvgCallDuration,
		"avg_call_rating":   report.AvgCallRating,
	})
}

// --- Feedback ---

// CreateFeedback records a rating for a call.
func (h Handlers) CreateFeedback(c *gin.Context) {
	var in feedback.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, apperr.Validation("Invalid JSON payload"))
		return
	}

	fb, err := h.Feedback.Create(c.Request.Context(), c.Param("call_id"), in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":  true,
		"feedback": fb,
	})
}

// DeleteFeedback removes one feedback row.
func (h Handlers) DeleteFeedback(c *gin.Context) {
	if err := h.Feedback.Delete(c.Request.Context(), c.Param("feedback_id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Feedback deleted successfully",
	})
}

// --- Knowledge ---

// SearchKnowledge proxies a semantic search to the vector index.
func (h Handlers) SearchKnowledge(c *gin.Context) {
	var req knowledge.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("Invalid JSON payload"))
		return
	}

	resp, err := h.Knowledge.Search(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"results": resp.Results,
		"query":   resp.Query,
		"topK":    resp.TopK,
	})
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues an access token for the administrative surface.
//
// NOTE: credential validation is delegated to the deployment's identity
// proxy; this endpoint only mints tokens for already-authenticated operators.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("Invalid JSON payload"))
		return
	}
	if req.UserID == "" || req.Role == "" {
		respondError(c, apperr.Validation("user_id and role are required"))
		return
	}

	token, err := h.Auth.IssueAccess(time.Now(), req.UserID, req.Role)
	if err != nil {
		respondError(c, apperr.Wrap(apperr.KindInternal, "token issuance failed", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"access_token": token,
	})
}

// intQuery parses an integer query parameter; absent or malformed values
// fall back to zero so pagination defaults apply.
func intQuery(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}
