package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/order-workflow/internal/application/service"
	"github.com/garyjia/order-workflow/internal/domain/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// SubmitRequest is the body of POST /orders/:id/submit
type SubmitRequest struct {
	Comments string `json:"comments"`
}

// RejectRequest is the body of POST /orders/:id/reject
type RejectRequest struct {
	Reason  string               `json:"reason"`
	Code    string               `json:"code"`
	RouteTo workflow.RouteTarget `json:"route_to"`
}

// ReasonRequest carries the reason of a hold or cancel
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// ReassignRequest is the body of POST /orders/:id/reassign. A nil target returns the order to its queue.
type ReassignRequest struct {
	TargetUserID *int64 `json:"target_user_id"`
	Reason       string `json:"reason"`
}

// ExportRequest is the body of POST /projects/:id/export. The range defaults to the last seven days.
type ExportRequest struct {
	From *time.Time `json:"from"`
	To   *time.Time `json:"to"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	if h.services.Health != nil {
		healthy, components := h.services.Health()
		response.Components = components
		if !healthy {
			response.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	c.JSON(status, Response{Success: status == http.StatusOK, Data: response})
}

// ReceiveOrder handles POST /api/workflow/receive
func (h *Handlers) ReceiveOrder(c *gin.Context) {
	var req service.ReceiveRequest
	if !h.bind(c, &req) {
		return
	}
	order, err := h.services.Order.Receive(c.Request.Context(), req, actor(c).ID)
	h.respond(c, http.StatusCreated, order, err)
}

// StartNext handles POST /api/workflow/start-next. Data is null when nothing is available.
func (h *Handlers) StartNext(c *gin.Context) {
	order, err := h.services.Assignment.StartNext(c.Request.Context(), actor(c).ID)
	if err == nil && order == nil {
		ok(c, nil)
		return
	}
	h.respond(c, http.StatusOK, order, err)
}

// GetOrder handles GET /api/workflow/orders/:id
func (h *Handlers) GetOrder(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	order, err := h.services.Order.Get(c.Request.Context(), id)
	h.respond(c, http.StatusOK, order, err)
}

// WorkItemHistory handles GET /api/workflow/orders/:id/work-items
func (h *Handlers) WorkItemHistory(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	items, err := h.services.WorkItem.History(c.Request.Context(), id)
	h.respond(c, http.StatusOK, items, err)
}

// SubmitWork handles POST /api/workflow/orders/:id/submit
func (h *Handlers) SubmitWork(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	var req SubmitRequest
	if !h.bindOptional(c, &req) {
		return
	}
	order, err := h.services.Assignment.SubmitWork(c.Request.Context(), id, actor(c).ID, req.Comments)
	h.respond(c, http.StatusOK, order, err)
}

// RejectOrder handles POST /api/workflow/orders/:id/reject
func (h *Handlers) RejectOrder(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	var req RejectRequest
	if !h.bind(c, &req) {
		return
	}
	order, err := h.services.Assignment.RejectOrder(c.Request.Context(), id, actor(c).ID, req.Reason, req.Code, req.RouteTo)
	h.respond(c, http.StatusOK, order, err)
}

// HoldOrder handles POST /api/workflow/orders/:id/hold
func (h *Handlers) HoldOrder(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	var req ReasonRequest
	if !h.bind(c, &req) {
		return
	}
	order, err := h.services.Order.Hold(c.Request.Context(), id, actor(c).ID, req.Reason)
	h.respond(c, http.StatusOK, order, err)
}

// ResumeOrder handles POST /api/workflow/orders/:id/resume
func (h *Handlers) ResumeOrder(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	order, err := h.services.Order.Resume(c.Request.Context(), id, actor(c).ID)
	h.respond(c, http.StatusOK, order, err)
}

// ReleaseOrder handles POST /api/workflow/orders/:id/release
func (h *Handlers) ReleaseOrder(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	order, err := h.services.Order.Release(c.Request.Context(), id, actor(c).ID)
	h.respond(c, http.StatusOK, order, err)
}

// ReassignOrder handles POST /api/workflow/orders/:id/reassign
func (h *Handlers) ReassignOrder(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	var req ReassignRequest
	if !h.bindOptional(c, &req) {
		return
	}
	order, err := h.services.Order.Reassign(c.Request.Context(), id, actor(c).ID, req.TargetUserID, req.Reason)
	h.respond(c, http.StatusOK, order, err)
}

// CancelOrder handles POST /api/workflow/orders/:id/cancel
func (h *Handlers) CancelOrder(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	var req ReasonRequest
	if !h.bindOptional(c, &req) {
		return
	}
	order, err := h.services.Order.Cancel(c.Request.Context(), id, actor(c).ID, req.Reason)
	h.respond(c, http.StatusOK, order, err)
}

// StartTimer handles POST /api/workflow/orders/:id/timer/start
func (h *Handlers) StartTimer(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	item, err := h.services.WorkItem.StartTimer(c.Request.Context(), id, actor(c).ID)
	h.respond(c, http.StatusOK, item, err)
}

// StopTimer handles POST /api/workflow/orders/:id/timer/stop
func (h *Handlers) StopTimer(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	item, err := h.services.WorkItem.StopTimer(c.Request.Context(), id, actor(c).ID)
	h.respond(c, http.StatusOK, item, err)
}

// ReassignFromUser handles POST /api/workflow/users/:id/reassign-all
func (h *Handlers) ReassignFromUser(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	count, err := h.services.Assignment.ReassignFromUser(c.Request.Context(), id, actor(c).ID)
	h.respond(c, http.StatusOK, gin.H{"user_id": id, "reclaimed": count}, err)
}

// FindBestUser handles GET /api/workflow/projects/:id/best-user?role=
func (h *Handlers) FindBestUser(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	role := workflow.Role(c.Query("role"))
	if !role.IsProduction() {
		abort(c, http.StatusBadRequest, "role must be a production role")
		return
	}
	user, err := h.services.Assignment.FindBestUser(c.Request.Context(), id, role)
	if err == nil && user == nil {
		ok(c, nil)
		return
	}
	h.respond(c, http.StatusOK, user, err)
}

// QueueHealth handles GET /api/workflow/projects/:id/queue-health
func (h *Handlers) QueueHealth(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	health, err := h.services.Report.QueueHealth(c.Request.Context(), id)
	h.respond(c, http.StatusOK, health, err)
}

// Staffing handles GET /api/workflow/projects/:id/staffing
func (h *Handlers) Staffing(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	staffing, err := h.services.Report.Staffing(c.Request.Context(), id)
	h.respond(c, http.StatusOK, staffing, err)
}

// ExportLedger handles POST /api/workflow/projects/:id/export
func (h *Handlers) ExportLedger(c *gin.Context) {
	id, valid := h.pathID(c)
	if !valid {
		return
	}
	var req ExportRequest
	if !h.bindOptional(c, &req) {
		return
	}

	to := time.Now().UTC()
	if req.To != nil {
		to = *req.To
	}
	from := to.AddDate(0, 0, -7)
	if req.From != nil {
		from = *req.From
	}

	path, err := h.services.Report.ExportLedger(c.Request.Context(), id, from, to)
	h.respond(c, http.StatusCreated, gin.H{"path": path}, err)
}

// respond writes data with status, or the mapped error
func (h *Handlers) respond(c *gin.Context, status int, data interface{}, err error) {
	if err != nil {
		code := statusFor(err)
		if code >= http.StatusInternalServerError {
			h.logger.Error("Request failed", "path", c.FullPath(), "error", err)
			abort(c, code, "internal error")
			return
		}
		abort(c, code, err.Error())
		return
	}
	c.JSON(status, Response{Success: true, Data: data})
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrInvalidState),
		errors.Is(err, workflow.ErrConcurrencyConflict),
		errors.Is(err, workflow.ErrDuplicate):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func (h *Handlers) pathID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		abort(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handlers) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		abort(c, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// bindOptional accepts an empty body
func (h *Handlers) bindOptional(c *gin.Context, dst interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return h.bind(c, dst)
}
