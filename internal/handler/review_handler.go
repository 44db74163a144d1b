package handler

import (
	"net/http"

	"backoffice/internal/middleware"
	"backoffice/internal/model"
	"backoffice/internal/service"
	"backoffice/pkg/pagination"
	"backoffice/pkg/response"

	"github.com/gin-gonic/gin"
)

// ReviewHandler serves the HR review queue and decisions.
type ReviewHandler struct {
	reviewService service.ReviewService
}

func NewReviewHandler(reviewService service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService}
}

// RegisterRoutes expects an authenticated router group
func (h *ReviewHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/api/change-requests")
	requests.Use(middleware.RequireRole(model.RoleHR, model.RoleAdmin))
	{
		requests.GET("/pending", h.ListPending)
		requests.GET("", h.ListRequests)
		requests.GET("/:id", h.GetRequest)
		requests.GET("/:id/document-url", h.DocumentURL)
		requests.PUT("/:id/approve", h.Approve)
		requests.PUT("/:id/reject", h.Reject)
	}
}

// ListPending returns requests awaiting review, newest first
// @Summary      List pending change requests
// @Tags         review
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Page}
// @Router       /api/change-requests/pending [get]
func (h *ReviewHandler) ListPending(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.reviewService.ListPending(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.Wrap(items, total)))
}

// ListRequests returns change requests filtered by status and kind
// @Summary      List change requests
// @Tags         review
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "pending, approved or rejected"
// @Param        kind    query     string  false  "personal_info or document"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.Page}
// @Router       /api/change-requests [get]
func (h *ReviewHandler) ListRequests(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.reviewService.ListRequests(c.Request.Context(), service.ChangeRequestFilter{
		Status: c.Query("status"),
		Kind:   c.Query("kind"),
		Page:   p.Page,
		Limit:  p.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.Wrap(items, total)))
}

// GetRequest returns one change request
// @Summary      Get a change request
// @Tags         review
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Change request ID"
// @Success      200  {object}  response.Response{data=service.ChangeRequestResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/change-requests/{id} [get]
func (h *ReviewHandler) GetRequest(c *gin.Context) {
	result, err := h.reviewService.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// DocumentURL returns a short-lived download link for a document request
// @Summary      Get a signed document URL
// @Tags         review
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Change request ID"
// @Success      200  {object}  response.Response{data=service.DocumentURLResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/change-requests/{id}/document-url [get]
func (h *ReviewHandler) DocumentURL(c *gin.Context) {
	result, err := h.reviewService.DocumentURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// Approve applies a pending request to the employee record
// @Summary      Approve a change request
// @Tags         review
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true   "Change request ID"
// @Param        payload  body      service.DecideRequest  false  "Decision note"
// @Success      200      {object}  response.Response{data=service.ChangeRequestResponse}
// @Failure      409      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/change-requests/{id}/approve [put]
func (h *ReviewHandler) Approve(c *gin.Context) {
	h.decide(c, service.OutcomeApprove)
}

// Reject closes a pending request without touching the employee record
// @Summary      Reject a change request
// @Tags         review
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true   "Change request ID"
// @Param        payload  body      service.DecideRequest  false  "Decision note"
// @Success      200      {object}  response.Response{data=service.ChangeRequestResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/change-requests/{id}/reject [put]
func (h *ReviewHandler) Reject(c *gin.Context) {
	h.decide(c, service.OutcomeReject)
}

func (h *ReviewHandler) decide(c *gin.Context, outcome string) {
	var req service.DecideRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "validation_failed", "Invalid request payload: "+err.Error()))
			return
		}
	}

	result, err := h.reviewService.Decide(c.Request.Context(), c.Param("id"), middleware.UserID(c), outcome, req.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
