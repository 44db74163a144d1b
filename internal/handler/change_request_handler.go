package handler

import (
	"fmt"
	"io"
	"net/http"

	"backoffice/internal/middleware"
	"backoffice/internal/service"
	"backoffice/pkg/pagination"
	"backoffice/pkg/response"

	"github.com/gin-gonic/gin"
)

// ChangeRequestHandler serves the employee's own change requests.
type ChangeRequestHandler struct {
	submissionService service.SubmissionService
	documentService   service.DocumentService
}

func NewChangeRequestHandler(submissionService service.SubmissionService, documentService service.DocumentService) *ChangeRequestHandler {
	return &ChangeRequestHandler{submissionService: submissionService, documentService: documentService}
}

// RegisterRoutes expects an authenticated router group
func (h *ChangeRequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	me := router.Group("/api/me")
	{
		me.GET("/change-requests/eligibility", h.Eligibility)
		me.GET("/change-requests", h.ListMyRequests)
		me.POST("/change-requests/personal-info", h.SubmitPersonalInfo)
		me.POST("/change-requests/documents", h.SubmitDocument)
		me.GET("/documents", h.ListMyDocuments)
	}
}

// Eligibility reports whether the caller may open a new change request
// @Summary      Check change-request eligibility
// @Tags         change-requests
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.EligibilityResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/me/change-requests/eligibility [get]
func (h *ChangeRequestHandler) Eligibility(c *gin.Context) {
	result, err := h.submissionService.Eligibility(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// ListMyRequests returns the caller's change requests, newest first
// @Summary      List own change requests
// @Tags         change-requests
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Page}
// @Router       /api/me/change-requests [get]
func (h *ChangeRequestHandler) ListMyRequests(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.submissionService.ListMyRequests(c.Request.Context(), middleware.UserID(c), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.Wrap(items, total)))
}

// SubmitPersonalInfo proposes edits to the caller's personal information
// @Summary      Submit a personal-info change request
// @Description  Only fields that differ from the current record are recorded. A null value clears the field.
// @Tags         change-requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.SubmitPersonalInfoRequest  true  "Proposed fields"
// @Success      201      {object}  response.Response{data=service.ChangeRequestResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Router       /api/me/change-requests/personal-info [post]
func (h *ChangeRequestHandler) SubmitPersonalInfo(c *gin.Context) {
	var req service.SubmitPersonalInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "validation_failed", "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.submissionService.SubmitPersonalInfo(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// SubmitDocument uploads a document for HR review
// @Summary      Submit a document change request
// @Tags         change-requests
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        file           formData  file    true   "PDF, DOC, DOCX, JPEG or PNG up to 10 MB"
// @Param        document_type  formData  string  true   "Document type"
// @Param        notes          formData  string  false  "Notes for the reviewer"
// @Success      201            {object}  response.Response{data=service.ChangeRequestResponse}
// @Failure      400            {object}  response.Response
// @Failure      409            {object}  response.Response
// @Failure      502            {object}  response.Response
// @Router       /api/me/change-requests/documents [post]
func (h *ChangeRequestHandler) SubmitDocument(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, &service.ValidationError{Field: "file", Message: "is required"})
		return
	}
	if fileHeader.Size > service.MaxDocumentSize {
		respondError(c, &service.ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("is %d bytes; the limit is %d bytes", fileHeader.Size, service.MaxDocumentSize),
		})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		respondError(c, &service.ValidationError{Field: "file", Message: "could not be read"})
		return
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, service.MaxDocumentSize+1))
	if err != nil {
		respondError(c, &service.ValidationError{Field: "file", Message: "could not be read"})
		return
	}

	result, err := h.documentService.SubmitDocument(c.Request.Context(), middleware.UserID(c), service.SubmitDocumentRequest{
		DocumentType: c.PostForm("document_type"),
		FileName:     fileHeader.Filename,
		Notes:        c.PostForm("notes"),
		Content:      content,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// ListMyDocuments returns the caller's approved documents with download links
// @Summary      List own documents
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.EmployeeDocumentResponse}
// @Router       /api/me/documents [get]
func (h *ChangeRequestHandler) ListMyDocuments(c *gin.Context) {
	docs, err := h.documentService.ListMyDocuments(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, docs))
}
