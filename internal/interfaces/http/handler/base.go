// Package handler holds the gin handlers of the pharmacy API.
package handler

import (
	"errors"
	"net/http"

	"github.com/clinic/pharmacy/internal/domain/shared"
	"github.com/clinic/pharmacy/internal/infrastructure/logger"
	"github.com/clinic/pharmacy/internal/interfaces/http/dto"
	"github.com/clinic/pharmacy/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a 200 response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a 200 response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the status derived from code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeBadRequest, message)
}

// HandleError answers with the API form of a domain error. Anything else,
// and persistence failures, are logged and hidden behind a generic message.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	log := logger.L(c.Request.Context())

	var domainErr *shared.DomainError
	if !errors.As(err, &domainErr) {
		log.Error("unexpected handler error", zap.Error(err))
		h.Error(c, dto.ErrCodeInternal, "An unexpected error occurred")
		return
	}

	code := dto.NormalizeErrorCode(domainErr.Code)
	message := domainErr.Message
	switch domainErr.Code {
	case shared.CodePersistence:
		log.Error("persistence failure", zap.Error(err), zap.NamedError("cause", domainErr.Cause))
		message = shared.ErrPersistence.Message
	case shared.CodeTransient:
		log.Warn("transient failure", zap.Error(err), zap.NamedError("cause", domainErr.Cause))
	}
	h.Error(c, code, message)
}

// bindJSON decodes the body into req. It answers 400 itself and returns
// false when the body is malformed or fails validation.
func (h *BaseHandler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.bindFailed(c, err)
		return false
	}
	return true
}

// bindQuery is bindJSON for query strings
func (h *BaseHandler) bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		h.bindFailed(c, err)
		return false
	}
	return true
}

func (h *BaseHandler) bindFailed(c *gin.Context, err error) {
	var maxBytes *http.MaxBytesError
	switch {
	case middleware.IsValidationError(err):
		middleware.HandleValidationError(c, err)
	case errors.As(err, &maxBytes):
		h.Error(c, dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size")
	default:
		h.Error(c, dto.ErrCodeInvalidJSON, err.Error())
	}
}

// pathID parses a UUID path parameter, answering 400 when it is malformed
func (h *BaseHandler) pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, "invalid "+name+": must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// actor returns the X-User-ID of the request, or fallback when absent
func actor(c *gin.Context, fallback string) string {
	if a := middleware.GetActor(c); a != "" {
		return a
	}
	return fallback
}
