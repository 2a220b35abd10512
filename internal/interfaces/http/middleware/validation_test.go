package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/clinic/pharmacy/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatValidationErrors(t *testing.T) {
	type movementInput struct {
		Type     string `json:"type" binding:"required,oneof=reception dispensation"`
		Reason   string `json:"reason" binding:"omitempty,max=5"`
		Quantity int    `json:"quantity" binding:"required,min=1"`
	}

	SetupValidator()
	router := gin.New()
	router.Use(RequestID())
	router.POST("/test", func(c *gin.Context) {
		var req movementInput
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	t.Run("lists every rejected field by json name", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/test",
			strings.NewReader(`{"type":"gift","reason":"far too long","quantity":0}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(RequestIDHeader, "req-9")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusBadRequest, w.Code)
		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.Equal(t, "req-9", resp.Error.RequestID)

		fields := map[string]string{}
		for _, d := range resp.Error.Details {
			fields[d.Field] = d.Message
		}
		assert.Equal(t, "Must be one of: reception dispensation", fields["type"])
		assert.Equal(t, "Must be at most 5 characters", fields["reason"])
		assert.Equal(t, "This field is required", fields["quantity"])
	})

	t.Run("valid input passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/test",
			strings.NewReader(`{"type":"reception","quantity":3}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestIsValidationError(t *testing.T) {
	type input struct {
		Name string `validate:"required"`
	}
	err := validator.New().Struct(input{})
	assert.True(t, IsValidationError(err))
	assert.False(t, IsValidationError(errors.New("unexpected EOF")))
	assert.Empty(t, FormatValidationErrors(errors.New("boom"), "").Error.Details)
}
