package api

import (
	"context"
	"errors"

	apperrors "warpmine/internal/errors"

	"github.com/gin-gonic/gin"
)

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

const genericInternal = "internal computation error"

// toAppError classifies err. Internal failures never expose their cause.
func toAppError(err error) *apperrors.AppError {
	if errors.Is(err, context.Canceled) {
		return apperrors.InternalError("request cancelled", err)
	}
	app := apperrors.FromDomain(err)
	if app.Code == apperrors.CodeInternalError {
		return &apperrors.AppError{Code: app.Code, Message: genericInternal, Cause: err}
	}
	return app
}

func writeError(c *gin.Context, err error) {
	app := toAppError(err)
	c.AbortWithStatusJSON(apperrors.HTTPStatus(app.Code), errorBody{Error: errorDetail{
		Code:    app.Code,
		Message: app.Message,
		Field:   app.Field,
	}})
}

func malformed(err error) error {
	return apperrors.ValidationError("body", "malformed JSON request body: "+err.Error())
}
