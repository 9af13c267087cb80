package handler

import (
	"errors"
	"fmt"
	"iap-entitlement-service/internal/client"
	"iap-entitlement-service/internal/dto"
	"iap-entitlement-service/internal/service"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

var codeStatus = map[string]int{
	"invalid_request":           http.StatusBadRequest,
	"unauthorized":              http.StatusUnauthorized,
	"account_not_eligible":      http.StatusForbidden,
	"user_not_found":            http.StatusNotFound,
	"package_not_found":         http.StatusNotFound,
	"product_mismatch":          http.StatusUnprocessableEntity,
	"duplicate_or_expired":      http.StatusConflict,
	"authority_invalid_receipt": http.StatusBadRequest,
	"authority_unavailable":     http.StatusServiceUnavailable,
	"request_in_progress":       http.StatusTooManyRequests,
	"persistence_error":         http.StatusInternalServerError,
	"internal_error":            http.StatusInternalServerError,
}

// ErrorHandler writes every error as a dto.ErrorResponse. Server side
// failures are logged and their details kept out of the body.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := errorResponse(err)
		if status >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.Error("write error response", zap.Error(err))
		}
	}
}

func errorResponse(err error) (int, dto.ErrorResponse) {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		code := "invalid_request"
		switch {
		case httpErr.Code == http.StatusUnauthorized:
			code = "unauthorized"
		case httpErr.Code == http.StatusNotFound:
			code = "not_found"
		case httpErr.Code == http.StatusMethodNotAllowed:
			code = "method_not_allowed"
		case httpErr.Code >= http.StatusInternalServerError:
			code = "internal_error"
		}
		return httpErr.Code, dto.ErrorResponse{Code: code, Message: fmt.Sprint(httpErr.Message)}
	}

	code := service.ErrorCode(err)
	status, ok := codeStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	body := dto.ErrorResponse{Code: code, Message: err.Error()}
	if status >= http.StatusInternalServerError {
		body.Message = http.StatusText(status)
	}

	var rejection *service.AuthorityRejection
	var vErr *client.ValidationError
	switch {
	case errors.As(err, &rejection):
		body.ResultCode = &rejection.ResultCode
	case errors.As(err, &vErr) && vErr.ResultCode != 0:
		body.ResultCode = &vErr.ResultCode
	}

	return status, body
}
