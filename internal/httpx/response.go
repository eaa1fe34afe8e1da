// Package httpx holds the JSON envelope every API response uses, request
// binding with validation, and the global echo error handler.
package httpx

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Error codes carried in error.code.
const (
	CodeValidation           = "VALIDATION_ERROR"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeSessionExpired       = "SESSION_EXPIRED"
	CodeDeviceLimitReached   = "DEVICE_LIMIT_REACHED"
	CodeSubscriptionPastDue  = "SUBSCRIPTION_PAST_DUE"
	CodeSubscriptionCanceled = "SUBSCRIPTION_CANCELLED"
	CodeOTPSendLimit         = "OTP_SEND_LIMIT"
	CodeOTPInvalid           = "OTP_INVALID"
	CodeOTPExpired           = "OTP_EXPIRED"
	CodeOTPTooManyAttempts   = "OTP_TOO_MANY_ATTEMPTS"
	CodeBadCredentials       = "BAD_CREDENTIALS"
	CodeNotFound             = "NOT_FOUND"
	CodeForbidden            = "FORBIDDEN"
	CodeInternal             = "INTERNAL_ERROR"
)

// ErrorBody is the structured error of a failed response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type okEnvelope struct {
	OK   bool `json:"ok"`
	Data any  `json:"data"`
}

type errEnvelope struct {
	OK    bool      `json:"ok"`
	Error ErrorBody `json:"error"`
}

// legacyEnvelope is the older {ok:false,error:"message"} shape still used by
// the subscription gate and the admin checks.
type legacyEnvelope struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error"`
	ViewOnly bool   `json:"viewOnly,omitempty"`
}

// OK writes {ok:true,data}.
func OK(c echo.Context, status int, data any) error {
	return c.JSON(status, okEnvelope{OK: true, Data: data})
}

// Fail writes {ok:false,error:{code,message,details?}}.
func Fail(c echo.Context, status int, code, message string, details any) error {
	return c.JSON(status, errEnvelope{Error: ErrorBody{Code: code, Message: message, Details: details}})
}

// Internal writes the generic 500 without leaking err.
func Internal(c echo.Context) error {
	return Fail(c, http.StatusInternalServerError, CodeInternal, "Internal server error.", nil)
}

// LegacyError writes {ok:false,error:message}.
func LegacyError(c echo.Context, status int, message string) error {
	return c.JSON(status, legacyEnvelope{Error: message})
}

// ViewOnlyBlocked writes the 402 returned for writes by a view-only shop.
func ViewOnlyBlocked(c echo.Context) error {
	return c.JSON(http.StatusPaymentRequired, legacyEnvelope{Error: "Subscription required", ViewOnly: true})
}
