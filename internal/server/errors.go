package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/licensehub/internal/apikey/domain"
	auditdomain "github.com/smallbiznis/licensehub/internal/audit/domain"
	"github.com/smallbiznis/licensehub/internal/authorization"
	customerdomain "github.com/smallbiznis/licensehub/internal/customer/domain"
	licensedomain "github.com/smallbiznis/licensehub/internal/license/domain"
	metadatadomain "github.com/smallbiznis/licensehub/internal/metadata/domain"
	productdomain "github.com/smallbiznis/licensehub/internal/product/domain"
	returnedfieldsdomain "github.com/smallbiznis/licensehub/internal/returnedfields/domain"
	teamdomain "github.com/smallbiznis/licensehub/internal/team/domain"
	"github.com/smallbiznis/licensehub/pkg/db"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// ErrorHandlingMiddleware renders the last handler error as the JSON
// envelope unless the handler already wrote a body.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}
		status, payload := mapError(last.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{Errors: []ValidationError{{Field: field, Code: code, Message: message}}}
}

// errorClass maps a family of domain sentinels onto one HTTP status.
type errorClass struct {
	status  int
	typ     string
	message string
	targets []error
	match   func(error) bool
}

func (k errorClass) matches(err error) bool {
	if k.match != nil && k.match(err) {
		return true
	}
	for _, target := range k.targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (k errorClass) payload() errorPayload {
	return errorPayload{Type: k.typ, Message: k.message}
}

var internalError = errorClass{status: http.StatusInternalServerError, typ: "internal_error", message: "internal server error"}

// Sentinels that are caller mistakes. The sentinel text doubles as the
// validation code.
var validationErrors = []error{
	ErrInvalidRequest,
	licensedomain.ErrInvalidID,
	licensedomain.ErrInvalidLicenseKey,
	licensedomain.ErrInvalidExpiration,
	licensedomain.ErrInvalidLimit,
	licensedomain.ErrInvalidCustomer,
	licensedomain.ErrInvalidProduct,
	licensedomain.ErrInvalidChallenge,
	customerdomain.ErrInvalidEmail,
	customerdomain.ErrInvalidName,
	customerdomain.ErrInvalidUser,
	customerdomain.ErrInvalidID,
	productdomain.ErrInvalidName,
	productdomain.ErrInvalidURL,
	productdomain.ErrInvalidVersion,
	productdomain.ErrInvalidID,
	metadatadomain.ErrInvalidKey,
	metadatadomain.ErrDuplicateKey,
	metadatadomain.ErrTooManyEntries,
	metadatadomain.ErrValueTooLong,
	returnedfieldsdomain.ErrInvalidMetadataKey,
	returnedfieldsdomain.ErrTooManyKeys,
	apikeydomain.ErrInvalidName,
	apikeydomain.ErrInvalidKeyID,
	apikeydomain.ErrInvalidScope,
	auditdomain.ErrInvalidPageToken,
	auditdomain.ErrInvalidTimeRange,
	auditdomain.ErrInvalidAction,
	teamdomain.ErrInvalidName,
	teamdomain.ErrInvalidID,
}

// Checked in order after validation errors.
var errorClasses = []errorClass{
	{
		status: http.StatusUnauthorized, typ: "unauthorized", message: "unauthorized",
		// a missing team scope means the caller was never authenticated
		targets: []error{
			ErrUnauthorized,
			apikeydomain.ErrUnauthorized,
			licensedomain.ErrInvalidTeam,
			customerdomain.ErrInvalidTeam,
			productdomain.ErrInvalidTeam,
			apikeydomain.ErrInvalidTeam,
			auditdomain.ErrInvalidTeam,
			returnedfieldsdomain.ErrInvalidTeam,
			authorization.ErrInvalidActor,
			authorization.ErrInvalidTeam,
		},
	},
	{
		status: http.StatusForbidden, typ: "forbidden", message: "forbidden",
		targets: []error{ErrForbidden, authorization.ErrForbidden, authorization.ErrInvalidRole},
	},
	{
		status: http.StatusConflict, typ: "conflict", message: "conflict",
		targets: []error{ErrConflict, licensedomain.ErrConflict, productdomain.ErrVersionConflict, teamdomain.ErrSlugTaken},
		match:   db.IsDuplicateKeyErr,
	},
	{
		status: http.StatusNotFound, typ: "not_found", message: "not found",
		targets: []error{
			ErrNotFound,
			licensedomain.ErrNotFound,
			customerdomain.ErrNotFound,
			productdomain.ErrNotFound,
			productdomain.ErrReleaseNotFound,
			apikeydomain.ErrNotFound,
			teamdomain.ErrNotFound,
			gorm.ErrRecordNotFound,
		},
	},
	{
		status: http.StatusTooManyRequests, typ: "rate_limited", message: "too many requests",
		targets: []error{ErrRateLimited},
	},
	{
		status: http.StatusServiceUnavailable, typ: "service_unavailable", message: "service unavailable",
		targets: []error{ErrServiceUnavailable},
	},
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return internalError.status, internalError.payload()
	}

	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return http.StatusBadRequest, validationPayload(vErr.Errors...)
	}
	if code, ok := validationCode(err); ok {
		return http.StatusBadRequest, validationPayload(ValidationError{
			Field:   validationField(code),
			Code:    code,
			Message: validationMessage(code),
		})
	}

	for _, class := range errorClasses {
		if class.matches(err) {
			return class.status, class.payload()
		}
	}
	return internalError.status, internalError.payload()
}

func validationPayload(errs ...ValidationError) errorPayload {
	return errorPayload{Type: "validation_error", Message: "validation error", Errors: errs}
}

// classifyErrorForLog returns the envelope type and a low-cardinality code
// for request logs.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status == http.StatusBadRequest && len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, http.StatusText(status)
}

func validationCode(err error) (string, bool) {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return target.Error(), true
		}
	}
	return "", false
}

func validationField(code string) string {
	switch {
	case code == "invalid_request":
		return "request"
	case strings.HasPrefix(code, "invalid_"):
		return strings.TrimPrefix(code, "invalid_")
	case strings.Contains(code, "metadata"):
		return "metadata"
	}
	return ""
}

func validationMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_license_key":
		return "license key does not match the expected format"
	}
	return "invalid value"
}
