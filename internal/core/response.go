package core

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"lattice/internal/types"
)

// maxRequestBodySize caps request bodies at 1 MB. Checkout, auth, and
// project payloads are tiny; webhook payloads stay well under this too.
const maxRequestBodySize = 1 << 20

// APIResponse wraps successful payloads.
type APIResponse struct {
	Data any `json:"data,omitempty"`
}

// APIErrorResponse wraps a single ErrorDetail. Every failure leaving this
// API uses this shape, the webhook rejection path included.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the client-visible error: a stable machine code, a human
// message, optional structured details, and the request id for support
// correlation.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

// JSON marshals data and writes it with the given status. A marshal failure
// degrades to a 500 envelope carrying the request id, so even that case
// stays traceable.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")

	body, err := json.Marshal(data)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(APIErrorResponse{
			Error: ErrorDetail{
				Code:      string(types.ErrCodeInternalUnexpected),
				Message:   "failed to marshal response",
				RequestID: types.GetRequestID(r.Context()),
			},
		})
		return
	}

	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error maps err onto the envelope. An AppError anywhere in the chain keeps
// its code, message, and details and picks its own HTTP status; anything
// else is masked as internal_unexpected_error so driver and provider
// internals never reach a client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	detail := ErrorDetail{
		Code:      string(types.ErrCodeInternalUnexpected),
		Message:   "an unexpected error occurred",
		RequestID: types.GetRequestID(r.Context()),
	}
	status := http.StatusInternalServerError

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		detail.Code = string(appErr.Code)
		detail.Message = appErr.Message
		detail.Details = appErr.Details
		status = appErr.HTTPStatus()
	}

	JSON(w, r, status, APIErrorResponse{Error: detail})
}

// DecodeJSON strictly decodes the request body into dst. Unknown fields,
// trailing values, empty bodies, and bodies over the size cap all fail with
// validation_invalid_json; field-level validation is the handlers' job.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}

	if dec.More() {
		return types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"request body must contain a single JSON object",
			nil,
		)
	}

	return nil
}

// decodeError classifies a json.Decoder failure into an AppError.
func decodeError(err error) *types.AppError {
	var (
		maxBytesErr *http.MaxBytesError
		syntaxErr   *json.SyntaxError
		typeErr     *json.UnmarshalTypeError
	)

	switch {
	case errors.As(err, &maxBytesErr):
		return types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"request body must not exceed 1MB",
			err,
		)
	case errors.Is(err, io.EOF):
		return types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"request body must not be empty",
			err,
		)
	case errors.As(err, &syntaxErr):
		return types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"malformed JSON in request body",
			err,
		)
	case errors.As(err, &typeErr):
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidJSON,
			"invalid value for field",
			err,
			map[string]any{
				"field":    typeErr.Field,
				"expected": typeErr.Type.String(),
			},
		)
	case strings.HasPrefix(err.Error(), "json: unknown field"):
		return types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"unknown field in request body: "+strings.TrimPrefix(err.Error(), "json: unknown field "),
			err,
		)
	default:
		return types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"invalid JSON in request body",
			err,
		)
	}
}
