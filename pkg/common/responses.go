package common

import (
	"errors"
	"time"

	pkgerrors "calctree/pkg/errors"
)

// Response is the envelope returned by the Lambda and CLI front ends.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
	Meta    *MetaInfo   `json:"meta,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
}

// MetaInfo contains metadata about the response
type MetaInfo struct {
	RequestID string `json:"request_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Success wraps data in a successful envelope.
func Success(data interface{}, requestID string) Response {
	return Response{
		Success: true,
		Data:    data,
		Meta:    newMeta(requestID),
	}
}

// Failure maps err onto the error envelope. Domain errors keep their code;
// anything else is reported as INTERNAL.
func Failure(err error, requestID string) Response {
	return Response{
		Success: false,
		Error:   ErrorInfoFrom(err),
		Meta:    newMeta(requestID),
	}
}

// ErrorInfoFrom extracts a client-facing description of err.
func ErrorInfoFrom(err error) *ErrorInfo {
	var verrs *pkgerrors.ValidationErrors
	if errors.As(err, &verrs) {
		details := make(map[string]interface{})
		for field, msgs := range verrs.ToMap() {
			details[field] = msgs
		}
		return &ErrorInfo{Code: pkgerrors.CodeValidation, Message: verrs.Error(), Details: details}
	}
	if domErr := pkgerrors.GetDomainError(err); domErr != nil {
		return &ErrorInfo{
			Code:      domErr.Code,
			Message:   domErr.Message,
			Details:   domErr.Details,
			Retryable: domErr.Retryable,
		}
	}
	if appErr := pkgerrors.GetAppError(err); appErr != nil {
		code := appErr.Code
		if code == "" {
			code = string(appErr.Type)
		}
		return &ErrorInfo{
			Code:      code,
			Message:   appErr.Message,
			Details:   appErr.Details,
			Retryable: appErr.Retryable,
		}
	}
	return &ErrorInfo{Code: string(pkgerrors.ErrorTypeInternal), Message: err.Error()}
}

func newMeta(requestID string) *MetaInfo {
	return &MetaInfo{
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
