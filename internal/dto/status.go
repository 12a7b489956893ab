package dto

import "net/http"

// StatusCode is the application code carried in every API response body.
type StatusCode struct {
	Message string
	Code    int
}

var (
	StatusSuccess          = StatusCode{Message: "success", Code: 200}
	StatusMissingParameter = StatusCode{Message: "missing parameter", Code: 4001}
	StatusJsonDecodeError  = StatusCode{Message: "json decode error", Code: 4002}
	StatusParameterError   = StatusCode{Message: "parameter error", Code: 4003}
	StatusPathError        = StatusCode{Message: "path error", Code: 4004}
	StatusNotFound         = StatusCode{Message: "not found", Code: 4005}
	StatusNoAuth           = StatusCode{Message: "no auth", Code: 4006}
	StatusIsNotYours       = StatusCode{Message: "is not yours", Code: 4007}
	StatusInternalError    = StatusCode{Message: "internal error", Code: http.StatusInternalServerError}
)

// HTTPStatus is the transport status that accompanies the code.
func (s StatusCode) HTTPStatus() int {
	switch s.Code {
	case StatusSuccess.Code:
		return http.StatusOK
	case StatusNotFound.Code:
		return http.StatusNotFound
	case StatusNoAuth.Code, StatusIsNotYours.Code:
		return http.StatusForbidden
	case StatusInternalError.Code:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
