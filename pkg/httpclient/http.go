package httpclient

import (
	"context"
	"net/http"
)

// ContentTypeJSONUTF8 is what robot webhooks expect on a JSON post.
const ContentTypeJSONUTF8 = "application/json;charset=UTF-8"

type BaseResponse struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// IsError reports a 4xx or 5xx status. A response that never arrived has
// status 0 and is not an error here; check the returned error instead.
func (r *BaseResponse) IsError() bool {
	return r != nil && r.StatusCode >= http.StatusBadRequest
}

type HTTPClient interface {
	// Post sends body as JSON. rawQuery is parsed as an encoded query string
	// and merged into the request URL, so each value is sent encoded once.
	Post(ctx context.Context, endpoint, rawQuery string, body interface{}, headers map[string]string, result interface{}) (*BaseResponse, error)
}
