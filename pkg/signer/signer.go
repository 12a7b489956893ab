// Package signer computes webhook signatures for signed robot endpoints.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/url"
	"strconv"
)

// Sign returns url_encode(base64(HMAC-SHA256(secret, timestamp))).
// The timestamp is used exactly as given, typically milliseconds since epoch.
func Sign(timestamp, secret string) string {
	return url.QueryEscape(RawSign(timestamp, secret))
}

// RawSign is Sign without the final URL encoding.
func RawSign(timestamp, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// SignMillis signs a millisecond timestamp.
func SignMillis(timestampMs int64, secret string) string {
	return Sign(strconv.FormatInt(timestampMs, 10), secret)
}
