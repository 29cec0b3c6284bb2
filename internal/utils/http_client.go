package utils

import (
	"github.com/go-resty/resty/v2"
)

// UserAgent is sent with every request made by [HTTPClient].
const UserAgent = "go-care-keeper"

// HTTPClient wraps resty.Client so the remote authority adapter can be
// extended without touching call sites.
type HTTPClient struct {
	*resty.Client
}

// NewHTTPClient returns an independent client that accepts JSON and
// identifies itself with [UserAgent]. Retries are left to the sync engine.
//
// Example usage:
//
//	client := utils.NewHTTPClient()
//	resp, err := client.R().Get("https://api.example.org/api/ping")
func NewHTTPClient() *HTTPClient {
	client := resty.New().
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", UserAgent).
		SetRetryCount(0)

	return &HTTPClient{Client: client}
}
