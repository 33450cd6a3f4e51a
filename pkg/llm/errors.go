package llm

import (
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"juris-rag-go/pkg/retry"
)

// StatusCode returns the HTTP status carried by a go-openai error, or 0.
func StatusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// IsClientError reports a 4xx answer other than 429: a bad request, key or
// deployment name that no retry will fix.
func IsClientError(err error) bool {
	code := StatusCode(err)
	return code >= 400 && code < 500 && code != http.StatusTooManyRequests
}

// Classify marks client errors permanent so retry.Do gives up at once.
// Network errors, 5xx and 429 stay retryable.
func Classify(err error) error {
	if err != nil && IsClientError(err) {
		return retry.Permanent(err)
	}
	return err
}
