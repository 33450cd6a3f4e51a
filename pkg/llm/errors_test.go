package llm

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
)

func TestIsClientError(t *testing.T) {
	wrap := func(err error) error { return fmt.Errorf("chat completion: %w", err) }

	assert.True(t, IsClientError(wrap(&openai.APIError{HTTPStatusCode: http.StatusBadRequest})))
	assert.True(t, IsClientError(wrap(&openai.RequestError{HTTPStatusCode: http.StatusNotFound})))
	assert.False(t, IsClientError(wrap(&openai.APIError{HTTPStatusCode: http.StatusTooManyRequests})))
	assert.False(t, IsClientError(wrap(&openai.APIError{HTTPStatusCode: http.StatusBadGateway})))
	assert.False(t, IsClientError(errors.New("connection reset")))
	assert.False(t, IsClientError(nil))
}

func TestClassifyKeepsOriginalError(t *testing.T) {
	apiErr := &openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "bad key"}
	err := Classify(apiErr)
	assert.ErrorIs(t, err, apiErr)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))

	transient := errors.New("timeout")
	assert.Same(t, transient, Classify(transient))
	assert.NoError(t, Classify(nil))
}
