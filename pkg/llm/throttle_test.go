package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestThrottledTransportHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := &http.Client{Transport: &throttledTransport{
		next:    http.DefaultTransport,
		limiter: rate.NewLimiter(rate.Every(time.Hour), 1),
	}}

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	res, err := client.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Do(req.WithContext(ctx))
	assert.Error(t, err)
}

func TestThrottledKeepsBaseClientSettings(t *testing.T) {
	base := &http.Client{Timeout: 7 * time.Second}
	c := throttled(base, 2.5)
	assert.Equal(t, 7*time.Second, c.Timeout)
	tt, ok := c.Transport.(*throttledTransport)
	require.True(t, ok)
	assert.Equal(t, 3, tt.limiter.Burst())
	assert.Nil(t, base.Transport)
}
