package llm

import (
	"math"
	"net/http"

	"golang.org/x/time/rate"
)

// throttledTransport waits for a token before every request.
type throttledTransport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
}

func (t *throttledTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.next.RoundTrip(req)
}

// throttled returns a copy of base whose requests share one token bucket of
// rps tokens per second.
func throttled(base *http.Client, rps float64) *http.Client {
	client := &http.Client{}
	if base != nil {
		*client = *base
	}
	next := client.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	burst := int(math.Max(1, math.Ceil(rps)))
	client.Transport = &throttledTransport{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
	return client
}
