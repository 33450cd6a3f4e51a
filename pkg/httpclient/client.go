// Package httpclient builds the connection pool shared by every outbound
// client (model endpoint, Elasticsearch, MinIO).
package httpclient

import (
	"context"
	"net"
	"net/http"
	"time"

	"juris-rag-go/internal/config"
)

// Pool owns the shared transport. net/http has no maximum connection age, so
// Recycle periodically closes idle connections to keep them short-lived.
type Pool struct {
	Client    *http.Client
	Transport *http.Transport
	lifetime  time.Duration
}

// New returns a Pool sized by cfg.
func New(cfg config.HTTPConfig) *Pool {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &Pool{
		Client:    &http.Client{Transport: transport},
		Transport: transport,
		lifetime:  cfg.ConnMaxLifetime,
	}
}

// Recycle closes idle connections every lifetime until ctx is done.
func (p *Pool) Recycle(ctx context.Context) {
	if p.lifetime <= 0 {
		return
	}
	ticker := time.NewTicker(p.lifetime)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.Transport.CloseIdleConnections()
			return
		case <-ticker.C:
			p.Transport.CloseIdleConnections()
		}
	}
}
