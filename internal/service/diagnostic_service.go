package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const checkTimeout = 5 * time.Second

// Check probes one dependency.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// CheckResult is the outcome of one Check.
type CheckResult struct {
	OK        bool   `json:"ok"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// DiagnosticReport is the body of /api/diagnostic.
type DiagnosticReport struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
	Config map[string]bool        `json:"config"`
}

// DiagnosticService reports dependency reachability. It never fails.
type DiagnosticService interface {
	Run(ctx context.Context) DiagnosticReport
}

type diagnosticService struct {
	checks []Check
	config map[string]bool
}

// NewDiagnosticService creates a DiagnosticService running checks. config
// lists which optional features are configured.
func NewDiagnosticService(checks []Check, config map[string]bool) DiagnosticService {
	return &diagnosticService{checks: checks, config: config}
}

func (s *diagnosticService) Run(ctx context.Context) DiagnosticReport {
	report := DiagnosticReport{
		Status: "ok",
		Checks: make(map[string]CheckResult, len(s.checks)),
		Config: s.config,
	}
	var mu sync.Mutex
	var g errgroup.Group
	for _, check := range s.checks {
		check := check
		g.Go(func() error {
			result := runCheck(ctx, check)
			mu.Lock()
			report.Checks[check.Name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	for _, r := range report.Checks {
		if !r.OK {
			report.Status = "degraded"
		}
	}
	return report
}

func runCheck(ctx context.Context, check Check) (result CheckResult) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = CheckResult{Error: "check panicked"}
		}
		result.LatencyMS = time.Since(start).Milliseconds()
	}()
	if err := check.Probe(ctx); err != nil {
		return CheckResult{Error: err.Error()}
	}
	return CheckResult{OK: true}
}
