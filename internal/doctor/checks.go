// Package doctor runs environment diagnostics: config validity, the Graphviz
// binary, the local socket directory and reachability of configured hosts.
package doctor

import (
	"context"
	"sync"

	"github.com/rileyhilliard/teleop/internal/util"
)

// Check categories, in report order.
const (
	CategoryConfig    = "CONFIG"
	CategoryRender    = "RENDER"
	CategoryTransport = "TRANSPORT"
	CategoryHosts     = "HOSTS"
)

// Categories lists the categories in the order they are reported.
var Categories = []string{CategoryConfig, CategoryRender, CategoryTransport, CategoryHosts}

// CheckStatus represents the result status of a check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

// String returns a human-readable status string.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name in JSON output.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CheckResult contains the outcome of running a check.
type CheckResult struct {
	Name       string      `json:"name"`
	Category   string      `json:"category"`
	Status     CheckStatus `json:"status"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
}

// Check defines the interface for diagnostic checks.
type Check interface {
	// Name returns the check's identifier.
	Name() string

	// Category returns the check's category (CONFIG, RENDER, ...).
	Category() string

	// Run executes the check. It must return once ctx is done.
	Run(ctx context.Context) CheckResult
}

// RunAll executes all checks in parallel and returns the results in the
// order of checks. Name and Category are filled in when a check leaves them
// empty.
func RunAll(ctx context.Context, checks []Check) []CheckResult {
	results := make([]CheckResult, len(checks))
	var wg sync.WaitGroup

	for i, check := range checks {
		wg.Add(1)
		go func(idx int, c Check) {
			defer wg.Done()
			r := c.Run(ctx)
			if r.Name == "" {
				r.Name = c.Name()
			}
			if r.Category == "" {
				r.Category = c.Category()
			}
			results[idx] = r
		}(i, check)
	}

	wg.Wait()
	return results
}

// GroupByCategory organizes results by category.
func GroupByCategory(results []CheckResult) map[string][]CheckResult {
	grouped := make(map[string][]CheckResult)
	for _, r := range results {
		grouped[r.Category] = append(grouped[r.Category], r)
	}
	return grouped
}

// CountByStatus counts results by status.
func CountByStatus(results []CheckResult) map[CheckStatus]int {
	counts := make(map[CheckStatus]int)
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}

// HasFailures returns true if any result has a fail status.
func HasFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.Status == StatusFail {
			return true
		}
	}
	return false
}

// HasIssues returns true if any result has a fail or warn status.
func HasIssues(results []CheckResult) bool {
	for _, r := range results {
		if r.Status == StatusFail || r.Status == StatusWarn {
			return true
		}
	}
	return false
}

// Summary returns a summary string of the check results.
func Summary(results []CheckResult) string {
	counts := CountByStatus(results)
	warn := counts[StatusWarn]
	fail := counts[StatusFail]

	if fail == 0 && warn == 0 {
		return "Everything looks good"
	}

	total := warn + fail
	return util.Count(total, "issue", "issues") + " found"
}
