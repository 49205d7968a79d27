package doctor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status   CheckStatus
		expected string
	}{
		{StatusPass, "pass"},
		{StatusWarn, "warn"},
		{StatusFail, "fail"},
		{CheckStatus(99), "unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.status.String())
			text, err := tc.status.MarshalText()
			require.NoError(t, err)
			assert.Equal(t, tc.expected, string(text))
		})
	}
}

// mockCheck is a test implementation of Check.
type mockCheck struct {
	name     string
	category string
	result   CheckResult
}

func (m *mockCheck) Name() string                    { return m.name }
func (m *mockCheck) Category() string                { return m.category }
func (m *mockCheck) Run(context.Context) CheckResult { return m.result }

func TestRunAll(t *testing.T) {
	checks := []Check{
		&mockCheck{name: "a", category: CategoryConfig, result: CheckResult{Status: StatusPass, Message: "ok"}},
		&mockCheck{name: "b", category: CategoryRender, result: CheckResult{Status: StatusFail, Message: "no dot"}},
		&mockCheck{name: "c", category: CategoryHosts, result: CheckResult{Name: "custom", Status: StatusWarn}},
	}

	results := RunAll(context.Background(), checks)

	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].Name)
	assert.Equal(t, CategoryConfig, results[0].Category)
	assert.Equal(t, "no dot", results[1].Message)
	assert.Equal(t, "custom", results[2].Name, "explicit names are kept")
	assert.Equal(t, CategoryHosts, results[2].Category)
}

func TestResultHelpers(t *testing.T) {
	tests := []struct {
		name        string
		results     []CheckResult
		hasFailures bool
		hasIssues   bool
		summary     string
	}{
		{
			name:    "empty",
			summary: "Everything looks good",
		},
		{
			name:    "all pass",
			results: []CheckResult{{Status: StatusPass}, {Status: StatusPass}},
			summary: "Everything looks good",
		},
		{
			name:      "one warning",
			results:   []CheckResult{{Status: StatusPass}, {Status: StatusWarn}},
			hasIssues: true,
			summary:   "1 issue found",
		},
		{
			name:        "failures and warnings",
			results:     []CheckResult{{Status: StatusFail}, {Status: StatusWarn}, {Status: StatusFail}},
			hasFailures: true,
			hasIssues:   true,
			summary:     "3 issues found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.hasFailures, HasFailures(tt.results))
			assert.Equal(t, tt.hasIssues, HasIssues(tt.results))
			assert.Equal(t, tt.summary, Summary(tt.results))
		})
	}
}

func TestGroupByCategory(t *testing.T) {
	grouped := GroupByCategory([]CheckResult{
		{Name: "a", Category: CategoryHosts},
		{Name: "b", Category: CategoryConfig},
		{Name: "c", Category: CategoryHosts},
	})

	require.Len(t, grouped[CategoryHosts], 2)
	assert.Equal(t, "c", grouped[CategoryHosts][1].Name)
	assert.Len(t, grouped[CategoryConfig], 1)
}
