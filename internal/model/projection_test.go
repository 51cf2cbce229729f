package model

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProjectionRequest_UsesFixedGrowth(t *testing.T) {
	t.Parallel()

	s := DefaultScenario()
	s.AnnualIncomeGrowth = 12

	req := NewProjectionRequest(s)
	assert.Equal(t, ProjectionRequest{
		CurrentAge:          30,
		RetirementAge:       60,
		MonthlyContribution: 10000,
		RiskProfile:         "moderate",
		AnnualIncomeGrowth:  AnnualIncomeGrowth,
	}, req)
}

func TestProjectionRequestJSONTags(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(NewProjectionRequest(DefaultScenario()))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Equal(t, float64(30), raw["current_age"])
	assert.Equal(t, float64(60), raw["retirement_age"])
	assert.Equal(t, float64(10000), raw["monthly_contribution"])
	assert.Equal(t, "moderate", raw["risk_profile"])
	assert.Equal(t, 5.0, raw["annual_income_growth"])
}

func TestFingerprintStructuralEquality(t *testing.T) {
	t.Parallel()

	a := NewProjectionRequest(DefaultScenario())
	b := NewProjectionRequest(DefaultScenario())
	assert.True(t, a == b)

	c := NewProjectionRequest(DefaultScenario().WithContribution(15000))
	assert.False(t, a == c)
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"investment_horizon_years": 30,
		"total_contributions": 3600000,
		"corpus_projection": {"percentile_10": 3000000, "percentile_50": 5000000, "percentile_90": 8000000},
		"pension_estimate": {"lump_sum_amount": 2000000, "annuity_purchase_amount": 3000000, "monthly_pension_50th": 25000.7}
	}`)

	var resp ProjectionResponse
	require.NoError(t, json.Unmarshal(body, &resp))

	got := resp.Normalize()
	assert.Equal(t, 3000000.0, got.Percentile10)
	assert.Equal(t, 5000000.0, got.Percentile50)
	assert.Equal(t, 8000000.0, got.Percentile90)
	assert.Equal(t, 2000000.0, got.LumpSum)
	assert.Equal(t, 3000000.0, got.Annuity)
	assert.Equal(t, 25000.7, got.MonthlyPension)
	assert.Equal(t, 3600000.0, got.TotalContributions)
	assert.Equal(t, DefaultSuccessRate, got.SuccessRate)
}

func TestNormalize_LegacyFallbacks(t *testing.T) {
	t.Parallel()

	rate := 88.5
	resp := ProjectionResponse{
		RetirementCorpus: 100,
		MonthlyPension:   10,
		LumpSum:          40,
		SuccessRate:      &rate,
	}

	got := resp.Normalize()
	assert.Equal(t, 100.0, got.Percentile50)
	assert.Equal(t, 10.0, got.MonthlyPension)
	assert.Equal(t, 40.0, got.LumpSum)
	assert.Equal(t, 88.5, got.SuccessRate)
}

func TestNewDashboard(t *testing.T) {
	t.Parallel()

	s := DefaultScenario()
	r := ProjectionResult{
		Percentile50:   5000000,
		MonthlyPension: 25000.9,
		LumpSum:        2000000.4,
		Annuity:        3000000,
	}

	d := NewDashboard(s, r)
	assert.Equal(t, 5000000.0, d.Corpus)
	assert.Equal(t, 25000.0, d.MonthlyPension)
	assert.Equal(t, 2000000.0, d.LumpSum)
	assert.Equal(t, 30, d.Years)
	assert.InDelta(t, 10.00036, d.AnnuityRatePct, 1e-6)
}

func TestNewDashboard_AnnuityFallback(t *testing.T) {
	t.Parallel()

	d := NewDashboard(DefaultScenario(), ProjectionResult{Percentile50: 1000})
	assert.Equal(t, 400.0, d.AnnuityAmount)
	assert.Equal(t, 400.0, d.SplitLumpSum)
	assert.Equal(t, 0.0, d.AnnuityRatePct)
}

func TestComparisonBatchResult(t *testing.T) {
	t.Parallel()

	b := ComparisonBatchResult{Entries: []ComparisonEntry{
		{Index: 0, Status: "error", Kind: "timeout"},
		{Index: 1, Status: "ok", Result: &ProjectionResult{Percentile50: 1}},
		{Index: 2, Status: "error", Kind: "unreachable"},
	}}

	ok := b.Successful()
	require.Len(t, ok, 1)
	assert.Equal(t, 1, ok[0].Index)
	assert.Len(t, b.Failed(), 2)
	assert.True(t, b.Partial())
}

func TestRiskProfileValid(t *testing.T) {
	t.Parallel()

	assert.True(t, RiskConservative.Valid())
	assert.True(t, RiskModerate.Valid())
	assert.True(t, RiskAggressive.Valid())
	assert.False(t, RiskProfile("reckless").Valid())
	assert.False(t, RiskProfile("").Valid())
}
