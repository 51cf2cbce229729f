package model

import "math"

// DefaultSuccessRate is reported when the service omits success_rate.
const DefaultSuccessRate = 95.0

// annuityShareFallback is the share of the median corpus assumed for the
// annuity and lump-sum split when the service does not report them.
const annuityShareFallback = 0.4

// ProjectionResponse mirrors the JSON returned by the calculation service.
// Only the fields the engine consumes are declared.
type ProjectionResponse struct {
	InvestmentHorizonYears int          `json:"investment_horizon_years"`
	TotalContributions     float64      `json:"total_contributions"`
	CorpusProjection       *CorpusWire  `json:"corpus_projection"`
	PensionEstimate        *PensionWire `json:"pension_estimate"`
	SuccessRate            *float64     `json:"success_rate,omitempty"`
	RetirementCorpus       float64      `json:"retirement_corpus,omitempty"`
	MonthlyPension         float64      `json:"monthly_pension,omitempty"`
	LumpSum                float64      `json:"lump_sum,omitempty"`
}

// CorpusWire is the percentile block of the response.
type CorpusWire struct {
	Percentile10 float64 `json:"percentile_10"`
	Percentile25 float64 `json:"percentile_25"`
	Percentile50 float64 `json:"percentile_50"`
	Percentile75 float64 `json:"percentile_75"`
	Percentile90 float64 `json:"percentile_90"`
	Mean         float64 `json:"mean"`
	StdDeviation float64 `json:"std_deviation"`
}

// PensionWire is the pension block of the response.
type PensionWire struct {
	LumpSumAmount         float64 `json:"lump_sum_amount"`
	AnnuityPurchaseAmount float64 `json:"annuity_purchase_amount"`
	MonthlyPension10th    float64 `json:"monthly_pension_10th"`
	MonthlyPension50th    float64 `json:"monthly_pension_50th"`
	MonthlyPension90th    float64 `json:"monthly_pension_90th"`
}

// ProjectionResult is the normalized outcome of one evaluation.
type ProjectionResult struct {
	Percentile10       float64 `json:"percentile_10"`
	Percentile50       float64 `json:"percentile_50"`
	Percentile90       float64 `json:"percentile_90"`
	LumpSum            float64 `json:"lump_sum"`
	Annuity            float64 `json:"annuity"`
	MonthlyPension     float64 `json:"monthly_pension"`
	TotalContributions float64 `json:"total_contributions"`
	SuccessRate        float64 `json:"success_rate"`
}

// Normalize flattens the wire response, applying the legacy top-level
// fallbacks for corpus, pension and lump sum.
func (r ProjectionResponse) Normalize() ProjectionResult {
	out := ProjectionResult{
		Percentile50:       r.RetirementCorpus,
		MonthlyPension:     r.MonthlyPension,
		LumpSum:            r.LumpSum,
		TotalContributions: r.TotalContributions,
		SuccessRate:        DefaultSuccessRate,
	}
	if c := r.CorpusProjection; c != nil {
		out.Percentile10 = c.Percentile10
		if c.Percentile50 != 0 {
			out.Percentile50 = c.Percentile50
		}
		out.Percentile90 = c.Percentile90
	}
	if p := r.PensionEstimate; p != nil {
		if p.MonthlyPension50th != 0 {
			out.MonthlyPension = p.MonthlyPension50th
		}
		if p.LumpSumAmount != 0 {
			out.LumpSum = p.LumpSumAmount
		}
		out.Annuity = p.AnnuityPurchaseAmount
	}
	if r.SuccessRate != nil && *r.SuccessRate != 0 {
		out.SuccessRate = *r.SuccessRate
	}
	return out
}

// Dashboard holds the display values derived from a result and the scenario
// that produced it.
type Dashboard struct {
	Corpus             float64 `json:"corpus"`
	MonthlyPension     float64 `json:"monthly_pension"`
	LumpSum            float64 `json:"lump_sum"`
	Years              int     `json:"years"`
	Percentile10       float64 `json:"percentile_10"`
	Percentile90       float64 `json:"percentile_90"`
	TotalContributions float64 `json:"total_contributions"`
	AnnuityAmount      float64 `json:"annuity_amount"`
	SplitLumpSum       float64 `json:"split_lump_sum"`
	AnnuityRatePct     float64 `json:"annuity_rate_pct"`
}

// NewDashboard derives the dashboard for r evaluated against s.
func NewDashboard(s Scenario, r ProjectionResult) Dashboard {
	annuity := r.Annuity
	if annuity == 0 {
		annuity = r.Percentile50 * annuityShareFallback
	}
	split := r.LumpSum
	if split == 0 {
		split = r.Percentile50 * annuityShareFallback
	}
	var rate float64
	if annuity > 0 {
		rate = r.MonthlyPension * 12 / annuity * 100
	}
	return Dashboard{
		Corpus:             r.Percentile50,
		MonthlyPension:     math.Floor(r.MonthlyPension),
		LumpSum:            math.Floor(r.LumpSum),
		Years:              s.Years(),
		Percentile10:       r.Percentile10,
		Percentile90:       r.Percentile90,
		TotalContributions: r.TotalContributions,
		AnnuityAmount:      annuity,
		SplitLumpSum:       split,
		AnnuityRatePct:     rate,
	}
}
