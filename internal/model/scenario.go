// Package model defines the scenario, payload and result types shared by the
// orchestration engine and its transport.
package model

// AnnualIncomeGrowth is the income growth assumption (percent per year) sent
// with every projection request. It is not user-settable.
const AnnualIncomeGrowth = 5.0

// RiskProfile selects the return band used by the remote simulator.
type RiskProfile string

const (
	RiskConservative RiskProfile = "conservative"
	RiskModerate     RiskProfile = "moderate"
	RiskAggressive   RiskProfile = "aggressive"
)

// Valid reports whether p is one of the known profiles.
func (p RiskProfile) Valid() bool {
	switch p {
	case RiskConservative, RiskModerate, RiskAggressive:
		return true
	default:
		return false
	}
}

// RawScenario holds the field values exactly as the user entered them.
type RawScenario struct {
	Age           string `json:"age"`
	RetirementAge string `json:"retirement_age"`
	Contribution  string `json:"contribution"`
	RiskProfile   string `json:"risk_profile"`
}

// Scenario is a validated set of retirement-planning parameters.
type Scenario struct {
	Age                int         `json:"age"`
	RetirementAge      int         `json:"retirement_age"`
	Contribution       int         `json:"contribution"`
	RiskProfile        RiskProfile `json:"risk_profile"`
	AnnualIncomeGrowth float64     `json:"annual_income_growth"`
}

// DefaultScenario is the scenario shown before the user changes anything.
func DefaultScenario() Scenario {
	return Scenario{
		Age:                30,
		RetirementAge:      60,
		Contribution:       10000,
		RiskProfile:        RiskModerate,
		AnnualIncomeGrowth: AnnualIncomeGrowth,
	}
}

// Years is the investment horizon.
func (s Scenario) Years() int {
	return s.RetirementAge - s.Age
}

// WithContribution returns a copy of s with the monthly contribution replaced.
func (s Scenario) WithContribution(amount int) Scenario {
	s.Contribution = amount
	return s
}

// ProjectionRequest is the outbound evaluation payload.
//
// It is comparable, so two requests are the same fingerprint exactly when
// every payload field is equal.
type ProjectionRequest struct {
	CurrentAge          int     `json:"current_age"`
	RetirementAge       int     `json:"retirement_age"`
	MonthlyContribution int     `json:"monthly_contribution"`
	RiskProfile         string  `json:"risk_profile"`
	AnnualIncomeGrowth  float64 `json:"annual_income_growth"`
}

// Fingerprint identifies a payload for duplicate detection.
type Fingerprint = ProjectionRequest

// NewProjectionRequest builds the payload for s using the fixed growth rate.
func NewProjectionRequest(s Scenario) ProjectionRequest {
	return ProjectionRequest{
		CurrentAge:          s.Age,
		RetirementAge:       s.RetirementAge,
		MonthlyContribution: s.Contribution,
		RiskProfile:         string(s.RiskProfile),
		AnnualIncomeGrowth:  AnnualIncomeGrowth,
	}
}
