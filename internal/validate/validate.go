// Package validate turns raw user input into a Scenario.
//
// Every constraint is checked independently so one call reports all
// problems at once. A field that does not parse as an integer is reported
// with the same message as an out-of-range value.
package validate

import (
	"strconv"
	"strings"

	"github.com/iliamunaev/projection-pipeline/internal/model"
)

const (
	MinAge           = 18
	MaxAge           = 65
	MinRetirementAge = 40
	MaxRetirementAge = 70
	MinContribution  = 500
	MaxContribution  = 200000
)

const (
	MsgAge           = "Current age must be between 18 and 65."
	MsgRetirementAge = "Retirement age must be between 40 and 70."
	MsgOrdering      = "Retirement age must be greater than current age."
	MsgContribution  = "Monthly contribution must be between ₹500 and ₹2,00,000."
	MsgRiskProfile   = "Risk profile must be conservative, moderate, or aggressive."
)

// Result is the outcome of Validate. Scenario is meaningful only when Valid.
type Result struct {
	Valid    bool
	Errors   []string
	Scenario model.Scenario
}

// Validate checks raw and returns the parsed scenario or every violated
// constraint. It never panics.
func Validate(raw model.RawScenario) Result {
	age, ageOK := parseInt(raw.Age)
	retire, retireOK := parseInt(raw.RetirementAge)
	contribution, contributionOK := parseInt(raw.Contribution)
	risk := model.RiskProfile(strings.TrimSpace(raw.RiskProfile))

	var errs []string

	if !ageOK || age < MinAge || age > MaxAge {
		errs = append(errs, MsgAge)
	}
	if !retireOK || retire < MinRetirementAge || retire > MaxRetirementAge {
		errs = append(errs, MsgRetirementAge)
	}
	if ageOK && retireOK && retire <= age {
		errs = append(errs, MsgOrdering)
	}
	if !contributionOK || contribution < MinContribution || contribution > MaxContribution {
		errs = append(errs, MsgContribution)
	}
	if !risk.Valid() {
		errs = append(errs, MsgRiskProfile)
	}

	if len(errs) > 0 {
		return Result{Errors: errs}
	}
	return Result{
		Valid: true,
		Scenario: model.Scenario{
			Age:                age,
			RetirementAge:      retire,
			Contribution:       contribution,
			RiskProfile:        risk,
			AnnualIncomeGrowth: model.AnnualIncomeGrowth,
		},
	}
}

// Scenario re-checks an already typed scenario, e.g. one built in code.
func Scenario(s model.Scenario) Result {
	return Validate(model.RawScenario{
		Age:           strconv.Itoa(s.Age),
		RetirementAge: strconv.Itoa(s.RetirementAge),
		Contribution:  strconv.Itoa(s.Contribution),
		RiskProfile:   string(s.RiskProfile),
	})
}

func parseInt(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}
