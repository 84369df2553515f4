package model

import "math"

// Quote is the outcome of applying a code's benefit to a plan price.
// Both figures are clamped non-negative and rounded to two decimals at the
// final step only, so intermediate arithmetic never compounds rounding error.
type Quote struct {
	FinalPrice float64
	Savings    float64
}

// Price computes the discounted price for one billing period.
func Price(planPrice float64, benefit BenefitType, value float64) Quote {
	if planPrice < 0 {
		planPrice = 0
	}
	var savings float64
	switch benefit {
	case BenefitPercentage:
		savings = planPrice * value / 100
	case BenefitFixedAmount:
		savings = math.Min(value, planPrice)
	case BenefitFreeTrial:
		savings = planPrice
	}
	if savings < 0 {
		savings = 0
	}
	if savings > planPrice {
		savings = planPrice
	}
	return Quote{
		FinalPrice: Round2(planPrice - savings),
		Savings:    Round2(savings),
	}
}

// SavingsPercent reports savings relative to an original price as a whole
// percentage. ok is false when no meaningful original price is known.
func SavingsPercent(savings, originalPrice float64) (int, bool) {
	if originalPrice <= 0 {
		return 0, false
	}
	return int(roundHalfAway(savings / originalPrice * 100)), true
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return roundHalfAway(v*100) / 100
}

func roundHalfAway(v float64) float64 {
	return math.Copysign(math.Floor(math.Abs(v)+0.5), v)
}
