// Package policy computes refund and fee obligations for cancellations,
// tiered by how far in advance the cancellation is requested.
package policy

import (
	"time"

	"github.com/shopspring/decimal"
)

type Tier string

const (
	TierFullRefund    Tier = "full_refund"
	TierPartialRefund Tier = "partial_refund"
	TierFeeApplied    Tier = "fee_applied"
	TierNoRefund      Tier = "no_refund"
)

// Decision is the structured outcome of evaluating the cancellation policy.
type Decision struct {
	Tier             Tier            `json:"tier"`
	RefundPercentage int64           `json:"refund_percentage"`
	FeePercentage    int64           `json:"fee_percentage"`
	RefundAmount     decimal.Decimal `json:"refund_amount"`
	FeeAmount        decimal.Decimal `json:"fee_amount"`
}

var hundred = decimal.NewFromInt(100)

// Evaluate maps (scheduledStart, now, amount) to a refund tier and the
// corresponding amounts, rounded to two digits of currency precision.
//
// Tiers by hours until the appointment, first match wins:
//
//	H >= 48      full refund, no fee
//	24 <= H < 48 50% refund, no fee
//	2 <= H < 24  25% refund, 75% kept as late-cancellation fee
//	H < 2        no refund, full amount kept
//
// A cancellation requested after the scheduled start clamps to H = 0.
// Non-positive amounts yield zero money but the tier is still returned,
// so a zero-cost cancellation keeps an auditable policy record.
func Evaluate(scheduledStart, now time.Time, amount decimal.Decimal) Decision {
	hoursUntil := scheduledStart.Sub(now).Hours()
	if hoursUntil < 0 {
		hoursUntil = 0
	}

	d := tierFor(hoursUntil)

	if amount.Sign() <= 0 {
		d.RefundAmount = decimal.Zero
		d.FeeAmount = decimal.Zero
		return d
	}

	d.RefundAmount = amount.Mul(decimal.NewFromInt(d.RefundPercentage)).Div(hundred).Round(2)
	if d.FeePercentage > 0 {
		// The fee is whatever is not refunded, so refund + fee never
		// exceeds the original amount even after rounding.
		d.FeeAmount = amount.Round(2).Sub(d.RefundAmount)
	} else {
		d.FeeAmount = decimal.Zero
	}
	return d
}

func tierFor(hoursUntil float64) Decision {
	switch {
	case hoursUntil >= 48:
		return Decision{Tier: TierFullRefund, RefundPercentage: 100, FeePercentage: 0}
	case hoursUntil >= 24:
		return Decision{Tier: TierPartialRefund, RefundPercentage: 50, FeePercentage: 0}
	case hoursUntil >= 2:
		return Decision{Tier: TierFeeApplied, RefundPercentage: 25, FeePercentage: 75}
	default:
		return Decision{Tier: TierNoRefund, RefundPercentage: 0, FeePercentage: 100}
	}
}
