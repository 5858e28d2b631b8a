// Package billing holds the pure money arithmetic of the marketplace:
// platform commission and net payout calculation. All amounts are integer
// cents; percentages are basis points (1000 bps == 10%). Integer math
// keeps the subtotal + fee == total invariant exact.
package billing

import (
	"fmt"
	"time"

	"pawsit/internal/models"
)

// FeeCalculator computes the platform commission for a base amount.
type FeeCalculator struct {
	percentBps int64
}

func NewFeeCalculator(percentBps int64) *FeeCalculator {
	if percentBps < 0 {
		percentBps = 0
	}
	return &FeeCalculator{percentBps: percentBps}
}

// PercentBps returns the configured commission rate in basis points.
func (c *FeeCalculator) PercentBps() int64 {
	return c.percentBps
}

// Compute returns the commission and net payout for a base amount.
// The fee is rounded half-up to whole cents; net = base - fee.
func (c *FeeCalculator) Compute(baseCents int64) (feeCents, netCents int64, err error) {
	fee, err := ComputeFee(baseCents, c.percentBps)
	if err != nil {
		return 0, 0, err
	}
	return fee, baseCents - fee, nil
}

// ComputeFee calculates round_half_up(base × bps / 10000) in integer cents.
func ComputeFee(baseCents, percentBps int64) (int64, error) {
	if baseCents < 0 {
		return 0, fmt.Errorf("base amount must not be negative, got %d", baseCents)
	}
	if percentBps < 0 || percentBps > 10000 {
		return 0, fmt.Errorf("fee percentage out of range: %d bps", percentBps)
	}
	// (base*bps + 5000) / 10000 rounds half-up for non-negative operands.
	return (baseCents*percentBps + 5000) / 10000, nil
}

// BuildPlatformFee creates the immutable audit record for a commission.
func (c *FeeCalculator) BuildPlatformFee(bookingID, invoiceID, baseCents int64, now time.Time) (*models.PlatformFee, error) {
	fee, net, err := c.Compute(baseCents)
	if err != nil {
		return nil, err
	}
	return &models.PlatformFee{
		BookingID:  bookingID,
		InvoiceID:  invoiceID,
		BaseCents:  baseCents,
		PercentBps: c.percentBps,
		FeeCents:   fee,
		NetCents:   net,
		CreatedAt:  now,
	}, nil
}
