// Package fees computes the platform and processor fees deducted from a
// gross sale price. All functions are pure; the platform rate is injected so
// tests can pin arbitrary schedules.
package fees

import "math"

// Processor fee schedule: percentage plus fixed component per transaction.
const (
	processorRate  = 0.029
	processorFixed = 0.35
)

type Calculator struct {
	platformRate float64
}

func NewCalculator(platformRate float64) Calculator {
	return Calculator{platformRate: platformRate}
}

// PlatformFee is the marketplace commission on a gross amount.
func (c Calculator) PlatformFee(amount float64) float64 {
	if amount <= 0 || c.platformRate == 0 {
		return 0
	}
	return round2(amount * c.platformRate)
}

// ProcessorFee models the payment processor's percentage-plus-fixed fee.
func (c Calculator) ProcessorFee(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	return round2(amount*processorRate + processorFixed)
}

// NetAmount is what the seller receives after both fees. Rounding is applied
// once per derived quantity, never on a running total.
func (c Calculator) NetAmount(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	return round2(amount - c.PlatformFee(amount) - c.ProcessorFee(amount))
}

// round2 rounds half-up to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
