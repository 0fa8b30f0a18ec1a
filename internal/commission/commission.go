package commission

// Tariff governs one money-movement direction for a currency or gateway.
// All amounts are integers in the currency's smallest unit. Max == 0 means
// the direction is unbounded above; Cap == 0 means the fee is uncapped.
type Tariff struct {
	Min          int64
	Max          int64
	Static       int64
	RatePermille int64
	Cap          int64
}

// Calculate returns the fee for the given amount: the static fee plus the
// proportional part rounded down, limited by the cap. Integer arithmetic
// only; financial amounts never touch floating point.
func Calculate(amount int64, t Tariff) int64 {
	fee := t.Static
	if t.RatePermille != 0 {
		fee += amount * t.RatePermille / 1000
	}
	if t.Cap != 0 && fee > t.Cap {
		return t.Cap
	}
	return fee
}

// InRange reports whether the amount falls within the tariff's bounds.
func (t Tariff) InRange(amount int64) bool {
	if amount < t.Min {
		return false
	}
	if t.Max != 0 && amount > t.Max {
		return false
	}
	return true
}
