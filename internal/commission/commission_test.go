package commission

import "testing"

func TestCalculate(t *testing.T) {
	cases := []struct {
		name   string
		amount int64
		tariff Tariff
		want   int64
	}{
		{"static only", 2_000, Tariff{Static: 129}, 129},
		{"static plus rate", 2_000, Tariff{Static: 129, RatePermille: 23, Cap: 746}, 175},
		{"cap applies", 100_000, Tariff{Static: 129, RatePermille: 23, Cap: 746}, 746},
		{"zero cap is uncapped", 100_000, Tariff{Static: 129, RatePermille: 23}, 2_429},
		{"rate rounds down", 99, Tariff{RatePermille: 5}, 0},
		{"zero amount", 0, Tariff{Static: 10, RatePermille: 23, Cap: 5}, 5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Calculate(tc.amount, tc.tariff); got != tc.want {
				t.Fatalf("Calculate(%d) = %d, want %d", tc.amount, got, tc.want)
			}
		})
	}
}

func TestCalculateMonotonicAndCapped(t *testing.T) {
	tariff := Tariff{Static: 50, RatePermille: 17, Cap: 900}

	var prev int64 = -1
	for amount := int64(0); amount <= 100_000; amount += 997 {
		fee := Calculate(amount, tariff)
		if fee < prev {
			t.Fatalf("fee decreased: amount=%d fee=%d prev=%d", amount, fee, prev)
		}
		if fee > tariff.Cap {
			t.Fatalf("fee %d exceeds cap %d at amount %d", fee, tariff.Cap, amount)
		}
		prev = fee
	}
}

func TestInRange(t *testing.T) {
	tariff := Tariff{Min: 100, Max: 5_000}

	if tariff.InRange(99) {
		t.Fatal("amount below min accepted")
	}
	if !tariff.InRange(100) || !tariff.InRange(5_000) {
		t.Fatal("boundary amounts rejected")
	}
	if tariff.InRange(5_001) {
		t.Fatal("amount above max accepted")
	}

	unbounded := Tariff{Min: 100}
	if !unbounded.InRange(1 << 40) {
		t.Fatal("zero max must mean unbounded")
	}
}
