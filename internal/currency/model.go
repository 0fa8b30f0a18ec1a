package currency

import (
	"time"

	"github.com/sable-exchange/sable/internal/commission"
)

// Currency describes an asset traded on the exchange and its fee schedule.
type Currency struct {
	Symbol         string
	Name           string
	DepositTariff  commission.Tariff
	WithdrawTariff commission.Tariff
}

// Crypto is a currency backed by an external wallet. LatestSync is the
// reconciliation checkpoint: the timestamp of the last sweep fully applied.
// It is owned exclusively by the reconciliation looper.
type Crypto struct {
	Currency
	WalletID   string
	LatestSync time.Time
}

// Gateway is a fiat payment processor with its own cash-in/cash-out schedule.
type Gateway struct {
	Name          string
	FiatSymbol    string
	CashinTariff  commission.Tariff
	CashoutTariff commission.Tariff
}
