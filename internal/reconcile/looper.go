package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/sable-exchange/sable/internal/currency"
	"github.com/sable-exchange/sable/internal/fund"
	"github.com/sable-exchange/sable/internal/ledger"
	"github.com/sable-exchange/sable/internal/metrics"
	"github.com/sable-exchange/sable/internal/notification"
	"github.com/sable-exchange/sable/internal/walletpro"
)

// Looper discovers new on-chain deposits and credits each exactly once. A
// single instance runs per deployment; the per-currency checkpoint it owns
// must never have two writers.
type Looper struct {
	currencies currency.Repository
	ledger     ledger.Client
	provider   walletpro.Provider
	funds      fund.Store
	notifier   notification.Notifier
	metrics    *metrics.Metrics
	logger     *slog.Logger
	interval   time.Duration
	done       chan struct{}
}

// NewLooper constructs a reconciliation looper sweeping at the given interval.
func NewLooper(currencies currency.Repository, ledgerClient ledger.Client,
	provider walletpro.Provider, funds fund.Store, notifier notification.Notifier,
	m *metrics.Metrics, logger *slog.Logger, interval time.Duration) *Looper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Looper{
		currencies: currencies,
		ledger:     ledgerClient,
		provider:   provider,
		funds:      funds,
		notifier:   notifier,
		metrics:    m,
		logger:     logger,
		interval:   interval,
		done:       make(chan struct{}),
	}
}

// Done is closed when Run has returned. Drained during shutdown so main can
// wait for an in-flight sweep to finish.
func (l *Looper) Done() <-chan struct{} {
	return l.done
}

// Run sweeps immediately, then at every interval, until ctx is cancelled.
func (l *Looper) Run(ctx context.Context) {
	defer close(l.done)

	l.Sweep(ctx)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep(ctx)
		}
	}
}

// Sweep reconciles every crypto currency once. Currencies fail independently:
// an error in one leaves its checkpoint untouched for the next sweep and does
// not stop the others.
func (l *Looper) Sweep(ctx context.Context) {
	cryptos, err := l.currencies.ListCryptos(ctx)
	if err != nil {
		l.logger.Error("reconcile: list cryptos", "error", err)
		return
	}

	for _, c := range cryptos {
		if ctx.Err() != nil {
			return
		}
		start := time.Now()
		if err := l.sweepCurrency(ctx, c); err != nil {
			if l.metrics != nil {
				l.metrics.SweepFailures.WithLabelValues(c.Symbol).Inc()
			}
			l.logger.Error("reconcile: sweep failed",
				"currency", c.Symbol, "checkpoint", c.LatestSync, "error", err)
			continue
		}
		if l.metrics != nil {
			l.metrics.SweepDuration.WithLabelValues(c.Symbol).Observe(time.Since(start).Seconds())
		}
	}
}

// sweepCurrency pages deposits strictly after the stored checkpoint and
// advances the checkpoint to the sweep start only once every page succeeded.
// A crash or error mid-sweep reprocesses the same window next time; the
// ledger's idempotency key makes the re-credit a no-op.
func (l *Looper) sweepCurrency(ctx context.Context, c currency.Crypto) error {
	sweepStart := time.Now().UTC()

	for page := 0; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		deposits, err := l.provider.Deposits(ctx, c.WalletID, c.LatestSync, page)
		if err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}
		if len(deposits) == 0 {
			break
		}
		for _, d := range deposits {
			if err := l.applyDeposit(ctx, c, d); err != nil {
				return fmt.Errorf("deposit %s: %w", d.ID, err)
			}
		}
	}

	return l.currencies.AdvanceCheckpoint(ctx, c.Symbol, sweepStart)
}

func (l *Looper) applyDeposit(ctx context.Context, c currency.Crypto, d walletpro.Deposit) error {
	if d.UserID == "" {
		// Administrative or charge deposits have no member to credit.
		l.observeDeposit(c.Symbol, "unattributed")
		l.logger.Info("reconcile: skipping unattributable deposit",
			"currency", c.Symbol, "deposit_id", d.ID)
		return nil
	}

	if d.Confirmed && d.Error == "" {
		_, err := l.ledger.Update(ctx, ledger.UpdateInput{
			UserID:     d.UserID,
			Asset:      c.WalletID,
			Business:   ledger.BusinessDeposit,
			BusinessID: d.ID,
			Change:     d.NetAmount,
			Detail:     "deposit " + c.Symbol,
		})
		switch {
		case err == nil:
			l.metrics.ObserveUpdate(ledger.BusinessDeposit, "applied")
			l.observeDeposit(c.Symbol, "credited")
			if _, merr := l.funds.WithLock(ctx, d.UserID, c.Symbol, func(f *fund.Fund) error {
				f.Total += d.NetAmount
				return nil
			}); merr != nil {
				l.logger.Error("reconcile: fund mirror credit failed",
					"currency", c.Symbol, "deposit_id", d.ID, "error", merr)
			}
		case errors.Is(err, ledger.ErrRepeatUpdate):
			// Already credited by a previous sweep of this window.
			l.metrics.ObserveUpdate(ledger.BusinessDeposit, "repeat")
			l.observeDeposit(c.Symbol, "repeat")
		default:
			l.metrics.ObserveUpdate(ledger.BusinessDeposit, "error")
			return err
		}
	} else {
		l.observeDeposit(c.Symbol, "pending")
	}

	if err := l.notifier.Send(ctx, l.depositNotification(c, d)); err != nil {
		// Notification loss is tolerable; the credit already stands.
		l.logger.Warn("reconcile: notification not delivered",
			"currency", c.Symbol, "deposit_id", d.ID, "error", err)
	}
	return nil
}

func (l *Looper) observeDeposit(symbol, disposition string) {
	if l.metrics == nil {
		return
	}
	l.metrics.DepositsSeen.WithLabelValues(symbol, disposition).Inc()
}

func (l *Looper) depositNotification(c currency.Crypto, d walletpro.Deposit) notification.Notification {
	n := notification.Notification{
		MemberID: d.UserID,
		Severity: notification.SeverityInfo,
		Topic:    notification.TopicDeposit,
	}
	switch {
	case d.Error != "":
		n.Severity = notification.SeverityWarning
		n.Title = "Deposit failed"
		n.Description = fmt.Sprintf("Your %s deposit could not be processed: %s.", c.Symbol, d.Error)
	case d.Confirmed:
		n.Title = "Balance increased"
		n.Description = fmt.Sprintf("Your %s deposit of %d has been credited.", c.Symbol, d.NetAmount)
	case d.Status == walletpro.StatusPartial:
		n.Title = "Deposit in progress"
		n.Description = fmt.Sprintf("Your %s deposit is in progress, %s confirmations remaining.",
			c.Symbol, strconv.Itoa(d.ConfirmationsLeft))
	default:
		n.Title = "New deposit discovered"
		n.Description = fmt.Sprintf("A new %s deposit was discovered and is awaiting confirmations.", c.Symbol)
	}
	return n
}
