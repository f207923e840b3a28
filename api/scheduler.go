/*
scheduler.go - Background balance verification

PURPOSE:
  Periodically replays every customer and supplier ledger and compares the
  result with the cached currentBalance. Drift means a write path updated
  one without the other; it is logged, never auto-corrected.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Walks every company, one VerifyBalances call each
  - A failing company is logged and skipped; the next tick retries

CONFIGURATION:
  - Interval: How often to check (VERIFY_INTERVAL, default: 1 hour)
  - RunOnStart: Check once immediately (VERIFY_ON_START)

USAGE:
  verifier := NewBalanceVerifier(store, projection, time.Hour)
  verifier.Start()
  // ... later
  verifier.Stop()

SEE ALSO:
  - ledger_handlers.go: VerifyLedger endpoint (on demand, one company)
  - ledger/projection.go: VerifyBalances
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/billing-engine/internal/logger"
	"github.com/warp/billing-engine/ledger"
	"github.com/warp/billing-engine/store/sqlite"
)

// BalanceVerifier checks cached balances against ledger replays.
type BalanceVerifier struct {
	Store      *sqlite.Store
	Projection *ledger.Projection
	Interval   time.Duration
	RunOnStart bool

	log    zerolog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewBalanceVerifier(store *sqlite.Store, projection *ledger.Projection, interval time.Duration) *BalanceVerifier {
	return &BalanceVerifier{
		Store:      store,
		Projection: projection,
		Interval:   interval,
		log:        logger.WithComponent("balance-verifier"),
	}
}

// Start begins the verifier. A non-positive interval disables it.
func (v *BalanceVerifier) Start() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.Interval <= 0 {
		v.log.Info().Msg("disabled, not starting")
		return
	}
	if v.ticker != nil {
		return
	}

	v.ticker = time.NewTicker(v.Interval)
	v.stop = make(chan struct{})
	v.wg.Add(1)

	go v.run()

	v.log.Info().Dur("interval", v.Interval).Msg("started")
}

// Stop stops the verifier and waits for a running check to finish.
func (v *BalanceVerifier) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.ticker != nil {
		v.ticker.Stop()
		close(v.stop)
		v.wg.Wait()
		v.ticker = nil
		v.log.Info().Msg("stopped")
	}
}

func (v *BalanceVerifier) run() {
	defer v.wg.Done()

	if v.RunOnStart {
		v.Check(context.Background())
	}

	for {
		select {
		case <-v.ticker.C:
			v.Check(context.Background())
		case <-v.stop:
			return
		}
	}
}

// Check verifies every company once and returns all drift found.
func (v *BalanceVerifier) Check(ctx context.Context) []ledger.BalanceDrift {
	ctx = v.log.WithContext(ctx)

	companies, err := v.Store.ListCompanies(ctx, "")
	if err != nil {
		v.log.Error().Err(err).Msg("list companies")
		return nil
	}

	var all []ledger.BalanceDrift
	for _, c := range companies {
		drift, err := v.Projection.VerifyBalances(ctx, c.ID)
		if err != nil {
			v.log.Error().Err(err).Str("company", c.ID).Msg("verify balances")
			continue
		}
		for _, d := range drift {
			v.log.Warn().
				Str("company", d.CompanyID).
				Str("kind", string(d.AccountKind)).
				Str("account", d.AccountID).
				Str("cached", d.Cached.String()).
				Str("replayed", d.Replayed.String()).
				Msg("balance drift")
		}
		all = append(all, drift...)
	}

	v.log.Info().Int("companies", len(companies)).Int("drift", len(all)).Msg("verification complete")
	return all
}
