package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"lv-bintrade/internal/apperr"
	"lv-bintrade/internal/events"
	"lv-bintrade/internal/ledger"
	"lv-bintrade/internal/override"
	"lv-bintrade/internal/pricing"
	"lv-bintrade/internal/trades"
	"lv-bintrade/internal/types"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Scheduler settles each open trade exactly once. Durability comes
// from the trade row itself: settle_at is the schedule entry, the
// status CAS is the cross-process claim, and the payout idempotency
// key makes every retry safe. In-memory timers are just an
// optimization over the once-per-second sweep.
type Scheduler struct {
	store    trades.Store
	ledger   *ledger.Service
	oracle   pricing.Oracle
	policies *override.Controller
	bus      *events.Bus
	log      zerolog.Logger

	retryMax int
	backoff  time.Duration
	now      func() time.Time

	cron *cron.Cron

	mu       sync.Mutex
	timers   map[string]*time.Timer
	inflight map[string]struct{}
}

func NewScheduler(store trades.Store, ledgerSvc *ledger.Service, oracle pricing.Oracle, policies *override.Controller, bus *events.Bus, log zerolog.Logger, retryMax int, backoff time.Duration) *Scheduler {
	return &Scheduler{
		store:    store,
		ledger:   ledgerSvc,
		oracle:   oracle,
		policies: policies,
		bus:      bus,
		log:      log,
		retryMax: retryMax,
		backoff:  backoff,
		now:      time.Now,
		cron:     cron.New(cron.WithSeconds()),
		timers:   make(map[string]*time.Timer),
		inflight: make(map[string]struct{}),
	}
}

// Start recovers persisted schedule entries and begins the sweep.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.Recover(ctx); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("* * * * * *", func() { s.sweep(context.Background()) }); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.mu.Lock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
}

// Recover re-arms every unsettled trade from storage. Trades caught
// mid-settlement by a crash are resumed immediately; retries are safe
// because the payout credit and terminal persist are both idempotent.
func (s *Scheduler) Recover(ctx context.Context) error {
	open, err := s.store.ListUnsettled(ctx)
	if err != nil {
		return fmt.Errorf("list unsettled trades: %w", err)
	}
	for _, t := range open {
		if t.Status == types.TradeStatusSettling {
			s.log.Warn().Str("trade_id", t.ID).Msg("resuming interrupted settlement")
			go s.fire(t.ID)
			continue
		}
		s.Register(t)
	}
	if len(open) > 0 {
		s.log.Info().Int("count", len(open)).Msg("recovered scheduled settlements")
	}
	return nil
}

// Register arms a timer for the trade's due time.
func (s *Scheduler) Register(t trades.Trade) {
	delay := time.Until(t.SettleAt)
	if delay < 0 {
		delay = 0
	}
	s.mu.Lock()
	if _, exists := s.timers[t.ID]; exists {
		s.mu.Unlock()
		return
	}
	id := t.ID
	s.timers[id] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		s.fire(id)
	})
	s.mu.Unlock()
}

// sweep settles anything due whose timer was lost. Overlap with a
// live timer is harmless: the CAS collapses both to one settlement.
func (s *Scheduler) sweep(ctx context.Context) {
	open, err := s.store.ListUnsettled(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("sweep: list unsettled trades")
		return
	}
	now := s.now()
	for _, t := range open {
		if t.SettleAt.After(now) {
			continue
		}
		go s.fire(t.ID)
	}
}

func (s *Scheduler) fire(tradeID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.retryMax+1)*s.backoff+30*time.Second)
	defer cancel()
	if _, err := s.Settle(ctx, tradeID); err != nil {
		s.log.Error().Err(err).Str("trade_id", tradeID).Msg("settlement failed; will be retried by sweep")
	}
}

// Settle resolves one trade. A second call for the same trade, in this
// process or another, changes nothing and returns the prior result.
func (s *Scheduler) Settle(ctx context.Context, tradeID string) (trades.Trade, error) {
	if !s.begin(tradeID) {
		// Another goroutine holds this trade; report current state.
		return s.store.Get(ctx, tradeID)
	}
	defer s.end(tradeID)

	t, err := s.store.Get(ctx, tradeID)
	if err != nil {
		return trades.Trade{}, err
	}
	if t.Status.Terminal() {
		return t, nil
	}
	if t.Status == types.TradeStatusActive {
		// The price is read before the claim and persisted with it:
		// a trade in settling always settles against that recorded
		// price, even across a crash between credit and persist.
		exitPrice, err := s.readExitPrice(ctx, t.Asset)
		if err != nil {
			// Trade stays active; the sweep re-attempts rather than
			// claiming without a price.
			return trades.Trade{}, err
		}
		claimed, err := s.store.ClaimSettlement(ctx, tradeID, exitPrice)
		if err != nil {
			return trades.Trade{}, fmt.Errorf("claim trade: %w", err)
		}
		if claimed {
			t.Status = types.TradeStatusSettling
			t.ExitPrice = &exitPrice
		} else {
			t, err = s.store.Get(ctx, tradeID)
			if err != nil || t.Status.Terminal() {
				return t, err
			}
			// Claimed elsewhere but not finished: fall through and
			// resume against the claimant's recorded price.
		}
	}
	if t.ExitPrice == nil {
		return trades.Trade{}, fmt.Errorf("trade %s in settling without a recorded exit price", t.ID)
	}
	exitPrice := *t.ExitPrice

	policy := s.policies.Policy()
	won := policy.Resolve(rawOutcome(t.Direction, t.EntryPrice, exitPrice))
	payout := decimal.Zero
	if won {
		payout = t.WagerAmount.Mul(policy.PayoutMultiplier)
	}

	status := types.TradeStatusLost
	if won {
		status = types.TradeStatusWon
		field := types.BalanceFieldFor(t.AccountType)
		if err := s.retry(ctx, "credit payout", func() error {
			_, _, err := s.ledger.ApplyDelta(ctx, t.AccountID, field, payout, t.ID+":payout")
			return err
		}); err != nil {
			return trades.Trade{}, err
		}
	}

	if err := s.retry(ctx, "persist settlement", func() error {
		err := s.store.FinishSettlement(ctx, t.ID, status, payout, s.now().UTC())
		if errors.Is(err, apperr.ErrAlreadyProcessed) {
			// A concurrent attempt finished first; same outcome.
			return nil
		}
		return err
	}); err != nil {
		return trades.Trade{}, err
	}

	settled, err := s.store.Get(ctx, t.ID)
	if err != nil {
		return trades.Trade{}, err
	}
	s.bus.Publish(events.TypeTradeSettled, events.TradeSettled{
		TradeID: settled.ID,
		Won:     won,
		Payout:  payout,
	})
	s.log.Info().
		Str("trade_id", settled.ID).
		Str("status", string(settled.Status)).
		Str("payout", payout.String()).
		Msg("trade settled")
	return settled, nil
}

func (s *Scheduler) readExitPrice(ctx context.Context, asset string) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := s.retry(ctx, "read exit price", func() error {
		p, err := s.oracle.CurrentPrice(asset)
		if err != nil {
			return err
		}
		price = p
		return nil
	})
	return price, err
}

func (s *Scheduler) retry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= s.retryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * s.backoff):
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		s.log.Warn().Err(err).Str("op", op).Int("attempt", attempt+1).Msg("settlement step failed")
	}
	return fmt.Errorf("%s: retries exhausted: %w", op, err)
}

func (s *Scheduler) begin(tradeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[tradeID]; busy {
		return false
	}
	s.inflight[tradeID] = struct{}{}
	return true
}

func (s *Scheduler) end(tradeID string) {
	s.mu.Lock()
	delete(s.inflight, tradeID)
	s.mu.Unlock()
}

// rawOutcome is the canonical win rule: up wins on a strictly higher
// exit, down on a strictly lower one, and a tie is a loss.
func rawOutcome(direction types.Direction, entry, exit decimal.Decimal) bool {
	switch direction {
	case types.DirectionUp:
		return exit.GreaterThan(entry)
	case types.DirectionDown:
		return exit.LessThan(entry)
	default:
		return false
	}
}
