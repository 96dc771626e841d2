package events

import (
	"sync"
	"time"

	"lv-bintrade/internal/types"

	"github.com/shopspring/decimal"
)

const (
	TypeBalanceChanged     = "balance_changed"
	TypeTradeSettled       = "trade_settled"
	TypeDepositResolved    = "deposit_resolved"
	TypeWithdrawalResolved = "withdrawal_resolved"
)

type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
	TS   int64  `json:"ts"`
}

type BalanceChanged struct {
	AccountID string             `json:"account_id"`
	Field     types.BalanceField `json:"field"`
	NewValue  decimal.Decimal    `json:"new_value"`
}

type TradeSettled struct {
	TradeID string          `json:"trade_id"`
	Won     bool            `json:"won"`
	Payout  decimal.Decimal `json:"payout"`
}

type DepositResolved struct {
	RequestID string              `json:"request_id"`
	Status    types.RequestStatus `json:"status"`
}

type WithdrawalResolved struct {
	RequestID string              `json:"request_id"`
	Status    types.RequestStatus `json:"status"`
}

// Bus fans events out to subscribers. Sends never block: a slow
// subscriber drops events rather than stalling settlement.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[chan Event]struct{})}
}

func (b *Bus) Subscribe() chan Event {
	ch := make(chan Event, 100)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

func (b *Bus) Publish(eventType string, data any) {
	evt := Event{Type: eventType, Data: data, TS: time.Now().UnixMilli()}
	b.mu.RLock()
	for ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
	b.mu.RUnlock()
}
