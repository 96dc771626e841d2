package types

type Direction string

type AccountType string

type TradeStatus string

type RequestStatus string

type OverrideMode string

type BalanceField string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

const (
	AccountTypeDemo AccountType = "demo"
	AccountTypeReal AccountType = "real"
)

const (
	TradeStatusActive   TradeStatus = "active"
	TradeStatusSettling TradeStatus = "settling"
	TradeStatusWon      TradeStatus = "won"
	TradeStatusLost     TradeStatus = "lost"
)

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

const (
	OverrideModeNormal    OverrideMode = "normal"
	OverrideModeForceWin  OverrideMode = "force_win"
	OverrideModeForceLoss OverrideMode = "force_loss"
)

const (
	BalanceFieldDemo BalanceField = "demo_balance"
	BalanceFieldReal BalanceField = "real_balance"
)

// BalanceFieldFor maps the account a wager draws from to the ledger
// field it mutates.
func BalanceFieldFor(t AccountType) BalanceField {
	if t == AccountTypeReal {
		return BalanceFieldReal
	}
	return BalanceFieldDemo
}

func (s TradeStatus) Terminal() bool {
	return s == TradeStatusWon || s == TradeStatusLost
}

func (s RequestStatus) Resolved() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}
