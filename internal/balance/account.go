package balance

import "fmt"

// Balance is a point-in-time view of the account.
type Balance struct {
	Balance            float64
	Equity             float64
	UsedMargin         float64
	FreeMargin         float64
	PeakEquity         float64
	MaxDrawdown        float64
	MaxDrawdownPercent float64
}

// Account is the ledger behind the virtual broker. Balance moves only through
// Reserve (commission on open) and Settle (realised P&L on close). Equity and the
// high-water-mark drawdown are refreshed by Mark. Not safe for concurrent use.
type Account struct {
	initial    float64
	balance    float64
	equity     float64
	usedMargin float64
	peak       float64
	maxDD      float64
	maxDDPct   float64
}

// NewAccount opens an account with the given starting balance.
func NewAccount(initial float64) *Account {
	return &Account{
		initial: initial,
		balance: initial,
		equity:  initial,
		peak:    initial,
	}
}

// Initial returns the starting balance.
func (a *Account) Initial() float64 { return a.initial }

// FreeMargin is equity minus margin held by open positions.
func (a *Account) FreeMargin() float64 {
	return a.equity - a.usedMargin
}

// Reserve holds margin and debits commission for a new position. It fails
// without side effects when margin+commission exceeds free margin.
func (a *Account) Reserve(margin, commission float64) error {
	need := margin + commission
	if free := a.FreeMargin(); need > free {
		return fmt.Errorf("need %.4f, free margin %.4f", need, free)
	}
	a.usedMargin += margin
	a.balance -= commission
	return nil
}

// Settle books realised gross P&L and releases the position's margin.
func (a *Account) Settle(gross, margin float64) {
	a.balance += gross
	a.usedMargin -= margin
	if a.usedMargin < 1e-9 {
		a.usedMargin = 0
	}
}

// Mark sets equity to balance plus floating P&L and updates the peak and the
// drawdown maxima. Amount and percent maxima move independently.
func (a *Account) Mark(floating float64) {
	a.equity = a.balance + floating
	if a.equity > a.peak {
		a.peak = a.equity
	}
	dd := a.peak - a.equity
	if dd > a.maxDD {
		a.maxDD = dd
	}
	if a.peak > 0 {
		if pct := dd / a.peak * 100; pct > a.maxDDPct {
			a.maxDDPct = pct
		}
	}
}

// Snapshot returns the current figures.
func (a *Account) Snapshot() Balance {
	return Balance{
		Balance:            a.balance,
		Equity:             a.equity,
		UsedMargin:         a.usedMargin,
		FreeMargin:         a.FreeMargin(),
		PeakEquity:         a.peak,
		MaxDrawdown:        a.maxDD,
		MaxDrawdownPercent: a.maxDDPct,
	}
}
