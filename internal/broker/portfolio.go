package broker

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/monte/internal/domain"
)

// Portfolio cash balance and per-symbol share counts.
// Cash and holdings never go negative: trades that would break this are refused.
type Portfolio struct {
	cash     decimal.Decimal
	holdings map[string]int64
}

// NewPortfolio creates a portfolio funded with startingCash.
func NewPortfolio(startingCash decimal.Decimal) (*Portfolio, error) {
	if startingCash.IsNegative() {
		return nil, errors.Errorf("starting cash must be non-negative, got %s", startingCash.String())
	}

	return &Portfolio{
		cash:     startingCash,
		holdings: make(map[string]int64),
	}, nil
}

// Cash returns the cash balance.
func (p *Portfolio) Cash() decimal.Decimal {
	return p.cash
}

// Holding returns the share count of symbol.
func (p *Portfolio) Holding(symbol string) int64 {
	return p.holdings[symbol]
}

// Snapshot returns a read-only copy.
func (p *Portfolio) Snapshot() domain.PortfolioSnapshot {
	holdings := make(map[string]int64, len(p.holdings))
	for symbol, qty := range p.holdings {
		holdings[symbol] = qty
	}
	return domain.PortfolioSnapshot{Cash: p.cash, Holdings: holdings}
}

// Value returns cash plus holdings valued at prices. Unpriced holdings count as zero.
func (p *Portfolio) Value(prices map[string]decimal.Decimal) decimal.Decimal {
	total := p.cash
	for symbol, qty := range p.holdings {
		if price, ok := prices[symbol]; ok {
			total = total.Add(price.Mul(decimal.NewFromInt(qty)))
		}
	}
	return total
}

func (p *Portfolio) buy(symbol string, quantity int64, price decimal.Decimal) error {
	cost := price.Mul(decimal.NewFromInt(quantity))
	if p.cash.LessThan(cost) {
		return errors.Wrapf(domain.ErrInsufficientFunds, "have %s need %s", p.cash.String(), cost.String())
	}

	p.cash = p.cash.Sub(cost)
	p.holdings[symbol] += quantity

	return nil
}

func (p *Portfolio) sell(symbol string, quantity int64, price decimal.Decimal) error {
	held := p.holdings[symbol]
	if held < quantity {
		return errors.Wrapf(domain.ErrInsufficientHoldings, "have %d %s need %d", held, symbol, quantity)
	}

	p.cash = p.cash.Add(price.Mul(decimal.NewFromInt(quantity)))
	if held == quantity {
		delete(p.holdings, symbol)
	} else {
		p.holdings[symbol] = held - quantity
	}

	return nil
}
