package broker

import (
	"iter"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/monte/internal/domain"
)

// AssetRegistry tracks watched symbols and their price at the current frame.
type AssetRegistry struct {
	order   []string
	assets  map[string]*domain.Asset
	columns map[string]map[string]decimal.Decimal
}

// NewAssetRegistry creates an empty registry.
func NewAssetRegistry() *AssetRegistry {
	return &AssetRegistry{
		assets:  make(map[string]*domain.Asset),
		columns: make(map[string]map[string]decimal.Decimal),
	}
}

// Watch registers symbol. Returns false if it was already watched.
func (r *AssetRegistry) Watch(symbol string) bool {
	if _, ok := r.assets[symbol]; ok {
		return false
	}

	r.assets[symbol] = &domain.Asset{Symbol: symbol, Price: decimal.Zero, Watched: true}
	r.order = append(r.order, symbol)

	return true
}

// Asset returns a snapshot of the watched asset.
func (r *AssetRegistry) Asset(symbol string) (domain.Asset, error) {
	asset, ok := r.assets[symbol]
	if !ok {
		return domain.Asset{}, errors.Wrapf(domain.ErrUnknownSymbol, "symbol %q is not watched", symbol)
	}
	return *asset, nil
}

// Apply copies prices and derived columns of watched symbols from frame.
// Symbols absent from the frame keep their previous price. Nothing is changed
// if any watched price in the frame is negative.
func (r *AssetRegistry) Apply(frame domain.TimeFrame) error {
	for _, symbol := range r.order {
		if price, ok := frame.Price(symbol); ok && price.IsNegative() {
			return errors.Wrapf(domain.ErrInvalidPrice, "%s price %s at %s", symbol, price.String(), frame.Time)
		}
	}

	for _, symbol := range r.order {
		if price, ok := frame.Price(symbol); ok {
			asset := r.assets[symbol]
			asset.Price = price
			asset.Priced = true
		}

		cols, ok := frame.Columns[symbol]
		if !ok {
			delete(r.columns, symbol)
			continue
		}
		current := make(map[string]decimal.Decimal, len(cols))
		for name, value := range cols {
			current[name] = value
		}
		r.columns[symbol] = current
	}

	return nil
}

// Column returns the current frame's derived column value.
func (r *AssetRegistry) Column(symbol, name string) (decimal.Decimal, bool) {
	cols, ok := r.columns[symbol]
	if !ok {
		return decimal.Zero, false
	}
	v, ok := cols[name]
	return v, ok
}

// All returns asset snapshots in watch order. The sequence can be iterated any number of times.
func (r *AssetRegistry) All() iter.Seq[domain.Asset] {
	return func(yield func(domain.Asset) bool) {
		symbols := r.order
		for _, symbol := range symbols {
			if !yield(*r.assets[symbol]) {
				return
			}
		}
	}
}

// Symbols returns watched symbols in watch order.
func (r *AssetRegistry) Symbols() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Prices returns the prices of priced assets.
func (r *AssetRegistry) Prices() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(r.assets))
	for symbol, asset := range r.assets {
		if asset.Priced {
			out[symbol] = asset.Price
		}
	}
	return out
}
