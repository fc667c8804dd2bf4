// Package cart keeps the line items of one order form and the totals derived
// from them. A Cart is not safe for concurrent use; the owning session
// serializes access.
package cart

import (
	"github.com/google/uuid"
	"github.com/kiloshop/orderform/internal/catalog"
	"github.com/kiloshop/orderform/internal/money"
	"github.com/shopspring/decimal"
)

// Delivery describes the optional delivery charge. Available is false when
// the site offers no delivery toggle.
type Delivery struct {
	Available bool
	Fee       decimal.Decimal
}

// Totals are the cart amounts as last recomputed.
type Totals struct {
	Base             decimal.Decimal
	DeliveryFee      decimal.Decimal
	DeliveryIncluded bool
	Payable          decimal.Decimal
	PaymentsEnabled  bool
	AmountToPay      string
}

type subscriber struct {
	id int
	fn func(Totals)
}

// Cart aggregates rows into totals. Rows notify the cart after every edit and
// the cart recomputes synchronously before the handler returns.
type Cart struct {
	index    *catalog.Index
	delivery Delivery

	includeDelivery bool
	rows            []*Row
	totals          Totals

	subs    []subscriber
	nextSub int
}

// New creates an empty cart priced from idx.
func New(idx *catalog.Index, delivery Delivery) *Cart {
	if idx == nil {
		idx = catalog.Empty()
	}
	c := &Cart{index: idx, delivery: delivery}
	c.totals = c.compute()
	return c
}

// Subscribe registers fn to receive totals after every recompute. The
// returned func cancels the subscription.
func (c *Cart) Subscribe(fn func(Totals)) (cancel func()) {
	id := c.nextSub
	c.nextSub++
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
	return func() {
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// AddRow appends a row. See Initial for the defaults.
func (c *Cart) AddRow(initial *Initial) *Row {
	r := newRow(c.catalog, initial, c.onRowEvent)
	c.rows = append(c.rows, r)
	c.Recompute()
	return r
}

// Row returns the live row with the given ID.
func (c *Cart) Row(id uuid.UUID) (*Row, bool) {
	for _, r := range c.rows {
		if r.id == id {
			return r, true
		}
	}
	return nil, false
}

// Rows returns the live rows in display order.
func (c *Cart) Rows() []*Row {
	return append([]*Row(nil), c.rows...)
}

// Lines returns a snapshot of every row in display order.
func (c *Cart) Lines() []Line {
	lines := make([]Line, 0, len(c.rows))
	for _, r := range c.rows {
		lines = append(lines, r.Line())
	}
	return lines
}

// Len returns the number of rows.
func (c *Cart) Len() int { return len(c.rows) }

// Clear removes every row.
func (c *Cart) Clear() Totals {
	for _, r := range c.rows {
		r.detach()
	}
	c.rows = nil
	return c.Recompute()
}

// Index returns the catalog the cart currently prices from.
func (c *Cart) Index() *catalog.Index { return c.index }

// SwapCatalog reprices every row against idx. Rows whose key no longer
// resolves keep their key and price at zero.
func (c *Cart) SwapCatalog(idx *catalog.Index) Totals {
	if idx == nil {
		idx = catalog.Empty()
	}
	c.index = idx
	for _, r := range c.rows {
		r.derive()
	}
	return c.Recompute()
}

// Delivery returns the delivery configuration.
func (c *Cart) Delivery() Delivery { return c.delivery }

// SetIncludeDelivery flips the delivery toggle. It has no effect when the
// site offers no delivery.
func (c *Cart) SetIncludeDelivery(include bool) Totals {
	if c.delivery.Available {
		c.includeDelivery = include
	}
	return c.Recompute()
}

// Totals returns the totals from the last recompute.
func (c *Cart) Totals() Totals { return c.totals }

// Recompute rederives totals from the current rows and notifies subscribers.
func (c *Cart) Recompute() Totals {
	c.totals = c.compute()
	for _, s := range append([]subscriber(nil), c.subs...) {
		s.fn(c.totals)
	}
	return c.totals
}

// Snapshot returns the rows as seeds, suitable for rebuilding the cart.
func (c *Cart) Snapshot() []Initial {
	out := make([]Initial, 0, len(c.rows))
	for _, r := range c.rows {
		q := r.quantity
		out = append(out, Initial{Key: r.key, Quantity: &q})
	}
	return out
}

func (c *Cart) catalog() *catalog.Index { return c.index }

func (c *Cart) onRowEvent(ev Event) {
	if ev.Kind == EventRemoved {
		for i, r := range c.rows {
			if r.id == ev.RowID {
				c.rows = append(c.rows[:i], c.rows[i+1:]...)
				break
			}
		}
	}
	c.Recompute()
}

func (c *Cart) compute() Totals {
	base := decimal.Zero
	for _, r := range c.rows {
		base = base.Add(r.lineTotal)
	}
	base = money.Round(base)

	t := Totals{Base: base, Payable: base}
	if c.delivery.Available && c.includeDelivery {
		t.DeliveryIncluded = true
		t.DeliveryFee = c.delivery.Fee
		t.Payable = money.Round(base.Add(c.delivery.Fee))
	}
	t.PaymentsEnabled = t.Payable.IsPositive()
	t.AmountToPay = money.FormatMoney(t.Payable)
	return t
}
