package cart

import (
	"strings"

	"github.com/google/uuid"
	"github.com/kiloshop/orderform/internal/catalog"
	"github.com/kiloshop/orderform/internal/money"
	"github.com/shopspring/decimal"
)

// EventKind says what happened to a row.
type EventKind int

const (
	EventChanged EventKind = iota
	EventRemoved
)

// Event is the notification a row sends after every mutation.
type Event struct {
	Kind  EventKind
	RowID uuid.UUID
}

// Initial seeds a new row. A nil Quantity means the 0.5 kg default.
type Initial struct {
	Key      string
	Quantity *decimal.Decimal
}

// Line is a read-only snapshot of one row.
type Line struct {
	RowID        uuid.UUID
	Key          string
	Label        string
	Name         string
	Known        bool
	Quantity     decimal.Decimal
	QuantityText string
	Notes        string
	UnitPrice    decimal.Decimal
	LineTotal    decimal.Decimal
}

// Row owns the state of one cart line. The product is referenced by key and
// resolved against the cart's current index on every recompute, so a swapped
// catalog never invalidates a row; an unresolved key prices at zero.
type Row struct {
	id      uuid.UUID
	catalog func() *catalog.Index
	notify  func(Event)

	key       string
	qtyText   string
	quantity  decimal.Decimal
	notes     string
	unitPrice decimal.Decimal
	lineTotal decimal.Decimal
	known     bool
	focused   bool
	removed   bool
}

func newRow(lookup func() *catalog.Index, initial *Initial, notify func(Event)) *Row {
	r := &Row{
		id:      uuid.New(),
		catalog: lookup,
		notify:  notify,
	}

	idx := lookup()
	first, _ := idx.First()
	qty := money.MinItem
	r.key = first
	if initial != nil {
		if _, ok := idx.Lookup(initial.Key); ok {
			r.key = initial.Key
		}
		if initial.Quantity != nil {
			qty = money.SnapToHalfStep(*initial.Quantity)
		}
	}
	r.setQuantity(qty)
	r.derive()
	return r
}

// ID returns the row identifier.
func (r *Row) ID() uuid.UUID { return r.id }

// Removed reports whether the row has been detached from its cart.
func (r *Row) Removed() bool { return r.removed }

// ChangeProduct selects another product.
func (r *Row) ChangeProduct(key string) {
	if r.removed {
		return
	}
	r.key = key
	r.sync()
}

// EditQuantity records free-typed quantity text. Text that is not a
// non-negative number contributes zero until the field is blurred.
func (r *Row) EditQuantity(text string) {
	if r.removed {
		return
	}
	r.qtyText = text
	q, ok := money.ParseAmount(text)
	if !ok {
		q = decimal.Zero
	}
	r.quantity = q
	r.sync()
}

// BlurQuantity snaps the typed quantity onto the 0.5 kg grid.
func (r *Row) BlurQuantity() {
	if r.removed {
		return
	}
	r.focused = false
	r.setQuantity(money.SnapText(r.qtyText))
	r.sync()
}

// Increment adds one step, never going above the line maximum.
func (r *Row) Increment() {
	if r.removed {
		return
	}
	next := decimal.Min(money.MaxQuantity, r.current().Add(money.Step))
	r.setQuantity(next.Round(1))
	r.sync()
}

// Decrement removes one step, never going below the item minimum.
func (r *Row) Decrement() {
	if r.removed {
		return
	}
	next := decimal.Max(money.MinItem, r.current().Sub(money.Step))
	r.setQuantity(next.Round(1))
	r.sync()
}

// EditNotes replaces the row notes. Line breaks are stored as "\n".
func (r *Row) EditNotes(text string) {
	if r.removed {
		return
	}
	r.notes = NormalizeNewlines(text)
	r.sync()
}

// Focus marks the quantity field as focused.
func (r *Row) Focus() {
	if r.removed {
		return
	}
	r.focused = true
}

// Wheel handles a scroll-wheel gesture over the quantity field. The value
// never changes; the return value says whether the gesture was swallowed
// (it is while the field has focus).
func (r *Row) Wheel() bool {
	return !r.removed && r.focused
}

// Remove detaches the row. No handler has any effect afterwards.
func (r *Row) Remove() {
	if r.removed {
		return
	}
	r.removed = true
	notify := r.notify
	r.notify = nil
	if notify != nil {
		notify(Event{Kind: EventRemoved, RowID: r.id})
	}
}

// Refresh rederives price and line total from the current catalog.
func (r *Row) Refresh() {
	if r.removed {
		return
	}
	r.sync()
}

// Line returns a snapshot of the row.
func (r *Row) Line() Line {
	label := r.key
	if e, ok := r.catalog().Lookup(r.key); ok {
		label = e.Label()
	}
	return Line{
		RowID:        r.id,
		Key:          r.key,
		Label:        label,
		Name:         catalog.PrimarySegment(label),
		Known:        r.known,
		Quantity:     r.quantity,
		QuantityText: r.qtyText,
		Notes:        r.notes,
		UnitPrice:    r.unitPrice,
		LineTotal:    r.lineTotal,
	}
}

// current is the quantity the steppers start from: the typed value, or zero.
func (r *Row) current() decimal.Decimal {
	q, ok := money.ParseAmount(r.qtyText)
	if !ok {
		return decimal.Zero
	}
	return q
}

func (r *Row) setQuantity(q decimal.Decimal) {
	r.quantity = q
	r.qtyText = money.FormatQuantity(q)
}

// derive recomputes price and line total from the current catalog.
func (r *Row) derive() {
	price := decimal.Zero
	e, ok := r.catalog().Lookup(r.key)
	if ok {
		price = e.Price
	}
	r.known = ok
	r.unitPrice = money.Round(price)
	r.lineTotal = money.Round(price.Mul(r.quantity))
}

func (r *Row) sync() {
	r.derive()
	if r.notify != nil {
		r.notify(Event{Kind: EventChanged, RowID: r.id})
	}
}

// detach drops the row without notifying; used when the whole cart clears.
func (r *Row) detach() {
	r.removed = true
	r.notify = nil
}

var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// NormalizeNewlines turns CRLF and lone CR into LF, the only line break a
// CSV reader hands back unchanged inside a quoted field.
func NormalizeNewlines(s string) string {
	if !strings.ContainsRune(s, '\r') {
		return s
	}
	return newlines.Replace(s)
}
