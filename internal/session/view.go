package session

import (
	"github.com/google/uuid"
	"github.com/kiloshop/orderform/internal/cart"
	"github.com/kiloshop/orderform/internal/money"
	"github.com/kiloshop/orderform/internal/payment"
	"github.com/kiloshop/orderform/internal/submit"
)

// LineView is a row as rendered by the page.
type LineView struct {
	ID        uuid.UUID `json:"id"`
	Key       string    `json:"key"`
	Label     string    `json:"label"`
	Known     bool      `json:"known"`
	Quantity  string    `json:"quantity"`
	Notes     string    `json:"notes"`
	UnitPrice string    `json:"unit_price"`
	LineTotal string    `json:"line_total"`
}

func lineView(l cart.Line) LineView {
	return LineView{
		ID:        l.RowID,
		Key:       l.Key,
		Label:     l.Label,
		Known:     l.Known,
		Quantity:  l.QuantityText,
		Notes:     l.Notes,
		UnitPrice: money.FormatMoney(l.UnitPrice),
		LineTotal: money.FormatMoney(l.LineTotal),
	}
}

// SeedView is one cached row, in the form POST /sessions accepts as a seed.
type SeedView struct {
	Key string `json:"key"`
	Qty string `json:"qty"`
}

func seedViews(seeds []cart.Initial) []SeedView {
	out := make([]SeedView, 0, len(seeds))
	for _, in := range seeds {
		qty := money.MinItem
		if in.Quantity != nil {
			qty = *in.Quantity
		}
		out = append(out, SeedView{Key: in.Key, Qty: money.FormatQuantity(qty)})
	}
	return out
}

// TotalsView carries the displayed amounts.
type TotalsView struct {
	Base             string `json:"base"`
	DeliveryFee      string `json:"delivery_fee"`
	DeliveryIncluded bool   `json:"delivery_included"`
	Payable          string `json:"payable"`
	AmountToPay      string `json:"amount_to_pay"`
	PaymentsEnabled  bool   `json:"payments_enabled"`
}

func totalsView(t cart.Totals) TotalsView {
	return TotalsView{
		Base:             money.FormatMoney(t.Base),
		DeliveryFee:      money.FormatMoney(t.DeliveryFee),
		DeliveryIncluded: t.DeliveryIncluded,
		Payable:          money.FormatMoney(t.Payable),
		AmountToPay:      t.AmountToPay,
		PaymentsEnabled:  t.PaymentsEnabled,
	}
}

type DeliveryView struct {
	Available bool   `json:"available"`
	Fee       string `json:"fee"`
}

// Customer is the editable customer section.
type Customer struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	Email     string `json:"email"`
	Notes     string `json:"notes"`
	Allergies string `json:"allergies"`
	Honeypot  string `json:"honeypot"`
}

// OutcomeView describes the last submission.
type OutcomeView struct {
	State   string `json:"state"`
	OrderID string `json:"order_id,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// SubmitView is pushed on every pipeline transition.
type SubmitView struct {
	State   string         `json:"state"`
	Control submit.Control `json:"control"`
}

// View is the whole rendered page state.
type View struct {
	ID          uuid.UUID          `json:"id"`
	Rows        []LineView         `json:"rows"`
	Totals      TotalsView         `json:"totals"`
	Delivery    DeliveryView       `json:"delivery"`
	Customer    Customer           `json:"customer"`
	HasEmail    bool               `json:"has_email"`
	Control     submit.Control     `json:"control"`
	Providers   []payment.Provider `json:"providers"`
	Snapshot    []SeedView         `json:"snapshot"`
	LastOutcome *OutcomeView       `json:"last_outcome,omitempty"`
}

// RowResult is returned by row mutations.
type RowResult struct {
	Row        *LineView  `json:"row,omitempty"`
	Totals     TotalsView `json:"totals"`
	Suppressed bool       `json:"suppressed,omitempty"`
}
