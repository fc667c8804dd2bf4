package order

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Item is one submitted line.
type Item struct {
	Key   string
	Name  string
	Price decimal.Decimal
	Qty   decimal.Decimal
	Notes string
}

// MarshalJSON renders price and qty as JSON numbers.
func (it Item) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Key   string      `json:"key"`
		Name  string      `json:"name"`
		Price json.Number `json:"price"`
		Qty   json.Number `json:"qty"`
		Notes string      `json:"notes"`
	}{
		Key:   it.Key,
		Name:  it.Name,
		Price: json.Number(it.Price.String()),
		Qty:   json.Number(it.Qty.String()),
		Notes: it.Notes,
	})
}

// UnmarshalJSON accepts the form written by MarshalJSON.
func (it *Item) UnmarshalJSON(data []byte) error {
	var raw struct {
		Key   string          `json:"key"`
		Name  string          `json:"name"`
		Price decimal.Decimal `json:"price"`
		Qty   decimal.Decimal `json:"qty"`
		Notes string          `json:"notes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*it = Item{Key: raw.Key, Name: raw.Name, Price: raw.Price, Qty: raw.Qty, Notes: raw.Notes}
	return nil
}

// Payload is the body POSTed to the order endpoint. It is built once per
// submission attempt by Validate and not modified afterwards.
type Payload struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	Email       string `json:"email"`
	Notes       string `json:"notes"`
	Allergies   string `json:"allergies"`
	Items       []Item `json:"items"`
	Lang        string `json:"lang"`
	ClientAgent string `json:"clientAgent"`
	Honeypot    string `json:"honeypot"`
}

// TotalQuantity sums the item quantities.
func (p Payload) TotalQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, it := range p.Items {
		total = total.Add(it.Qty)
	}
	return total
}

// Amount sums price × qty over the items, in cents.
func (p Payload) Amount() decimal.Decimal {
	total := decimal.Zero
	for _, it := range p.Items {
		total = total.Add(it.Price.Mul(it.Qty))
	}
	return total.Round(2)
}
