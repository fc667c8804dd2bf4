// Package order validates a cart and customer form into the submission payload.
package order

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kiloshop/orderform/internal/apperr"
	"github.com/kiloshop/orderform/internal/cart"
	"github.com/kiloshop/orderform/internal/money"
	"github.com/shopspring/decimal"
)

// Messages shown to the shopper.
const (
	MsgItemMinimum    = "Minimum per item is 0.5 kg."
	MsgQuantityStep   = "Quantities must be in 0.5 kg steps (e.g., 0.5, 1, 1.5)."
	MsgOrderMinimum   = "Minimum order is 1 kg: need ≥1 kg in total (you can mix items, e.g., 0.5 + 0.5)."
	MsgEmailInvalid   = "Please enter a valid email address."
	MsgRequiredFields = "Please fill your details and add at least one item."
)

// DefaultLang is used when the page does not declare a language.
const DefaultLang = "en"

// Form is the customer section of the order form. HasEmail is false when the
// page has no email field, in which case Email is not checked.
type Form struct {
	Name      string
	Phone     string
	Address   string
	Email     string
	Notes     string
	Allergies string
	HasEmail  bool
	Honeypot  string
}

// Meta describes the client that submits.
type Meta struct {
	Lang        string
	ClientAgent string
}

type contact struct {
	Name    string `validate:"required"`
	Phone   string `validate:"required"`
	Address string `validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate applies the order rules in order and returns the payload, or the
// first violated rule as an *apperr.Error of kind Validation. Lines with zero
// quantity are left out of the payload.
func Validate(lines []cart.Line, form Form, meta Meta) (Payload, error) {
	items := make([]Item, 0, len(lines))
	total := decimal.Zero
	for _, l := range lines {
		if !l.Quantity.IsPositive() {
			continue
		}
		items = append(items, Item{
			Key:   l.Key,
			Name:  l.Name,
			Price: l.UnitPrice,
			Qty:   l.Quantity,
			Notes: l.Notes,
		})
		total = total.Add(l.Quantity)
	}

	for _, it := range items {
		if !money.IsHalfStep(it.Qty) {
			return Payload{}, apperr.Validation(apperr.CodeQuantityStep, MsgQuantityStep)
		}
		// On the grid within tolerance but effectively zero.
		if it.Qty.LessThan(money.MinItem) {
			return Payload{}, apperr.Validation(apperr.CodeItemMinimum, MsgItemMinimum)
		}
	}

	if total.LessThan(money.MinOrder) {
		return Payload{}, apperr.Validation(apperr.CodeOrderMinimum, MsgOrderMinimum)
	}

	email := strings.TrimSpace(form.Email)
	if form.HasEmail {
		if err := validate.Var(email, "required,email"); err != nil {
			return Payload{}, apperr.Validation(apperr.CodeEmailInvalid, MsgEmailInvalid).WithField("email")
		}
	}

	c := contact{
		Name:    strings.TrimSpace(form.Name),
		Phone:   strings.TrimSpace(form.Phone),
		Address: strings.TrimSpace(form.Address),
	}
	if err := validate.Struct(c); err != nil {
		e := apperr.Validation(apperr.CodeRequiredFields, MsgRequiredFields)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e.Field = strings.ToLower(verrs[0].Field())
		}
		return Payload{}, e
	}
	if len(items) == 0 {
		return Payload{}, apperr.Validation(apperr.CodeRequiredFields, MsgRequiredFields)
	}

	lang := strings.TrimSpace(meta.Lang)
	if lang == "" {
		lang = DefaultLang
	}

	return Payload{
		Name:        c.Name,
		Phone:       c.Phone,
		Address:     c.Address,
		Email:       email,
		Notes:       strings.TrimSpace(form.Notes),
		Allergies:   strings.TrimSpace(form.Allergies),
		Items:       items,
		Lang:        lang,
		ClientAgent: meta.ClientAgent,
		Honeypot:    form.Honeypot,
	}, nil
}
