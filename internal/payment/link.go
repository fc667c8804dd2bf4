// Package payment builds the external payment links offered next to the cart.
package payment

import (
	"net/url"
	"strings"

	"github.com/kiloshop/orderform/internal/apperr"
	"github.com/kiloshop/orderform/internal/money"
	"github.com/shopspring/decimal"
)

// Provider names a payment service.
type Provider string

const (
	Revolut  Provider = "revolut"
	Satispay Provider = "satispay"
)

// Target is where the front-end opens a link.
type Target string

const (
	// TargetSelf replaces the current page.
	TargetSelf Target = "self"
	// TargetBlank opens a separate browsing context without an opener.
	TargetBlank Target = "blank"
)

// DefaultCurrency is used when Config.Currency is empty.
const DefaultCurrency = "EUR"

// Default link templates.
const (
	DefaultRevolutTemplate  = "https://revolut.me/{user}?amount={amount}&currency={cur}"
	DefaultSatispayTemplate = "https://tag.satispay.com/{tag}?amount={amount}"
)

// Config holds the payee handles and optional template overrides.
type Config struct {
	RevolutUser string              `json:"revolutUser"`
	SatispayTag string              `json:"satispayTag"`
	Currency    string              `json:"currency"`
	Templates   map[Provider]string `json:"templates"`
}

// Link is a payment URL and how to open it.
type Link struct {
	Provider Provider
	URL      string
	Target   Target
	Amount   string
}

// Builder builds links from a fixed Config.
type Builder struct {
	cfg Config
}

// NewBuilder creates a Builder.
func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg}
}

// Providers lists the providers that have a handle configured.
func (b *Builder) Providers() []Provider {
	var out []Provider
	if b.cfg.RevolutUser != "" {
		out = append(out, Revolut)
	}
	if b.cfg.SatispayTag != "" {
		out = append(out, Satispay)
	}
	return out
}

// Build returns the link paying payable to provider. payable must be the
// cart's current payable total.
func (b *Builder) Build(provider Provider, payable decimal.Decimal) (Link, error) {
	if provider != Revolut && provider != Satispay {
		return Link{}, apperr.Configuration(apperr.CodeUnknownProvider, "Unknown payment provider: "+string(provider))
	}
	if !payable.IsPositive() {
		return Link{}, apperr.Validation(apperr.CodeEmptyPayable, "Please add items to your order first.")
	}

	amount := money.FormatMoney(payable)
	switch provider {
	case Revolut:
		if b.cfg.RevolutUser == "" {
			return Link{}, apperr.Configuration(apperr.CodeMissingHandle, "Revolut handle is not configured.")
		}
		cur := b.cfg.Currency
		if cur == "" {
			cur = DefaultCurrency
		}
		r := strings.NewReplacer(
			"{user}", url.PathEscape(b.cfg.RevolutUser),
			"{amount}", amount,
			"{cur}", cur,
			"{currency}", cur,
		)
		return Link{Provider: Revolut, URL: r.Replace(b.template(Revolut)), Target: TargetSelf, Amount: amount}, nil

	default:
		if b.cfg.SatispayTag == "" {
			return Link{}, apperr.Configuration(apperr.CodeMissingHandle, "Satispay tag is not configured.")
		}
		r := strings.NewReplacer(
			"{tag}", b.cfg.SatispayTag,
			"{amount}", amount,
		)
		return Link{Provider: Satispay, URL: r.Replace(b.template(Satispay)), Target: TargetBlank, Amount: amount}, nil
	}
}

func (b *Builder) template(p Provider) string {
	if t := b.cfg.Templates[p]; t != "" {
		return t
	}
	if p == Revolut {
		return DefaultRevolutTemplate
	}
	return DefaultSatispayTemplate
}
