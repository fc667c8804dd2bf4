package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/kiloshop/orderform/internal/cart"
	"github.com/kiloshop/orderform/internal/catalog"
	"github.com/kiloshop/orderform/internal/payment"
	"github.com/shopspring/decimal"
)

// Site is the storefront configuration file: the catalog, the delivery
// charge and the pay-by-link handles.
type Site struct {
	Items    []catalog.Entry   `json:"items"`
	Delivery *DeliverySettings `json:"delivery"`
	Pay      payment.Config    `json:"pay"`
	// Endpoint is used when ORDER_ENDPOINT is not set.
	Endpoint string `json:"endpoint"`
	// EmailField is false for pages without an email input.
	EmailField *bool `json:"emailField"`
}

type DeliverySettings struct {
	Fee decimal.Decimal `json:"fee"`
	// Toggle is false when the page offers no delivery checkbox.
	Toggle *bool `json:"toggle"`
}

// LoadSite reads and checks the site file. A missing file yields an empty
// site, which serves an empty catalog.
func LoadSite(path string) (*Site, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Site{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read site config: %w", err)
	}
	return ParseSite(data)
}

func ParseSite(data []byte) (*Site, error) {
	var s Site
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse site config: %w", err)
	}
	if s.Delivery != nil && s.Delivery.Fee.IsNegative() {
		return nil, errors.New("parse site config: negative delivery fee")
	}
	return &s, nil
}

// Index builds the catalog index of the site items.
func (s *Site) Index() (*catalog.Index, error) {
	return catalog.BuildIndex(s.Items)
}

// CartDelivery is the delivery configuration handed to each cart.
func (s *Site) CartDelivery() cart.Delivery {
	if s.Delivery == nil {
		return cart.Delivery{}
	}
	available := s.Delivery.Toggle == nil || *s.Delivery.Toggle
	return cart.Delivery{Available: available, Fee: s.Delivery.Fee}
}

// HasEmail reports whether the order form collects an email address.
func (s *Site) HasEmail() bool {
	return s.EmailField == nil || *s.EmailField
}
