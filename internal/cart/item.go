package cart

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/pricing"
)

// LineItem is one purchasable entry in the cart. Display metadata and prices
// are fixed when the line is created.
type LineItem struct {
	ID         string              `json:"id"`
	ProductID  string              `json:"productId"`
	Name       string              `json:"name"`
	Image      string              `json:"image,omitempty"`
	Slug       string              `json:"slug,omitempty"`
	Price      decimal.Decimal     `json:"price"`
	SalePrice  decimal.NullDecimal `json:"salePrice"`
	Quantity   int                 `json:"quantity"`
	Variations map[string]string   `json:"variations,omitempty"`
	Vendor     string              `json:"vendor,omitempty"`
	SKU        string              `json:"sku,omitempty"`
}

// EffectivePrice is the sale price when present, otherwise the list price.
func (li LineItem) EffectivePrice() decimal.Decimal {
	if li.SalePrice.Valid {
		return li.SalePrice.Decimal
	}
	return li.Price
}

// LineTotal is the effective unit price times quantity, unrounded.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.EffectivePrice().Mul(decimal.NewFromInt(int64(li.Quantity)))
}

func (li LineItem) identity() string {
	return identityKey(li.ProductID, li.Variations)
}

func (li LineItem) clone() LineItem {
	li.Variations = cloneVariations(li.Variations)
	return li
}

// ItemInput is the payload accepted by AddItem: a line item without quantity.
// ID is optional; a fresh one is generated when empty or already taken.
type ItemInput struct {
	ID         string
	ProductID  string
	Name       string
	Image      string
	Slug       string
	Price      decimal.Decimal
	SalePrice  decimal.NullDecimal
	Variations map[string]string
	Vendor     string
	SKU        string
}

var (
	errMissingProduct = errors.New("cart: item has no product id")
	errNegativePrice  = errors.New("cart: item price is negative")
)

func validateInput(in ItemInput) error {
	if strings.TrimSpace(in.ProductID) == "" {
		return errMissingProduct
	}
	if in.Price.IsNegative() || (in.SalePrice.Valid && in.SalePrice.Decimal.IsNegative()) {
		return errNegativePrice
	}
	return nil
}

func (in ItemInput) lineItem(id string, quantity int) LineItem {
	return LineItem{
		ID:         id,
		ProductID:  strings.TrimSpace(in.ProductID),
		Name:       in.Name,
		Image:      in.Image,
		Slug:       in.Slug,
		Price:      in.Price,
		SalePrice:  in.SalePrice,
		Quantity:   quantity,
		Variations: cloneVariations(in.Variations),
		Vendor:     in.Vendor,
		SKU:        in.SKU,
	}
}

// identityKey encodes productId plus variations in key order. Nil and empty
// variation maps produce the same key.
func identityKey(productID string, variations map[string]string) string {
	parts := make([]string, 0, 1+2*len(variations))
	parts = append(parts, strings.TrimSpace(productID))
	keys := make([]string, 0, len(variations))
	for k := range variations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k, variations[k])
	}
	raw, _ := json.Marshal(parts)
	return string(raw)
}

func cloneVariations(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	for i, it := range items {
		out[i] = it.clone()
	}
	return out
}

func pricingItems(items []LineItem) []pricing.Item {
	out := make([]pricing.Item, 0, len(items))
	for _, it := range items {
		out = append(out, pricing.Item{Qty: it.Quantity, UnitPrice: it.EffectivePrice()})
	}
	return out
}
