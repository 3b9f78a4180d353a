package cart

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// FormatVersion is the version written into persisted carts.
const FormatVersion = 1

// ErrCorruptCart reports a persisted cart that cannot be restored.
var ErrCorruptCart = errors.New("cart: corrupt persisted cart")

// Document is the persisted cart envelope.
type Document struct {
	Version int        `json:"version"`
	SavedAt time.Time  `json:"savedAt,omitzero"`
	Items   []LineItem `json:"items"`
}

// Encode serialises items into the versioned envelope.
func Encode(items []LineItem, savedAt time.Time) ([]byte, error) {
	if items == nil {
		items = []LineItem{}
	}
	return json.Marshal(Document{Version: FormatVersion, SavedAt: savedAt.UTC(), Items: items})
}

// Decode parses a persisted cart. Both the versioned envelope and a bare JSON
// array of items are accepted. Any structural problem yields ErrCorruptCart.
func Decode(data []byte) (Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Document{}, fmt.Errorf("%w: empty payload", ErrCorruptCart)
	}

	var doc Document
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &doc.Items); err != nil {
			return Document{}, fmt.Errorf("%w: %v", ErrCorruptCart, err)
		}
		doc.Version = FormatVersion
	case '{':
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return Document{}, fmt.Errorf("%w: %v", ErrCorruptCart, err)
		}
		if doc.Version != FormatVersion {
			return Document{}, fmt.Errorf("%w: unsupported version %d", ErrCorruptCart, doc.Version)
		}
	default:
		return Document{}, fmt.Errorf("%w: unexpected payload", ErrCorruptCart)
	}

	if doc.Items == nil {
		doc.Items = []LineItem{}
	}
	if err := validateItems(doc.Items); err != nil {
		return Document{}, err
	}
	for i := range doc.Items {
		doc.Items[i].Variations = cloneVariations(doc.Items[i].Variations)
	}
	return doc, nil
}

func validateItems(items []LineItem) error {
	ids := make(map[string]struct{}, len(items))
	identities := make(map[string]struct{}, len(items))
	for i, it := range items {
		switch {
		case strings.TrimSpace(it.ID) == "":
			return fmt.Errorf("%w: item %d has no id", ErrCorruptCart, i)
		case strings.TrimSpace(it.ProductID) == "":
			return fmt.Errorf("%w: item %d has no productId", ErrCorruptCart, i)
		case it.Quantity < 1:
			return fmt.Errorf("%w: item %d has quantity %d", ErrCorruptCart, i, it.Quantity)
		case it.Price.IsNegative():
			return fmt.Errorf("%w: item %d has negative price", ErrCorruptCart, i)
		case it.SalePrice.Valid && it.SalePrice.Decimal.IsNegative():
			return fmt.Errorf("%w: item %d has negative sale price", ErrCorruptCart, i)
		}
		if _, dup := ids[it.ID]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrCorruptCart, it.ID)
		}
		ids[it.ID] = struct{}{}
		key := it.identity()
		if _, dup := identities[key]; dup {
			return fmt.Errorf("%w: duplicate line for product %q", ErrCorruptCart, it.ProductID)
		}
		identities[key] = struct{}{}
	}
	return nil
}
