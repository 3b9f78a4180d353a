package cart

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var decimalComparer = cmp.Comparer(func(a, b decimal.Decimal) bool {
	return a.Equal(b)
})

func assertSameItems(t *testing.T, want, got []LineItem) {
	t.Helper()
	if diff := cmp.Diff(want, got, decimalComparer); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
}

func fakeItems(n int) []LineItem {
	items := make([]LineItem, 0, n)
	for i := 0; i < n; i++ {
		item := LineItem{
			ID:        gofakeit.UUID(),
			ProductID: gofakeit.UUID(),
			Name:      gofakeit.ProductName(),
			Image:     gofakeit.URL(),
			Slug:      gofakeit.Word(),
			Price:     decimal.NewFromFloat(gofakeit.Price(0.01, 1000)),
			Quantity:  gofakeit.IntRange(1, 99),
			Vendor:    gofakeit.Company(),
			SKU:       gofakeit.Numerify("SKU-######"),
		}
		if gofakeit.Bool() {
			item.SalePrice = decimal.NewNullDecimal(item.Price.Mul(decimal.NewFromFloat(0.75)))
		}
		if gofakeit.Bool() {
			item.Variations = map[string]string{
				"size":  gofakeit.RandomString([]string{"S", "M", "L", "XL"}),
				"color": gofakeit.Color(),
			}
		}
		items = append(items, item)
	}
	return items
}

func TestCodecRoundTrip(t *testing.T) {
	for n := 1; n <= 50; n++ {
		items := fakeItems(n)
		payload, err := Encode(items, time.Now())
		require.NoError(t, err)

		doc, err := Decode(payload)
		require.NoError(t, err, "n=%d", n)
		require.Equal(t, FormatVersion, doc.Version)
		assertSameItems(t, items, doc.Items)
	}
}

func TestEncodeEmptyCart(t *testing.T) {
	payload, err := Encode(nil, time.Time{})
	require.NoError(t, err)
	require.JSONEq(t, `{"version":1,"items":[]}`, string(payload))

	doc, err := Decode(payload)
	require.NoError(t, err)
	require.NotNil(t, doc.Items)
	require.Empty(t, doc.Items)
}

func TestEncodeWritesDecimalsAsStrings(t *testing.T) {
	payload, err := Encode([]LineItem{{
		ID:        "l1",
		ProductID: "p1",
		Name:      "Mug",
		Price:     decimal.RequireFromString("29.99"),
		Quantity:  3,
	}}, time.Time{})
	require.NoError(t, err)
	require.JSONEq(t, `{"version":1,"items":[{"id":"l1","productId":"p1","name":"Mug","price":"29.99","salePrice":null,"quantity":3}]}`, string(payload))
}

func TestDecodeLegacyArray(t *testing.T) {
	legacy := `[{"id":"1","productId":"p1","name":"Shirt","price":50,"salePrice":35,"quantity":2,"variations":{"size":"M"}}]`
	doc, err := Decode([]byte(legacy))
	require.NoError(t, err)
	require.Len(t, doc.Items, 1)
	require.True(t, doc.Items[0].EffectivePrice().Equal(decimal.NewFromInt(35)))
	require.Equal(t, "M", doc.Items[0].Variations["size"])
}

func TestDecodeRejectsCorruptPayloads(t *testing.T) {
	cases := map[string]string{
		"empty":              ``,
		"garbage":            `not json`,
		"truncated":          `{"version":1,"items":[`,
		"wrong version":      `{"version":2,"items":[]}`,
		"missing id":         `[{"productId":"p1","price":"1","quantity":1}]`,
		"missing product":    `[{"id":"1","price":"1","quantity":1}]`,
		"zero quantity":      `[{"id":"1","productId":"p1","price":"1","quantity":0}]`,
		"negative price":     `[{"id":"1","productId":"p1","price":"-1","quantity":1}]`,
		"negative sale":      `[{"id":"1","productId":"p1","price":"1","salePrice":"-2","quantity":1}]`,
		"duplicate id":       `[{"id":"1","productId":"p1","price":"1","quantity":1},{"id":"1","productId":"p2","price":"1","quantity":1}]`,
		"duplicate identity": `[{"id":"1","productId":"p1","price":"1","quantity":1},{"id":"2","productId":"p1","price":"1","quantity":1,"variations":{}}]`,
		"scalar":             `42`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(payload))
			require.ErrorIs(t, err, ErrCorruptCart)
		})
	}
}
