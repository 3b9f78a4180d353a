package cart

import (
	"context"
	"fmt"
	"testing"

	"github.com/cucumber/godog"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/pricing"
	"github.com/noah-isme/toko-cart/internal/storage"
)

type cartFeatureContext struct {
	ctx    context.Context
	blobs  *storage.Memory
	engine *pricing.Engine
	store  *Store
	snap   Snapshot
}

func (c *cartFeatureContext) reset() {
	c.ctx = context.Background()
	c.blobs = storage.NewMemory()
	c.engine = nil
	c.store = nil
	c.snap = Snapshot{}
}

func (c *cartFeatureContext) newStore() {
	c.store = NewStore(StoreConfig{
		Key:     "cart:feature",
		Blobs:   c.blobs,
		Pricing: c.engine,
		Logger:  zerolog.Nop(),
	})
}

func (c *cartFeatureContext) aPricingPolicy(threshold, fee, rate string) error {
	policy := pricing.Policy{}
	var err error
	if policy.FreeShippingThreshold, err = pricing.ParseAmount(threshold); err != nil {
		return err
	}
	if policy.FlatShippingFee, err = decimal.NewFromString(fee); err != nil {
		return err
	}
	if policy.TaxRate, err = decimal.NewFromString(rate); err != nil {
		return err
	}
	c.engine = pricing.NewEngine(policy, nil, zerolog.Nop())
	return nil
}

func (c *cartFeatureContext) anEmptyCart() error {
	c.newStore()
	c.store.Load(c.ctx)
	c.snap = c.store.Snapshot()
	return nil
}

func (c *cartFeatureContext) iAddProduct(productID, price string, qty int) error {
	return c.add(productID, price, "", nil, qty)
}

func (c *cartFeatureContext) iAddProductOnSale(productID, price, sale string, qty int) error {
	return c.add(productID, price, sale, nil, qty)
}

func (c *cartFeatureContext) iAddProductInSize(productID, size, price string, qty int) error {
	return c.add(productID, price, "", map[string]string{"size": size}, qty)
}

func (c *cartFeatureContext) add(productID, price, sale string, variations map[string]string, qty int) error {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return err
	}
	in := ItemInput{ProductID: productID, Name: productID, Price: p, Variations: variations}
	if sale != "" {
		s, err := decimal.NewFromString(sale)
		if err != nil {
			return err
		}
		in.SalePrice = decimal.NewNullDecimal(s)
	}
	c.snap = c.store.AddItem(c.ctx, in, qty)
	return nil
}

func (c *cartFeatureContext) iSetTheQuantityOfTheFirstLine(qty int) error {
	id, err := c.firstLineID()
	if err != nil {
		return err
	}
	c.snap = c.store.UpdateQuantity(c.ctx, id, qty)
	return nil
}

func (c *cartFeatureContext) iRemoveTheFirstLineTwice() error {
	id, err := c.firstLineID()
	if err != nil {
		return err
	}
	c.store.RemoveItem(c.ctx, id)
	c.snap = c.store.RemoveItem(c.ctx, id)
	return nil
}

func (c *cartFeatureContext) iClearTheCart() error {
	c.snap = c.store.Clear(c.ctx)
	return nil
}

func (c *cartFeatureContext) theServiceRestarts() error {
	c.newStore()
	c.store.Load(c.ctx)
	c.snap = c.store.Snapshot()
	return nil
}

func (c *cartFeatureContext) theCartIsLoaded() error {
	if !c.snap.IsLoaded {
		return fmt.Errorf("expected cart to be loaded")
	}
	if err := c.store.Err(); err != nil {
		return fmt.Errorf("unexpected persistence error: %w", err)
	}
	return nil
}

func (c *cartFeatureContext) theSubtotalIs(want string) error {
	return expectMoney("subtotal", c.snap.Subtotal, want)
}

func (c *cartFeatureContext) theShippingIs(want string) error {
	return expectMoney("shipping", c.snap.Shipping, want)
}

func (c *cartFeatureContext) theTotalIs(want string) error {
	return expectMoney("total", c.snap.Total, want)
}

func (c *cartFeatureContext) theItemCountIs(want int) error {
	if c.snap.ItemCount != want {
		return fmt.Errorf("expected item count %d, got %d", want, c.snap.ItemCount)
	}
	return nil
}

func (c *cartFeatureContext) theCartHasLines(want int) error {
	if len(c.snap.Items) != want {
		return fmt.Errorf("expected %d lines, got %d", want, len(c.snap.Items))
	}
	return nil
}

func (c *cartFeatureContext) theFirstLineHasQuantity(want int) error {
	if len(c.snap.Items) == 0 {
		return fmt.Errorf("cart is empty")
	}
	if got := c.snap.Items[0].Quantity; got != want {
		return fmt.Errorf("expected quantity %d, got %d", want, got)
	}
	return nil
}

func (c *cartFeatureContext) theTotalEqualsTheSum() error {
	sum := c.snap.Subtotal.Add(c.snap.Shipping).Add(c.snap.Tax)
	if !c.snap.Total.Equal(sum) {
		return fmt.Errorf("total %s != subtotal+shipping+tax %s", c.snap.Total, sum)
	}
	return nil
}

func (c *cartFeatureContext) firstLineID() (string, error) {
	if len(c.snap.Items) == 0 {
		return "", fmt.Errorf("cart is empty")
	}
	return c.snap.Items[0].ID, nil
}

func expectMoney(label string, got decimal.Decimal, want string) error {
	if shown := got.StringFixed(pricing.DisplayPlaces); shown != want {
		return fmt.Errorf("expected %s %s, got %s", label, want, shown)
	}
	return nil
}

func InitializeCartScenario(ctx *godog.ScenarioContext) {
	tc := &cartFeatureContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^a pricing policy with free shipping from "([^"]*)", a flat fee of "([^"]*)" and a tax rate of "([^"]*)"$`, tc.aPricingPolicy)
	ctx.Step(`^an empty cart$`, tc.anEmptyCart)

	// When steps
	ctx.Step(`^I add product "([^"]*)" priced "([^"]*)" with quantity (-?\d+)$`, tc.iAddProduct)
	ctx.Step(`^I add product "([^"]*)" priced "([^"]*)" on sale for "([^"]*)" with quantity (-?\d+)$`, tc.iAddProductOnSale)
	ctx.Step(`^I add product "([^"]*)" in size "([^"]*)" priced "([^"]*)" with quantity (-?\d+)$`, tc.iAddProductInSize)
	ctx.Step(`^I set the quantity of the first line to (-?\d+)$`, tc.iSetTheQuantityOfTheFirstLine)
	ctx.Step(`^I remove the first line twice$`, tc.iRemoveTheFirstLineTwice)
	ctx.Step(`^I clear the cart$`, tc.iClearTheCart)
	ctx.Step(`^the service restarts$`, tc.theServiceRestarts)

	// Then steps
	ctx.Step(`^the cart is loaded$`, tc.theCartIsLoaded)
	ctx.Step(`^the subtotal is "([^"]*)"$`, tc.theSubtotalIs)
	ctx.Step(`^the shipping is "([^"]*)"$`, tc.theShippingIs)
	ctx.Step(`^the total is "([^"]*)"$`, tc.theTotalIs)
	ctx.Step(`^the item count is (\d+)$`, tc.theItemCountIs)
	ctx.Step(`^the cart has (\d+) lines?$`, tc.theCartHasLines)
	ctx.Step(`^the first line has quantity (\d+)$`, tc.theFirstLineHasQuantity)
	ctx.Step(`^the total equals subtotal plus shipping plus tax$`, tc.theTotalEqualsTheSum)
}

func TestCartFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeCartScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/cart.feature"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
