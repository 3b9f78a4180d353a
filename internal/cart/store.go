package cart

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/currency"

	"github.com/noah-isme/toko-cart/internal/obs"
	"github.com/noah-isme/toko-cart/internal/pricing"
	"github.com/noah-isme/toko-cart/internal/storage"
)

const (
	opAdd    = "add"
	opUpdate = "update"
	opRemove = "remove"
	opClear  = "clear"
)

var tracer = otel.Tracer("cart.store")

// Snapshot is a derived, read-only view of a cart. Amounts are unrounded.
type Snapshot struct {
	Items        []LineItem
	Subtotal     decimal.Decimal
	Shipping     decimal.Decimal
	Tax          decimal.Decimal
	Total        decimal.Decimal
	ItemCount    int
	LineCount    int
	Currency     currency.Unit
	IsLoaded     bool
	UpdatedAt    time.Time
	PersistError string
}

// StoreConfig configures a Store.
type StoreConfig struct {
	// Key names the persisted blob.
	Key     string
	Blobs   storage.BlobStore
	Pricing *pricing.Engine
	Logger  zerolog.Logger
	Now     func() time.Time
	// IDs generates line item ids. Defaults to UUIDv4.
	IDs func() string
}

// Store owns one cart. All mutations go through it and are persisted before
// they return.
type Store struct {
	key     string
	blobs   storage.BlobStore
	pricing *pricing.Engine
	logger  zerolog.Logger
	now     func() time.Time
	ids     func() string

	mu        sync.Mutex
	items     []LineItem
	loaded    bool
	ready     chan struct{}
	err       error
	updatedAt time.Time
}

// NewStore constructs a Store. The cart is not read until Load or the first
// mutation.
func NewStore(cfg StoreConfig) *Store {
	s := &Store{
		key:     cfg.Key,
		blobs:   cfg.Blobs,
		pricing: cfg.Pricing,
		logger:  cfg.Logger.With().Str("component", "cart").Str("cart_key", cfg.Key).Logger(),
		now:     cfg.Now,
		ids:     cfg.IDs,
		ready:   make(chan struct{}),
	}
	if s.blobs == nil {
		s.blobs = storage.NewMemory()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.ids == nil {
		s.ids = uuid.NewString
	}
	return s
}

// Load restores the persisted cart once. Later calls return immediately.
// A missing blob yields an empty cart; an unreadable one yields an empty cart
// and is reported through Err.
func (s *Store) Load(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(ctx)
}

// Ready is closed once the cart has been loaded.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// IsLoaded reports whether Load has completed.
func (s *Store) IsLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Err returns the last persistence error, or nil once storage is healthy again.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Items returns a copy of the line items in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

// Snapshot returns the current items with freshly computed totals.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// AddItem adds quantity units of item. A line with the same product and
// variations has its quantity increased; its price and metadata stay as first
// added. Quantities below 1 are treated as 1. Items without a product id or
// with a negative price are ignored.
func (s *Store) AddItem(ctx context.Context, item ItemInput, quantity int) Snapshot {
	ctx, span := tracer.Start(ctx, "cart.AddItem", trace.WithAttributes(
		attribute.String("cart.product_id", item.ProductID),
		attribute.Int("cart.quantity", quantity),
	))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(ctx)

	if err := validateInput(item); err != nil {
		span.RecordError(err)
		s.logger.Warn().Err(err).Str("product_id", item.ProductID).Msg("ignoring invalid cart item")
		return s.snapshotLocked()
	}

	quantity = clampQuantity(quantity)
	key := identityKey(item.ProductID, item.Variations)
	if idx := s.indexByIdentity(key); idx >= 0 {
		s.items[idx].Quantity = capQuantity(s.items[idx].Quantity + quantity)
		span.SetAttributes(attribute.Bool("cart.merged", true))
	} else {
		s.items = append(s.items, item.lineItem(s.nextID(item.ID), quantity))
	}
	s.commitLocked(ctx, span, opAdd)
	return s.snapshotLocked()
}

// UpdateQuantity sets the quantity of line itemID. Quantities below 1 remove
// the line. Unknown ids are ignored.
func (s *Store) UpdateQuantity(ctx context.Context, itemID string, quantity int) Snapshot {
	if quantity < 1 {
		return s.RemoveItem(ctx, itemID)
	}
	ctx, span := tracer.Start(ctx, "cart.UpdateQuantity", trace.WithAttributes(
		attribute.String("cart.item_id", itemID),
		attribute.Int("cart.quantity", quantity),
	))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(ctx)

	idx := s.indexByID(itemID)
	if idx < 0 {
		return s.snapshotLocked()
	}
	quantity = capQuantity(quantity)
	if s.items[idx].Quantity == quantity {
		return s.snapshotLocked()
	}
	s.items[idx].Quantity = quantity
	s.commitLocked(ctx, span, opUpdate)
	return s.snapshotLocked()
}

// RemoveItem deletes line itemID if present.
func (s *Store) RemoveItem(ctx context.Context, itemID string) Snapshot {
	ctx, span := tracer.Start(ctx, "cart.RemoveItem", trace.WithAttributes(
		attribute.String("cart.item_id", itemID),
	))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(ctx)

	idx := s.indexByID(itemID)
	if idx < 0 {
		return s.snapshotLocked()
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.commitLocked(ctx, span, opRemove)
	return s.snapshotLocked()
}

// Clear empties the cart and persists the empty cart.
func (s *Store) Clear(ctx context.Context) Snapshot {
	ctx, span := tracer.Start(ctx, "cart.Clear")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(ctx)

	s.items = nil
	s.commitLocked(ctx, span, opClear)
	return s.snapshotLocked()
}

func (s *Store) loadLocked(ctx context.Context) {
	if s.loaded {
		return
	}
	ctx, span := tracer.Start(ctx, "cart.Load")
	defer span.End()
	defer func() {
		s.loaded = true
		close(s.ready)
	}()

	data, err := s.blobs.Get(ctx, s.key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.recordLoad("empty")
		return
	case err != nil:
		s.err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		s.recordLoad("error")
		s.logger.Error().Err(err).Msg("cart restore failed, starting empty")
		return
	}

	doc, err := Decode(data)
	if err != nil {
		s.err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, "corrupt cart")
		s.recordLoad("corrupt")
		s.logger.Warn().Err(err).Int("bytes", len(data)).Msg("discarding corrupt cart")
		return
	}
	s.items = doc.Items
	s.updatedAt = doc.SavedAt
	span.SetAttributes(attribute.Int("cart.lines", len(s.items)))
	s.recordLoad("restored")
}

func (s *Store) commitLocked(ctx context.Context, span trace.Span, op string) {
	now := s.now()
	s.updatedAt = now
	if obs.CartMutationsTotal != nil {
		obs.CartMutationsTotal.WithLabelValues(op).Inc()
	}

	payload, err := Encode(s.items, now)
	if err == nil {
		err = s.blobs.Set(ctx, s.key, payload)
	}
	if err != nil {
		s.err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		if obs.CartPersistFailuresTotal != nil {
			obs.CartPersistFailuresTotal.WithLabelValues(op).Inc()
		}
		s.logger.Error().Err(err).Str("op", op).Int("lines", len(s.items)).Msg("cart persist failed")
		return
	}
	s.err = nil
}

func (s *Store) snapshotLocked() Snapshot {
	summary := s.pricing.Quote(pricingItems(s.items))
	snap := Snapshot{
		Items:     cloneItems(s.items),
		Subtotal:  summary.Subtotal,
		Shipping:  summary.Shipping,
		Tax:       summary.Tax,
		Total:     summary.Total,
		ItemCount: summary.ItemCount,
		LineCount: summary.LineCount,
		Currency:  summary.Currency,
		IsLoaded:  s.loaded,
		UpdatedAt: s.updatedAt,
	}
	if s.err != nil {
		snap.PersistError = s.err.Error()
	}
	return snap
}

func (s *Store) recordLoad(result string) {
	if obs.CartLoadTotal != nil {
		obs.CartLoadTotal.WithLabelValues(result).Inc()
	}
}

func (s *Store) nextID(requested string) string {
	requested = strings.TrimSpace(requested)
	if requested != "" && s.indexByID(requested) < 0 {
		return requested
	}
	for attempt := 0; attempt < 3; attempt++ {
		if id := s.ids(); id != "" && s.indexByID(id) < 0 {
			return id
		}
	}
	return uuid.NewString()
}

func (s *Store) indexByID(id string) int {
	for i, it := range s.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) indexByIdentity(key string) int {
	for i, it := range s.items {
		if it.identity() == key {
			return i
		}
	}
	return -1
}
