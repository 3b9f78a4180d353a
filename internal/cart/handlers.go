package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/noah-isme/toko-cart/internal/common"
	"github.com/noah-isme/toko-cart/internal/pricing"
	"github.com/noah-isme/toko-cart/internal/session"
)

var errNoSession = errors.New("cart: request has no session")

// Handler exposes the session cart over HTTP.
type Handler struct {
	Registry *Registry
	Validate *validator.Validate
	Logger   zerolog.Logger
}

// NewHandler constructs a handler. A nil validate gets a default validator.
func NewHandler(registry *Registry, validate *validator.Validate, logger zerolog.Logger) *Handler {
	if validate == nil {
		validate = NewValidator()
	}
	return &Handler{Registry: registry, Validate: validate, Logger: logger.With().Str("component", "cart_http").Logger()}
}

// NewValidator returns a validator reporting fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Routes mounts the cart endpoints on r. writes wrap only the mutating
// endpoints, e.g. rate limiting and idempotency.
func (h *Handler) Routes(r chi.Router, writes ...func(http.Handler) http.Handler) {
	r.Get("/", h.Get)
	r.Get("/count", h.Count)
	r.Group(func(g chi.Router) {
		g.Use(writes...)
		g.Delete("/", h.Clear)
		g.Post("/items", h.AddItem)
		g.Patch("/items/{itemId}", h.UpdateItem)
		g.Delete("/items/{itemId}", h.RemoveItem)
	})
}

type addItemRequest struct {
	ID         string              `json:"id" validate:"omitempty,max=128"`
	ProductID  string              `json:"productId" validate:"required,max=128"`
	Name       string              `json:"name" validate:"required,max=512"`
	Image      string              `json:"image" validate:"omitempty,max=2048"`
	Slug       string              `json:"slug" validate:"omitempty,max=512"`
	Price      *decimal.Decimal    `json:"price" validate:"required"`
	SalePrice  decimal.NullDecimal `json:"salePrice"`
	Quantity   QuantityInput       `json:"quantity"`
	Variations map[string]string   `json:"variations" validate:"omitempty,max=16,dive,keys,required,max=64,endkeys,max=256"`
	Vendor     string              `json:"vendor" validate:"omitempty,max=256"`
	SKU        string              `json:"sku" validate:"omitempty,max=128"`
}

type updateItemRequest struct {
	Quantity QuantityInput `json:"quantity"`
}

type itemView struct {
	ID         string            `json:"id"`
	ProductID  string            `json:"productId"`
	Name       string            `json:"name"`
	Image      string            `json:"image,omitempty"`
	Slug       string            `json:"slug,omitempty"`
	Price      json.Number       `json:"price"`
	SalePrice  *json.Number      `json:"salePrice"`
	Quantity   int               `json:"quantity"`
	LineTotal  json.Number       `json:"lineTotal"`
	Variations map[string]string `json:"variations,omitempty"`
	Vendor     string            `json:"vendor,omitempty"`
	SKU        string            `json:"sku,omitempty"`
}

type snapshotView struct {
	Items        []itemView  `json:"items"`
	Subtotal     json.Number `json:"subtotal"`
	Shipping     json.Number `json:"shipping"`
	Tax          json.Number `json:"tax"`
	Total        json.Number `json:"total"`
	ItemCount    int         `json:"itemCount"`
	LineCount    int         `json:"lineCount"`
	Currency     string      `json:"currency,omitempty"`
	IsLoaded     bool        `json:"isLoaded"`
	UpdatedAt    *time.Time  `json:"updatedAt,omitempty"`
	PersistError string      `json:"persistError,omitempty"`
}

// Get returns the session cart with derived totals.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	store, release, err := h.store(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer release()
	common.Data(w, http.StatusOK, renderSnapshot(store.Snapshot()))
}

// Count returns the figures shown by the mini-cart.
func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	store, release, err := h.store(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer release()
	snap := store.Snapshot()
	common.Data(w, http.StatusOK, map[string]any{
		"itemCount": snap.ItemCount,
		"total":     money(snap.Total),
		"isLoaded":  snap.IsLoaded,
	})
}

// AddItem adds a product to the cart or increases the quantity of its line.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	store, release, err := h.store(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer release()
	var payload addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, common.BadRequest("invalid JSON payload", nil, err))
		return
	}
	if err := h.validate(payload); err != nil {
		h.writeError(w, err)
		return
	}
	snap := store.AddItem(r.Context(), ItemInput{
		ID:         strings.TrimSpace(payload.ID),
		ProductID:  strings.TrimSpace(payload.ProductID),
		Name:       strings.TrimSpace(payload.Name),
		Image:      payload.Image,
		Slug:       payload.Slug,
		Price:      *payload.Price,
		SalePrice:  payload.SalePrice,
		Variations: payload.Variations,
		Vendor:     payload.Vendor,
		SKU:        payload.SKU,
	}, payload.Quantity.ForAdd())
	common.Data(w, http.StatusOK, renderSnapshot(snap))
}

// UpdateItem sets the quantity of a line. Zero or negative removes it.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	store, release, err := h.store(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer release()
	var payload updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, common.BadRequest("invalid JSON payload", nil, err))
		return
	}
	if !payload.Quantity.Set() {
		h.writeError(w, common.BadRequest("validation failed", map[string]string{"quantity": "required"}, nil))
		return
	}
	itemID := chi.URLParam(r, "itemId")
	snap := store.UpdateQuantity(r.Context(), itemID, payload.Quantity.ForUpdate())
	common.Data(w, http.StatusOK, renderSnapshot(snap))
}

// RemoveItem deletes a line. Removing an unknown line succeeds.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	store, release, err := h.store(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer release()
	snap := store.RemoveItem(r.Context(), chi.URLParam(r, "itemId"))
	common.Data(w, http.StatusOK, renderSnapshot(snap))
}

// Clear empties the cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	store, release, err := h.store(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	defer release()
	common.Data(w, http.StatusOK, renderSnapshot(store.Clear(r.Context())))
}

// store acquires the session's store. Callers release it when the request is done.
func (h *Handler) store(r *http.Request) (*Store, func(), error) {
	if h.Registry == nil {
		return nil, nil, common.NewAppError("INTERNAL", "cart registry not configured", http.StatusInternalServerError, nil)
	}
	sessionID, ok := session.FromContext(r.Context())
	if !ok {
		return nil, nil, errNoSession
	}
	store, release := h.Registry.Acquire(r.Context(), sessionID)
	return store, release, nil
}

func (h *Handler) validate(payload addItemRequest) error {
	details := map[string]string{}
	if err := h.Validate.Struct(payload); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return common.BadRequest("validation failed", nil, err)
		}
		for _, fe := range verrs {
			details[fieldPath(fe)] = fe.Tag()
		}
	}
	if payload.Price != nil && payload.Price.IsNegative() {
		details["price"] = "gte=0"
	}
	if payload.SalePrice.Valid && payload.SalePrice.Decimal.IsNegative() {
		details["salePrice"] = "gte=0"
	}
	if len(details) == 0 {
		return nil
	}
	return common.BadRequest("validation failed", details, nil)
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.WriteAppError(w, appErr)
		return
	}
	switch {
	case errors.Is(err, errNoSession):
		common.JSONError(w, http.StatusBadRequest, "SESSION_REQUIRED", "cart session is required", nil)
	default:
		h.Logger.Error().Err(err).Msg("cart request failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}

// Render returns the JSON view of a snapshot used by the HTTP API.
func Render(s Snapshot) any {
	return renderSnapshot(s)
}

func renderSnapshot(s Snapshot) snapshotView {
	view := snapshotView{
		Items:        make([]itemView, 0, len(s.Items)),
		Subtotal:     money(s.Subtotal),
		Shipping:     money(s.Shipping),
		Tax:          money(s.Tax),
		Total:        money(s.Total),
		ItemCount:    s.ItemCount,
		LineCount:    s.LineCount,
		IsLoaded:     s.IsLoaded,
		PersistError: s.PersistError,
	}
	if s.Currency != (currency.Unit{}) {
		view.Currency = s.Currency.String()
	}
	if !s.UpdatedAt.IsZero() {
		updated := s.UpdatedAt.UTC()
		view.UpdatedAt = &updated
	}
	for _, it := range s.Items {
		iv := itemView{
			ID:         it.ID,
			ProductID:  it.ProductID,
			Name:       it.Name,
			Image:      it.Image,
			Slug:       it.Slug,
			Price:      money(it.Price),
			Quantity:   it.Quantity,
			LineTotal:  money(it.LineTotal()),
			Variations: it.Variations,
			Vendor:     it.Vendor,
			SKU:        it.SKU,
		}
		if it.SalePrice.Valid {
			sale := money(it.SalePrice.Decimal)
			iv.SalePrice = &sale
		}
		view.Items = append(view.Items, iv)
	}
	return view
}

func money(d decimal.Decimal) json.Number {
	return json.Number(pricing.Display(d).StringFixed(pricing.DisplayPlaces))
}
