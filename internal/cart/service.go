// Package cart keeps the local cart consistent with the server-authoritative
// cart.
//
// Every mutation is attempted against the Leaf Shop API first; on success the
// local cart is fully replaced by the (enriched) server response, on failure
// a local reducer applies the same change so the shopper keeps working
// offline. Callers never see an error from a cart operation: they get a
// Mutation describing which path ran.
package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"leafcart/internal/adapter"
	"leafcart/internal/identity"
	"leafcart/internal/model"
	"leafcart/internal/reconcile"
	"leafcart/internal/storage"
)

// TempIDPrefix marks cart item ids generated locally before the server has
// seen the line.
const TempIDPrefix = "temp-"

// Operation names used in logs and Mutation.Op.
const (
	OpAdd    = "add"
	OpRemove = "remove"
	OpUpdate = "update_quantity"
)

// Enricher attaches display data to server lines.
type Enricher interface {
	Enrich(ctx context.Context, items []model.LineItem) []model.LineItem
}

// Options configures a Service.
type Options struct {
	// SerializeMutations admits one mutation or sync at a time, from the
	// server call through the local commit. When false, concurrent
	// mutations race and the last response to complete wins.
	SerializeMutations bool
}

// Mutation reports the outcome of a cart operation.
type Mutation struct {
	Op     string           `json:"op"`
	Source Source           `json:"source"`
	Items  []model.LineItem `json:"items"`

	// Reason is the server failure that triggered the local fallback.
	Reason string `json:"reason,omitempty"`

	// Diff is the change relative to the previous local cart.
	Diff *reconcile.LineItemDiff `json:"-"`
}

// SyncResult reports the outcome of a sync.
type SyncResult struct {
	// Replaced is true when local state was overwritten by the server cart.
	Replaced bool                    `json:"replaced"`
	Items    []model.LineItem        `json:"items"`
	Reason   string                  `json:"reason,omitempty"`
	Diff     *reconcile.LineItemDiff `json:"-"`
}

// Service is the cart reconciliation service.
// All methods are safe for concurrent use.
type Service struct {
	identity *identity.Provider
	backend  adapter.CartBackend
	enricher Enricher
	store    storage.Store
	logger   *slog.Logger

	// queue is nil unless SerializeMutations is set.
	queue *semaphore.Weighted

	mu      sync.RWMutex
	items   []model.LineItem
	version uint64

	persistMu sync.Mutex
	persisted uint64
}

// New creates a Service and loads the persisted cart from store.
//
// A snapshot written by an incompatible schema version, or one that cannot be
// decoded, is discarded and the cart starts empty.
func New(id *identity.Provider, backend adapter.CartBackend, enricher Enricher, store storage.Store, logger *slog.Logger, opts Options) (*Service, error) {
	s := &Service{
		identity: id,
		backend:  backend,
		enricher: enricher,
		store:    store,
		logger:   logger,
		items:    []model.LineItem{},
	}
	if opts.SerializeMutations {
		s.queue = semaphore.NewWeighted(1)
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load reads the persisted snapshot into memory.
func (s *Service) load() error {
	compatible, stored, err := storage.CheckSchema(s.store)
	if err != nil {
		return fmt.Errorf("loading cart: %w", err)
	}
	if !compatible {
		s.logger.Warn("discarding cart snapshot from incompatible schema",
			slog.String("stored", stored),
			slog.String("current", storage.SchemaVersion))
		if err := s.store.Remove(storage.KeyCart); err != nil {
			return fmt.Errorf("removing stale cart: %w", err)
		}
	}
	if err := storage.StampSchema(s.store); err != nil {
		return fmt.Errorf("loading cart: %w", err)
	}

	raw, ok, err := s.store.Get(storage.KeyCart)
	if err != nil {
		return fmt.Errorf("reading cart: %w", err)
	}
	if !ok || raw == "" {
		return nil
	}

	var items []model.LineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.logger.Warn("discarding unreadable cart snapshot", slog.String("error", err.Error()))
		return nil
	}
	s.items = validItems(items)
	return nil
}

// validItems drops lines no operation could address.
func validItems(items []model.LineItem) []model.LineItem {
	out := make([]model.LineItem, 0, len(items))
	for _, it := range items {
		if it.CartItemID == "" || it.Quantity < 1 {
			continue
		}
		out = append(out, it)
	}
	return out
}

// === Queries ===

// Items returns a copy of the local cart.
func (s *Service) Items() []model.LineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.CloneItems(s.items)
}

// Total returns the sum of unit price times quantity over all lines.
func (s *Service) Total() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.CartTotal(s.items)
}

// Count returns the sum of quantities over all lines.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.CartCount(s.items)
}

// Identity returns the identity the cart is currently keyed by.
func (s *Service) Identity() model.Identity {
	return s.identity.Current()
}

// === Identity changes ===

// Start performs the initial sync for the persisted identity.
func (s *Service) Start(ctx context.Context) SyncResult {
	return s.Sync(ctx)
}

// Login attaches an authenticated user and resyncs if the user changed.
func (s *Service) Login(ctx context.Context, userID, token string) SyncResult {
	if !s.identity.SetUser(userID, token) {
		return SyncResult{Items: s.Items(), Diff: &reconcile.LineItemDiff{}}
	}
	s.logger.InfoContext(ctx, "identity changed", slog.String("user_id", userID))
	return s.Sync(ctx)
}

// Logout drops the authenticated user and resyncs against the guest session.
func (s *Service) Logout(ctx context.Context) SyncResult {
	if !s.identity.ClearUser() {
		return SyncResult{Items: s.Items(), Diff: &reconcile.LineItemDiff{}}
	}
	s.logger.InfoContext(ctx, "identity changed", slog.String("user_id", ""))
	return s.Sync(ctx)
}

// Sync fetches the server cart for the current identity.
//
// A non-empty server cart replaces local state. An empty one never clobbers
// a populated local cart, which keeps items added as a guest across login.
// Failures leave local state untouched. With SerializeMutations, a sync
// waits its turn in the mutation queue.
func (s *Service) Sync(ctx context.Context) SyncResult {
	if err := s.acquire(ctx); err != nil {
		s.logger.WarnContext(ctx, "cart sync skipped, keeping local cart",
			slog.String("error", err.Error()))
		return SyncResult{Items: s.Items(), Reason: err.Error(), Diff: &reconcile.LineItemDiff{}}
	}
	defer s.release()

	id := s.identity.Current()
	res := resultOf(s.backend.GetCart(ctx, id))

	if !res.IsOk() {
		s.logger.WarnContext(ctx, "cart sync failed, keeping local cart",
			slog.String("identity", id.Key()),
			slog.String("error", res.Reason().Error()))
		return SyncResult{Items: s.Items(), Reason: res.Reason().Error(), Diff: &reconcile.LineItemDiff{}}
	}

	if res.Cart().IsEmpty() {
		s.logger.DebugContext(ctx, "server cart empty, keeping local cart",
			slog.String("identity", id.Key()))
		return SyncResult{Items: s.Items(), Diff: &reconcile.LineItemDiff{}}
	}

	items, diff := s.replace(ctx, res.Cart())
	s.logger.InfoContext(ctx, "cart synced",
		slog.String("identity", id.Key()),
		slog.Int("lines", len(items)),
		slog.String("diff", diff.String()))

	return SyncResult{Replaced: true, Items: items, Diff: diff}
}

// === Mutations ===

// AddItem adds quantity of a product selection. A quantity below 1 adds one.
//
// Offline, an existing line with the same product, size and color is
// incremented; otherwise one line with a temporary id is appended.
func (s *Service) AddItem(ctx context.Context, req model.AddItemRequest) Mutation {
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	remote := func(ctx context.Context, id model.Identity) Result {
		return resultOf(s.backend.AddItem(ctx, id, req))
	}
	fallback := func(items []model.LineItem) []model.LineItem {
		return addLocal(items, req)
	}
	return s.mutate(ctx, OpAdd, remote, fallback)
}

// RemoveItem removes a line. Offline, the line is filtered out locally.
func (s *Service) RemoveItem(ctx context.Context, cartItemID string) Mutation {
	remote := func(ctx context.Context, id model.Identity) Result {
		return resultOf(s.backend.RemoveItem(ctx, id, cartItemID))
	}
	fallback := func(items []model.LineItem) []model.LineItem {
		return slices.DeleteFunc(items, func(it model.LineItem) bool {
			return it.CartItemID == cartItemID
		})
	}
	return s.mutate(ctx, OpRemove, remote, fallback)
}

// UpdateQuantity sets a line's quantity. Quantities below 1 are ignored
// without contacting the server. Offline, the quantity is set locally.
func (s *Service) UpdateQuantity(ctx context.Context, cartItemID string, quantity int) Mutation {
	if quantity < 1 {
		return Mutation{
			Op:     OpUpdate,
			Source: SourceNone,
			Items:  s.Items(),
			Reason: model.NewValidationError("quantity", "must be at least 1").Error(),
			Diff:   &reconcile.LineItemDiff{},
		}
	}

	remote := func(ctx context.Context, id model.Identity) Result {
		return resultOf(s.backend.UpdateQuantity(ctx, id, cartItemID, quantity))
	}
	fallback := func(items []model.LineItem) []model.LineItem {
		for i := range items {
			if items[i].CartItemID == cartItemID {
				items[i].Quantity = quantity
			}
		}
		return items
	}
	return s.mutate(ctx, OpUpdate, remote, fallback)
}

// Clear empties the local cart without contacting the server. Used after
// checkout, when order creation has already cleared the server cart.
func (s *Service) Clear() {
	s.commit(func([]model.LineItem) []model.LineItem { return []model.LineItem{} })
}

// mutate runs remote and replaces local state with the server cart on Ok,
// or applies fallback to a copy of the local cart on Err.
func (s *Service) mutate(
	ctx context.Context,
	op string,
	remote func(context.Context, model.Identity) Result,
	fallback func([]model.LineItem) []model.LineItem,
) Mutation {
	// The queue stays held through enrichment and commit.
	var res Result
	if err := s.acquire(ctx); err != nil {
		res = Err(err)
	} else {
		defer s.release()
		res = remote(ctx, s.identity.Current())
	}

	if res.IsOk() {
		items, diff := s.replace(ctx, res.Cart())
		s.logger.DebugContext(ctx, "cart mutation applied by server",
			slog.String("op", op),
			slog.String("diff", diff.String()))
		return Mutation{Op: op, Source: SourceServer, Items: items, Diff: diff}
	}

	level := slog.LevelError
	if model.IsNetworkFailure(res.Reason()) {
		level = slog.LevelWarn
	}
	s.logger.LogAttrs(ctx, level, "cart mutation failed on server, applying locally",
		slog.String("op", op),
		slog.String("error", res.Reason().Error()))

	prev, next := s.commit(fallback)
	return Mutation{
		Op:     op,
		Source: SourceLocal,
		Items:  model.CloneItems(next),
		Reason: res.Reason().Error(),
		Diff:   reconcile.DiffLineItems(prev, next),
	}
}

func (s *Service) acquire(ctx context.Context) error {
	if s.queue == nil {
		return nil
	}
	if err := s.queue.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for cart queue: %w", err)
	}
	return nil
}

func (s *Service) release() {
	if s.queue != nil {
		s.queue.Release(1)
	}
}

// replace enriches the server cart and makes it the local cart.
func (s *Service) replace(ctx context.Context, c *model.Cart) ([]model.LineItem, *reconcile.LineItemDiff) {
	enriched := s.enricher.Enrich(ctx, c.Items)
	prev, next := s.commit(func([]model.LineItem) []model.LineItem { return enriched })
	return model.CloneItems(next), reconcile.DiffLineItems(prev, next)
}

// commit swaps in reduce(copy of current) under the lock, then persists it.
// Returns the previous and new item slices; neither may be modified.
func (s *Service) commit(reduce func([]model.LineItem) []model.LineItem) (prev, next []model.LineItem) {
	s.mu.Lock()
	prev = s.items
	next = reduce(model.CloneItems(prev))
	if next == nil {
		next = []model.LineItem{}
	}
	s.items = next
	s.version++
	version := s.version
	s.mu.Unlock()

	s.persist(next, version)
	return prev, next
}

// persist writes a snapshot unless a newer one was already written.
func (s *Service) persist(items []model.LineItem, version uint64) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if version <= s.persisted {
		return
	}
	raw, err := json.Marshal(items)
	if err != nil {
		s.logger.Error("encoding cart snapshot", slog.String("error", err.Error()))
		return
	}
	if err := s.store.Set(storage.KeyCart, string(raw)); err != nil {
		s.logger.Error("persisting cart", slog.String("error", err.Error()))
		return
	}
	s.persisted = version
}

// addLocal merges req into items the way the server would.
func addLocal(items []model.LineItem, req model.AddItemRequest) []model.LineItem {
	for i := range items {
		if items[i].SameSelection(req.ProductID, req.Size, req.Color) {
			items[i].Quantity += req.Quantity
			return items
		}
	}
	return append(items, model.LineItem{
		CartItemID:    TempIDPrefix + uuid.NewString(),
		ProductID:     req.ProductID,
		VariantID:     req.VariantID,
		Quantity:      req.Quantity,
		UnitPrice:     req.UnitPrice,
		SelectedSize:  req.Size,
		SelectedColor: req.Color,
	})
}

// IsTemporary reports whether a cart item id was generated locally.
func IsTemporary(cartItemID string) bool {
	return strings.HasPrefix(cartItemID, TempIDPrefix)
}
