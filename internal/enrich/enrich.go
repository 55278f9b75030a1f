// Package enrich attaches display data (product name, image URL) to server
// cart lines. The cart API deliberately omits catalog fields, so every sync
// runs an enrichment pass before lines reach the local store.
//
// Enrichment never fails: every lookup error degrades to a placeholder.
package enrich

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"leafcart/internal/adapter"
	"leafcart/internal/model"
	"leafcart/internal/shopapi"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultExpirationMinutes = 60
	DefaultConcurrency       = 4
	DefaultPlaceholderImage  = "/images/placeholder-product.png"
)

// Config controls an Enricher.
type Config struct {
	// ExpirationMinutes is requested for every presigned download URL.
	ExpirationMinutes int

	// Concurrency bounds parallel media lookups within one pass.
	Concurrency int

	// PlaceholderImage is used when no image resolves.
	PlaceholderImage string

	// Now is the clock for the URL cache. Defaults to time.Now.
	Now func() time.Time
}

// Enricher resolves display metadata for cart lines.
type Enricher struct {
	catalog adapter.Catalog
	cfg     Config
	logger  *slog.Logger
	urls    *urlCache
}

// New creates an Enricher backed by catalog.
func New(catalog adapter.Catalog, cfg Config, logger *slog.Logger) *Enricher {
	if cfg.ExpirationMinutes <= 0 {
		cfg.ExpirationMinutes = DefaultExpirationMinutes
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.PlaceholderImage == "" {
		cfg.PlaceholderImage = DefaultPlaceholderImage
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Enricher{
		catalog: catalog,
		cfg:     cfg,
		logger:  logger,
		urls:    newURLCache(defaultCacheEntries, cfg.Now),
	}
}

// Placeholder returns the image used when nothing resolves.
func (e *Enricher) Placeholder() string { return e.cfg.PlaceholderImage }

// Enrich returns a copy of items with DisplayName and DisplayImageURL set.
//
// The product catalog is fetched once per call and indexed by id; media is
// fetched once per distinct product.
func (e *Enricher) Enrich(ctx context.Context, items []model.LineItem) []model.LineItem {
	out := model.CloneItems(items)
	if len(out) == 0 {
		return out
	}

	products := e.productIndex(ctx)
	images := e.imagesFor(ctx, distinctProducts(out))

	for i := range out {
		pid := out[i].ProductID
		if p, ok := products[pid]; ok && p.Name != "" {
			out[i].DisplayName = p.Name
		} else {
			out[i].DisplayName = fallbackName(pid)
		}
		if img, ok := images[pid]; ok && img != "" {
			out[i].DisplayImageURL = img
		} else {
			out[i].DisplayImageURL = e.cfg.PlaceholderImage
		}
	}
	return out
}

// productIndex fetches the catalog and indexes it by product id.
// On failure the index is empty and every line gets a fallback name.
func (e *Enricher) productIndex(ctx context.Context) map[string]model.Product {
	products, err := e.catalog.ListProducts(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "product catalog unavailable, using fallback names",
			slog.String("error", err.Error()))
		return map[string]model.Product{}
	}

	index := make(map[string]model.Product, len(products))
	for _, p := range products {
		index[p.ID] = p
	}
	return index
}

// imagesFor resolves one display image per product id, in parallel.
func (e *Enricher) imagesFor(ctx context.Context, productIDs []string) map[string]string {
	var mu sync.Mutex
	images := make(map[string]string, len(productIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for _, pid := range productIDs {
		g.Go(func() error {
			img := e.imageFor(gctx, pid)
			mu.Lock()
			images[pid] = img
			mu.Unlock()
			return nil // failures already degraded to the placeholder
		})
	}
	g.Wait()

	return images
}

// imageFor picks and resolves the display image for a single product.
func (e *Enricher) imageFor(ctx context.Context, productID string) string {
	media, err := e.catalog.ListMedia(ctx, productID)
	if err != nil {
		e.logger.DebugContext(ctx, "product media unavailable",
			slog.String("product_id", productID),
			slog.String("error", err.Error()))
		return e.cfg.PlaceholderImage
	}

	m, ok := SelectImage(media)
	if !ok {
		return e.cfg.PlaceholderImage
	}
	return e.resolve(ctx, productID, m.Reference())
}

// resolve turns a media reference into a browsable URL. Absolute URLs pass
// through; storage keys go through the download-url endpoint and the cache.
func (e *Enricher) resolve(ctx context.Context, productID, ref string) string {
	if ref == "" {
		return e.cfg.PlaceholderImage
	}
	if shopapi.IsAbsoluteURL(ref) {
		return ref
	}
	if u, ok := e.urls.get(ref); ok {
		return u
	}

	dl, err := e.catalog.ResolveDownloadURL(ctx, ref, e.cfg.ExpirationMinutes)
	if err != nil || dl == nil || dl.URL == "" {
		attrs := []any{slog.String("product_id", productID), slog.String("s3_key", ref)}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		e.logger.DebugContext(ctx, "download url unresolved", attrs...)
		return e.cfg.PlaceholderImage
	}

	e.urls.put(ref, dl.URL, e.cacheTTL(dl))
	return dl.URL
}

// cacheTTL keeps a resolved URL until shortly before the presigned link
// expires, or for the gateway's max-age if that is shorter.
func (e *Enricher) cacheTTL(dl *shopapi.DownloadURL) time.Duration {
	ttl := time.Duration(e.cfg.ExpirationMinutes)*time.Minute - expirySafetyMargin(e.cfg.ExpirationMinutes)
	if dl.HasMaxAge && dl.MaxAge < ttl {
		ttl = dl.MaxAge
	}
	return ttl
}

// expirySafetyMargin is 10% of the link lifetime, capped at five minutes.
func expirySafetyMargin(minutes int) time.Duration {
	margin := time.Duration(minutes) * time.Minute / 10
	return min(margin, 5*time.Minute)
}

// SelectImage picks the display image: the primary entry, else the lowest
// mediaOrder. Entries without any reference are ignored.
func SelectImage(media []model.Media) (model.Media, bool) {
	usable := make([]model.Media, 0, len(media))
	for _, m := range media {
		if m.Reference() != "" {
			usable = append(usable, m)
		}
	}
	if len(usable) == 0 {
		return model.Media{}, false
	}

	for _, m := range usable {
		if m.IsPrimary {
			return m, true
		}
	}

	return slices.MinFunc(usable, func(a, b model.Media) int {
		return cmp.Compare(a.MediaOrder, b.MediaOrder)
	}), true
}

func distinctProducts(items []model.LineItem) []string {
	seen := make(map[string]bool, len(items))
	var ids []string
	for _, it := range items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}
	return ids
}

func fallbackName(productID string) string {
	return "Product #" + productID
}
