// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pdiddy/social-search/pkg/types"
)

// Decoder reads one canonical field through an ordered list of path
// variants. The first variant holding a usable value wins.
type Decoder struct {
	Field    string
	Variants []string
	Critical bool
}

// Field declares an optional canonical field and its variants in priority order.
func Field(name string, variants ...string) Decoder {
	return Decoder{Field: name, Variants: variants}
}

// Required declares a critical field: an item without it is dropped.
func Required(name string, variants ...string) Decoder {
	return Decoder{Field: name, Variants: variants, Critical: true}
}

// Gap records one item skipped during normalization.
type Gap struct {
	Platform types.Platform
	Index    int
	ID       string
	Reason   string
}

func (g Gap) String() string {
	if g.ID != "" {
		return fmt.Sprintf("%s item %d (%s): %s", g.Platform, g.Index, g.ID, g.Reason)
	}
	return fmt.Sprintf("%s item %d: %s", g.Platform, g.Index, g.Reason)
}

// Item is the decoding context for one raw payload. It remembers which
// critical fields were missing and whether any variant matched at all.
type Item struct {
	Fields  Fields
	log     *slog.Logger
	missing []string
	matched int
}

// NewItem wraps already-decoded fields; mainly useful in tests.
func NewItem(f Fields, log *slog.Logger) *Item {
	if log == nil {
		log = slog.Default()
	}
	return &Item{Fields: f, log: log}
}

func (it *Item) lookup(d Decoder, conv func(any) bool) bool {
	for _, path := range d.Variants {
		v, ok := it.Fields.Get(path)
		if !ok || !conv(v) {
			continue
		}
		it.matched++
		it.log.Debug("field variant matched", "field", d.Field, "variant", path)
		return true
	}
	if d.Critical {
		it.missing = append(it.missing, d.Field)
	}
	return false
}

// String returns the first non-empty string variant.
func (it *Item) String(d Decoder) string {
	var out string
	it.lookup(d, func(v any) bool {
		s, ok := asString(v)
		out = s
		return ok
	})
	return out
}

// Count returns a non-negative engagement count, 0 when absent.
func (it *Item) Count(d Decoder) int64 {
	if p := it.OptionalCount(d); p != nil {
		return *p
	}
	return 0
}

// OptionalCount returns a non-negative count, or nil when no variant holds one.
func (it *Item) OptionalCount(d Decoder) *int64 {
	var out int64
	if !it.lookup(d, func(v any) bool {
		n, ok := asInt(v)
		out = n
		return ok
	}) {
		return nil
	}
	if out < 0 {
		out = 0
	}
	return &out
}

// Time returns the first parseable timestamp variant, zero when absent.
func (it *Item) Time(d Decoder) time.Time {
	var t time.Time
	it.lookup(d, func(v any) bool {
		parsed, ok := asTime(v)
		t = parsed
		return ok
	})
	return t
}

// OptionalBool returns the first boolean variant, nil when absent.
func (it *Item) OptionalBool(d Decoder) *bool {
	var out bool
	if !it.lookup(d, func(v any) bool {
		b, ok := asBool(v)
		out = b
		return ok
	}) {
		return nil
	}
	return &out
}

// Missing lists critical fields no variant could supply.
func (it *Item) Missing() []string { return it.missing }

// DecodeFunc maps one decoded payload to a ContentItem. It reads fields
// through the Item so missing critical fields are tracked.
type DecodeFunc func(it *Item) types.ContentItem

// Normalizer runs a platform's DecodeFunc over a batch, dropping single
// malformed items without failing the batch.
type Normalizer struct {
	Platform types.Platform
	Logger   *slog.Logger
}

func (n Normalizer) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

// Run decodes every raw item. Items missing a critical field, items that
// are not JSON objects, and items of an unrecognized shape are skipped,
// logged, and reported as Gaps.
func (n Normalizer) Run(raws []json.RawMessage, decode DecodeFunc) ([]types.ContentItem, []Gap) {
	log := n.logger().With("platform", string(n.Platform))
	items := make([]types.ContentItem, 0, len(raws))
	var gaps []Gap

	for i, raw := range raws {
		f, err := Decode(raw)
		if err != nil {
			gap := Gap{Platform: n.Platform, Index: i, Reason: "undecodable payload: " + err.Error()}
			log.Warn("normalization gap", "index", i, "reason", gap.Reason)
			gaps = append(gaps, gap)
			continue
		}

		it := &Item{Fields: f, log: log}
		item := decode(it)
		item.Platform = n.Platform

		if it.matched == 0 {
			gap := Gap{Platform: n.Platform, Index: i, Reason: "unrecognized payload shape"}
			log.Warn("unrecognized payload shape, upstream schema may have changed", "index", i, "keys", f.Keys())
			gaps = append(gaps, gap)
			continue
		}
		if len(it.missing) > 0 {
			gap := Gap{Platform: n.Platform, Index: i, ID: item.ID, Reason: fmt.Sprintf("missing critical fields %v", it.missing)}
			log.Warn("normalization gap", "index", i, "id", item.ID, "missing", it.missing)
			gaps = append(gaps, gap)
			continue
		}
		items = append(items, item)
	}
	return items, gaps
}
