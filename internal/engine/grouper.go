package engine

import (
	"sort"
	"strings"

	"github.com/okozyrev/extraction-review/internal/domain"
)

// GroupPatterns buckets "different" comparisons for bulk review. It is a
// pure function over the comparison snapshot; groups are never persisted.
//
// Partitioning: transaction type → exclusive-data-key fingerprint → split by
// real-numeric-diff presence. Within a type, numeric-diff groups come first,
// then larger groups; the fingerprint breaks remaining ties so output order
// is stable. Groups of one render standalone and carry no bulk actions.
func GroupPatterns(comparisons []*domain.Comparison) []domain.PatternGroup {
	type bucketKey struct {
		typ         string
		fingerprint string
		numeric     bool
	}
	type bucket struct {
		onlyA, onlyB []string
		items        []*domain.Comparison
	}

	buckets := make(map[bucketKey]*bucket)
	for _, c := range comparisons {
		if c.Status != domain.StatusDifferent {
			continue
		}
		onlyA, onlyB := exclusiveDataKeys(c.A, c.B)
		key := bucketKey{
			typ:         c.GroupType(),
			fingerprint: fingerprint(onlyA, onlyB),
			numeric:     c.HasRealNumericDiff(),
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{onlyA: onlyA, onlyB: onlyB}
			buckets[key] = b
		}
		b.items = append(b.items, c)
	}

	groups := make([]domain.PatternGroup, 0, len(buckets))
	for key, b := range buckets {
		sort.Slice(b.items, func(i, j int) bool { return b.items[i].EmailID < b.items[j].EmailID })
		groups = append(groups, domain.PatternGroup{
			Type:        key.typ,
			OnlyAKeys:   b.onlyA,
			OnlyBKeys:   b.onlyB,
			NumericDiff: key.numeric,
			Comparisons: b.items,
			BulkActions: len(b.items) >= 2,
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		gi, gj := groups[i], groups[j]
		if gi.Type != gj.Type {
			return gi.Type < gj.Type
		}
		if gi.NumericDiff != gj.NumericDiff {
			return gi.NumericDiff
		}
		if len(gi.Comparisons) != len(gj.Comparisons) {
			return len(gi.Comparisons) > len(gj.Comparisons)
		}
		return fingerprint(gi.OnlyAKeys, gi.OnlyBKeys) < fingerprint(gj.OnlyAKeys, gj.OnlyBKeys)
	})
	return groups
}

func fingerprint(onlyA, onlyB []string) string {
	return strings.Join(onlyA, ",") + "||" + strings.Join(onlyB, ",")
}
