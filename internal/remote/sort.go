package remote

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/yadielglz/littlesprout-sub001/internal/sprout"
)

// sortDocs orders raw documents per opts. Numeric values of the OrderBy
// field compare numerically, everything else lexically by the field's JSON
// representation. Documents missing the field sort first.
func sortDocs(docs []json.RawMessage, opts sprout.ListOptions) {
	if opts.OrderBy == "" {
		return
	}

	type keyed struct {
		doc json.RawMessage
		key sortKey
	}
	items := make([]keyed, len(docs))
	for i, doc := range docs {
		items[i] = keyed{doc: doc, key: extractKey(doc, opts.OrderBy)}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if opts.Descending {
			return items[j].key.less(items[i].key)
		}
		return items[i].key.less(items[j].key)
	})
	for i := range items {
		docs[i] = items[i].doc
	}
}

type sortKey struct {
	present bool
	numeric bool
	num     float64
	str     string
}

func (k sortKey) less(other sortKey) bool {
	switch {
	case !k.present:
		return other.present
	case !other.present:
		return false
	case k.numeric && other.numeric:
		return k.num < other.num
	default:
		return strings.Compare(k.str, other.str) < 0
	}
}

func extractKey(doc json.RawMessage, field string) sortKey {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return sortKey{}
	}
	raw, ok := fields[field]
	if !ok {
		return sortKey{}
	}

	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return sortKey{present: true, numeric: true, num: num}
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return sortKey{present: true, str: str}
	}
	return sortKey{present: true, str: string(raw)}
}

// parentPath returns the collection path containing a document path, or ""
// for a top-level path.
func parentPath(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return ""
	}
	return path[:idx]
}
