package manual

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/rentwatch/pkg/listing"
)

// NuxtDataSelector locates the serialized page payload.
const NuxtDataSelector = "#__NUXT_DATA__"

// adKeywordsKey marks the payload object describing the listing itself.
const adKeywordsKey = "adKeywords"

// blobKeys lists, per field, the payload keys tried in order.
var blobKeys = map[listing.Field][]string{
	listing.FieldTitle:   {"title", "name"},
	listing.FieldRent:    {"price", "rent"},
	listing.FieldArea:    {"area", "surface"},
	listing.FieldAddress: {"location", "address"},
}

// nested value keys tried when a payload field resolves to an object.
var valueKeys = []string{"value", "amount", "text", "name", "label"}

// payload is a Nuxt devalue table: a flat JSON array whose objects hold
// indexes into the same array instead of inline values.
type payload []any

func parsePayload(doc *goquery.Document) (payload, error) {
	script := doc.Find(NuxtDataSelector).First()
	if script.Length() == 0 {
		return nil, fmt.Errorf("%w: no %s script", listing.ErrStructureNotFound, NuxtDataSelector)
	}

	var p payload
	if err := json.Unmarshal([]byte(script.Text()), &p); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", listing.ErrStructureNotFound, NuxtDataSelector, err)
	}
	return p, nil
}

// listingObject returns the first top-level object with a non-empty ad
// keywords attribute.
func (p payload) listingObject() (map[string]any, bool) {
	for _, item := range p {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		raw, ok := obj[adKeywordsKey]
		if !ok {
			continue
		}
		if truthy(p.resolve(raw, 0)) {
			return obj, true
		}
	}
	return nil, false
}

// fields reads the descriptive fields out of obj. Missing ones are omitted.
// Fields the payload holds as JSON numbers are also returned in numbers so
// they can be used without reparsing their text.
func (p payload) fields(obj map[string]any) (raw listing.RawExtraction, numbers map[listing.Field]float64) {
	raw = make(listing.RawExtraction)
	numbers = make(map[listing.Field]float64)
	for field, keys := range blobKeys {
		for _, key := range keys {
			v, ok := obj[key]
			if !ok {
				continue
			}
			val := p.scalar(p.resolve(v, 0), 0)
			if text, ok := val.(string); ok {
				raw[string(field)] = text
				break
			}
			if n, ok := val.(float64); ok {
				raw[string(field)] = strconv.FormatFloat(n, 'f', -1, 64)
				numbers[field] = n
				break
			}
		}
	}
	return raw, numbers
}

const maxResolveDepth = 8

// wrappers are devalue type tags whose second element is the wrapped index.
var wrappers = map[string]bool{"Reactive": true, "ShallowReactive": true, "Ref": true, "ShallowRef": true}

// resolve follows index references. Numbers inside payload objects are
// indexes; the referenced entry is the real value. Negative indexes are
// devalue's reserved constants (undefined, NaN, infinities, -0) and resolve
// to nil.
func (p payload) resolve(v any, depth int) any {
	if depth > maxResolveDepth {
		return nil
	}
	idx, ok := v.(float64)
	if !ok || idx != math.Trunc(idx) {
		return v
	}
	if idx < 0 {
		return nil
	}
	if int(idx) >= len(p) {
		return v
	}
	target := p[int(idx)]
	if arr, ok := target.([]any); ok && len(arr) == 2 {
		if tag, ok := arr[0].(string); ok && wrappers[tag] {
			return p.resolve(arr[1], depth+1)
		}
	}
	return target
}

// scalar reduces a resolved value to the non-empty string or the number it
// carries, looking inside value objects such as {"value":..,"currency":..}.
// Anything else is nil.
func (p payload) scalar(v any, depth int) any {
	if depth > maxResolveDepth {
		return nil
	}
	switch val := v.(type) {
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return s
		}
	case float64:
		return val
	case map[string]any:
		for _, key := range valueKeys {
			if inner, ok := val[key]; ok {
				if s := p.scalar(p.resolve(inner, 0), depth+1); s != nil {
					return s
				}
			}
		}
	}
	return nil
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case float64:
		return val != 0
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	}
	return true
}
