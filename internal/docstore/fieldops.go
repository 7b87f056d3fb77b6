package docstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/fitpro/fitsync/internal/domain"
)

// normalizeFields converts caller values into the JSON-shaped form documents
// are stored and compared in.
func normalizeFields(fields map[string]any) (map[string]any, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return out, nil
}

func normalizeValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return out, nil
}

// applyUpdate applies every operation of update to fields in place.
// Paths are applied in sorted order so the result does not depend on map order.
func applyUpdate(fields map[string]any, update domain.Update) error {
	paths := make([]string, 0, len(update))
	for p := range update {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if err := applyOp(fields, p, update[p]); err != nil {
			return fmt.Errorf("field %q: %w", p, err)
		}
	}
	return nil
}

func applyOp(fields map[string]any, path string, op domain.FieldOp) error {
	segments := strings.Split(path, ".")
	for _, seg := range segments {
		if seg == "" {
			return fmt.Errorf("empty path segment")
		}
	}

	// creating ops build missing intermediate maps, removing ops stop early
	creating := false
	switch op.(type) {
	case domain.SetValue, domain.ArrayUnion:
		creating = true
	}

	parent := fields
	for _, seg := range segments[:len(segments)-1] {
		next, ok := parent[seg].(map[string]any)
		if !ok {
			if !creating {
				return nil
			}
			next = map[string]any{}
			parent[seg] = next
		}
		parent = next
	}
	leaf := segments[len(segments)-1]

	switch o := op.(type) {
	case domain.SetValue:
		v, err := normalizeValue(o.Value)
		if err != nil {
			return err
		}
		parent[leaf] = v

	case domain.DeleteField:
		delete(parent, leaf)

	case domain.ArrayUnion:
		arr, _ := parent[leaf].([]any)
		if arr == nil {
			arr = []any{}
		}
		for _, raw := range o.Values {
			v, err := normalizeValue(raw)
			if err != nil {
				return err
			}
			if !containsValue(arr, v) {
				arr = append(arr, v)
			}
		}
		parent[leaf] = arr

	case domain.ArrayRemove:
		current, exists := parent[leaf]
		if !exists {
			return nil
		}
		arr, _ := current.([]any)
		remove := make([]any, 0, len(o.Values))
		for _, raw := range o.Values {
			v, err := normalizeValue(raw)
			if err != nil {
				return err
			}
			remove = append(remove, v)
		}
		kept := make([]any, 0, len(arr))
		for _, el := range arr {
			if !containsValue(remove, el) {
				kept = append(kept, el)
			}
		}
		parent[leaf] = kept

	default:
		return fmt.Errorf("unsupported field operation %T", op)
	}
	return nil
}

func containsValue(arr []any, v any) bool {
	for _, el := range arr {
		if reflect.DeepEqual(el, v) {
			return true
		}
	}
	return false
}

// cloneValue deep-copies a JSON-shaped value.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, el := range t {
			out[k] = cloneValue(el)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = cloneValue(el)
		}
		return out
	default:
		return v
	}
}

func cloneDoc(doc *domain.Document) *domain.Document {
	if doc == nil {
		return nil
	}
	fields, _ := cloneValue(doc.Fields).(map[string]any)
	if fields == nil {
		fields = map[string]any{}
	}
	return &domain.Document{Path: doc.Path, Fields: fields, Revision: doc.Revision}
}
