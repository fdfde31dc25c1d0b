package permissionset

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"twol-crm/internal/common/errs"
)

// Nested is the client-facing permission tree: group -> capability -> subfield -> value,
// or group -> capability -> value for scalar capabilities.
type Nested map[string]any

// FlatRecord holds one value per schema column. Values are Tier or bool.
type FlatRecord map[string]any

// Tier returns the tier stored for column, TierNone when absent.
func (f FlatRecord) Tier(column string) Tier {
	if t, ok := f[column].(Tier); ok {
		return t
	}
	return TierNone
}

// Bool returns the boolean stored for column, false when absent.
func (f FlatRecord) Bool(column string) bool {
	b, _ := f[column].(bool)
	return b
}

// Grants reports whether column gives any access: true for booleans, anything but None for tiers.
func (f FlatRecord) Grants(column string) bool {
	switch v := f[column].(type) {
	case bool:
		return v
	case Tier:
		return v != TierNone
	default:
		return false
	}
}

// Clone returns a copy of the record.
func (f FlatRecord) Clone() FlatRecord {
	out := make(FlatRecord, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Flatten converts a nested payload into a complete flat record.
//
// With superAdmin the payload is ignored and every leaf gets its broadest value, except Sales
// Pro leaves which are only granted when withSalesPro is also set. Otherwise a leaf whose master
// is off gets its restrictive value whatever the client sent, and every other leaf takes the
// submitted value. Unknown keys are ignored.
func Flatten(schema *Schema, nested Nested, superAdmin, withSalesPro bool) (FlatRecord, error) {
	if superAdmin {
		return superAdminRecord(schema, withSalesPro), nil
	}

	masters := make(map[string]bool, len(schema.Masters()))
	var missing []string

	for _, col := range schema.Masters() {
		leaf, _ := schema.Leaf(col)
		raw, found, err := lookup(nested, leaf)
		if err != nil {
			return nil, err
		}
		if !found {
			missing = append(missing, leaf.String())
			continue
		}
		on, err := decodeValue(leaf, raw)
		if err != nil {
			return nil, err
		}
		masters[col] = on.(bool)
	}

	flat := make(FlatRecord, schema.Len())
	for leaf := range schema.Leaves() {
		col := leaf.Column()
		if on, isMaster := masters[col]; isMaster {
			flat[col] = on
			continue
		}
		if schema.IsMaster(col) {
			// master missing, already reported
			continue
		}

		if leaf.Gate != "" {
			on, known := masters[leaf.Gate]
			if !known {
				continue
			}
			if !on {
				flat[col] = leaf.Restrictive()
				continue
			}
		}

		raw, found, err := lookup(nested, leaf)
		if err != nil {
			return nil, err
		}
		if !found {
			missing = append(missing, leaf.String())
			continue
		}
		value, err := decodeValue(leaf, raw)
		if err != nil {
			return nil, err
		}
		flat[col] = value
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", errs.ErrSchemaMismatch, strings.Join(missing, ", "))
	}
	return flat, nil
}

// Unflatten regroups a flat record into the nested shape. Values are not transformed and
// columns unknown to the schema are dropped.
func Unflatten(schema *Schema, flat FlatRecord) Nested {
	nested := make(Nested)
	for leaf := range schema.Leaves() {
		value, ok := flat[leaf.Column()]
		if !ok {
			continue
		}

		group, ok := nested[leaf.Group].(map[string]any)
		if !ok {
			group = make(map[string]any)
			nested[leaf.Group] = group
		}

		if leaf.Subfield == "" {
			group[leaf.Capability] = value
			continue
		}

		capability, ok := group[leaf.Capability].(map[string]any)
		if !ok {
			capability = make(map[string]any)
			group[leaf.Capability] = capability
		}
		capability[leaf.Subfield] = value
	}
	return nested
}

// superAdminRecord returns the fixed Super Admin flat record.
func superAdminRecord(schema *Schema, withSalesPro bool) FlatRecord {
	flat := make(FlatRecord, schema.Len())
	for leaf := range schema.Leaves() {
		if leaf.SalesPro && !withSalesPro {
			flat[leaf.Column()] = leaf.Restrictive()
			continue
		}
		flat[leaf.Column()] = leaf.Permissive()
	}
	return flat
}

// lookup walks the nested payload along the leaf path. A non-object on the way is a
// validation error; a missing key is reported as not found.
func lookup(nested Nested, leaf Leaf) (any, bool, error) {
	path := leaf.Path()
	var current any = map[string]any(nested)

	for i, key := range path {
		obj, ok := asObject(current)
		if !ok {
			return nil, false, fmt.Errorf("%w: %s must be an object", errs.ErrValidation, strings.Join(path[:i], "."))
		}
		next, found := obj[key]
		if !found || next == nil {
			return nil, false, nil
		}
		current = next
	}
	return current, true, nil
}

func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Nested:
		return m, true
	default:
		return nil, false
	}
}

func decodeValue(leaf Leaf, raw any) (any, error) {
	if leaf.Kind == KindBool {
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a boolean", errs.ErrValidation, leaf)
		}
		return b, nil
	}

	tier, err := toTier(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %v", errs.ErrValidation, leaf, err)
	}
	return tier, nil
}

func toTier(raw any) (Tier, error) {
	var n int64
	switch v := raw.(type) {
	case Tier:
		n = int64(v)
	case int:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("must be an integer tier, got %v", v)
		}
		n = int64(v)
	case json.Number:
		if parsed, err := v.Int64(); err == nil {
			n = parsed
			break
		}
		f, err := v.Float64()
		if err != nil || f != math.Trunc(f) {
			return 0, fmt.Errorf("must be an integer tier, got %q", v.String())
		}
		if f < float64(TierEverything) || f > float64(TierNone) {
			return 0, fmt.Errorf("must be a tier between 1 and 4, got %s", v.String())
		}
		n = int64(f)
	default:
		return 0, fmt.Errorf("must be a tier between 1 and 4, got %T", raw)
	}

	tier := Tier(n)
	if !tier.Valid() {
		return 0, fmt.Errorf("must be a tier between 1 and 4, got %d", n)
	}
	return tier, nil
}
