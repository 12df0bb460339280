package templates

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cast"
)

// Primitive is a scalar template value: Str, Num or Bool.
type Primitive interface {
	fmt.Stringer
	primitive()
}

// Str is a string primitive.
type Str string

// Num is a signed integer primitive.
type Num int64

// Bool is a boolean primitive.
type Bool bool

func (s Str) String() string  { return string(s) }
func (n Num) String() string  { return strconv.FormatInt(int64(n), 10) }
func (b Bool) String() string { return strconv.FormatBool(bool(b)) }

func (Str) primitive()  {}
func (Num) primitive()  {}
func (Bool) primitive() {}

// ContextTree is a template value. It is one of Leaf, Array, Branch or Slot.
// Trees are never mutated once handed to the engine; scoping is done by
// copying the enclosing ContextMap.
type ContextTree interface {
	contextTree()
}

// Leaf holds a scalar.
type Leaf struct {
	Value Primitive
}

// Array is an ordered sequence of trees.
type Array []ContextTree

// Branch maps names to nested trees.
type Branch map[string]ContextTree

// Slot holds pre-rendered text passed into a component. Slot lookups only
// ever resolve Slot values, never plain leaves.
type Slot struct {
	Value Primitive
}

func (Leaf) contextTree()   {}
func (Array) contextTree()  {}
func (Branch) contextTree() {}
func (Slot) contextTree()   {}

// ContextMap is the root scope passed into rendering.
type ContextMap map[string]ContextTree

// Clone returns a shallow copy of m.
func (m ContextMap) Clone() ContextMap {
	out := make(ContextMap, len(m)+1)
	for k, v := range m {
		out[k] = v
	}

	return out
}

// With returns a copy of m with key bound to value.
func (m ContextMap) With(key string, value ContextTree) ContextMap {
	out := m.Clone()
	out[key] = value

	return out
}

// Merge returns a copy of m overlaid with every binding in other.
func (m ContextMap) Merge(other ContextMap) ContextMap {
	out := m.Clone()
	for k, v := range other {
		out[k] = v
	}

	return out
}

// Keys returns the bound names in sorted order.
func (m ContextMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// StrLeaf wraps s in a Leaf.
func StrLeaf(s string) Leaf { return Leaf{Value: Str(s)} }

// NumLeaf wraps n in a Leaf.
func NumLeaf(n int64) Leaf { return Leaf{Value: Num(n)} }

// BoolLeaf wraps b in a Leaf.
func BoolLeaf(b bool) Leaf { return Leaf{Value: Bool(b)} }

// SlotOf wraps rendered text in a Slot.
func SlotOf(s string) Slot { return Slot{Value: Str(s)} }

// List builds an Array from the given trees.
func List(items ...ContextTree) Array {
	return Array(items)
}

// FromValue converts decoded data (YAML, JSON or Go literals) into a tree.
// Maps become branches and slices become arrays. Integers and booleans keep
// their type; floats and other scalars are stored as strings.
func FromValue(v interface{}) (ContextTree, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("cannot convert nil to a context value")
	case ContextTree:
		return val, nil
	case string:
		return StrLeaf(val), nil
	case bool:
		return BoolLeaf(val), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		n, err := cast.ToInt64E(val)
		if err != nil {
			return nil, err
		}
		return NumLeaf(n), nil
	case float32, float64:
		return StrLeaf(cast.ToString(val)), nil
	case []interface{}:
		arr := make(Array, 0, len(val))
		for i, item := range val {
			tree, err := FromValue(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			arr = append(arr, tree)
		}
		return arr, nil
	case []string:
		arr := make(Array, 0, len(val))
		for _, item := range val {
			arr = append(arr, StrLeaf(item))
		}
		return arr, nil
	case map[string]interface{}:
		branch, err := MapFromValue(val)
		if err != nil {
			return nil, err
		}
		return Branch(branch), nil
	case map[interface{}]interface{}:
		m, err := cast.ToStringMapE(val)
		if err != nil {
			return nil, err
		}
		return FromValue(m)
	default:
		s, err := cast.ToStringE(val)
		if err != nil {
			return nil, fmt.Errorf("unsupported context value of type %T", v)
		}
		return StrLeaf(s), nil
	}
}

// MapFromValue converts every entry of data with FromValue.
func MapFromValue(data map[string]interface{}) (ContextMap, error) {
	out := make(ContextMap, len(data))
	for k, v := range data {
		tree, err := FromValue(v)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = tree
	}

	return out, nil
}
