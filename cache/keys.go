package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator delimits cache key segments.
const KeySeparator = "::"

// maxKeyLength bounds serialized keys. Longer keys keep their method prefix
// (prefix invalidation depends on it) and digest the rest.
const maxKeyLength = 96

// KeyBuilder builds a stable cache key from a method name plus arbitrary
// args. Keys must be deterministic across calls within a process.
type KeyBuilder interface {
	Key(method string, args ...any) string
}

type defaultKeyBuilder struct{}

// NewKeyBuilder creates the default key builder.
func NewKeyBuilder() KeyBuilder {
	return defaultKeyBuilder{}
}

// Key joins the method name with each encoded argument. Oversized keys keep
// as many leading segments intact as fit and digest the remainder: prefix
// invalidation depends on the method and identifier segments surviving the
// collapse.
func (defaultKeyBuilder) Key(method string, args ...any) string {
	if len(args) == 0 {
		return method
	}

	parts := make([]string, 0, len(args)+1)
	parts = append(parts, method)
	for _, arg := range args {
		parts = append(parts, encodeArg(arg))
	}

	key := strings.Join(parts, KeySeparator)
	if len(key) <= maxKeyLength {
		return key
	}

	// reserve room for the separator plus a 64-bit hex digest
	budget := maxKeyLength - len(KeySeparator) - 16
	kept := 1
	length := len(parts[0])
	for kept < len(parts)-1 {
		next := length + len(KeySeparator) + len(parts[kept])
		if next > budget {
			break
		}
		length = next
		kept++
	}

	head := strings.Join(parts[:kept], KeySeparator)
	tail := strings.Join(parts[kept:], KeySeparator)
	return head + KeySeparator + strconv.FormatUint(xxhash.Sum64String(tail), 16)
}

// encodeArg serializes a single argument deterministically. Function values
// (criteria callbacks) are identified by pointer, which is stable within a
// process lifetime; slices recurse so criteria lists encode element-wise.
func encodeArg(arg any) string {
	if arg == nil {
		return "nil"
	}

	switch v := arg.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}

	rv := reflect.ValueOf(arg)
	switch rv.Kind() {
	case reflect.Func:
		if rv.IsNil() {
			return "nil"
		}
		return fmt.Sprintf("func:%p", arg)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return "nil"
		}
		elems := make([]string, rv.Len())
		for i := range elems {
			elems[i] = encodeArg(rv.Index(i).Interface())
		}
		return "[" + strings.Join(elems, ",") + "]"
	case reflect.Chan:
		return fmt.Sprintf("%T@%p", arg, arg)
	}

	// json.Marshal sorts map keys, so maps and structs come out stable
	data, err := json.Marshal(arg)
	if err != nil {
		return fmt.Sprintf("%v", arg)
	}
	return string(data)
}
