package domain

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// externalPrefix marks the boundary string form of an externally sourced
// restaurant ("api_<sourceId>").
const externalPrefix = "api_"

// ErrInvalidRestaurantRef is returned when a boundary string cannot be decoded
// into a RestaurantRef.
var ErrInvalidRestaurantRef = errors.New("invalid restaurant reference")

type refKind uint8

const (
	refNone refKind = iota
	refInternal
	refExternal
)

// RestaurantRef identifies a restaurant in one of two unrelated namespaces:
// the operator-curated catalog (Internal, integer keyed) or a third-party
// search provider (External, string keyed). Exactly one of the two is set.
//
// The boundary encoding is "<id>" for internal refs and "api_<sourceId>" for
// external refs. Code past the boundary switches on IsInternal/IsExternal and
// never inspects the encoded string.
type RestaurantRef struct {
	kind     refKind
	id       int64
	sourceID string
}

// Internal returns a reference to a catalog restaurant.
func Internal(id int64) RestaurantRef {
	return RestaurantRef{kind: refInternal, id: id}
}

// External returns a reference to a provider-sourced restaurant.
func External(sourceID string) RestaurantRef {
	return RestaurantRef{kind: refExternal, sourceID: sourceID}
}

// ParseRestaurantRef decodes the boundary form. Internal ids must be positive
// integers; external source ids must be non-empty.
func ParseRestaurantRef(s string) (RestaurantRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return RestaurantRef{}, ErrInvalidRestaurantRef
	}
	if src, ok := strings.CutPrefix(s, externalPrefix); ok {
		if strings.TrimSpace(src) == "" {
			return RestaurantRef{}, fmt.Errorf("%w: empty source id", ErrInvalidRestaurantRef)
		}
		return External(src), nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return RestaurantRef{}, fmt.Errorf("%w: %q", ErrInvalidRestaurantRef, s)
	}
	return Internal(id), nil
}

// MustParseRestaurantRef is ParseRestaurantRef for literals known to be valid.
func MustParseRestaurantRef(s string) RestaurantRef {
	r, err := ParseRestaurantRef(s)
	if err != nil {
		panic(err)
	}
	return r
}

func (r RestaurantRef) IsZero() bool     { return r.kind == refNone }
func (r RestaurantRef) IsInternal() bool { return r.kind == refInternal }
func (r RestaurantRef) IsExternal() bool { return r.kind == refExternal }

// InternalID returns the catalog id and true for internal refs.
func (r RestaurantRef) InternalID() (int64, bool) {
	return r.id, r.kind == refInternal
}

// SourceID returns the provider id and true for external refs.
func (r RestaurantRef) SourceID() (string, bool) {
	return r.sourceID, r.kind == refExternal
}

// String returns the canonical boundary encoding, or "" for the zero value.
func (r RestaurantRef) String() string {
	switch r.kind {
	case refInternal:
		return strconv.FormatInt(r.id, 10)
	case refExternal:
		return externalPrefix + r.sourceID
	default:
		return ""
	}
}

// GormDataType stores refs as their string form.
func (RestaurantRef) GormDataType() string { return "string" }

// Value implements driver.Valuer. The zero ref is stored as NULL.
func (r RestaurantRef) Value() (driver.Value, error) {
	if r.IsZero() {
		return nil, nil
	}
	return r.String(), nil
}

// Scan implements sql.Scanner.
func (r *RestaurantRef) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case nil:
		*r = RestaurantRef{}
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	default:
		return fmt.Errorf("%w: unsupported scan type %T", ErrInvalidRestaurantRef, src)
	}
	parsed, err := ParseRestaurantRef(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler so refs serialise as their
// boundary form in JSON payloads and cache entries.
func (r RestaurantRef) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RestaurantRef) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*r = RestaurantRef{}
		return nil
	}
	parsed, err := ParseRestaurantRef(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
