// Package oid implements dotted-OID normalization and the index codec:
// converting typed index values into OID path components and instance
// strings. Everything here is pure and total; malformed inputs map to
// documented fallback encodings rather than errors.
package oid

import (
	"strconv"
	"strings"

	"github.com/simwire/mibstate/schema"
)

// Kind is the closed family a declared type tag resolves to for index
// encoding purposes.
type Kind int

const (
	// KindUnknown covers tags outside the closed enumeration.
	KindUnknown Kind = iota

	// KindInteger covers the integer family of tags.
	KindInteger

	// KindIPAddress covers IpAddress.
	KindIPAddress

	// KindOctets covers octet and display string tags.
	KindOctets
)

// KindOf resolves a declared type tag to its encoding family.
func KindOf(tag string) Kind {
	switch tag {
	case "Integer", "Integer32", "Unsigned32", "Gauge32", "Counter32", "Counter64", "TimeTicks":
		return KindInteger
	case "IpAddress":
		return KindIPAddress
	case "OctetString", "DisplayString", "PhysAddress":
		return KindOctets
	default:
		return KindUnknown
	}
}

// Normalize collapses whitespace and repeated, leading or trailing dots in
// a dotted OID string. Legacy state files contain sloppy keys.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, " ", "")
	for strings.Contains(s, "..") {
		s = strings.ReplaceAll(s, "..", ".")
	}
	return strings.Trim(s, ".")
}

// Parse converts a dotted OID string into its integer parts.
func Parse(s string) ([]int, bool) {
	s = Normalize(s)
	if s == "" {
		return nil, false
	}
	fields := strings.Split(s, ".")
	out := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

// Format renders integer OID parts in dotted form.
func Format(parts []int) string {
	strs := make([]string, len(parts))
	for i, p := range parts {
		strs[i] = strconv.Itoa(p)
	}
	return strings.Join(strs, ".")
}

// Components expands one index value into its OID path components according
// to the declared type tag. The expansion is total: unencodable values fall
// back to a neutral encoding (0 for integers, 0.0.0.0 for addresses,
// per-character ordinals for everything string-like).
func Components(v schema.Value, tag string) []int {
	switch KindOf(tag) {
	case KindInteger:
		if n, ok := v.CoerceInt(); ok {
			return []int{int(n)}
		}
		return []int{0}

	case KindIPAddress:
		if parts, ok := ipParts(v); ok {
			return parts
		}
		return []int{0, 0, 0, 0}

	case KindOctets:
		return octetComponents(v)

	default:
		if n, ok := v.CoerceInt(); ok {
			return []int{int(n)}
		}
		if s := v.String(); s != "" {
			return runeComponents(s)
		}
		return []int{0}
	}
}

// DisplayPart renders one index value as its contribution to the instance
// string. IpAddress values expand to four dotted parts; everything else
// keeps its plain string form.
func DisplayPart(v schema.Value, tag string) string {
	if KindOf(tag) != KindIPAddress {
		return v.String()
	}
	if parts, ok := ipParts(v); ok {
		return Format(parts)
	}
	return "0.0.0.0"
}

// InstanceString builds the instance identifier from the index values in
// declared column order. tagOf maps a column name to its declared type tag.
// Tables without index columns use the fixed instance "1".
func InstanceString(columns []string, tagOf func(string) string, values map[string]schema.Value) string {
	if len(columns) == 0 {
		return "1"
	}
	parts := make([]string, 0, len(columns))
	for _, col := range columns {
		part := DisplayPart(values[col], tagOf(col))
		if part == "" {
			continue
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ".")
}

// ipParts decodes an IpAddress value: a valid dotted quad string or a
// four-byte payload.
func ipParts(v schema.Value) ([]int, bool) {
	if b, ok := v.Bytes(); ok {
		if len(b) != 4 {
			return nil, false
		}
		out := make([]int, 4)
		for i, octet := range b {
			out[i] = int(octet)
		}
		return out, true
	}

	fields := strings.Split(v.String(), ".")
	if len(fields) != 4 {
		return nil, false
	}
	out := make([]int, 4)
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n < 0 || n > 255 {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}

// octetComponents encodes octet-family values: byte payloads per byte,
// text per character ordinal, integers as a single component and empty
// values as no components at all.
func octetComponents(v schema.Value) []int {
	if b, ok := v.Bytes(); ok {
		out := make([]int, len(b))
		for i, octet := range b {
			out[i] = int(octet)
		}
		return out
	}
	if n, ok := v.Int(); ok {
		return []int{int(n)}
	}
	s := v.String()
	if s == "" {
		return nil
	}
	return runeComponents(s)
}

func runeComponents(s string) []int {
	out := make([]int, 0, len(s))
	for _, r := range s {
		out = append(out, int(r))
	}
	return out
}
