package pkgfile

import (
	"encoding/hex"
	"strconv"
	"strings"

	apperrors "github.com/package-linker/pkg/errors"
)

// NoneName is the reserved empty name.
const NoneName = "None"

// GUID is a 16-byte identifier.
type GUID [16]byte

// String renders the GUID as 32 hex digits.
func (g GUID) String() string {
	return hex.EncodeToString(g[:])
}

// IsZero reports whether every byte is zero.
func (g GUID) IsZero() bool {
	return g == GUID{}
}

// ParseGUID parses 32 hex digits.
func ParseGUID(s string) (GUID, error) {
	var g GUID
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != len(g) {
		return g, apperrors.Newf(apperrors.CodeInvalidInput, "invalid guid %q", s)
	}
	copy(g[:], raw)
	return g, nil
}

// Text is a stored string together with its on-disk width. Terminated
// marks an empty narrow string stored as a lone terminator rather than as
// a zero length.
type Text struct {
	Value      string
	Wide       bool
	Terminated bool
}

// NameRef is an on-disk name reference. A non-zero Number is the instance
// suffix plus one.
type NameRef struct {
	Index  int32
	Number int32
}

// NameTable resolves name references.
type NameTable []Text

// Resolve returns the string for ref, failing on an out-of-range index.
func (t NameTable) Resolve(ref NameRef) (string, error) {
	if ref.Index < 0 || int(ref.Index) >= len(t) {
		return "", apperrors.Newf(apperrors.CodeFormat, "name index %d out of range (%d names)", ref.Index, len(t))
	}
	if ref.Number < 0 {
		return "", apperrors.Newf(apperrors.CodeFormat, "negative name number %d", ref.Number)
	}
	base := t[ref.Index].Value
	if ref.Number == 0 {
		return base, nil
	}
	return base + "_" + strconv.Itoa(int(ref.Number-1)), nil
}

// NameIndexer builds a name table while mapping strings to references.
type NameIndexer struct {
	table NameTable
	index map[string]int32
}

// NewNameIndexer starts from an existing table, keeping its order.
func NewNameIndexer(existing NameTable) *NameIndexer {
	ni := &NameIndexer{index: make(map[string]int32, len(existing))}
	for _, t := range existing {
		key := strings.ToLower(t.Value)
		if _, ok := ni.index[key]; !ok {
			ni.index[key] = int32(len(ni.table))
		}
		ni.table = append(ni.table, t)
	}
	return ni
}

func (ni *NameIndexer) add(t Text) int32 {
	key := strings.ToLower(t.Value)
	if idx, ok := ni.index[key]; ok {
		return idx
	}
	idx := int32(len(ni.table))
	ni.table = append(ni.table, t)
	ni.index[key] = idx
	return idx
}

// Ref returns the reference for s, adding names as needed. A trailing
// "_N" suffix is encoded as an instance number when the base is known or
// the suffix has no leading zero.
func (ni *NameIndexer) Ref(s string) NameRef {
	if idx, ok := ni.index[strings.ToLower(s)]; ok {
		return NameRef{Index: idx}
	}
	if base, num, ok := splitNumber(s); ok {
		return NameRef{Index: ni.add(Text{Value: base}), Number: num + 1}
	}
	return NameRef{Index: ni.add(Text{Value: s})}
}

// Table returns the accumulated name table.
func (ni *NameIndexer) Table() NameTable {
	return ni.table
}

func splitNumber(s string) (string, int32, bool) {
	i := strings.LastIndexByte(s, '_')
	if i <= 0 || i == len(s)-1 {
		return "", 0, false
	}
	digits := s[i+1:]
	if len(digits) > 1 && digits[0] == '0' {
		return "", 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 32)
	if err != nil || n < 0 || n >= 1<<31-1 {
		return "", 0, false
	}
	return s[:i], int32(n), true
}
