package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"
)

// ErrMetaConversion is returned when a meta value cannot be read as the
// requested kind.
var ErrMetaConversion = errors.New("meta value conversion failed")

// MetaKind tags the variant held by a MetaValue.
type MetaKind uint8

const (
	MetaString MetaKind = iota
	MetaInteger
	MetaTimestamp
)

func (k MetaKind) String() string {
	switch k {
	case MetaInteger:
		return "integer"
	case MetaTimestamp:
		return "timestamp"
	}
	return "string"
}

// MetaValue is a WordPress meta value. Rows arrive as strings; callers
// convert them with ParseInteger or ParseTimestamp depending on what the
// key is known to hold.
type MetaValue struct {
	kind MetaKind
	raw  string
	n    int64
	ts   time.Time
	null bool
}

// MetaFromNull builds a string MetaValue from a nullable column.
func MetaFromNull(v null.String) MetaValue {
	return MetaValue{kind: MetaString, raw: v.String, null: !v.Valid}
}

// StringMeta builds a string MetaValue.
func StringMeta(s string) MetaValue { return MetaValue{kind: MetaString, raw: s} }

func (m MetaValue) Kind() MetaKind { return m.kind }
func (m MetaValue) IsNull() bool   { return m.null }
func (m MetaValue) String() string { return m.raw }

// Int returns the integer held by an Integer value.
func (m MetaValue) Int() (int64, bool) { return m.n, m.kind == MetaInteger }

// Time returns the instant held by a Timestamp value.
func (m MetaValue) Time() (time.Time, bool) { return m.ts, m.kind == MetaTimestamp }

// ParseInteger converts the value to an Integer variant.
func (m MetaValue) ParseInteger() (MetaValue, error) {
	if m.kind == MetaInteger {
		return m, nil
	}
	if m.null {
		return m, fmt.Errorf("%w: null value", ErrMetaConversion)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(m.raw), 10, 64)
	if err != nil {
		return m, fmt.Errorf("%w: %q is not an integer", ErrMetaConversion, m.raw)
	}
	return MetaValue{kind: MetaInteger, raw: m.raw, n: n}, nil
}

// ParseTimestamp converts a value holding Unix seconds to a Timestamp
// variant. Negative values are rejected.
func (m MetaValue) ParseTimestamp() (MetaValue, error) {
	if m.kind == MetaTimestamp {
		return m, nil
	}
	iv, err := m.ParseInteger()
	if err != nil {
		return m, err
	}
	if iv.n < 0 {
		return m, fmt.Errorf("%w: negative timestamp %d", ErrMetaConversion, iv.n)
	}
	return MetaValue{kind: MetaTimestamp, raw: m.raw, n: iv.n, ts: time.Unix(iv.n, 0).UTC()}, nil
}
