package storage

import (
	"cmp"
	"strings"
	"time"
)

// incomparable is returned by CompareValues for NULLs and type mismatches.
const incomparable = -2

// CompareValues returns -1, 0, or 1 for ordering, or -2 if the values
// are not comparable (NULL or a type mismatch). INTEGER and FLOAT values
// compare numerically with each other.
func CompareValues(a, b any) int {
	if a == nil || b == nil {
		return incomparable
	}
	switch av := a.(type) {
	case int64:
		switch bv := b.(type) {
		case int64:
			return cmp.Compare(av, bv)
		case float64:
			return cmp.Compare(float64(av), bv)
		}
	case float64:
		switch bv := b.(type) {
		case float64:
			return cmp.Compare(av, bv)
		case int64:
			return cmp.Compare(av, float64(bv))
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	}
	return incomparable
}

// typeRank orders values of different types so that index keys always
// have a total order, even if a snapshot hands back mixed types.
func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int64, float64:
		return 2
	case string:
		return 3
	case time.Time:
		return 4
	case keyBound:
		return 5
	default:
		return 6
	}
}

// orderValues is CompareValues made total: incomparable values fall
// back to their type rank.
func orderValues(a, b any) int {
	if c := CompareValues(a, b); c != incomparable {
		return c
	}
	return cmp.Compare(typeRank(a), typeRank(b))
}

// indexKey is the key stored in a field index. Rows sharing a field value
// are told apart by their primary key, so every tree key is unique and
// each bucket holds exactly one locator.
type indexKey struct {
	Value any
	PK    any
}

// keyBound stands in for a primary key when searching a range of index
// keys: minPK sorts before every real key with the same value, maxPK after.
type keyBound int8

const (
	minPK keyBound = -1
	maxPK keyBound = 1
)

// compareIndexKeys is the index.Compare used by every field index.
func compareIndexKeys(a, b any) int {
	ak, bk := a.(indexKey), b.(indexKey)
	if c := orderValues(ak.Value, bk.Value); c != 0 {
		return c
	}
	return comparePK(ak.PK, bk.PK)
}

func comparePK(a, b any) int {
	ab, aok := a.(keyBound)
	bb, bok := b.(keyBound)
	switch {
	case aok && bok:
		return cmp.Compare(ab, bb)
	case aok:
		return int(ab)
	case bok:
		return -int(bb)
	}
	return orderValues(a, b)
}
