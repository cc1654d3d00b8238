// Package related picks the "more like this" entries shown next to a detail
// view.
package related

import (
	"strings"

	"nammakumta/directory/internal/domain"
)

// DefaultLimit is used when the caller passes a non-positive limit.
const DefaultLimit = 8

// Item is an entity that can be compared on a grouping field. ItemID must be
// safe to call on a nil receiver and return "" in that case.
type Item interface {
	ItemID() string
	GroupRef(field domain.GroupField) domain.Ref
}

// ResolveGroupKey returns the normalized grouping key of item for field.
// Nested references and raw ids normalize to the same string.
func ResolveGroupKey(item Item, field domain.GroupField) string {
	if item == nil {
		return ""
	}
	return strings.TrimSpace(item.GroupRef(field).Key())
}

// Select returns up to limit items related to current, in pool order.
// Items sharing current's group are preferred; when none exist every other
// item qualifies. A missing current item yields no results.
func Select[T Item](current T, pool []T, field domain.GroupField, limit int) []T {
	if limit <= 0 {
		limit = DefaultLimit
	}

	currentID := itemID(current)
	if currentID == "" {
		return []T{}
	}
	currentKey := ResolveGroupKey(current, field)

	sameGroup := make([]T, 0, limit)
	others := make([]T, 0, limit)
	for _, candidate := range pool {
		id := itemID(candidate)
		if id == "" || id == currentID {
			continue
		}
		if currentKey != "" && len(sameGroup) < limit && ResolveGroupKey(candidate, field) == currentKey {
			sameGroup = append(sameGroup, candidate)
		}
		if len(others) < limit {
			others = append(others, candidate)
		}
	}

	if len(sameGroup) > 0 {
		return sameGroup
	}
	return others
}

func itemID(item Item) string {
	if item == nil {
		return ""
	}
	return strings.TrimSpace(item.ItemID())
}
