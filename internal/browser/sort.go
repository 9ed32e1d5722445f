// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package browser

import (
	"cmp"
	"slices"
	"strings"
)

// SortField selects the primary sort key.
type SortField string

const (
	SortByName   SortField = "name"
	SortBySize   SortField = "size"
	SortByDate   SortField = "date"
	SortByType   SortField = "type"
	SortByStatus SortField = "status"
)

// SortOrder selects the direction applied to the comparator as a whole,
// including the type-precedence tiebreak.
type SortOrder string

const (
	OrderAscending  SortOrder = "asc"
	OrderDescending SortOrder = "desc"
)

// SortingOptions describe a requested ordering.
type SortingOptions struct {
	Field SortField `json:"field"`
	Order SortOrder `json:"order"`
}

// typeRank orders variants Folder < Torrent < File. Descending sorts
// reverse this grouping along with the primary key.
func typeRank(item FileItem) int {
	switch item.(type) {
	case Folder:
		return 0
	case Torrent:
		return 1
	case File:
		return 2
	}
	panic("browser: unhandled FileItem variant")
}

// statusOrdinal maps each variant onto its own status enum ordinal;
// Folders sort as ordinal 0.
func statusOrdinal(item FileItem) int {
	switch v := item.(type) {
	case Folder:
		return 0
	case Torrent:
		return int(v.Status)
	case File:
		return int(v.Status)
	}
	panic("browser: unhandled FileItem variant")
}

// Sort returns a new slice ordered by the requested options. The
// comparator is total: ties fall through to the variant grouping and
// finally the item ID, so re-applying the sort is a no-op.
func Sort(items []FileItem, opts SortingOptions) []FileItem {
	sorted := make([]FileItem, len(items))
	copy(sorted, items)

	slices.SortStableFunc(sorted, func(a, b FileItem) int {
		result := compareItems(a, b, opts.Field)
		if opts.Order == OrderDescending {
			return -result
		}
		return result
	})

	return sorted
}

func compareItems(a, b FileItem, field SortField) int {
	if primary := comparePrimary(a, b, field); primary != 0 {
		return primary
	}

	if field != SortByType {
		if byType := cmp.Compare(typeRank(a), typeRank(b)); byType != 0 {
			return byType
		}
	}

	return strings.Compare(a.ItemID(), b.ItemID())
}

func comparePrimary(a, b FileItem, field SortField) int {
	switch field {
	case SortByName:
		nameA := strings.ToLower(a.ItemName())
		nameB := strings.ToLower(b.ItemName())
		if result := strings.Compare(nameA, nameB); result != 0 {
			return result
		}
		// Original case as a secondary tiebreaker keeps ordering deterministic.
		return strings.Compare(a.ItemName(), b.ItemName())
	case SortBySize:
		return cmp.Compare(a.ItemSize(), b.ItemSize())
	case SortByDate:
		return a.ItemModified().Compare(b.ItemModified())
	case SortByType:
		return cmp.Compare(typeRank(a), typeRank(b))
	case SortByStatus:
		return cmp.Compare(statusOrdinal(a), statusOrdinal(b))
	}
	return 0
}
