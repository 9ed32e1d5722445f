// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package browser

import (
	"strings"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/rs/zerolog/log"
)

// FilterOptions compose via logical AND; zero values impose no constraint.
type FilterOptions struct {
	Search             string     `json:"search,omitempty"`
	ShowOnlyPlayable   bool       `json:"showOnlyPlayable,omitempty"`
	ShowOnlyDownloaded bool       `json:"showOnlyDownloaded,omitempty"`
	Statuses           []string   `json:"statuses,omitempty"`
	FileTypes          []string   `json:"fileTypes,omitempty"`
	ModifiedAfter      *time.Time `json:"modifiedAfter,omitempty"`
	ModifiedBefore     *time.Time `json:"modifiedBefore,omitempty"`
	MinSize            *int64     `json:"minSize,omitempty"`
	MaxSize            *int64     `json:"maxSize,omitempty"`
	Expr               string     `json:"expr,omitempty"`
}

// Compiled expression filters are shared across sessions.
var exprCache = ttlcache.New(ttlcache.Options[string, *vm.Program]{}.SetDefaultTTL(5 * time.Minute))

// exprEnv is the expression-filter environment presented per item.
type exprEnv struct {
	Kind     string    `expr:"kind"`
	Name     string    `expr:"name"`
	Size     int64     `expr:"size"`
	Modified time.Time `expr:"modified"`
	Status   string    `expr:"status"`
	Progress float64   `expr:"progress"`
	Playable bool      `expr:"playable"`
	MimeType string    `expr:"mimeType"`
}

// Filter returns the order-preserving subsequence of items matching the
// options. Folders pass every variant-specific filter; only the search
// query, the range filters and the expression filter apply uniformly.
func Filter(items []FileItem, opts FilterOptions) []FileItem {
	program := compileExprFilter(opts.Expr)

	statusSet := toLowerSet(opts.Statuses)
	typeSet := toLowerSet(opts.FileTypes)

	filtered := make([]FileItem, 0, len(items))
	for _, item := range items {
		if !matchesSearch(item, opts.Search) {
			continue
		}
		if !matchesRanges(item, opts) {
			continue
		}
		if !matchesVariant(item, opts, statusSet, typeSet) {
			continue
		}
		if program != nil && !matchesExpr(item, program) {
			continue
		}
		filtered = append(filtered, item)
	}

	return filtered
}

func matchesVariant(item FileItem, opts FilterOptions, statusSet, typeSet map[string]struct{}) bool {
	switch v := item.(type) {
	case Folder:
		// Structural nodes are never hidden by variant filters.
		return true
	case Torrent:
		if opts.ShowOnlyDownloaded && v.Status != TorrentDownloaded {
			return false
		}
		if opts.ShowOnlyPlayable && len(v.Files) > 0 && !anyChildPlayable(v) {
			return false
		}
		return true
	case File:
		if opts.ShowOnlyPlayable && !v.Playable {
			return false
		}
		if len(statusSet) > 0 {
			if _, ok := statusSet[v.Status.String()]; !ok {
				return false
			}
		}
		if len(typeSet) > 0 {
			if _, ok := typeSet[string(CategoryOf(v.Name))]; !ok {
				return false
			}
		}
		return true
	}
	panic("browser: unhandled FileItem variant")
}

func anyChildPlayable(torrent Torrent) bool {
	for _, file := range torrent.Files {
		if file.Playable {
			return true
		}
	}
	return false
}

func matchesRanges(item FileItem, opts FilterOptions) bool {
	if opts.ModifiedAfter != nil && item.ItemModified().Before(*opts.ModifiedAfter) {
		return false
	}
	if opts.ModifiedBefore != nil && item.ItemModified().After(*opts.ModifiedBefore) {
		return false
	}
	if opts.MinSize != nil && item.ItemSize() < *opts.MinSize {
		return false
	}
	if opts.MaxSize != nil && item.ItemSize() > *opts.MaxSize {
		return false
	}
	return true
}

// matchesSearch checks the name with escalating tolerance: exact
// substring first, then separator-normalized, then a strict fuzzy match.
func matchesSearch(item FileItem, search string) bool {
	if search == "" {
		return true
	}

	nameLower := strings.ToLower(item.ItemName())
	searchLower := strings.ToLower(search)
	if strings.Contains(nameLower, searchLower) {
		return true
	}

	nameNormalized := normalizeForSearch(item.ItemName())
	searchNormalized := normalizeForSearch(search)
	if strings.Contains(nameNormalized, searchNormalized) {
		return true
	}

	if words := strings.Fields(searchNormalized); len(words) > 1 {
		allFound := true
		for _, word := range words {
			if !strings.Contains(nameNormalized, word) {
				allFound = false
				break
			}
		}
		if allFound {
			return true
		}
	}

	if fuzzy.MatchNormalizedFold(searchNormalized, nameNormalized) {
		// Only accept close fuzzy matches to avoid random letter runs.
		return fuzzy.RankMatchNormalizedFold(searchNormalized, nameNormalized) < 10
	}

	return false
}

func normalizeForSearch(text string) string {
	replacers := []string{".", "_", "-", "[", "]", "(", ")", "{", "}"}
	normalized := strings.ToLower(text)
	for _, r := range replacers {
		normalized = strings.ReplaceAll(normalized, r, " ")
	}
	return strings.Join(strings.Fields(normalized), " ")
}

func compileExprFilter(source string) *vm.Program {
	if source == "" {
		return nil
	}

	if program, ok := exprCache.Get(source); ok {
		return program
	}

	program, err := expr.Compile(source, expr.Env(exprEnv{}), expr.AsBool())
	if err != nil {
		log.Warn().Err(err).Str("expr", source).Msg("Failed to compile filter expression, ignoring")
		return nil
	}

	if ok := exprCache.Set(source, program, 5*time.Minute); !ok {
		log.Warn().Str("expr", source).Msg("Failed to cache filter expression")
	}

	return program
}

func matchesExpr(item FileItem, program *vm.Program) bool {
	result, err := expr.Run(program, envFor(item))
	if err != nil {
		log.Debug().Err(err).Str("id", item.ItemID()).Msg("Filter expression failed for item")
		return false
	}
	matched, ok := result.(bool)
	return ok && matched
}

func envFor(item FileItem) exprEnv {
	env := exprEnv{
		Name:     item.ItemName(),
		Size:     item.ItemSize(),
		Modified: item.ItemModified(),
	}

	switch v := item.(type) {
	case Folder:
		env.Kind = "folder"
	case Torrent:
		env.Kind = "torrent"
		env.Status = v.Status.String()
		env.Progress = v.Progress
		env.Playable = anyChildPlayable(v)
	case File:
		env.Kind = "file"
		env.Status = v.Status.String()
		env.Playable = v.Playable
		env.MimeType = v.MimeType
		if v.Progress != nil {
			env.Progress = *v.Progress
		}
	}

	return env
}

func toLowerSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		set[value] = struct{}{}
	}
	return set
}
