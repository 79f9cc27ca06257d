package reconcile

import (
	"sort"
	"strings"

	"github.com/mmdatafocus/taxsales_validator/models"
)

// NormalizeKey is the join form of an authorization code.
func NormalizeKey(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// FilterByModality keeps the rows whose decoded modality equals modality.
// Rows that could not be decoded have no modality and are excluded.
func FilterByModality(rows []models.InvoiceRecord, modality string) (kept, excluded []models.InvoiceRecord) {
	modality = strings.TrimSpace(modality)
	kept = make([]models.InvoiceRecord, 0, len(rows))
	for _, r := range rows {
		if r.Modality() == modality {
			kept = append(kept, r)
		} else {
			excluded = append(excluded, r)
		}
	}
	return kept, excluded
}

type Joined[S, R any] struct {
	Key       string
	Source    S
	Reference R
}

// KeyJoin is the set join of two keyed datasets. Every slice is ordered by key.
type KeyJoin[S, R any] struct {
	Matched            []Joined[S, R]
	OnlySource         []S
	OnlyReference      []R
	DuplicateSource    int
	DuplicateReference int
}

// JoinKeys splits the key space of source and reference into S∩R, S−R and R−S.
// The first row wins when a key repeats inside one dataset.
func JoinKeys[S, R any](source []S, sourceKey func(S) string, reference []R, referenceKey func(R) string) KeyJoin[S, R] {
	var join KeyJoin[S, R]

	srcByKey := make(map[string]S, len(source))
	srcKeys := make([]string, 0, len(source))
	for _, s := range source {
		k := sourceKey(s)
		if _, dup := srcByKey[k]; dup {
			join.DuplicateSource++
			continue
		}
		srcByKey[k] = s
		srcKeys = append(srcKeys, k)
	}

	refByKey := make(map[string]R, len(reference))
	refKeys := make([]string, 0, len(reference))
	for _, r := range reference {
		k := referenceKey(r)
		if _, dup := refByKey[k]; dup {
			join.DuplicateReference++
			continue
		}
		refByKey[k] = r
		refKeys = append(refKeys, k)
	}

	sort.Strings(srcKeys)
	sort.Strings(refKeys)

	for _, k := range srcKeys {
		if r, ok := refByKey[k]; ok {
			join.Matched = append(join.Matched, Joined[S, R]{Key: k, Source: srcByKey[k], Reference: r})
			continue
		}
		join.OnlySource = append(join.OnlySource, srcByKey[k])
	}
	for _, k := range refKeys {
		if _, ok := srcByKey[k]; !ok {
			join.OnlyReference = append(join.OnlyReference, refByKey[k])
		}
	}
	return join
}

// Match is the outcome of MatchByKey.
type Match struct {
	Pairs              []Pair
	OnlySource         []models.InvoiceRecord
	OnlyReference      []models.InventoryRecord
	DuplicateSource    int
	DuplicateReference int
}

// MatchByKey joins tax report rows and inventory rows on the authorization code.
// Returned pairs are not classified yet.
func MatchByKey(source []models.InvoiceRecord, reference []models.InventoryRecord) Match {
	join := JoinKeys(source,
		func(r models.InvoiceRecord) string { return NormalizeKey(r.AuthorizationCode) },
		reference,
		func(r models.InventoryRecord) string { return NormalizeKey(r.AuthorizationCode) },
	)

	pairs := make([]Pair, len(join.Matched))
	for i, j := range join.Matched {
		pairs[i] = Pair{Key: j.Key, Source: j.Source, Reference: j.Reference}
	}
	return Match{
		Pairs:              pairs,
		OnlySource:         join.OnlySource,
		OnlyReference:      join.OnlyReference,
		DuplicateSource:    join.DuplicateSource,
		DuplicateReference: join.DuplicateReference,
	}
}
