// Package identity holds the per-entity "is this the same real-world
// entity" heuristics (C6), expressed as data tables per §9's design note
// rather than branches, so a new entity adds a row.
package identity

import (
	"context"
	"math"
	"strings"
	"time"
)

// Comparator scores how well two field values match, in [0,1].
type Comparator func(a, b any) float64

// FieldRule is one comparable field in an entity's heuristic table.
type FieldRule struct {
	Field      string
	Comparator Comparator
}

// PasswordVerifier is the narrow hook into AuthStore.VerifyPasswordHash
// that the User heuristic's password-match primary criterion needs. It
// must never be used to authenticate a request — only to decide
// same-entity-ness (§9).
type PasswordVerifier func(ctx context.Context, uid, plaintext string) (bool, error)

// Spec is one entity's heuristic table.
type Spec struct {
	Fields           []FieldRule
	Threshold        float64
	PrimaryCriterion func(ctx context.Context, client, server map[string]any, verify PasswordVerifier) bool
}

func lowerTrim(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func nameContainment(a, b any) float64 {
	as, bs := lowerTrim(asString(a)), lowerTrim(asString(b))
	if as == "" || bs == "" {
		return 0
	}
	if as == bs || strings.Contains(as, bs) || strings.Contains(bs, as) {
		return 1
	}
	return 0
}

func exactMatch(a, b any) float64 {
	if a == nil || b == nil {
		return 0
	}
	if asNumericEqual(a, b) {
		return 1
	}
	if asString(a) != "" && lowerTrim(asString(a)) == lowerTrim(asString(b)) {
		return 1
	}
	return 0
}

func asNumericEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return aok && bok && af == bf
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func caseInsensitiveExact(a, b any) float64 {
	as, bs := asString(a), asString(b)
	if as == "" || bs == "" {
		return 0
	}
	if strings.EqualFold(as, bs) {
		return 1
	}
	return 0
}

func phoneLast10(a, b any) float64 {
	digits := func(s string) string {
		var out strings.Builder
		for _, r := range s {
			if r >= '0' && r <= '9' {
				out.WriteRune(r)
			}
		}
		return out.String()
	}
	as, bs := digits(asString(a)), digits(asString(b))
	if len(as) < 10 || len(bs) < 10 {
		return 0
	}
	if as[len(as)-10:] == bs[len(bs)-10:] {
		return 1
	}
	return 0
}

func ageWithin1(a, b any) float64 {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return 0
	}
	if math.Abs(af-bf) <= 1 {
		return 1
	}
	return 0
}

func coordsWithin(tolerance float64) Comparator {
	return func(a, b any) float64 {
		af, aok := toFloat(a)
		bf, bok := toFloat(b)
		if !aok || !bok {
			return 0
		}
		if math.Abs(af-bf) <= tolerance {
			return 1
		}
		return 0
	}
}

func sameDay(a, b any) float64 {
	at, aok := a.(time.Time)
	bt, bok := b.(time.Time)
	if !aok || !bok {
		return 0
	}
	ay, am, ad := at.Date()
	by, bm, bd := bt.Date()
	if ay == by && am == bm && ad == bd {
		return 1
	}
	return 0
}

var specs = map[string]Spec{
	"user": {
		Threshold: 0.8,
		Fields: []FieldRule{
			{"name", nameContainment},
			{"role", caseInsensitiveExact},
			{"email", caseInsensitiveExact},
			{"phone_number", phoneLast10},
		},
		PrimaryCriterion: func(ctx context.Context, client, server map[string]any, verify PasswordVerifier) bool {
			if cid, sid := asString(client["user_id"]), asString(server["user_id"]); cid != "" && cid == sid {
				return true
			}
			pw := asString(client["password"])
			uid := asString(server["user_id"])
			if pw == "" || uid == "" || verify == nil {
				return false
			}
			ok, _ := verify(ctx, uid, pw)
			return ok
		},
	},
	"registration": {
		Threshold: 0.8,
		Fields: []FieldRule{
			{"person_name", nameContainment},
			{"age", ageWithin1},
			{"gender", caseInsensitiveExact},
			{"contact", exactMatch},
			{"location_id", exactMatch},
		},
		PrimaryCriterion: func(_ context.Context, client, server map[string]any, _ PasswordVerifier) bool {
			nameMatch := nameContainment(client["person_name"], server["person_name"]) == 1
			genderMatch := caseInsensitiveExact(client["gender"], server["gender"]) == 1
			if !nameMatch || !genderMatch {
				return false
			}
			corroborating := []FieldRule{
				{"age", ageWithin1},
				{"contact", exactMatch},
				{"location_id", exactMatch},
			}
			matches := 0
			for _, f := range corroborating {
				if f.Comparator(client[f.Field], server[f.Field]) == 1 {
					matches++
				}
			}
			return matches >= 2
		},
	},
	"location": {
		Threshold: 0.8,
		Fields: []FieldRule{
			{"name", nameContainment},
			{"address", nameContainment},
			{"type", exactMatch},
			{"latitude", coordsWithin(0.001)},
			{"longitude", coordsWithin(0.001)},
		},
		PrimaryCriterion: func(_ context.Context, client, server map[string]any, _ PasswordVerifier) bool {
			if nameContainment(client["name"], server["name"]) != 1 {
				return false
			}
			if nameContainment(client["address"], server["address"]) == 1 {
				return true
			}
			criticals := []FieldRule{
				{"name", nameContainment},
				{"address", nameContainment},
				{"type", exactMatch},
				{"latitude", coordsWithin(0.001)},
				{"longitude", coordsWithin(0.001)},
			}
			matches := 0
			for _, f := range criticals {
				if f.Comparator(client[f.Field], server[f.Field]) == 1 {
					matches++
				}
			}
			return matches >= 2
		},
	},
	"task": {
		Threshold: 0.8,
		Fields: []FieldRule{
			{"title", nameContainment},
			{"location_id", exactMatch},
			{"created_by", exactMatch},
			{"due_date", exactMatch},
			{"priority", exactMatch},
		},
		PrimaryCriterion: func(_ context.Context, client, server map[string]any, _ PasswordVerifier) bool {
			if nameContainment(client["title"], server["title"]) != 1 {
				return false
			}
			criticals := []FieldRule{
				{"location_id", exactMatch},
				{"created_by", exactMatch},
				{"due_date", exactMatch},
				{"priority", exactMatch},
			}
			matches := 0
			for _, f := range criticals {
				if f.Comparator(client[f.Field], server[f.Field]) == 1 {
					matches++
				}
			}
			return matches >= 2
		},
	},
	"task-assignment": {
		Threshold: 0.8,
		Fields: []FieldRule{
			{"task_id", exactMatch},
			{"user_id", exactMatch},
			{"assigned_by", exactMatch},
			{"assigned_at", sameDay},
			{"status", exactMatch},
		},
		PrimaryCriterion: func(_ context.Context, client, server map[string]any, _ PasswordVerifier) bool {
			return exactMatch(client["task_id"], server["task_id"]) == 1 && exactMatch(client["user_id"], server["user_id"]) == 1
		},
	},
	"supply": {
		Threshold: 0.8,
		Fields: []FieldRule{
			{"item_name", nameContainment},
			{"barcode", exactMatch},
			{"sku", exactMatch},
			{"category", exactMatch},
			{"unit", exactMatch},
			{"location_id", exactMatch},
		},
		PrimaryCriterion: func(_ context.Context, client, server map[string]any, _ PasswordVerifier) bool {
			barcode := asString(client["barcode"])
			sku := asString(client["sku"])
			if barcode != "" && exactMatch(client["barcode"], server["barcode"]) == 1 {
				return true
			}
			if sku != "" && exactMatch(client["sku"], server["sku"]) == 1 {
				return true
			}
			return false
		},
	},
}

// IsSameEntity implements §4.6: true when the primary criterion holds, or
// the comparable-field match ratio reaches the threshold. Alert and
// Notification have no row and are never auto-merged.
func IsSameEntity(ctx context.Context, entity string, client, server map[string]any, verify PasswordVerifier) bool {
	spec, ok := specs[entity]
	if !ok {
		return false
	}
	if spec.PrimaryCriterion != nil && spec.PrimaryCriterion(ctx, client, server, verify) {
		return true
	}
	return MatchRatio(entity, client, server) >= spec.Threshold
}

// MatchRatio returns the fraction of comparable fields that match, for
// transparency/debugging as §4.6 asks for ("scoring is transparent").
func MatchRatio(entity string, client, server map[string]any) float64 {
	spec, ok := specs[entity]
	if !ok || len(spec.Fields) == 0 {
		return 0
	}
	matched := 0
	for _, f := range spec.Fields {
		if f.Comparator(client[f.Field], server[f.Field]) == 1 {
			matched++
		}
	}
	return float64(matched) / float64(len(spec.Fields))
}

// HasHeuristic reports whether entity participates in auto-merge at all.
func HasHeuristic(entity string) bool {
	_, ok := specs[entity]
	return ok
}
