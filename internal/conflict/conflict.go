// Package conflict implements the conflict-resolution algebra (C5): the
// four base strategies, Supply's domain-specific pair, the status-lattice
// join, and the free-text append merge.
package conflict

import (
	"fmt"
	"math"
	"strings"
	"time"

	"fieldsync/internal/tstamp"
)

// Strategy names, as accepted by resolve-conflict and reported in
// allowed_strategies.
const (
	ClientWins        = "client_wins"
	ServerWins        = "server_wins"
	Merge             = "merge"
	UpdateData        = "update_data"
	SumQuantities     = "sum_quantities"
	AverageQuantities = "average_quantities"
)

// Rules is the per-entity data table §9 asks for: critical fields,
// identity-defining fields, free-text fields, and the status lattice, all
// plain data rather than branches.
type Rules struct {
	CriticalFields   []string
	IdentityDefining []string
	TextFields       []string
	StatusField      string
	StatusRank       map[string]int
	QuantityField    string // non-empty only for Supply
}

var entityRules = map[string]Rules{
	"user": {
		CriticalFields:   []string{"email", "role", "password_hash"},
		IdentityDefining: []string{"email", "phone_number"},
	},
	"registration": {
		CriticalFields:   []string{"person_name", "age", "gender", "status"},
		IdentityDefining: []string{"person_name", "age", "gender"},
		TextFields:       []string{"medical_history", "notes"},
		StatusField:      "status",
		StatusRank:       map[string]int{"pending": 1, "in_progress": 2, "completed": 3, "transferred": 4, "discharged": 5},
	},
	"supply": {
		CriticalFields: []string{"item_name", "category", "unit", "expiry_date", "status"},
		QuantityField:  "quantity",
	},
	"task": {
		CriticalFields: []string{"title", "status"},
		StatusField:    "status",
		StatusRank:     map[string]int{"todo": 1, "pending": 1, "in_progress": 2, "review": 3, "completed": 4, "cancelled": 5},
	},
	"task-assignment": {
		CriticalFields: []string{"status"},
		TextFields:     []string{"notes"},
		StatusField:    "status",
		StatusRank:     map[string]int{"assigned": 1, "accepted": 2, "in_progress": 3, "completed": 4, "rejected": 5, "declined": 5},
	},
	"location": {
		CriticalFields:   []string{"name", "type"},
		IdentityDefining: []string{"name"},
	},
	"alert": {
		CriticalFields: []string{"type", "priority", "is_active"},
	},
	"notification": {},
}

// RulesFor returns the entity's rule table. ok is false for unknown kinds.
func RulesFor(entity string) (Rules, bool) {
	r, ok := entityRules[entity]
	return r, ok
}

// HasIdentityDefining reports whether update_data is offered for entity.
func HasIdentityDefining(entity string) bool {
	r, ok := entityRules[entity]
	return ok && len(r.IdentityDefining) > 0
}

// HasSupplyStrategies reports whether sum_quantities/average_quantities
// are offered for entity.
func HasSupplyStrategies(entity string) bool {
	r, ok := entityRules[entity]
	return ok && r.QuantityField != ""
}

func clone(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ClientWinsApply returns the client document verbatim.
func ClientWinsApply(client, server map[string]any) map[string]any {
	return clone(client)
}

// ServerWinsApply returns the server document verbatim.
func ServerWinsApply(client, server map[string]any) map[string]any {
	return clone(server)
}

// UpdateDataApply overlays client fields onto server, preserving the
// entity's identity-defining subset from server, and stamps updated_at to
// now. Callers must check HasIdentityDefining first; update_data is not
// offered for entities without one.
func UpdateDataApply(entity string, client, server map[string]any) map[string]any {
	rules := entityRules[entity]
	merged := clone(server)
	for k, v := range client {
		merged[k] = v
	}
	for _, field := range rules.IdentityDefining {
		if v, ok := server[field]; ok {
			merged[field] = v
		}
	}
	merged["updated_at"] = time.Now()
	return merged
}

// SumQuantitiesApply is Supply-only: quantity becomes the sum of both
// sides, the rest of the document overlaid client-over-server.
func SumQuantitiesApply(client, server map[string]any) map[string]any {
	merged := clone(server)
	for k, v := range client {
		merged[k] = v
	}
	cq, _ := toFloat(client["quantity"])
	sq, _ := toFloat(server["quantity"])
	merged["quantity"] = cq + sq
	merged["updated_at"] = time.Now()
	return merged
}

// AverageQuantitiesApply is Supply-only: quantity becomes round((a+b)/2).
func AverageQuantitiesApply(client, server map[string]any) map[string]any {
	merged := clone(server)
	for k, v := range client {
		merged[k] = v
	}
	cq, _ := toFloat(client["quantity"])
	sq, _ := toFloat(server["quantity"])
	merged["quantity"] = math.Round((cq + sq) / 2)
	merged["updated_at"] = time.Now()
	return merged
}

// MergeApply implements §4.5's merge rule: critical fields and all other
// keys adopt the client value only when client is strictly newer and the
// values differ; free-text fields use append-merge; the status field uses
// lattice join; Supply's quantity (when both present and no summation
// strategy was explicitly requested) takes the minimum.
func MergeApply(entity string, client, server map[string]any, cT, sT time.Time) map[string]any {
	rules := entityRules[entity]
	merged := clone(server)

	keys := map[string]struct{}{}
	for k := range client {
		keys[k] = struct{}{}
	}
	for k := range server {
		keys[k] = struct{}{}
	}

	newer := cT.After(sT)

	for key := range keys {
		if key == "updated_at" || key == "created_at" {
			continue
		}
		if isTextField(rules, key) {
			merged[key] = textAppendMerge(asString(client[key]), asString(server[key]))
			continue
		}
		if rules.StatusField != "" && key == rules.StatusField {
			continue // handled below, once, after the generic loop
		}
		if rules.QuantityField != "" && key == rules.QuantityField {
			continue // handled below
		}
		cv, cok := client[key]
		sv := server[key]
		if !cok {
			continue
		}
		if newer && !equalValues(cv, sv) {
			merged[key] = cv
		}
	}

	if rules.StatusField != "" {
		merged[rules.StatusField] = statusJoin(rules.StatusRank, asString(client[rules.StatusField]), asString(server[rules.StatusField]))
	}

	if rules.QuantityField != "" {
		cv, cok := toFloat(client[rules.QuantityField])
		sv, sok := toFloat(server[rules.QuantityField])
		switch {
		case cok && sok:
			merged[rules.QuantityField] = math.Min(cv, sv)
		case cok:
			merged[rules.QuantityField] = cv
		case sok:
			merged[rules.QuantityField] = sv
		}
	}

	merged["updated_at"] = tstamp.Max(cT, sT)
	return merged
}

// Apply dispatches to the named strategy. It is the entry point
// resolve-conflict uses.
func Apply(entity, strategy string, client, server map[string]any) (map[string]any, error) {
	switch strategy {
	case ClientWins:
		return ClientWinsApply(client, server), nil
	case ServerWins:
		return ServerWinsApply(client, server), nil
	case UpdateData:
		if !HasIdentityDefining(entity) {
			return nil, fmt.Errorf("conflict: update_data not offered for %s", entity)
		}
		return UpdateDataApply(entity, client, server), nil
	case Merge:
		cT, _ := tstamp.ToInstant(client["updated_at"])
		sT, _ := tstamp.ToInstant(server["updated_at"])
		return MergeApply(entity, client, server, cT, sT), nil
	case SumQuantities:
		if !HasSupplyStrategies(entity) {
			return nil, fmt.Errorf("conflict: sum_quantities not offered for %s", entity)
		}
		return SumQuantitiesApply(client, server), nil
	case AverageQuantities:
		if !HasSupplyStrategies(entity) {
			return nil, fmt.Errorf("conflict: average_quantities not offered for %s", entity)
		}
		return AverageQuantitiesApply(client, server), nil
	default:
		return nil, fmt.Errorf("conflict: unknown strategy %q", strategy)
	}
}

// AllowedStrategies returns the strategy list for a given situation, in
// the order spec §4.7/§6 enumerates them.
func AllowedStrategies(entity string, serverExists bool) []string {
	if !serverExists {
		return []string{ClientWins}
	}
	out := []string{ClientWins, ServerWins, Merge}
	if HasIdentityDefining(entity) {
		out = append(out, UpdateData)
	}
	if HasSupplyStrategies(entity) {
		out = append(out, SumQuantities, AverageQuantities)
	}
	return out
}

func isTextField(r Rules, field string) bool {
	for _, f := range r.TextFields {
		if f == field {
			return true
		}
	}
	return false
}

// textAppendMerge implements the free-text merge rule.
func textAppendMerge(client, server string) string {
	switch {
	case server == "":
		return client
	case client == "":
		return server
	case client == server:
		return server
	case strings.Contains(server, client):
		return server
	case strings.Contains(client, server):
		return client
	default:
		return server + "\n\n[SYNC MERGE] Client update:\n" + client
	}
}

// statusJoin is the status-lattice join: the higher-rank value wins;
// missing or unranked values defer to the other side. Two different
// spellings of the same rank (e.g. "todo"/"pending") resolve to the
// lexically greater one, so the join does not depend on argument order.
func statusJoin(rank map[string]int, client, server string) string {
	cr, cok := rankOf(rank, client)
	sr, sok := rankOf(rank, server)
	switch {
	case !cok && !sok:
		return server
	case !cok:
		return server
	case !sok:
		return client
	case cr > sr:
		return client
	case cr == sr && client > server:
		return client
	default:
		return server
	}
}

func rankOf(rank map[string]int, status string) (int, bool) {
	if status == "" {
		return 0, false
	}
	r, ok := rank[strings.ToLower(status)]
	return r, ok
}

func asString(v any) string {
	s, _ := v.(string)
	return s
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

func equalValues(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}
