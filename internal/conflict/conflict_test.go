package conflict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientWinsApply_Independence(t *testing.T) {
	client := map[string]any{"a": 1}
	server := map[string]any{"a": 2}
	out := ClientWinsApply(client, server)
	out["a"] = 99
	assert.Equal(t, 1, client["a"], "must not mutate the input map")
}

func TestServerWinsApply(t *testing.T) {
	client := map[string]any{"a": 1}
	server := map[string]any{"a": 2}
	out := ServerWinsApply(client, server)
	assert.Equal(t, 2, out["a"])
}

func TestUpdateDataApply_PreservesIdentityDefining(t *testing.T) {
	client := map[string]any{"email": "new@example.com", "name": "New Name"}
	server := map[string]any{"email": "old@example.com", "phone_number": "555", "name": "Old Name"}
	out := UpdateDataApply("user", client, server)
	assert.Equal(t, "old@example.com", out["email"], "identity-defining field must survive from server")
	assert.Equal(t, "New Name", out["name"])
}

func TestSumQuantitiesApply(t *testing.T) {
	client := map[string]any{"quantity": float64(5)}
	server := map[string]any{"quantity": float64(7)}
	out := SumQuantitiesApply(client, server)
	assert.Equal(t, float64(12), out["quantity"])
}

func TestAverageQuantitiesApply(t *testing.T) {
	client := map[string]any{"quantity": float64(5)}
	server := map[string]any{"quantity": float64(8)}
	out := AverageQuantitiesApply(client, server)
	assert.Equal(t, float64(7), out["quantity"]) // round((5+8)/2) = round(6.5) = 7
}

func TestMergeApply_StatusLatticeJoin(t *testing.T) {
	now := time.Now()
	client := map[string]any{"status": "completed", "updated_at": now}
	server := map[string]any{"status": "pending", "updated_at": now.Add(-time.Hour)}
	out := MergeApply("registration", client, server, now, now.Add(-time.Hour))
	assert.Equal(t, "completed", out["status"], "higher-rank status wins regardless of recency")
}

func TestMergeApply_TextAppend(t *testing.T) {
	now := time.Now()
	client := map[string]any{"notes": "client note"}
	server := map[string]any{"notes": "server note"}
	out := MergeApply("task-assignment", client, server, now, now.Add(-time.Hour))
	assert.Contains(t, out["notes"], "server note")
	assert.Contains(t, out["notes"], "client note")
}

func TestMergeApply_TextAppend_Containment(t *testing.T) {
	now := time.Now()
	client := map[string]any{"notes": "short"}
	server := map[string]any{"notes": "a much longer note containing short inside"}
	out := MergeApply("task-assignment", client, server, now, now)
	assert.Equal(t, server["notes"], out["notes"])
}

func TestMergeApply_QuantityTakesMin(t *testing.T) {
	now := time.Now()
	client := map[string]any{"quantity": float64(3)}
	server := map[string]any{"quantity": float64(9)}
	out := MergeApply("supply", client, server, now, now)
	assert.Equal(t, float64(3), out["quantity"])
}

func TestMergeApply_NewerNonCriticalFieldWins(t *testing.T) {
	older := time.Now()
	newer := older.Add(time.Hour)
	client := map[string]any{"due_date": "2024-06-01", "updated_at": newer}
	server := map[string]any{"due_date": "2024-05-01", "updated_at": older}
	out := MergeApply("task", client, server, newer, older)
	assert.Equal(t, "2024-06-01", out["due_date"])
}

func TestMergeApply_UpdatedAtTakesMax(t *testing.T) {
	older := time.Now()
	newer := older.Add(time.Hour)
	out := MergeApply("task", map[string]any{}, map[string]any{}, older, newer)
	assert.Equal(t, newer, out["updated_at"])
}

func TestApply_UpdateDataRejectedWhenNotOffered(t *testing.T) {
	_, err := Apply("alert", UpdateData, map[string]any{}, map[string]any{})
	require.Error(t, err)
}

func TestApply_SumQuantitiesRejectedForNonSupply(t *testing.T) {
	_, err := Apply("task", SumQuantities, map[string]any{}, map[string]any{})
	require.Error(t, err)
}

func TestApply_UnknownStrategy(t *testing.T) {
	_, err := Apply("user", "made_up_strategy", map[string]any{}, map[string]any{})
	require.Error(t, err)
}

func TestAllowedStrategies_NoServerDoc(t *testing.T) {
	assert.Equal(t, []string{ClientWins}, AllowedStrategies("user", false))
}

func TestAllowedStrategies_SupplyIncludesQuantityStrategies(t *testing.T) {
	allowed := AllowedStrategies("supply", true)
	assert.Contains(t, allowed, SumQuantities)
	assert.Contains(t, allowed, AverageQuantities)
}

func TestAllowedStrategies_AlertHasNoUpdateData(t *testing.T) {
	allowed := AllowedStrategies("alert", true)
	assert.NotContains(t, allowed, UpdateData)
}

func TestStatusJoin_UnrankedDefersToOther(t *testing.T) {
	rank := map[string]int{"pending": 1, "completed": 2}
	assert.Equal(t, "completed", statusJoin(rank, "garbage", "completed"))
	assert.Equal(t, "completed", statusJoin(rank, "completed", "garbage"))
}

func TestStatusJoin_SameRankAliasesAreSymmetric(t *testing.T) {
	rank := map[string]int{"todo": 1, "pending": 1, "in_progress": 2}
	assert.Equal(t, statusJoin(rank, "pending", "todo"), statusJoin(rank, "todo", "pending"))
	assert.Equal(t, "todo", statusJoin(rank, "pending", "todo"), "same-rank aliases resolve to the lexically greater spelling")
}

func TestTextAppendMerge_EmptySides(t *testing.T) {
	assert.Equal(t, "x", textAppendMerge("x", ""))
	assert.Equal(t, "y", textAppendMerge("", "y"))
}
