package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSameEntity_UserByPrimaryKey(t *testing.T) {
	client := map[string]any{"user_id": "u1"}
	server := map[string]any{"user_id": "u1"}
	assert.True(t, IsSameEntity(context.Background(), "user", client, server, nil))
}

func TestIsSameEntity_UserByPasswordVerifier(t *testing.T) {
	client := map[string]any{"password": "secret"}
	server := map[string]any{"user_id": "u1"}
	verify := func(ctx context.Context, uid, plaintext string) (bool, error) {
		return uid == "u1" && plaintext == "secret", nil
	}
	assert.True(t, IsSameEntity(context.Background(), "user", client, server, verify))
}

func TestIsSameEntity_UserByFieldMatchRatio(t *testing.T) {
	client := map[string]any{
		"name": "Jane Doe", "role": "fieldworker", "email": "jane@example.com", "phone_number": "555-123-4567",
	}
	server := map[string]any{
		"name": "Jane Doe", "role": "fieldworker", "email": "jane@example.com", "phone_number": "555-123-4567",
	}
	assert.True(t, IsSameEntity(context.Background(), "user", client, server, nil))
}

func TestIsSameEntity_UnknownEntity(t *testing.T) {
	assert.False(t, IsSameEntity(context.Background(), "widget", map[string]any{}, map[string]any{}, nil))
}

func TestIsSameEntity_AlertNeverAutoMerged(t *testing.T) {
	same := map[string]any{"type": "flood", "priority": "high"}
	assert.False(t, IsSameEntity(context.Background(), "alert", same, same, nil))
}

func TestMatchRatio_PartialMatch(t *testing.T) {
	client := map[string]any{"title": "Distribute water", "location_id": "l1", "created_by": "u1", "due_date": "x", "priority": "high"}
	server := map[string]any{"title": "Distribute water", "location_id": "l1", "created_by": "u2", "due_date": "y", "priority": "low"}
	ratio := MatchRatio("task", client, server)
	assert.InDelta(t, 0.4, ratio, 0.001)
}

func TestRegistrationPrimaryCriterion_RequiresTwoOfThree(t *testing.T) {
	client := map[string]any{"person_name": "John Smith", "age": float64(30), "gender": "male", "contact": "555-0100", "location_id": "loc1"}
	server := map[string]any{"person_name": "John Smith", "age": float64(31), "gender": "male", "contact": "555-0100", "location_id": "loc1"}
	assert.True(t, IsSameEntity(context.Background(), "registration", client, server, nil))
}

func TestRegistrationPrimaryCriterion_NameAndGenderAloneIsNotEnough(t *testing.T) {
	client := map[string]any{"person_name": "John Smith", "age": float64(30), "gender": "male", "contact": "555-0100", "location_id": "loc1"}
	server := map[string]any{"person_name": "John Smith", "age": float64(50), "gender": "male", "contact": "555-9999", "location_id": "loc2"}
	assert.False(t, IsSameEntity(context.Background(), "registration", client, server, nil))
}

func TestSupplyPrimaryCriterion_Barcode(t *testing.T) {
	client := map[string]any{"barcode": "12345"}
	server := map[string]any{"barcode": "12345", "sku": "other"}
	assert.True(t, IsSameEntity(context.Background(), "supply", client, server, nil))
}

func TestHasHeuristic(t *testing.T) {
	assert.True(t, HasHeuristic("location"))
	assert.False(t, HasHeuristic("alert"))
	assert.False(t, HasHeuristic("notification"))
}
