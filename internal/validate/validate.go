// Package validate holds the pure per-entity field validators (C3):
// presence, format, and range checks run before any document touches the
// store.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"fieldsync/internal/apierr"
)

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe = regexp.MustCompile(`^[0-9+ \-]{10,15}$`)
)

func fail(field, reason string) error {
	return &apierr.ValidationError{Field: field, Reason: reason}
}

func requireField(rec map[string]any, field string) (any, error) {
	v, ok := rec[field]
	if !ok || v == nil || v == "" {
		return nil, fail(field, "required")
	}
	return v, nil
}

func asString(rec map[string]any, field string) (string, error) {
	v, err := requireField(rec, field)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fail(field, "must be a string")
	}
	return s, nil
}

func asNumber(rec map[string]any, field string) (float64, error) {
	v, err := requireField(rec, field)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	}
	return 0, fail(field, "must be a number")
}

func enumOK(value string, allowed ...string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if strings.ToLower(a) == v {
			return true
		}
	}
	return false
}

func checkEmail(rec map[string]any, field string) error {
	s, err := asString(rec, field)
	if err != nil {
		return err
	}
	if !emailRe.MatchString(strings.TrimSpace(s)) {
		return fail(field, "not a valid email")
	}
	return nil
}

func checkOptionalPhone(rec map[string]any, field string) error {
	v, ok := rec[field]
	if !ok || v == nil || v == "" {
		return nil
	}
	s, ok := v.(string)
	if !ok || !phoneRe.MatchString(s) {
		return fail(field, "not a valid phone number")
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits < 10 || digits > 15 {
		return fail(field, "phone digit count out of range")
	}
	return nil
}

func checkCoordinates(rec map[string]any) error {
	lat, latOK := rec["latitude"]
	lon, lonOK := rec["longitude"]
	if !latOK && !lonOK {
		return nil
	}
	if latOK != lonOK {
		return fail("latitude/longitude", "both or neither must be present")
	}
	latF, ok := toFloat(lat)
	if !ok || latF < -90 || latF > 90 {
		return fail("latitude", "out of range")
	}
	lonF, ok := toFloat(lon)
	if !ok || lonF < -180 || lonF > 180 {
		return fail("longitude", "out of range")
	}
	return nil
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

// Validate dispatches to the per-entity validator. entity is the
// lowercase, hyphenated kind name used in the sync route (e.g. "user",
// "task-assignment").
func Validate(entity string, rec map[string]any) error {
	fn, ok := validators[entity]
	if !ok {
		return fmt.Errorf("validate: unknown entity %q", entity)
	}
	if _, err := requireField(rec, "updated_at"); err != nil {
		return err
	}
	return fn(rec)
}

var validators = map[string]func(map[string]any) error{
	"user":            validateUser,
	"registration":    validateRegistration,
	"supply":          validateSupply,
	"task":            validateTask,
	"task-assignment": validateTaskAssignment,
	"location":        validateLocation,
	"alert":           validateAlert,
	"notification":    validateNotification,
}

func validateUser(r map[string]any) error {
	if _, err := requireField(r, "user_id"); err != nil {
		return err
	}
	name, err := asString(r, "name")
	if err != nil {
		return err
	}
	trimmed := strings.TrimSpace(name)
	if len(trimmed) < 2 || len(trimmed) > 100 {
		return fail("name", "must be 2-100 characters")
	}
	if err := checkEmail(r, "email"); err != nil {
		return err
	}
	if err := checkOptionalPhone(r, "phone_number"); err != nil {
		return err
	}
	role, err := asString(r, "role")
	if err != nil {
		return err
	}
	if !enumOK(role, "admin", "fieldworker", "volunteer", "coordinator") {
		return fail("role", "not a recognized role")
	}
	return nil
}

func validateRegistration(r map[string]any) error {
	if _, err := requireField(r, "registration_id"); err != nil {
		return err
	}
	if _, err := requireField(r, "user_id"); err != nil {
		return err
	}
	name, err := asString(r, "person_name")
	if err != nil {
		return err
	}
	trimmed := strings.TrimSpace(name)
	if len(trimmed) < 2 || len(trimmed) > 100 {
		return fail("person_name", "must be 2-100 characters")
	}
	age, err := asNumber(r, "age")
	if err != nil {
		return err
	}
	if age < 0 || age > 150 || age != float64(int(age)) {
		return fail("age", "must be an integer in [0,150]")
	}
	gender, err := asString(r, "gender")
	if err != nil {
		return err
	}
	if !enumOK(gender, "male", "female", "other", "prefer_not_to_say") {
		return fail("gender", "not a recognized gender")
	}
	if _, err := requireField(r, "location_id"); err != nil {
		return err
	}
	if status, ok := r["status"].(string); ok && status != "" {
		if !enumOK(status, "pending", "in_progress", "completed", "transferred", "discharged") {
			return fail("status", "not a recognized status")
		}
	}
	return nil
}

func validateSupply(r map[string]any) error {
	if _, err := requireField(r, "supply_id"); err != nil {
		return err
	}
	if _, err := requireField(r, "user_id"); err != nil {
		return err
	}
	if _, err := requireField(r, "item_name"); err != nil {
		return err
	}
	qty, err := asNumber(r, "quantity")
	if err != nil {
		return err
	}
	if qty < 0 {
		return fail("quantity", "must be >= 0")
	}
	if _, err := requireField(r, "expiry_date"); err != nil {
		return err
	}
	if _, err := requireField(r, "location_id"); err != nil {
		return err
	}
	if status, ok := r["status"].(string); ok && status != "" {
		if !enumOK(status, "active", "expired", "used") {
			return fail("status", "not a recognized status")
		}
	}
	return nil
}

func validateTask(r map[string]any) error {
	if _, err := requireField(r, "task_id"); err != nil {
		return err
	}
	if _, err := requireField(r, "title"); err != nil {
		return err
	}
	if status, ok := r["status"].(string); ok && status != "" {
		if !enumOK(status, "todo", "pending", "in_progress", "review", "completed", "cancelled") {
			return fail("status", "not a recognized status")
		}
	}
	if priority, ok := r["priority"].(string); ok && priority != "" {
		if !enumOK(priority, "low", "normal", "high") {
			return fail("priority", "not a recognized priority")
		}
	}
	if _, err := requireField(r, "created_by"); err != nil {
		return err
	}
	if _, err := requireField(r, "due_date"); err != nil {
		return err
	}
	return nil
}

func validateTaskAssignment(r map[string]any) error {
	if _, err := requireField(r, "assignment_id"); err != nil {
		return err
	}
	if _, err := requireField(r, "task_id"); err != nil {
		return err
	}
	if _, err := requireField(r, "user_id"); err != nil {
		return err
	}
	if _, err := requireField(r, "assigned_at"); err != nil {
		return err
	}
	if status, ok := r["status"].(string); ok && status != "" {
		if !enumOK(status, "assigned", "accepted", "in_progress", "completed", "rejected", "declined") {
			return fail("status", "not a recognized status")
		}
	}
	return nil
}

func validateLocation(r map[string]any) error {
	if _, err := requireField(r, "location_id"); err != nil {
		return err
	}
	if _, err := requireField(r, "user_id"); err != nil {
		return err
	}
	if _, err := requireField(r, "name"); err != nil {
		return err
	}
	typ, err := asString(r, "type")
	if err != nil {
		return err
	}
	if !enumOK(typ, "hospital", "clinic", "pharmacy", "laboratory", "emergency", "other") {
		return fail("type", "not a recognized location type")
	}
	if err := checkCoordinates(r); err != nil {
		return err
	}
	return nil
}

func validateAlert(r map[string]any) error {
	if _, err := requireField(r, "alert_id"); err != nil {
		return err
	}
	if _, err := requireField(r, "user_id"); err != nil {
		return err
	}
	if _, err := requireField(r, "type"); err != nil {
		return err
	}
	if _, err := requireField(r, "location_id"); err != nil {
		return err
	}
	if _, err := requireField(r, "description"); err != nil {
		return err
	}
	priority, err := asString(r, "priority")
	if err != nil {
		return err
	}
	if !enumOK(priority, "low", "normal", "high") {
		return fail("priority", "not a recognized priority")
	}
	sentVia, err := asString(r, "sent_via")
	if err != nil {
		return err
	}
	if !enumOK(sentVia, "app", "sms", "email") {
		return fail("sent_via", "not a recognized channel")
	}
	return nil
}

func validateNotification(r map[string]any) error {
	if _, err := requireField(r, "notification_id"); err != nil {
		return err
	}
	if _, err := requireField(r, "user_id"); err != nil {
		return err
	}
	if _, err := requireField(r, "title"); err != nil {
		return err
	}
	return nil
}
