package syncengine

// UniqueKey is one secondary-uniqueness constraint: either a single field
// (User.email) or a tuple (Registration's person_name+age+gender). When
// Optional is true, the key is only checked if every field in it is
// present and non-empty in the client document (e.g. User.phone_number,
// Supply.barcode/sku).
type UniqueKey struct {
	Fields   []string
	Optional bool
}

// EntitySpec is everything the engine needs to know about one entity kind
// beyond the pure packages it composes (validate, conflict, identity).
type EntitySpec struct {
	Name       string
	Collection string
	PKField    string
	UniqueKeys []UniqueKey
}

var specs = map[string]EntitySpec{
	"user": {
		Name: "user", Collection: "users", PKField: "user_id",
		UniqueKeys: []UniqueKey{
			{Fields: []string{"email"}},
			{Fields: []string{"phone_number"}, Optional: true},
		},
	},
	"registration": {
		Name: "registration", Collection: "registrations", PKField: "registration_id",
		UniqueKeys: []UniqueKey{
			{Fields: []string{"person_name", "age", "gender"}},
		},
	},
	"supply": {
		Name: "supply", Collection: "supplies", PKField: "supply_id",
		UniqueKeys: []UniqueKey{
			{Fields: []string{"barcode"}, Optional: true},
			{Fields: []string{"sku"}, Optional: true},
		},
	},
	"task": {
		Name: "task", Collection: "tasks", PKField: "task_id",
		UniqueKeys: []UniqueKey{
			{Fields: []string{"title", "location_id"}, Optional: true},
		},
	},
	"task-assignment": {
		Name: "task-assignment", Collection: "task_assignments", PKField: "assignment_id",
		UniqueKeys: []UniqueKey{
			{Fields: []string{"task_id", "user_id"}},
		},
	},
	"location": {
		Name: "location", Collection: "locations", PKField: "location_id",
		UniqueKeys: []UniqueKey{
			{Fields: []string{"name"}},
		},
	},
	"alert": {
		Name: "alert", Collection: "alerts", PKField: "alert_id",
	},
	"notification": {
		Name: "notification", Collection: "notifications", PKField: "notification_id",
	},
}

// SpecFor returns the entity's metadata. ok is false for unknown kinds.
func SpecFor(entity string) (EntitySpec, bool) {
	s, ok := specs[entity]
	return s, ok
}

// KnownEntities lists every registered entity kind, in a stable order for
// routing tables.
func KnownEntities() []string {
	return []string{"user", "registration", "supply", "task", "task-assignment", "location", "alert", "notification"}
}
