package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldSource    = "source"
	FieldRows      = "rows"
	FieldDropped   = "dropped"
	FieldRecords   = "records"
	FieldCity      = "city"
	FieldFuel      = "fuel"
	FieldYear      = "year"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldLoadID    = "load_id"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentLoader    = "loader"
	ComponentStore     = "store"
	ComponentDashboard = "dashboard"
	ComponentReport    = "report"
)
