package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldUserAgent   = "user_agent"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldRoomID      = "room_id"
	FieldFeed        = "feed"
	FieldRecordID    = "record_id"
	FieldRevision    = "revision"
	FieldAmount      = "amount"
	FieldHeadCount   = "head_count"
	FieldBackend     = "backend"
	FieldExchange    = "exchange"
	FieldQueue       = "queue"
	FieldSpreadsheet = "spreadsheet_id"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentLedger  = "ledger"
	ComponentStorage = "storage"
	ComponentRoom    = "room"
	ComponentGuard   = "guard"
	ComponentRelay   = "relay"
	ComponentExport  = "export"
)
