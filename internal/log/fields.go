package log

// Common field names for structured logging.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldUserID      = "user_id"
	FieldTransID     = "trans_id"
	FieldMerchant    = "merchant"
	FieldBatchSize   = "batch_size"
	FieldMerchants   = "merchants"
	FieldSeriesCount = "series_count"
	FieldActiveCount = "active_count"
	FieldVersion     = "version"
)

// Components defines standard component names.
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentRecurrence = "recurrence"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentExport     = "export"
	ComponentCache      = "cache"
)

// Operations defines standard operation names.
const (
	OpIngest     = "ingest"
	OpListActive = "list_active"
	OpFold       = "fold"
	OpExport     = "export"
	OpValidate   = "validate"
	OpStartup    = "startup"
	OpShutdown   = "shutdown"
)
