package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor, set on the gin context by the session middleware
	FieldUserID   = "user_id"
	FieldUsername = "username"
	FieldRole     = "role"

	// Domain
	FieldPartyID   = "party_id"
	FieldMediaID   = "media_item_id"
	FieldConnID    = "conn_id"
	FieldSessionID = "session_id"
	FieldBlobKey   = "blob_key"

	FieldService = "service"

	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
