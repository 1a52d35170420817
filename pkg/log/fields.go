package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldRoute     = "route"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Feed entities
	FieldUserID = "user_id"
	FieldPostID = "post_id"
	FieldLikeID = "like_id"

	// Service
	FieldService = "service"

	// CDC
	FieldOp    = "op"
	FieldTopic = "topic"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
