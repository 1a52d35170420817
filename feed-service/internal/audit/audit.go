package audit

import (
	"context"

	"github.com/weiawesome/wes-feed/pkg/log"
)

// Audit actions for feed-service.
const (
	ActionCreateUser = "user.create"
	ActionCreatePost = "post.create"
	ActionLike       = "like.add"
	ActionUnlike     = "like.remove"
	ActionDrift      = "likes_count.drift"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID int64, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Int64(log.FieldUserID, userID).
		Msg(msg)
}

// LogAction emits an audit entry that relies on the context logger for the
// actor and target fields.
func LogAction(ctx context.Context, action string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Msg(msg)
}

// LogPost emits an audit entry for an action by userID on postID.
func LogPost(ctx context.Context, action string, userID, postID int64, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Int64(log.FieldUserID, userID).
		Int64(log.FieldPostID, postID).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action string, postID int64, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Warn().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Int64(log.FieldPostID, postID).
		Str(FieldDetail, detail).
		Msg(msg)
}
