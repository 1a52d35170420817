package consumer

import "context"

// DebeziumLikeRecord represents a row from the likes table in a Debezium CDC event.
type DebeziumLikeRecord struct {
	ID        int64   `json:"id"`
	UserID    int64   `json:"user_id"`
	PostID    int64   `json:"post_id"`
	CreatedAt *string `json:"created_at"`
}

// DebeziumPayload is the payload field of a Debezium CDC message.
type DebeziumPayload struct {
	Before *DebeziumLikeRecord `json:"before"`
	After  *DebeziumLikeRecord `json:"after"`
	Op     string              `json:"op"` // "c"=create, "u"=update, "d"=delete, "r"=snapshot
	TsMs   int64               `json:"ts_ms"`
}

// DebeziumMessage is the top-level Debezium CDC message envelope.
type DebeziumMessage struct {
	Payload DebeziumPayload `json:"payload"`
}

// PostIDs returns the distinct post ids touched by the event. An update that
// moves a like between posts touches both.
func (m *DebeziumMessage) PostIDs() []int64 {
	var ids []int64
	for _, rec := range []*DebeziumLikeRecord{m.Payload.Before, m.Payload.After} {
		if rec == nil || rec.PostID == 0 {
			continue
		}
		if len(ids) == 1 && ids[0] == rec.PostID {
			continue
		}
		ids = append(ids, rec.PostID)
	}
	return ids
}

// CDCEventHandler processes a decoded Debezium CDC message.
type CDCEventHandler interface {
	HandleCDCEvent(ctx context.Context, event *DebeziumMessage) error
}

// CDCEventConsumer manages the Kafka consumer lifecycle.
type CDCEventConsumer interface {
	Start(ctx context.Context) error
	Close() error
}
