package consumer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	events []*DebeziumMessage
	err    error
}

func (h *recordingHandler) HandleCDCEvent(_ context.Context, event *DebeziumMessage) error {
	h.events = append(h.events, event)
	return h.err
}

func TestProcessMessage_DecodesLikeRows(t *testing.T) {
	h := &recordingHandler{}
	msg := &kafka.Message{Value: []byte(`{
		"payload": {
			"before": {"id": 7, "user_id": 3, "post_id": 11, "created_at": "2024-01-01T00:00:00Z"},
			"after": null,
			"op": "d",
			"ts_ms": 1700000000000
		}
	}`)}

	processMessage(context.Background(), h, msg)

	require.Len(t, h.events, 1)
	p := h.events[0].Payload
	assert.Equal(t, "d", p.Op)
	assert.Equal(t, int64(1700000000000), p.TsMs)
	require.NotNil(t, p.Before)
	assert.Equal(t, int64(7), p.Before.ID)
	assert.Equal(t, int64(3), p.Before.UserID)
	assert.Equal(t, int64(11), p.Before.PostID)
	assert.Nil(t, p.After)
	assert.Equal(t, []int64{11}, h.events[0].PostIDs())
}

func TestProcessMessage_SkipsBadInput(t *testing.T) {
	h := &recordingHandler{}

	processMessage(context.Background(), h, &kafka.Message{Value: nil})
	processMessage(context.Background(), h, &kafka.Message{Value: []byte("not json")})

	assert.Empty(t, h.events)
}

func TestProcessMessage_HandlerErrorIsSwallowed(t *testing.T) {
	h := &recordingHandler{err: errors.New("redis down")}

	processMessage(context.Background(), h, &kafka.Message{Value: []byte(`{"payload":{"op":"c","after":{"post_id":1}}}`)})

	assert.Len(t, h.events, 1)
}

func TestPostIDs(t *testing.T) {
	tests := []struct {
		name string
		msg  DebeziumMessage
		want []int64
	}{
		{"empty", DebeziumMessage{}, nil},
		{"after only", DebeziumMessage{Payload: DebeziumPayload{After: &DebeziumLikeRecord{PostID: 4}}}, []int64{4}},
		{"same post", DebeziumMessage{Payload: DebeziumPayload{
			Before: &DebeziumLikeRecord{PostID: 4},
			After:  &DebeziumLikeRecord{PostID: 4},
		}}, []int64{4}},
		{"moved", DebeziumMessage{Payload: DebeziumPayload{
			Before: &DebeziumLikeRecord{PostID: 4},
			After:  &DebeziumLikeRecord{PostID: 5},
		}}, []int64{4, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.PostIDs())
		})
	}
}

type fakeClient struct {
	subscribeErr error
	msgs         chan *kafka.Message
	closed       atomic.Int32
}

func (f *fakeClient) Subscribe(string, kafka.RebalanceCb) error { return f.subscribeErr }

func (f *fakeClient) ReadMessage(timeout time.Duration) (*kafka.Message, error) {
	select {
	case msg := <-f.msgs:
		return msg, nil
	case <-time.After(timeout):
		return nil, kafka.NewError(kafka.ErrTimedOut, "timed out", false)
	}
}

func (f *fakeClient) Close() error {
	f.closed.Add(1)
	return nil
}

func closeWithin(t *testing.T, cc *ConfluentConsumer, d time.Duration) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- cc.Close() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(d):
		t.Fatal("Close did not return")
	}
}

func TestConsumer_SubscribeFailureClosesClient(t *testing.T) {
	fc := &fakeClient{subscribeErr: errors.New("unknown topic")}
	cc := newConfluentConsumer(fc, "likes", &recordingHandler{})

	err := cc.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "likes")
	assert.Equal(t, int32(1), fc.closed.Load())

	closeWithin(t, cc, time.Second)
	assert.Equal(t, int32(1), fc.closed.Load())
}

func TestConsumer_ConsumesUntilCancelled(t *testing.T) {
	fc := &fakeClient{msgs: make(chan *kafka.Message, 1)}
	h := &recordingHandler{}
	cc := newConfluentConsumer(fc, "likes", h)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, cc.Start(ctx))

	fc.msgs <- &kafka.Message{Value: []byte(`{"payload":{"op":"d","before":{"post_id":3}}}`)}
	require.Eventually(t, func() bool { return len(fc.msgs) == 0 }, time.Second, 10*time.Millisecond)

	cancel()
	closeWithin(t, cc, 2*time.Second)
	closeWithin(t, cc, time.Second)
	assert.Equal(t, int32(1), fc.closed.Load())

	require.Len(t, h.events, 1)
	assert.Equal(t, []int64{3}, h.events[0].PostIDs())
}
