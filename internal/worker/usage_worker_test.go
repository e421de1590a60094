package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gemmachat/internal/model"
)

type fakeCounter struct {
	err    error
	events []model.UsageEvent
}

func (f *fakeCounter) Increment(_ context.Context, userID uint, at time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, model.UsageEvent{UserID: userID, At: at})
	return nil
}

type fakeAck struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (f *fakeAck) Ack(bool) error {
	f.acked = true
	return nil
}

func (f *fakeAck) Nack(_, requeue bool) error {
	f.nacked = true
	f.requeue = requeue
	return nil
}

func TestHandleDeliveryCounts(t *testing.T) {
	counter := &fakeCounter{}
	w := NewUsageWorker(nil, counter, "q")

	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	body, err := json.Marshal(model.UsageEvent{UserID: 7, Username: "alice", At: at})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	ack := &fakeAck{}
	w.handleDelivery(context.Background(), body, ack)

	if !ack.acked || ack.nacked {
		t.Fatalf("expected ack, got %+v", ack)
	}
	if len(counter.events) != 1 || counter.events[0].UserID != 7 {
		t.Fatalf("unexpected counted events: %+v", counter.events)
	}
}

func TestHandleDeliveryBadPayload(t *testing.T) {
	counter := &fakeCounter{}
	w := NewUsageWorker(nil, counter, "q")

	ack := &fakeAck{}
	w.handleDelivery(context.Background(), []byte("not json"), ack)

	if !ack.nacked || ack.acked {
		t.Fatalf("expected nack, got %+v", ack)
	}
	if ack.requeue {
		t.Fatalf("undecodable payload must not be requeued")
	}
	if len(counter.events) != 0 {
		t.Fatalf("bad payload must not be counted")
	}
}

func TestHandleDeliveryCounterDown(t *testing.T) {
	counter := &fakeCounter{err: errors.New("redis down")}
	w := NewUsageWorker(nil, counter, "q")

	body, err := json.Marshal(model.UsageEvent{UserID: 7, At: time.Now()})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	ack := &fakeAck{}
	w.handleDelivery(context.Background(), body, ack)

	if !ack.nacked || ack.acked {
		t.Fatalf("expected nack, got %+v", ack)
	}
	if ack.requeue {
		t.Fatalf("counter failure must drop, not requeue")
	}
}
