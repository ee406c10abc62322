package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/clubline/clubline-backend/pkg/enums"
	"github.com/clubline/clubline-backend/pkg/logger"
	"github.com/clubline/clubline-backend/pkg/outbox"
)

type recordingProcessor struct {
	calls []enums.OutboxEventType
	err   error
}

func (p *recordingProcessor) Process(_ context.Context, eventType enums.OutboxEventType, _ outbox.PayloadEnvelope) error {
	p.calls = append(p.calls, eventType)
	return p.err
}

func testService(t *testing.T) *Service {
	t.Helper()
	return &Service{
		logg: logger.New(logger.Options{
			ServiceName: "receipt-worker-test",
			Output:      io.Discard,
		}),
	}
}

func buildMessage(t *testing.T, eventType string) *gcppubsub.Message {
	t.Helper()
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{}`),
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return &gcppubsub.Message{
		Attributes: map[string]string{"event_type": eventType},
		Data:       payload,
	}
}

func TestDispatchFansOutToAllProcessors(t *testing.T) {
	service := testService(t)
	receipts := &recordingProcessor{}
	alerts := &recordingProcessor{}
	msg := buildMessage(t, string(enums.EventReceiptRequested))

	result := service.dispatch(context.Background(), msg, []processor{receipts, alerts})

	if !result.ack || result.nack {
		t.Fatalf("expected ack, got %+v", result)
	}
	if len(receipts.calls) != 1 || receipts.calls[0] != enums.EventReceiptRequested {
		t.Fatalf("receipts processor calls: %v", receipts.calls)
	}
	if len(alerts.calls) != 1 {
		t.Fatalf("alerts processor calls: %v", alerts.calls)
	}
}

func TestDispatchNacksWhenProcessorFails(t *testing.T) {
	service := testService(t)
	receipts := &recordingProcessor{}
	alerts := &recordingProcessor{err: errors.New("insert failed")}
	msg := buildMessage(t, string(enums.EventDisputeAlertRequested))

	result := service.dispatch(context.Background(), msg, []processor{receipts, alerts})

	if !result.nack {
		t.Fatalf("expected nack on processor failure, got %+v", result)
	}
	if len(receipts.calls) != 1 {
		t.Fatalf("first processor should have run before the failure")
	}
}

func TestDispatchDropsUnknownEventType(t *testing.T) {
	service := testService(t)
	receipts := &recordingProcessor{}
	msg := buildMessage(t, "order_shipped")

	result := service.dispatch(context.Background(), msg, []processor{receipts})

	if !result.ack || result.nack {
		t.Fatalf("unknown event types should ack, got %+v", result)
	}
	if len(receipts.calls) != 0 {
		t.Fatalf("processor should not run for unknown event types")
	}
}

func TestDispatchDropsMalformedEnvelope(t *testing.T) {
	service := testService(t)
	receipts := &recordingProcessor{}
	msg := &gcppubsub.Message{
		Attributes: map[string]string{"event_type": string(enums.EventPaymentRecorded)},
		Data:       []byte("{not json"),
	}

	result := service.dispatch(context.Background(), msg, []processor{receipts})

	if !result.ack || result.nack {
		t.Fatalf("malformed envelopes should ack, got %+v", result)
	}
	if len(receipts.calls) != 0 {
		t.Fatalf("processor should not run for malformed envelopes")
	}
}
