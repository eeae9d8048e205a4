package wireevent

import (
	"testing"
	"time"
)

func TestFrame_RoundTrip(t *testing.T) {
	ev := &Event{
		ID:           "01ABC",
		Timestamp:    time.Now().UTC(),
		Level:        LevelInfo,
		Message:      "hello",
		Source:       "host-1",
		ThreadID:     7,
		NestingLevel: 2,
	}
	f := NewEventFrame(FrameLog, "frame-1", "/trace", ev)

	payload, err := f.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	decoded, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if decoded.Type != FrameLog {
		t.Errorf("Type = %v, want %v", decoded.Type, FrameLog)
	}
	if decoded.Data.Message != "hello" {
		t.Errorf("Data.Message = %v, want hello", decoded.Data.Message)
	}
	if decoded.Data.NestingLevel != 2 {
		t.Errorf("Data.NestingLevel = %v, want 2", decoded.Data.NestingLevel)
	}
	if decoded.Data.ThreadID != 7 {
		t.Errorf("Data.ThreadID = %v, want 7", decoded.Data.ThreadID)
	}
}

func TestFrame_SubscribeUnsubscribe(t *testing.T) {
	sub := NewSubscribeFrame("/trace", &Filters{Levels: []Level{LevelError}})
	payload, err := sub.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	decoded, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if decoded.Type != FrameSubscribe || decoded.Route != "/trace" {
		t.Errorf("unexpected subscribe decode: %+v", decoded)
	}
	if len(decoded.Filters.Levels) != 1 || decoded.Filters.Levels[0] != LevelError {
		t.Errorf("unexpected filters: %+v", decoded.Filters)
	}

	unsub := NewUnsubscribeFrame("/trace")
	payload, _ = unsub.Encode()
	decoded, _ = Decode(payload)
	if decoded.Type != FrameUnsubscribe {
		t.Errorf("Type = %v, want %v", decoded.Type, FrameUnsubscribe)
	}
}

func TestEvent_IsTrace(t *testing.T) {
	plain := &Event{Level: LevelInfo}
	if plain.IsTrace() {
		t.Error("plain log event reported as trace")
	}

	traced := &Event{Level: LevelInfo, Kind: KindEntry, FunctionName: "doWork"}
	if !traced.IsTrace() {
		t.Error("trace event not reported as trace")
	}
}
