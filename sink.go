package phasetwo

import (
	"context"
	"encoding/hex"

	"go.uber.org/zap"
)

// DiagnosticKind identifies what a DiagnosticEvent reports.
type DiagnosticKind uint32

const (
	// DiagnosticRedeemer is emitted before the engine evaluates a redeemer.
	// Payload holds the redeemer CBOR.
	DiagnosticRedeemer DiagnosticKind = iota
	// DiagnosticMessage carries free text from the engine.
	DiagnosticMessage
)

func (k DiagnosticKind) String() string {
	switch k {
	case DiagnosticRedeemer:
		return "redeemer"
	case DiagnosticMessage:
		return "message"
	default:
		return "unknown"
	}
}

// DiagnosticEvent is pushed by the engine while a call is in progress.
type DiagnosticEvent struct {
	Kind        DiagnosticKind
	ScriptIndex int
	Payload     []byte
}

// Sink accepts diagnostic events. Accept is called synchronously from inside
// the engine call and must not retain Payload.
type Sink interface {
	Accept(event DiagnosticEvent)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(event DiagnosticEvent)

func (f SinkFunc) Accept(event DiagnosticEvent) {
	f(event)
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Accept(DiagnosticEvent) {}

// LogSink writes events to a zap logger at debug level.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Accept(event DiagnosticEvent) {
	if s.Logger == nil {
		return
	}
	fields := []zap.Field{
		zap.Stringer("kind", event.Kind),
		zap.Int("script_index", event.ScriptIndex),
	}
	if event.Kind == DiagnosticMessage {
		fields = append(fields, zap.String("message", string(event.Payload)))
	} else {
		fields = append(fields, zap.String("payload", hex.EncodeToString(event.Payload)))
	}
	s.Logger.Debug("engine diagnostic", fields...)
}

type sinkKey struct{}

func withSink(ctx context.Context, sink Sink) context.Context {
	return context.WithValue(ctx, sinkKey{}, sink)
}

func sinkFrom(ctx context.Context) Sink {
	if sink, ok := ctx.Value(sinkKey{}).(Sink); ok && sink != nil {
		return sink
	}
	return NopSink{}
}
