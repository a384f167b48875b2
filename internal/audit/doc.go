// Package audit relays session lifecycle events to a caller-supplied sink.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines, slog, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event]: structured record with timestamp, type, principal, session, IP and reason.
//
// # Architecture boundaries
//
// Recording is fire-and-forget. A slow, full or panicking sink never fails
// the operation that emitted the event.
//
// # What this package must NOT do
//
//   - Decide which events to emit; the Engine does.
//   - Import goGuard or any sibling internal package.
package audit
