// Package trace records what the remapping pass and the CLI are doing.
//
// Tracers are propagated via context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	ctx, span := trace.Start(ctx, trace.ScopePhase, "skeletons")
//	defer span.End("")
//
// # Levels
//
//   - LevelOff: no tracing
//   - LevelError: failures only
//   - LevelPhase: driver commands and pass runs
//   - LevelDetail: pass phases
//   - LevelDebug: every rewritten type and global
//
// # Storage
//
// StreamTracer writes each event immediately, RingTracer keeps the last N
// events in memory for dumping after a failure, MultiTracer combines them.
package trace
