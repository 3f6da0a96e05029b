// Package tracefilter is the runtime of filters generated by dtc.
//
// A generated filter embeds a Plan as JSON and compiles it once with
// MustLoad. The resulting Program evaluates pattern levels against hops and
// runs one of two evaluation strategies:
//
//   - distributed: every proxy runs a HopFilter. Partial matches travel as
//     an AccumulatorSet in request and response headers and converge at
//     the root level, which enqueues completed matches for the
//     AggregationFilter.
//   - centralized: a RootFilter at the top of the trace fetches the
//     assembled trace and runs MatchTrace.
//
// Both strategies produce the same matches for the same trace; Evaluate
// runs either one in process.
//
// Predicates that fail to evaluate are a silent non-match. Nothing in the
// request path returns an error for a query that is not satisfied.
package tracefilter
