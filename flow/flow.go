// Package flow implements the agent loop: the router that alternates between
// model calls and tool execution until the model answers without requesting
// tools.
//
// Policies:
//   - Every tool-call request is answered by exactly one result with the same
//     id before the next model call, in request order.
//   - Unknown tools, undecodable arguments, tool errors and tool panics become
//     error results the model can react to; they never abort the run.
//   - Model failures abort the run wrapped in ErrModel and are not retried.
//   - The number of model calls is bounded (DefaultMaxSteps); exceeding it
//     returns core.ErrMaxIterations.
package flow
