// Package core provides the foundational domain types shared by the loop,
// the model adapters, the tools and the thread stores:
//
//   - Content / Part (role-based messages with text, tool calls and tool results)
//   - Conversation (ordered message buffer plus the call/result invariant check)
//   - Event (what the loop emits for every committed message)
//   - Thread / ThreadStore (conversations persisted by thread id)
//   - ToolContext (scoped execution surface handed to tools)
//   - StepLimiter (bounded model calls per run)
//
// Implementation concerns (providers, persistence backends, orchestration)
// live in sibling packages and depend on these small interfaces.
package core
