// Package model defines the provider‑agnostic abstractions and concrete
// helpers for interacting with language models.
//
// Core goals:
//   - Unify streaming + non‑streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition, core.FunctionCall)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate deterministic mocking for tests (ScriptedModel)
//
// Providers (OpenAI, Anthropic, Gemini) implement the Model interface in
// sub-packages so the loop remains decoupled from vendor SDKs. WithRetry adds
// an optional backoff decorator around any Model.
package model
