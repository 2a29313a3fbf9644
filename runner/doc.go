// Package runner drives an agent over persisted threads.
//
// A run locks the thread, loads its history, appends the user message and
// lets the loop commit each step (assistant tool calls, tool results, final
// answer) to the store as it happens. A later run on the same thread sees the
// whole conversation; a run that was interrupted between a tool-call request
// and its results resumes by executing the pending calls first.
package runner
