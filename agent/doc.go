// Package agent contains prebuilt tool-calling agents. An Agent bundles a
// model client, an instruction (system prompt) and a tool catalog, and answers
// questions by driving the flow loop over a [system, user] conversation.
//
// NewReactAgent is the prebuilt "react" variant: the same loop, seeded with a
// prompt that tells the model when to reach for each tool.
package agent
