// Package llm contains adapters for invoking large language models. It
// abstracts away provider-specific APIs and normalizes the completion
// lifecycle, including tool-call proposals, for the planner layer. The
// model's reasoning itself is treated as an opaque capability.
package llm
