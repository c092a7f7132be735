// Package memory implements the session memory engine: per-session pending
// message buffers, LLM-driven chunk formation, and retrieval of condensed
// memory chunks by recency and similarity.
//
// The engine condenses long conversations into immutable, embedded chunks
// persisted through a pluggable vector driver, and assembles a retrieval
// context (recent chunks, relevant chunks, plot summary, active characters)
// for augmenting generation requests.
package memory
