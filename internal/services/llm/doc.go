// Package llm wraps the chat-completions endpoint that drafts video scripts.
//
// The client speaks the OpenAI-compatible JSON schema so any compatible
// provider works. Responses are requested in JSON mode and decoded leniently
// because models wrap payloads in code fences or prose more often than the
// schema admits.
//
// Errors leaving this package are classified with the services markers so the
// recovery manager can act on them without inspecting HTTP details.
package llm
