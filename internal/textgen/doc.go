// Package textgen abstracts the text-generation backend used by the
// extraction and confirmation stages.
//
// A Backend is chosen once per run by New from configuration. Hosted
// providers (OpenRouter, OpenAI, Anthropic, Gemini, Algolia Generative
// Experiences) receive the instructions as a system prompt; the local path
// (Ollama) receives a single prompt laid out by BuildPrompt. Every provider
// reports HTTP failures as *StatusError so one retry policy classifies 429 and
// 5xx the same way everywhere.
//
// Providers that need one-time registration before they can answer, such as
// the Algolia backend, also implement Preparer.
package textgen
