// Package llm provides an OpenRouter-compatible chat client used as the
// default hosted text-generation backend.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Complete: send system/user prompts, receive the raw completion text.
// Client.HealthCheck: verify API key and model availability.
//
// # Errors
//
// The client makes one request per call. Non-2xx responses are returned as
// *services.StatusError (429 classifies as rate limited, 408/5xx as
// transient), transport failures are tagged by services.ClassifyTransport,
// and an empty completion is transient. Retrying is the caller's job.
package llm
