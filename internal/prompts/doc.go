// Package prompts contains the system prompt sent to the model on every
// agent turn and the Korean review prompt.
//
// Prompt text is Go code rather than config files because it is program logic:
// sections are assembled and interpolated at runtime, and tests can assert on
// their contents. User-facing configuration lives in config.yaml; the
// system_prompt key there replaces the built prompt entirely.
//
// Convention: each prompt section gets its own file (identity.go,
// guidelines.go, knowledge.go, topics.go) with an exported function or
// constant. Builder stitches them together and caches the result.
package prompts
