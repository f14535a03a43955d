// Package llm is the boundary to the external language-model oracle that
// proposes merchant category codes for merchants the local resolver could not
// match. It supports OpenAI and Anthropic, with retry, rate limiting, and
// per-merchant response caching layered on top of the raw clients.
package llm
