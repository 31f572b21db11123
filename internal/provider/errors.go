package provider

import "errors"

// Error taxonomy for the gateway. Chunk-level and aggregation-level
// recovery happens in the orchestrator; only these three surface from this
// package.
var (
	// ErrProviderUnavailable means the provider has no resolvable API
	// credential or no usable model list.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrAllModelsFailed means every model in a provider's fallback list
	// returned a non-success response or empty content.
	ErrAllModelsFailed = errors.New("all models failed")

	// ErrAllProvidersFailed means every configured provider was exhausted.
	ErrAllProvidersFailed = errors.New("all providers failed")
)
