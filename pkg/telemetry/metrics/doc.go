// Package metrics provides Prometheus collectors for policy evaluation and
// audit storage. Collectors are registered against a caller-supplied
// registry so embedding hosts control exposition; Handler wraps the registry
// for serving on an HTTP endpoint.
package metrics
