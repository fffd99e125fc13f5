// Package metrics holds the Prometheus collectors shared by the API and the workers.
// Constructors accept a nil registerer and return inert collectors, which keeps tests quiet.
package metrics

const namespace = "stockflow"

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
