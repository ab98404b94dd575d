package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
	Error       string `json:"error,omitempty"`
}

// FamilyMetrics is returned by GET /v1/metrics/family.
type FamilyMetrics struct {
	Operations    map[string]OperationOutcomes `json:"operations"`
	StorageErrors float64                      `json:"storageErrors"`
	Period        string                       `json:"period"`
}

// OperationOutcomes counts results of one operation by outcome kind.
type OperationOutcomes struct {
	Success float64            `json:"success"`
	Failed  map[string]float64 `json:"failed,omitempty"`
}

// ListResponse wraps list results.
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}
