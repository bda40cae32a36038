package domain

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// ReconcileMetrics is returned by GET /v1/metrics/reconcile.
type ReconcileMetrics struct {
	CommittedRows    int64   `json:"committedRows"`
	FailedRows       int64   `json:"failedRows"`
	BalancedChecks   int64   `json:"balancedChecks"`
	UnbalancedChecks int64   `json:"unbalancedChecks"`
	StaleSelections  int64   `json:"staleSelections"`
	ExternalErrors   int64   `json:"externalErrors"`
	CacheHitRate     float64 `json:"cacheHitRate"`
	Period           string  `json:"period"`
}
