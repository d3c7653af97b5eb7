package http

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	// Status is "ok" when the memory backend answers, "degraded" otherwise.
	Status    string   `json:"status"`
	Transport string   `json:"transport"`
	Store     string   `json:"store"`
	Tools     []string `json:"tools"`
}
