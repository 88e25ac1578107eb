package api

// HealthResponse представляет ответ health check локального прокси
type HealthResponse struct {
	Status  string   `json:"status"`
	Version string   `json:"version,omitempty"`
	Phase   string   `json:"phase"`
	Caches  []string `json:"caches"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
