package proxy

import (
	"encoding/json"
	"net/http"

	"github.com/financialdata-online/edge-cache/pkg/cache"
)

// HealthPath is served locally and never forwarded.
const HealthPath = "/health"

// Health is the status document served on HealthPath.
type Health struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
	Timestamp   string `json:"timestamp"`
	Backend     string `json:"backend"`
	Cache       string `json:"cache"`
}

func (h *Handler) health() *http.Response {
	doc := Health{
		Status:      "ok",
		Version:     h.version,
		Environment: h.environment,
		Timestamp:   h.now().UTC().Format(cache.CachedAtLayout),
		Backend:     h.backend,
		Cache:       h.store.Name(),
	}

	body, _ := json.Marshal(doc)

	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return newResponse(http.StatusOK, header, body)
}
