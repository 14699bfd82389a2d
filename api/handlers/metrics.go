package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/assetpilot/asset-tracker-api/api"
	"github.com/assetpilot/asset-tracker-api/config"
)

// MetricsHandler serves the in-memory request counters
type MetricsHandler struct{}

// GetMetrics returns the per-route counters and process totals
func (m MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := api.GetMetrics()

	routes := metrics.Routes()
	formatted := make([]map[string]interface{}, len(routes))
	for i, route := range routes {
		formatted[i] = map[string]interface{}{
			"method":      route.Method,
			"path":        route.Path,
			"count":       route.Count,
			"errorCount":  route.ErrorCount,
			"avgTimeMs":   route.AvgTime.Milliseconds(),
			"maxTimeMs":   route.MaxTime.Milliseconds(),
			"lastRequest": route.LastRequest,
		}
	}

	totalRequests, totalErrors, uptime := metrics.Summary()

	b, err := json.Marshal(map[string]interface{}{
		"totalRequests": totalRequests,
		"totalErrors":   totalErrors,
		"uptimeSeconds": int64(uptime.Seconds()),
		"routes":        formatted,
	})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
