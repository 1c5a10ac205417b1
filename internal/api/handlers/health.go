// health.go — пробы и метрики каталога.
// /health/live — процесс жив, /health/ready — PostgreSQL и JWKS провайдера
// идентификации доступны, /metrics — Prometheus.
package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noeliagrande/dwarfs4mosaic/internal/config"
)

const serviceName = "dwarfs-catalog"

// Статусы готовности.
const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusFail     = "fail"
)

// ReadinessChecker — проверка готовности одной зависимости.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и сообщение.
	CheckReady() (status string, message string)
}

// namedCheck — зависимость под именем, которое видно в ответе.
type namedCheck struct {
	name    string
	checker ReadinessChecker
}

// HealthHandler — обработчик проб и метрик.
type HealthHandler struct {
	checks      []namedCheck
	promHandler http.Handler
}

// NewHealthHandler создаёт обработчик проб.
// nil-checker считается неготовым (fail).
func NewHealthHandler(pgChecker, idpChecker ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		checks: []namedCheck{
			{name: "postgresql", checker: pgChecker},
			{name: "idp", checker: idpChecker},
		},
		promHandler: promhttp.Handler(),
	}
}

type healthCheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

type healthReadyResponse struct {
	healthLiveResponse
	Checks map[string]healthCheckResult `json:"checks"`
}

func newLiveResponse(status string) healthLiveResponse {
	return healthLiveResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   serviceName,
	}
}

// HealthLive — процесс жив, зависимости не проверяются.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newLiveResponse(statusOK))
}

// HealthReady опрашивает зависимости параллельно: медленный JWKS
// не должен задерживать ответ на время проверки PostgreSQL.
// 503 только при итоговом fail, degraded отвечает 200.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	results := make([]healthCheckResult, len(h.checks))
	var wg sync.WaitGroup
	for i, c := range h.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = check(c.checker)
		}()
	}
	wg.Wait()

	resp := healthReadyResponse{Checks: make(map[string]healthCheckResult, len(h.checks))}
	statuses := make([]string, 0, len(results))
	for i, c := range h.checks {
		resp.Checks[c.name] = results[i]
		statuses = append(statuses, results[i].Status)
	}
	resp.healthLiveResponse = newLiveResponse(overallStatus(statuses...))

	code := http.StatusOK
	if resp.Status == statusFail {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// GetMetrics — Prometheus метрики.
func (h *HealthHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

func check(c ReadinessChecker) healthCheckResult {
	if c == nil {
		return healthCheckResult{Status: statusFail, Message: "не инициализирован"}
	}
	status, msg := c.CheckReady()
	return healthCheckResult{Status: status, Message: msg}
}

// overallStatus: любой fail даёт fail, иначе любой degraded даёт degraded.
func overallStatus(statuses ...string) string {
	result := statusOK
	for _, s := range statuses {
		switch s {
		case statusFail:
			return statusFail
		case statusDegraded:
			result = statusDegraded
		}
	}
	return result
}
