package health

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"vlm-gateway/internal/backend"
	"vlm-gateway/internal/models"
)

const (
	Connected    = "connected"
	Disconnected = "disconnected"
	Unknown      = "unknown"
)

// Aggregator checks the default backend once per check. Check failures are reported, never returned.
type Aggregator struct {
	dispatcher *backend.Dispatcher
	backend    string
	healthURL  string
	timeout    time.Duration
}

func NewAggregator(dispatcher *backend.Dispatcher, adapter backend.Adapter, timeout time.Duration) *Aggregator {
	a := &Aggregator{dispatcher: dispatcher, timeout: timeout}
	if adapter != nil {
		a.backend = adapter.Name()
		a.healthURL = adapter.HealthURL()
	}
	return a
}

func (a *Aggregator) Check(ctx context.Context) models.HealthResponse {
	report := models.HealthResponse{
		Status:            "ok",
		Gateway:           "active",
		BackendConnection: Unknown,
	}
	if a.healthURL == "" {
		return report
	}

	raw, berr := a.dispatcher.Get(ctx, a.backend, a.healthURL, a.timeout)
	if berr != nil || raw.StatusCode != http.StatusOK {
		fields := log.Fields{"backend": a.backend, "url": a.healthURL}
		if berr != nil {
			log.WithFields(fields).WithError(berr).Debug("backend health check failed")
		} else {
			log.WithFields(fields).WithField("status", raw.StatusCode).Debug("backend health check returned non-200")
		}
		report.BackendConnection = Disconnected
		return report
	}

	report.BackendConnection = Connected
	report.ModelLoaded = modelLoaded(raw.Body)
	return report
}

// modelLoaded reads model_loaded from the health body; servers without the field answer 200 only once loaded.
func modelLoaded(body []byte) bool {
	if !gjson.ValidBytes(body) {
		return true
	}
	v := gjson.GetBytes(body, "model_loaded")
	if !v.Exists() {
		return true
	}
	return v.Bool()
}
