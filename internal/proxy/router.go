package proxy

import (
	"context"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"vlm-gateway/internal/backend"
	"vlm-gateway/internal/config"
	"vlm-gateway/internal/metrics"
)

type RouteName string

const (
	RouteTeacher RouteName = "teacher"
	RouteStudent RouteName = "student"
	RouteDefault RouteName = "default"
)

// Route binds a logical route to an adapter and its call policy.
type Route struct {
	Adapter      backend.Adapter
	Timeout      time.Duration
	PromptSuffix string
}

// Router dispatches normalized requests to backends. It never retries; a failure is reported once.
type Router struct {
	dispatcher   *backend.Dispatcher
	metrics      *metrics.Metrics
	routes       map[RouteName]Route
	statsTimeout time.Duration
}

func NewRouter(dispatcher *backend.Dispatcher, m *metrics.Metrics, statsTimeout time.Duration) *Router {
	return &Router{
		dispatcher:   dispatcher,
		metrics:      m,
		routes:       make(map[RouteName]Route),
		statsTimeout: statsTimeout,
	}
}

// NewFromConfig registers the teacher, student and default routes described by cfg.
func NewFromConfig(cfg *config.Config, dispatcher *backend.Dispatcher, m *metrics.Metrics) *Router {
	g := cfg.Gateway
	teacher := backend.NewTeacherAdapter(cfg.TeacherAPIURL)
	student := backend.NewStudentAdapter(cfg.StudentAPIURL, cfg.StudentModelName, g.StudentMaxTokens)

	r := NewRouter(dispatcher, m, g.StatsTimeout)
	r.Register(RouteTeacher, Route{Adapter: teacher, Timeout: g.TeacherTimeout, PromptSuffix: g.TeacherPromptSuffix})
	r.Register(RouteStudent, Route{Adapter: student, Timeout: g.InferenceTimeout})

	var primary backend.Adapter = teacher
	if cfg.DefaultBackend == string(RouteStudent) {
		primary = student
	}
	r.Register(RouteDefault, Route{Adapter: primary, Timeout: g.InferenceTimeout})

	log.WithFields(log.Fields{
		"teacher":       teacher.InferenceURL(),
		"student":       student.InferenceURL(),
		"student_model": student.Model(),
		"default":       primary.Name(),
	}).Info("registered backend routes")

	return r
}

func (r *Router) Register(name RouteName, route Route) {
	r.routes[name] = route
}

// Lookup returns the route registered under name.
func (r *Router) Lookup(name RouteName) (Route, bool) {
	route, ok := r.routes[name]
	return route, ok
}

// Route sends req through the named route and returns the normalized result.
func (r *Router) Route(ctx context.Context, name RouteName, req backend.NormalizedRequest) backend.Result {
	route, ok := r.routes[name]
	if !ok {
		return backend.Failure(backend.BadRequest("unknown route %q", name))
	}
	adapter := route.Adapter

	start := time.Now()
	result := r.call(ctx, route, req.WithSuffix(route.PromptSuffix))
	elapsed := time.Since(start)

	r.observe(name, adapter.Name(), elapsed, result.Err)
	if !result.OK() {
		return result
	}
	result.Latency = elapsed
	return result
}

func (r *Router) call(ctx context.Context, route Route, req backend.NormalizedRequest) backend.Result {
	adapter := route.Adapter
	payload, err := adapter.Encode(req)
	if err != nil {
		return backend.Failure(backend.BadRequest("failed to encode request for %s: %v", adapter.Name(), err))
	}

	raw, berr := r.dispatcher.Send(ctx, adapter.Name(), adapter.InferenceURL(), payload, route.Timeout)
	if berr != nil {
		return backend.Failure(berr)
	}
	return adapter.Decode(raw.StatusCode, raw.Body)
}

// Passthrough forwards req to the default backend and returns its reply undecoded.
// A non-200 reply is reported as a backend_error carrying the upstream status and body.
func (r *Router) Passthrough(ctx context.Context, req backend.NormalizedRequest) (backend.RawResponse, *backend.Error) {
	route, ok := r.routes[RouteDefault]
	if !ok {
		return backend.RawResponse{}, backend.BadRequest("no default route configured")
	}
	adapter := route.Adapter

	payload, err := adapter.Encode(req)
	if err != nil {
		return backend.RawResponse{}, backend.BadRequest("failed to encode request for %s: %v", adapter.Name(), err)
	}

	start := time.Now()
	raw, berr := r.dispatcher.Send(ctx, adapter.Name(), adapter.InferenceURL(), payload, route.Timeout)
	if berr == nil && raw.StatusCode != http.StatusOK {
		berr = backend.StatusError(adapter.Name(), raw.StatusCode, raw.Body)
	}
	r.observe(RouteDefault, adapter.Name(), time.Since(start), berr)

	return raw, berr
}

// Stats fetches the default backend's stats document.
func (r *Router) Stats(ctx context.Context) (backend.RawResponse, *backend.Error) {
	route, ok := r.routes[RouteDefault]
	if !ok || route.Adapter.StatsURL() == "" {
		return backend.RawResponse{}, backend.Unavailable(string(RouteDefault), fmt.Errorf("default backend exposes no stats endpoint"))
	}
	adapter := route.Adapter

	raw, berr := r.dispatcher.Get(ctx, adapter.Name(), adapter.StatsURL(), r.statsTimeout)
	if berr == nil && raw.StatusCode != http.StatusOK {
		berr = backend.StatusError(adapter.Name(), raw.StatusCode, raw.Body)
	}
	return raw, berr
}

func (r *Router) observe(name RouteName, backendName string, elapsed time.Duration, berr *backend.Error) {
	kind := ""
	fields := log.Fields{
		"route":   name,
		"backend": backendName,
		"latency": elapsed.Round(time.Millisecond).String(),
	}
	if berr != nil {
		kind = string(berr.Kind)
		log.WithFields(fields).WithError(berr).Warn("backend call failed")
	} else {
		log.WithFields(fields).Info("backend call completed")
	}
	r.metrics.ObserveBackendCall(string(name), backendName, elapsed, kind)
}
