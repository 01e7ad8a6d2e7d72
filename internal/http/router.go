package httpx

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Mayuresh-22/NimbusWave/internal/repository"
	"github.com/Mayuresh-22/NimbusWave/internal/service/assistant"
	"github.com/Mayuresh-22/NimbusWave/internal/service/deployment"
	"github.com/Mayuresh-22/NimbusWave/internal/service/identity"
	"github.com/Mayuresh-22/NimbusWave/internal/service/logs"
	"github.com/Mayuresh-22/NimbusWave/internal/service/project"
	"github.com/Mayuresh-22/NimbusWave/internal/service/user"
	"github.com/Mayuresh-22/NimbusWave/internal/ws"
	"github.com/Mayuresh-22/NimbusWave/pkg/config"
)

// IdentityVerifier resolves bearer tokens to authenticated identities.
type IdentityVerifier interface {
	GetUser(ctx context.Context, token string) (*identity.Identity, error)
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	identity   IdentityVerifier
	user       user.Service
	project    project.Service
	deployment *deployment.Service
	assistant  assistant.Service
	logs       logs.Service
	upgrader   websocket.Upgrader
	limiter    RateLimiter
	dbHealth   func(context.Context) error
	cfg        config.APIConfig
	appClient  *http.Client

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
}

const (
	rateWindowDefault  = time.Minute
	rateWindowRealtime = 30 * time.Second
	rateLimitOnboard   = 10
	rateLimitAssistant = 30
	rateLimitUserWrite = 60
	rateLimitUserRead  = 120
	rateLimitDeploy    = 10
	rateLimitServeApp  = 300
	rateLimitWebsocket = 30
	healthCheckTimeout = 2 * time.Second
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, verifier IdentityVerifier, userSvc user.Service, projectSvc project.Service, deploySvc *deployment.Service, assistantSvc assistant.Service, logSvc logs.Service, limiter RateLimiter, dbHealth func(context.Context) error, cfg config.APIConfig) *Router {
	r := &Router{
		mux:        http.NewServeMux(),
		logger:     logger,
		identity:   verifier,
		user:       userSvc,
		project:    projectSvc,
		deployment: deploySvc,
		assistant:  assistantSvc,
		logs:       logSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:   limiter,
		dbHealth:  dbHealth,
		cfg:       cfg,
		appClient: &http.Client{Timeout: cfg.UpstreamTimeout},
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/user", r.audit("/user", r.handlerAuthRate("/user", rateLimitOnboard, rateWindowDefault, r.handleOnboard)))
	r.mux.HandleFunc("/ai/chat", r.audit("/ai/chat", r.handlerAuthRate("/ai/chat", rateLimitAssistant, rateWindowDefault, r.handleChat)))
	r.mux.HandleFunc("/project", r.audit("/project", r.handlerAuthRate("/project", rateLimitUserWrite, rateWindowDefault, r.handleProject)))
	r.mux.HandleFunc("/project/deploy", r.audit("/project/deploy", r.handlerAuthRate("/project/deploy", rateLimitDeploy, rateWindowDefault, r.handleDeploy)))
	r.mux.HandleFunc("/app/", r.audit("/app", r.withRateLimit("/app", rateLimitServeApp, rateWindowDefault, rateLimitKeyIP, r.handleServeApp)))
	r.mux.HandleFunc("/ws/logs", r.audit("/ws/logs", r.handlerAuthRate("/ws/logs", rateLimitWebsocket, rateWindowRealtime, r.handleLogsWS)))
}

func (r *Router) handleOnboard(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	caller, ok := userFromContext(req.Context())
	if !ok {
		r.missingAuthContext(w, req)
		return
	}
	var payload onboardRequest
	if err := decodeAndValidate(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	_, err := r.user.Onboard(req.Context(), caller.ID, payload.Email, payload.MetaData)
	if err != nil {
		if errors.Is(err, user.ErrAlreadyOnboarded) {
			writeSuccess(w, http.StatusOK, "User already exists, Try logging in", nil)
			return
		}
		r.logger.Error("user onboarding failed", "user_id", caller.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}
	writeSuccess(w, http.StatusOK, "User created", nil)
}

func (r *Router) handleChat(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload chatRequest
	if err := decodeAndValidate(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reply, err := r.assistant.Chat(req.Context(), payload.ChatID, payload.Message)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Chat not found")
			return
		}
		r.logger.Error("assistant chat failed", "chat_id", payload.ChatID, "error", err)
		writeError(w, http.StatusInternalServerError, "Assistant is unavailable, try again later")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (r *Router) handleProject(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodPost:
		r.handleProjectCreate(w, req)
	case http.MethodGet:
		r.handleProjectGet(w, req)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleProjectCreate(w http.ResponseWriter, req *http.Request) {
	caller, ok := userFromContext(req.Context())
	if !ok {
		r.missingAuthContext(w, req)
		return
	}
	var payload createProjectRequest
	if err := decodeAndValidate(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !payload.Default {
		writeError(w, http.StatusBadRequest, "only default project creation is supported")
		return
	}
	result, err := r.project.Create(req.Context(), caller.ID)
	if err != nil {
		switch {
		case errors.Is(err, project.ErrUserNotOnboarded):
			writeError(w, http.StatusNotFound, "User not found, complete onboarding process first.")
		case errors.Is(err, project.ErrInsufficientCredits):
			// business refusal, not a transport failure
			writeError(w, http.StatusOK, "Insufficient project credits, purchase more credits.")
		default:
			r.logger.Error("project creation failed", "user_id", caller.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "Project creation failed")
		}
		return
	}
	writeSuccess(w, http.StatusOK, "Project created", result)
}

func (r *Router) handleProjectGet(w http.ResponseWriter, req *http.Request) {
	caller, ok := userFromContext(req.Context())
	if !ok {
		r.missingAuthContext(w, req)
		return
	}
	id := req.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Project ID is required")
		return
	}
	overview, err := r.project.Get(req.Context(), id, caller.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Project not found")
			return
		}
		r.logger.Error("project lookup failed", "project_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Project lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: "success", Data: overview})
}

func (r *Router) handleDeploy(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	caller, ok := userFromContext(req.Context())
	if !ok {
		r.missingAuthContext(w, req)
		return
	}

	maxBytes := r.cfg.MaxArchiveBytes
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	// headroom for the non-file form fields
	req.Body = http.MaxBytesReader(w, req.Body, maxBytes+(64<<10))
	if err := req.ParseMultipartForm(maxBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form or file too large")
		return
	}

	form := deployForm{
		ProjectID:   req.FormValue("project_id"),
		Name:        req.FormValue("project_name"),
		Description: req.FormValue("project_description"),
		Framework:   req.FormValue("project_framework"),
	}
	if err := checkStruct(&form); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := req.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	if header.Size > maxBytes {
		writeError(w, http.StatusBadRequest, "file exceeds the maximum archive size")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType != "application/zip" && contentType != "application/x-zip-compressed" {
		writeError(w, http.StatusBadRequest, "Invalid file type, only zip files are allowed")
		return
	}
	raw, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read uploaded file")
		return
	}

	result, err := r.deployment.Deploy(req.Context(), deployment.Input{
		UserID:    caller.ID,
		ProjectID: form.ProjectID,
		Meta: deployment.Meta{
			Name:        form.Name,
			Description: form.Description,
			Framework:   form.Framework,
		},
		Archive:     raw,
		ContentType: contentType,
	})
	if err != nil {
		r.writeDeployError(w, form.ProjectID, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Project deployed successfully", result)
}

func (r *Router) writeDeployError(w http.ResponseWriter, projectID string, err error) {
	var pipelineErr *deployment.PipelineError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "Project not found")
	case errors.Is(err, deployment.ErrUnknownFramework):
		writeError(w, http.StatusBadRequest, "Project framework is invalid or not supported")
	case errors.Is(err, deployment.ErrQuotaExhausted):
		writeError(w, http.StatusPaymentRequired, "Deployment limit reached, wait for the monthly reset")
	case errors.Is(err, deployment.ErrInProgress):
		writeError(w, http.StatusConflict, "Another deployment is already in progress for this project")
	case errors.As(err, &pipelineErr):
		writeErrorData(w, http.StatusInternalServerError, "Project deployment failed", map[string]string{
			"deployment_logs": pipelineErr.Logs,
		})
	default:
		r.logger.Error("deployment failed", "project_id", projectID, "error", err)
		writeError(w, http.StatusInternalServerError, "Project deployment failed")
	}
}

// handleServeApp resolves the app name to its deployed entry document and
// proxies the HTML.
func (r *Router) handleServeApp(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	trimmed := strings.TrimPrefix(req.URL.Path, "/app/")
	appName := trimmed
	if idx := strings.IndexByte(trimmed, '/'); idx >= 0 {
		appName = trimmed[:idx]
	}
	if appName == "" {
		writeHTML(w, http.StatusNotFound, deploymentNotFoundHTML)
		return
	}
	entryURL, err := r.project.ResolveApp(req.Context(), appName)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			r.logger.Error("app resolution failed", "app_name", appName, "error", err)
		}
		writeHTML(w, http.StatusNotFound, deploymentNotFoundHTML)
		return
	}

	upstream, err := http.NewRequestWithContext(req.Context(), http.MethodGet, entryURL, nil)
	if err != nil {
		writeHTML(w, http.StatusNotFound, deploymentNotFoundHTML)
		return
	}
	resp, err := r.appClient.Do(upstream)
	if err != nil {
		r.logger.Error("entry document fetch failed", "app_name", appName, "error", err)
		writeError(w, http.StatusBadGateway, "deployment is temporarily unavailable")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		r.logger.Warn("entry document fetch returned non-200", "app_name", appName, "status", resp.StatusCode)
		writeHTML(w, http.StatusNotFound, deploymentNotFoundHTML)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, resp.Body)
}

func (r *Router) handleLogsWS(w http.ResponseWriter, req *http.Request) {
	if _, ok := userFromContext(req.Context()); !ok {
		r.missingAuthContext(w, req)
		return
	}
	projectID := req.URL.Query().Get("project_id")
	if projectID == "" {
		writeError(w, http.StatusBadRequest, "project_id query parameter required")
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.logs.Hub().Register(projectID, client)
	go func() {
		defer func() {
			r.logs.Hub().Unregister(projectID, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) missingAuthContext(w http.ResponseWriter, req *http.Request) {
	r.logger.Error("auth context missing", "path", req.URL.Path)
	writeError(w, http.StatusInternalServerError, "authorization context missing")
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if user, ok := userFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", user.ID)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (sr *statusRecorder) Push(target string, opts *http.PushOptions) error {
	if p, ok := sr.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
