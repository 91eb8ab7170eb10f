package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/copyleftdev/descent/internal/config"
	apierr "github.com/copyleftdev/descent/internal/errors"
	"github.com/copyleftdev/descent/internal/logging"
	"github.com/copyleftdev/descent/internal/optimization"
	"github.com/copyleftdev/descent/internal/optimization/functions"
	"github.com/copyleftdev/descent/internal/optimization/solvers"
)

// Logger defines the logging interface used by the server
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Server implements the HTTP and JSON-RPC minimization service. Jobs run in
// their own goroutines and are polled or awaited by ID.
type Server struct {
	cfg    *config.Config
	logger Logger
	jobs   *jobs
}

// NewServer creates a server. Its metrics are registered with reg, which
// may be nil.
func NewServer(cfg *config.Config, logger *logging.Logger, reg prometheus.Registerer) (*Server, error) {
	metrics, err := NewMetrics(reg)
	if err != nil {
		return nil, err
	}

	zlog := logging.NewZapLogger(logger).Named("jobs")
	return &Server{
		cfg:    cfg,
		logger: logger,
		jobs: newJobs(jobsConfig{
			maxIterations:  cfg.Solver.MaxIterations,
			iterationLimit: cfg.Solver.IterationLimit,
			epsilon:        cfg.Solver.Epsilon,
			retain:         cfg.Solver.RetainJobs,
			maxDims:        cfg.Solver.MaxDims,
		}, zlog, metrics),
	}, nil
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/minimize", s.handleMinimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/minimize/{id}", s.handleCancel)
		r.Get("/solvers", s.handleList)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// Close cancels the running jobs and waits for them to stop.
func (s *Server) Close() error {
	s.jobs.Close()
	return nil
}

// SolverInfo describes a registered solver.
type SolverInfo struct {
	Name     string                 `json:"name"`
	Config   optimization.Params    `json:"config"`
	Tunables []optimization.Tunable `json:"tunables"`
}

// Catalog lists the solvers and test functions the service can run.
type Catalog struct {
	Solvers   []SolverInfo     `json:"solvers"`
	Functions []functions.Spec `json:"functions"`
}

func catalog() (Catalog, error) {
	var c Catalog
	for _, name := range solvers.Names() {
		solver, err := solvers.New(name, nil)
		if err != nil {
			return Catalog{}, err
		}
		c.Solvers = append(c.Solvers, SolverInfo{Name: name, Config: solver.Config(), Tunables: solver.Tunables()})
	}
	for _, name := range functions.Names() {
		c.Functions = append(c.Functions, functions.Registry[name])
	}
	return c, nil
}

// minimizeParams are the parameters of POST /minimize and solver.minimize.
type minimizeParams struct {
	MinimizeRequest
	// Wait blocks the request until the job finishes
	Wait bool `json:"wait,omitempty"`
}

type idParams struct {
	ID string `json:"id"`
}

func (s *Server) minimize(ctx context.Context, p minimizeParams) (JobStatus, error) {
	status, err := s.jobs.Submit(p.MinimizeRequest)
	if err != nil || !p.Wait {
		return status, err
	}
	return s.jobs.Wait(ctx, status.ID)
}

func (s *Server) handleMinimize(w http.ResponseWriter, r *http.Request) {
	var p minimizeParams
	if err := decode(r.Body, &p); err != nil {
		s.respondError(w, r, apierr.BadRequest("invalid request body: %v", err))
		return
	}
	if wait := r.URL.Query().Get("wait"); wait != "" {
		v, err := strconv.ParseBool(wait)
		if err != nil {
			s.respondError(w, r, apierr.BadRequest("invalid wait parameter %q", wait))
			return
		}
		p.Wait = v
	}

	status, err := s.minimize(r.Context(), p)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	code := http.StatusAccepted
	if status.State == JobFinished {
		code = http.StatusOK
	}
	respondJSON(w, code, status)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.jobs.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	status, err := s.jobs.Cancel(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, status)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	c, err := catalog()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// rpcRequest is a JSON-RPC 2.0 request. Params may be an object or an array
// holding one object.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

var nullID = json.RawMessage("null")

// handleJSONRPC handles JSON-RPC 2.0 requests. Requests without an id are
// notifications and get no response body.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondRPC(w, nullID, nil, &rpcError{Code: apierr.CodeParseError, Message: "parse error"})
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		s.respondRPC(w, idOrNull(req.ID), nil, &rpcError{Code: apierr.CodeInvalidRequest, Message: "invalid request"})
		return
	}

	result, rerr := s.dispatch(r.Context(), req)
	if rerr != nil {
		s.logger.Warn("rpc request failed", map[string]interface{}{
			"method":  req.Method,
			"code":    rerr.Code,
			"message": rerr.Message,
		})
	}

	if len(req.ID) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.respondRPC(w, req.ID, result, rerr)
}

func (s *Server) dispatch(ctx context.Context, req rpcRequest) (interface{}, *rpcError) {
	var (
		result interface{}
		err    error
	)

	switch req.Method {
	case "solver.minimize":
		var p minimizeParams
		if err = rpcParams(req.Params, &p); err == nil {
			result, err = s.minimize(ctx, p)
		}
	case "solver.status":
		var p idParams
		if err = rpcParams(req.Params, &p); err == nil {
			result, err = s.jobs.Get(p.ID)
		}
	case "solver.cancel":
		var p idParams
		if err = rpcParams(req.Params, &p); err == nil {
			result, err = s.jobs.Cancel(p.ID)
		}
	case "solver.list":
		result, err = catalog()
	default:
		return nil, &rpcError{Code: apierr.CodeMethodNotFound, Message: "method not found: " + req.Method}
	}

	if err != nil {
		return nil, &rpcError{Code: apierr.Code(err), Message: err.Error()}
	}
	return result, nil
}

func rpcParams(raw json.RawMessage, v interface{}) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return apierr.BadRequest("missing params")
	}
	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil || len(list) != 1 {
			return apierr.BadRequest("params must be an object or an array of one object")
		}
		raw = list[0]
	}
	if err := decode(bytes.NewReader(raw), v); err != nil {
		return apierr.BadRequest("invalid params: %v", err)
	}
	return nil
}

func idOrNull(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return nullID
	}
	return id
}

// decode reads JSON keeping numbers as json.Number, so that integer solver
// parameters are not turned into floats.
func decode(r io.Reader, v interface{}) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) respondRPC(w http.ResponseWriter, id json.RawMessage, result interface{}, rerr *rpcError) {
	respondJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: id, Result: result, Error: rerr})
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := apierr.Status(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request error", map[string]interface{}{
			"path":  r.URL.Path,
			"error": err.Error(),
		})
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
