// Package testutil provides an in-process fake pipeline server, wire value
// factories and assertion helpers shared by driver and integration tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/lukeed/hrana/protocol"
)

// Server is a fake Hrana v3 endpoint. It decodes pipeline envelopes, answers
// execute and batch entries from a script queue or built-in defaults, and
// records every request it sees. Batch conditions are evaluated the way a
// real server evaluates them, including autocommit tracking across BEGIN,
// COMMIT and ROLLBACK, so synthesized transactions behave end to end.
type Server struct {
	srv *httptest.Server

	mu         sync.Mutex
	scripted   []protocol.StreamResult
	rules      []failRule
	requests   []protocol.PipelineRequest
	auths      []string
	probeCode  int
	autocommit bool
}

// failRule fails any statement whose SQL contains substr.
type failRule struct {
	substr string
	err    protocol.Error
}

// NewServer starts a fake pipeline server that stops with the test.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		probeCode:  http.StatusOK,
		autocommit: true,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v3/pipeline", s.handlePipeline)
	mux.HandleFunc("/v3", s.handleProbe)

	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.srv.Close)

	return s
}

// URL returns the server's base URL.
func (s *Server) URL() string {
	return s.srv.URL
}

// QueueExecute scripts the next execute entry's result.
func (s *Server) QueueExecute(res *protocol.StmtResult) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scripted = append(s.scripted, protocol.StreamResult{
		Type:     protocol.ResultOk,
		Response: &protocol.StreamResponse{Type: protocol.RequestExecute, Execute: res},
	})
	return s
}

// QueueBatch scripts the next batch entry's result.
func (s *Server) QueueBatch(res *protocol.BatchResult) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scripted = append(s.scripted, protocol.StreamResult{
		Type:     protocol.ResultOk,
		Response: &protocol.StreamResponse{Type: protocol.RequestBatch, Batch: res},
	})
	return s
}

// QueueError scripts a rejection for the next execute or batch entry.
func (s *Server) QueueError(code, message string) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scripted = append(s.scripted, protocol.StreamResult{
		Type:  protocol.ResultError,
		Error: &protocol.Error{Message: message, Code: code},
	})
	return s
}

// FailSQL makes every statement whose SQL contains substr fail with the
// given error. Inside a batch the failure is per-step; for an execute entry
// it rejects the entry.
func (s *Server) FailSQL(substr, code, message string) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rules = append(s.rules, failRule{
		substr: substr,
		err:    protocol.Error{Message: message, Code: code},
	})
	return s
}

// SetProbeStatus changes the status code returned by the capability probe.
func (s *Server) SetProbeStatus(code int) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.probeCode = code
	return s
}

// Requests returns a copy of every pipeline envelope received so far.
func (s *Server) Requests() []protocol.PipelineRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]protocol.PipelineRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastAuth returns the Authorization header of the most recent pipeline
// request, or "" when none arrived.
func (s *Server) LastAuth() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.auths) == 0 {
		return ""
	}
	return s.auths[len(s.auths)-1]
}

// PipelineCount returns how many pipeline envelopes arrived.
func (s *Server) PipelineCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.requests)
}

func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	code := s.probeCode
	s.mu.Unlock()

	w.WriteHeader(code)
}

func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req protocol.PipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed pipeline request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.auths = append(s.auths, r.Header.Get("Authorization"))

	results := make([]protocol.StreamResult, 0, len(req.Requests))
	for _, entry := range req.Requests {
		results = append(results, s.serve(entry))
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(protocol.PipelineResponse{Results: results})
}

// serve answers one pipeline entry. Caller holds the lock.
func (s *Server) serve(entry protocol.StreamRequest) protocol.StreamResult {
	switch entry.Type {
	case protocol.RequestClose:
		return protocol.StreamResult{
			Type:     protocol.ResultOk,
			Response: &protocol.StreamResponse{Type: protocol.RequestClose},
		}

	case protocol.RequestExecute:
		if res, ok := s.popScript(); ok {
			return res
		}
		if entry.Stmt != nil {
			if ruleErr := s.matchRule(entry.Stmt.SQL); ruleErr != nil {
				return protocol.StreamResult{Type: protocol.ResultError, Error: ruleErr}
			}
			s.trackAutocommit(entry.Stmt.SQL)
		}
		return protocol.StreamResult{
			Type:     protocol.ResultOk,
			Response: &protocol.StreamResponse{Type: protocol.RequestExecute, Execute: &protocol.StmtResult{}},
		}

	case protocol.RequestBatch:
		if res, ok := s.popScript(); ok {
			return res
		}
		return protocol.StreamResult{
			Type:     protocol.ResultOk,
			Response: &protocol.StreamResponse{Type: protocol.RequestBatch, Batch: s.evalBatch(entry.Batch)},
		}

	default:
		return protocol.StreamResult{
			Type:  protocol.ResultError,
			Error: &protocol.Error{Message: "unknown request type " + entry.Type},
		}
	}
}

func (s *Server) popScript() (protocol.StreamResult, bool) {
	if len(s.scripted) == 0 {
		return protocol.StreamResult{}, false
	}
	res := s.scripted[0]
	s.scripted = s.scripted[1:]
	return res, true
}

func (s *Server) matchRule(sql string) *protocol.Error {
	for _, rule := range s.rules {
		if strings.Contains(sql, rule.substr) {
			err := rule.err
			return &err
		}
	}
	return nil
}

// evalBatch runs a batch's steps in order, honoring conditions against the
// outcomes of earlier steps. Caller holds the lock.
func (s *Server) evalBatch(batch *protocol.Batch) *protocol.BatchResult {
	if batch == nil {
		return &protocol.BatchResult{}
	}

	n := len(batch.Steps)
	out := &protocol.BatchResult{
		StepResults: make([]*protocol.StmtResult, n),
		StepErrors:  make([]*protocol.Error, n),
	}
	okSteps := make([]bool, n)
	errSteps := make([]bool, n)

	for i, step := range batch.Steps {
		if step.Condition != nil && !s.evalCond(*step.Condition, okSteps, errSteps) {
			continue
		}
		if ruleErr := s.matchRule(step.Stmt.SQL); ruleErr != nil {
			out.StepErrors[i] = ruleErr
			errSteps[i] = true
			continue
		}
		out.StepResults[i] = &protocol.StmtResult{}
		okSteps[i] = true
		s.trackAutocommit(step.Stmt.SQL)
	}
	return out
}

func (s *Server) evalCond(c protocol.BatchCond, okSteps, errSteps []bool) bool {
	switch c.Type {
	case "ok":
		return c.Step != nil && int(*c.Step) < len(okSteps) && okSteps[*c.Step]
	case "error":
		return c.Step != nil && int(*c.Step) < len(errSteps) && errSteps[*c.Step]
	case "not":
		return c.Cond != nil && !s.evalCond(*c.Cond, okSteps, errSteps)
	case "and":
		for _, sub := range c.Conds {
			if !s.evalCond(sub, okSteps, errSteps) {
				return false
			}
		}
		return true
	case "or":
		for _, sub := range c.Conds {
			if s.evalCond(sub, okSteps, errSteps) {
				return true
			}
		}
		return false
	case "is_autocommit":
		return s.autocommit
	default:
		return false
	}
}

func (s *Server) trackAutocommit(sql string) {
	upper := strings.ToUpper(strings.TrimSpace(sql))
	switch {
	case strings.HasPrefix(upper, "BEGIN"):
		s.autocommit = false
	case strings.HasPrefix(upper, "COMMIT"), strings.HasPrefix(upper, "ROLLBACK"):
		s.autocommit = true
	}
}
