// Package solver models the external MILP/CP optimization endpoint as
// a small result-typed interface shared by the allocation and charge
// optimizers. Both pass their own problem payload through the same
// Solver; neither needs to know how the other's payload is shaped.
package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/evfleetops/alloc-core/internal/infrastructure/circuitbreaker"
)

// ProblemKind selects which optimization problem payload is being sent.
type ProblemKind string

const (
	ProblemAllocation ProblemKind = "allocation"
	ProblemCharging   ProblemKind = "charging"
)

// Status is the result-typed outcome of a solver invocation, replacing
// the exception-driven "unavailable" handling of the source system.
type Status string

const (
	StatusOK          Status = "ok"
	StatusTimeout      Status = "timeout"
	StatusUnavailable Status = "unavailable"
)

// Outcome is what every Solver call returns. A non-nil error is
// reserved for programmer-invariant violations; anything about solver
// availability is carried in Status instead.
type Outcome struct {
	Status  Status
	Payload []byte
}

// Solver sends an optimization problem to the external endpoint and
// waits up to timeLimit for a solution.
type Solver interface {
	Solve(ctx context.Context, kind ProblemKind, payload []byte, timeLimit time.Duration) (Outcome, error)
}

// CredentialSource resolves the external solver's credentials at call
// time (Vault-backed in production). An error here is folded into
// StatusUnavailable, not propagated.
type CredentialSource interface {
	GetSolverCredentials() (string, error)
}

// HTTPSolver implements Solver over a circuit-breaker-wrapped HTTP
// client. An empty Endpoint or failing credential lookup both route to
// StatusUnavailable before any request is attempted.
type HTTPSolver struct {
	Endpoint    string
	client      *circuitbreaker.HTTPClient
	credentials CredentialSource
	log         *zap.Logger
}

func NewHTTPSolver(endpoint string, breakerManager *circuitbreaker.Manager, credentials CredentialSource, log *zap.Logger) *HTTPSolver {
	cb := breakerManager.Get("external-solver", circuitbreaker.DefaultSettings())
	return &HTTPSolver{
		Endpoint:    endpoint,
		client:      circuitbreaker.NewHTTPClient(nil, cb, log),
		credentials: credentials,
		log:         log,
	}
}

type solveRequest struct {
	Kind    ProblemKind     `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

func (s *HTTPSolver) Solve(ctx context.Context, kind ProblemKind, payload []byte, timeLimit time.Duration) (Outcome, error) {
	if s.Endpoint == "" {
		return Outcome{Status: StatusUnavailable}, nil
	}

	token, err := s.credentials.GetSolverCredentials()
	if err != nil || token == "" {
		s.log.Warn("solver credentials unavailable, routing to fallback", zap.Error(err))
		return Outcome{Status: StatusUnavailable}, nil
	}

	body, err := json.Marshal(solveRequest{Kind: kind, Payload: payload})
	if err != nil {
		return Outcome{}, fmt.Errorf("marshal solver request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeLimit)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Outcome{}, fmt.Errorf("build solver request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return Outcome{Status: StatusTimeout}, nil
		}
		s.log.Warn("solver call failed, routing to fallback", zap.Error(err))
		return Outcome{Status: StatusUnavailable}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Outcome{Status: StatusUnavailable}, nil
	}

	result, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{Status: StatusUnavailable}, nil
	}

	return Outcome{Status: StatusOK, Payload: result}, nil
}
