// Package service contains the application services: session resolution,
// record catalog and content handling, and the assistant conversation.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/medchain/medchain/internal/errs"
	"github.com/medchain/medchain/internal/gateway"
	"github.com/medchain/medchain/internal/model"
)

// SessionService owns the process-wide identity/role state. Role flags are
// derived exclusively from chain queries keyed by the active account and
// re-resolved in full whenever the account changes.
type SessionService struct {
	chain gateway.Chain
	log   *zap.Logger

	mu    sync.Mutex
	state model.RoleState
	subs  []func(model.RoleState)
}

// NewSessionService constructs the resolver. The state starts unresolved;
// role-gated actions must stay disabled until Resolve completes.
func NewSessionService(chain gateway.Chain, log *zap.Logger) *SessionService {
	return &SessionService{
		chain: chain,
		log:   log,
		state: model.RoleState{Account: chain.Account()},
	}
}

// State returns the current role state. Resolved=false means resolution has
// not completed for the current account yet.
func (s *SessionService) State() model.RoleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn to run on every published state. Subscribers read,
// never mutate.
func (s *SessionService) Subscribe(fn func(model.RoleState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Resolve runs the full role resolution for the active account and
// publishes the result. A disconnected session (empty account) resolves to
// all-false flags; that is a complete resolution, not an error.
func (s *SessionService) Resolve(ctx context.Context) (model.RoleState, error) {
	account := s.chain.Account()
	if account == "" {
		state := model.RoleState{Resolved: true}
		s.publish(state)
		return state, nil
	}

	doctor, err := s.chain.IsDoctor(ctx, account)
	if err != nil {
		s.markUnresolved(account)
		return model.RoleState{}, fmt.Errorf("%w: doctor check: %v", errs.ErrRoleResolution, err)
	}

	// A failed admin check defaults to false rather than failing the whole
	// resolution; the flag only ever widens what the UI offers.
	admin, err := s.chain.IsAdmin(ctx, account)
	if err != nil {
		s.log.Warn("admin check failed, defaulting to false",
			zap.String("account", account), zap.Error(err))
		admin = false
	}

	// Failure of the patient lookup is the defined not-a-patient signal.
	patient := true
	if _, err := s.chain.PatientDetails(ctx, account); err != nil {
		if !errors.Is(err, errs.ErrNotRegistered) {
			s.log.Warn("patient lookup failed, treating as unregistered",
				zap.String("account", account), zap.Error(err))
		}
		patient = false
	}

	state := model.RoleState{
		Account:   account,
		IsAdmin:   admin,
		IsDoctor:  doctor,
		IsPatient: patient,
		Resolved:  true,
	}
	s.publish(state)
	s.log.Info("role state resolved",
		zap.String("account", account),
		zap.Bool("admin", admin),
		zap.Bool("doctor", doctor),
		zap.Bool("patient", patient),
	)
	return state, nil
}

func (s *SessionService) publish(state model.RoleState) {
	s.mu.Lock()
	s.state = state
	subs := append([]func(model.RoleState){}, s.subs...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(state)
	}
}

// markUnresolved parks the state so gated actions stay disabled after a
// failed resolution.
func (s *SessionService) markUnresolved(account string) {
	s.mu.Lock()
	s.state = model.RoleState{Account: account}
	s.mu.Unlock()
}
