package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/medchain/medchain/internal/errs"
	"github.com/medchain/medchain/internal/model"
)

func TestSessionResolve_AllRoles(t *testing.T) {
	t.Parallel()
	chain := newFakeChain("acct-1")
	chain.doctor["acct-1"] = true
	chain.admin["acct-1"] = true
	chain.patients["acct-1"] = model.PatientDetails{Name: "Alice", PatientID: "P-1"}

	s := NewSessionService(chain, zap.NewNop())
	if s.State().Resolved {
		t.Fatal("state must start unresolved")
	}

	state, err := s.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !state.Resolved || !state.IsDoctor || !state.IsAdmin || !state.IsPatient {
		t.Fatalf("state = %+v", state)
	}
	if s.State() != state {
		t.Fatal("resolved state not published")
	}
}

func TestSessionResolve_UnregisteredIsNotAnError(t *testing.T) {
	t.Parallel()
	chain := newFakeChain("acct-1")
	// Not a doctor, not an admin, no patient registration.

	s := NewSessionService(chain, zap.NewNop())
	state, err := s.Resolve(context.Background())
	if err != nil {
		t.Fatalf("unregistered account must resolve cleanly, got %v", err)
	}
	if state.IsPatient || state.IsDoctor || state.IsAdmin {
		t.Fatalf("state = %+v", state)
	}
	if !state.Resolved {
		t.Fatal("state must be resolved")
	}
}

func TestSessionResolve_AdminCheckFailureDefaultsFalse(t *testing.T) {
	t.Parallel()
	chain := newFakeChain("acct-1")
	chain.doctor["acct-1"] = true
	chain.adminErr = errors.New("contract revert")

	s := NewSessionService(chain, zap.NewNop())
	state, err := s.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if state.IsAdmin {
		t.Fatal("failed admin check must default to false")
	}
	if !state.IsDoctor || !state.Resolved {
		t.Fatalf("state = %+v", state)
	}
}

func TestSessionResolve_DoctorCheckFailure(t *testing.T) {
	t.Parallel()
	chain := newFakeChain("acct-1")
	chain.doctorErr = errors.New("peer unreachable")

	s := NewSessionService(chain, zap.NewNop())
	if _, err := s.Resolve(context.Background()); !errors.Is(err, errs.ErrRoleResolution) {
		t.Fatalf("err = %v, want ErrRoleResolution", err)
	}
	if s.State().Resolved {
		t.Fatal("failed resolution must leave state unresolved")
	}
}

func TestSessionResolve_Disconnected(t *testing.T) {
	t.Parallel()
	chain := newFakeChain("")

	s := NewSessionService(chain, zap.NewNop())
	state, err := s.Resolve(context.Background())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !state.Resolved || state.Connected() {
		t.Fatalf("state = %+v", state)
	}
}

func TestSessionSubscribe(t *testing.T) {
	t.Parallel()
	chain := newFakeChain("acct-1")
	chain.doctor["acct-1"] = true

	s := NewSessionService(chain, zap.NewNop())
	var seen []model.RoleState
	s.Subscribe(func(st model.RoleState) { seen = append(seen, st) })

	if _, err := s.Resolve(context.Background()); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(seen) != 1 || !seen[0].IsDoctor {
		t.Fatalf("subscriber saw %+v", seen)
	}
}
