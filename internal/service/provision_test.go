package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/onepass-app/onepass-server/internal/errs"
)

func TestProvisioner_IssuesPassOnCreation(t *testing.T) {
	t.Parallel()

	users := newFakeUsers()
	keys := &fakeKeys{}
	_ = keys.Create(context.Background(), activeKey(t, "k1"))
	p := NewProvisioner(users, NewPassIssuer(users, keys), zap.NewNop())

	if err := p.HandleUserCreated(context.Background(), "u1"); err != nil {
		t.Fatalf("HandleUserCreated: %v", err)
	}
	if users.passes["u1"] == nil || !users.passes["u1"].Usable() {
		t.Fatalf("no usable pass after provisioning")
	}
}

func TestProvisioner_DuplicateDeliveryIsSafe(t *testing.T) {
	t.Parallel()

	users := newFakeUsers()
	keys := &fakeKeys{}
	_ = keys.Create(context.Background(), activeKey(t, "k1"))
	p := NewProvisioner(users, NewPassIssuer(users, keys), zap.NewNop())

	// Both trigger variants fire for the same account.
	if err := p.HandleUserCreated(context.Background(), "u1"); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	sig := users.passes["u1"].Signature
	if err := p.HandleUserCreated(context.Background(), "u1"); err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if users.passes["u1"].Signature != sig {
		t.Fatalf("duplicate delivery re-signed the pass")
	}
	if users.saveCalls != 1 {
		t.Fatalf("saveCalls=%d, want 1", users.saveCalls)
	}
}

func TestProvisioner_IssuanceFailureDoesNotPropagate(t *testing.T) {
	t.Parallel()

	users := newFakeUsers()
	// No active key: issuance fails, account creation must not.
	p := NewProvisioner(users, NewPassIssuer(users, &fakeKeys{}), zap.NewNop())

	if err := p.HandleUserCreated(context.Background(), "u1"); err != nil {
		t.Fatalf("issuance failure leaked: %v", err)
	}
	if !users.users["u1"] {
		t.Fatalf("user row not ensured")
	}
}

func TestProvisioner_EmptyUID(t *testing.T) {
	t.Parallel()

	p := NewProvisioner(newFakeUsers(), NewPassIssuer(newFakeUsers(), &fakeKeys{}), zap.NewNop())
	if err := p.HandleUserCreated(context.Background(), ""); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("err=%v, want ErrInvalidArgument", err)
	}
}
