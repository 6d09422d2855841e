package identity

import (
	"context"
	"testing"
)

func TestActorContextRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), Actor{UserID: "u1", Role: RoleReception})
	a, ok := ActorFromContext(ctx)
	if !ok {
		t.Fatal("expected actor in context")
	}
	if a.Role != RoleReception {
		t.Errorf("got role %s", a.Role)
	}
}

func TestActorFromEmptyContext(t *testing.T) {
	if _, ok := ActorFromContext(context.Background()); ok {
		t.Fatal("expected no actor")
	}
}

func TestCapabilities(t *testing.T) {
	cases := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleAdmin, PermVoidTransaction, true},
		{RoleReception, PermVoidTransaction, false},
		{RoleReception, PermRecordPayment, true},
		{RoleTherapist, PermCompleteSession, true},
		{RoleTherapist, PermBookStaff, false},
		{RoleClient, PermBookPortal, true},
		{RoleClient, PermMarkNoShow, false},
	}
	for _, tc := range cases {
		a := Actor{UserID: "u", Role: tc.role}
		if got := a.Can(tc.perm); got != tc.want {
			t.Errorf("%s can %s = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestRequiresCashRegister(t *testing.T) {
	if !RoleReception.RequiresCashRegister() {
		t.Error("reception must require a cash register")
	}
	if RoleAdmin.RequiresCashRegister() {
		t.Error("admin must not require a cash register")
	}
}
