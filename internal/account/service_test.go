package account

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"resumeBuilder/internal/auth"
	"resumeBuilder/internal/database/dbtest"
	"resumeBuilder/internal/errcode"
)

func newTestService(t *testing.T, opts ...Option) (*Service, *auth.AuthService) {
	t.Helper()
	authService, err := auth.NewAuthService([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	if err != nil {
		t.Fatalf("new auth service: %v", err)
	}
	return NewService(dbtest.New(t), authService, opts...), authService
}

func TestRegisterIssuesTokenAndNormalizesEmail(t *testing.T) {
	svc, authService := newTestService(t)
	ctx := context.Background()

	session, err := svc.Register(ctx, RegisterInput{Username: "ada", Email: "  Ada@Example.COM ", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if session.User.Email != "ada@example.com" {
		t.Fatalf("expected normalized email got %q", session.User.Email)
	}
	if session.User.PasswordHash == "correct-horse" {
		t.Fatalf("password stored in plain text")
	}

	claims, err := authService.ValidateToken(session.Token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.UserID != session.User.ID {
		t.Fatalf("token for user %d, want %d", claims.UserID, session.User.ID)
	}
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   RegisterInput
		want error
	}{
		{"missing username", RegisterInput{Email: "a@example.com", Password: "password1"}, errcode.ErrValidation},
		{"missing email", RegisterInput{Username: "a", Password: "password1"}, errcode.ErrValidation},
		{"missing password", RegisterInput{Username: "a", Email: "a@example.com"}, errcode.ErrValidation},
		{"short password", RegisterInput{Username: "a", Email: "a@example.com", Password: "short"}, errcode.ErrValidation},
		{"bad email", RegisterInput{Username: "a", Email: "not-an-email", Password: "password1"}, errcode.ErrInvalidEmail},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v got %v", tc.want, err)
			}
		})
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Username: "ada", Email: "ada@example.com", Password: "password1"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := svc.Register(ctx, RegisterInput{Username: "ada", Email: "other@example.com", Password: "password1"})
	if !errors.Is(err, errcode.ErrDuplicateUsername) {
		t.Fatalf("expected duplicate username got %v", err)
	}

	_, err = svc.Register(ctx, RegisterInput{Username: "grace", Email: "ADA@example.com", Password: "password1"})
	if !errors.Is(err, errcode.ErrDuplicateEmail) {
		t.Fatalf("expected duplicate email got %v", err)
	}
}

func TestLoginUniformFailure(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Username: "ada", Email: "ada@example.com", Password: "password1"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	session, err := svc.Login(ctx, "ADA@example.com", "password1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if session.Token == "" {
		t.Fatalf("expected token")
	}

	_, wrongPassword := svc.Login(ctx, "ada@example.com", "password2")
	_, unknownEmail := svc.Login(ctx, "nobody@example.com", "password1")
	for _, err := range []error{wrongPassword, unknownEmail} {
		if !errors.Is(err, errcode.ErrInvalidCredentials) {
			t.Fatalf("expected invalid credentials got %v", err)
		}
	}
	if errcode.Message(wrongPassword) != errcode.Message(unknownEmail) {
		t.Fatalf("login failures must be indistinguishable")
	}

	if _, err := svc.Login(ctx, "", "password1"); !errors.Is(err, errcode.ErrValidation) {
		t.Fatalf("expected validation error got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	svc, authService := newTestService(t)
	ctx := context.Background()

	user, err := svc.Provision(ctx, "ops", "ops@example.com", "temporary1")
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if !user.MustChangePassword {
		t.Fatalf("provisioned user must change password")
	}
	originalHash := user.PasswordHash

	_, err = svc.ChangePassword(ctx, user.ID, "wrong-password", "brand-new-1")
	if !errors.Is(err, errcode.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials got %v", err)
	}
	stored, err := svc.UserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.PasswordHash != originalHash {
		t.Fatalf("hash changed after failed attempt")
	}

	if _, err := svc.ChangePassword(ctx, user.ID, "temporary1", "temporary1"); !errors.Is(err, errcode.ErrValidation) {
		t.Fatalf("expected validation error for reused password got %v", err)
	}

	session, err := svc.ChangePassword(ctx, user.ID, "temporary1", "brand-new-1")
	if err != nil {
		t.Fatalf("change password: %v", err)
	}
	claims, err := authService.ValidateToken(session.Token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.MustChangePassword {
		t.Fatalf("new token still carries must_change_password")
	}

	if _, err := svc.Login(ctx, "ops@example.com", "temporary1"); !errors.Is(err, errcode.ErrInvalidCredentials) {
		t.Fatalf("old password still accepted: %v", err)
	}
	if _, err := svc.Login(ctx, "ops@example.com", "brand-new-1"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestUserByIDMissing(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.UserByID(context.Background(), 999)
	if !errors.Is(err, errcode.ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}

type stubResolver struct {
	mx    map[string][]*net.MX
	hosts map[string][]string
}

func (r stubResolver) LookupMX(_ context.Context, name string) ([]*net.MX, error) {
	if records, ok := r.mx[name]; ok {
		return records, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
}

func (r stubResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	if addrs, ok := r.hosts[host]; ok {
		return addrs, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
}

func TestNormalizeEmailDeliverability(t *testing.T) {
	svc, _ := newTestService(t, WithDeliverabilityCheck(true))
	svc.resolver = stubResolver{
		mx:    map[string][]*net.MX{"mail.example": {{Host: "mx.mail.example.", Pref: 10}}},
		hosts: map[string][]string{"a-only.example": {"192.0.2.1"}},
	}
	ctx := context.Background()

	if got, err := svc.NormalizeEmail(ctx, "User@Mail.example"); err != nil || got != "user@mail.example" {
		t.Fatalf("mx domain: got %q, %v", got, err)
	}
	if _, err := svc.NormalizeEmail(ctx, "user@a-only.example"); err != nil {
		t.Fatalf("a record fallback: %v", err)
	}
	if _, err := svc.NormalizeEmail(ctx, "user@nowhere.example"); !errors.Is(err, errcode.ErrInvalidEmail) {
		t.Fatalf("expected invalid email got %v", err)
	}
}

