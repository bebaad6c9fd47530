package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func testProvider(t *testing.T) (*Provider, *bus.Bus) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	b := bus.New()
	p := NewProvider(db, b, 5*time.Minute, zap.NewNop())
	p.cost = bcrypt.MinCost
	return p, b
}

func signUpAlice(t *testing.T, p *Provider) string {
	t.Helper()
	profile, err := p.SignUp(context.Background(), SignUpRequest{
		Email: "Alice@Example.com", Username: "alice", Password: "correct horse", DisplayName: "Alice",
	})
	if err != nil {
		t.Fatal(err)
	}
	return profile.UserID
}

func TestSignUpSignsIn(t *testing.T) {
	p, b := testProvider(t)
	events, unsub := b.Subscribe("session.", 4)
	defer unsub()

	id := signUpAlice(t, p)

	cur, err := p.Current(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cur == nil || cur.UserID != id || cur.Handle != "alice" || cur.DisplayName != "Alice" {
		t.Errorf("Current() = %+v", cur)
	}
	select {
	case evt := <-events:
		if evt.Kind != bus.SessionSignedIn || evt.Payload != id {
			t.Errorf("event = %s %v", evt.Kind, evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no session.signed_in event")
	}
}

func TestSignUpRejects(t *testing.T) {
	p, _ := testProvider(t)
	ctx := context.Background()
	signUpAlice(t, p)

	cases := []struct {
		name string
		req  SignUpRequest
		want error
	}{
		{"short password", SignUpRequest{Email: "b@x.io", Username: "bob", Password: "short"}, ErrWeakPassword},
		{"email taken", SignUpRequest{Email: "alice@example.com", Username: "al2", Password: "long enough"}, ErrAccountExists},
		{"username taken", SignUpRequest{Email: "new@x.io", Username: "alice", Password: "long enough"}, ErrAccountExists},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := p.SignUp(ctx, tc.req); !errors.Is(err, tc.want) {
				t.Errorf("error = %v, want %v", err, tc.want)
			}
		})
	}
	if _, err := p.SignUp(ctx, SignUpRequest{Email: "nope", Username: "x", Password: "long enough"}); err == nil {
		t.Error("invalid email accepted")
	}
}

func TestSignInByEmailOrUsername(t *testing.T) {
	p, _ := testProvider(t)
	ctx := context.Background()
	id := signUpAlice(t, p)
	if err := p.SignOut(ctx); err != nil {
		t.Fatal(err)
	}
	if cur, _ := p.Current(ctx); cur != nil {
		t.Fatal("still signed in after SignOut")
	}

	for _, ident := range []string{"alice@example.com", "ALICE@example.com", "alice"} {
		profile, err := p.SignIn(ctx, ident, "correct horse")
		if err != nil {
			t.Fatalf("SignIn(%q): %v", ident, err)
		}
		if profile.UserID != id {
			t.Errorf("SignIn(%q) user = %q", ident, profile.UserID)
		}
	}

	if _, err := p.SignIn(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: %v", err)
	}
	if _, err := p.SignIn(ctx, "nobody", "correct horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user: %v", err)
	}
}

func TestChangePasswordNeedsRecentAuth(t *testing.T) {
	p, _ := testProvider(t)
	ctx := context.Background()
	signUpAlice(t, p)

	clock := time.Now()
	p.now = func() time.Time { return clock }

	clock = clock.Add(10 * time.Minute)
	if err := p.ChangePassword(ctx, "new password"); !errors.Is(err, ErrReauthRequired) {
		t.Fatalf("stale session: %v, want ErrReauthRequired", err)
	}
	if err := p.Reauthenticate(ctx, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("reauth with wrong password: %v", err)
	}
	if err := p.Reauthenticate(ctx, "correct horse"); err != nil {
		t.Fatal(err)
	}
	if err := p.ChangePassword(ctx, "new password"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.SignIn(ctx, "alice", "new password"); err != nil {
		t.Errorf("sign in with new password: %v", err)
	}
}

func TestPasswordReset(t *testing.T) {
	p, _ := testProvider(t)
	ctx := context.Background()
	signUpAlice(t, p)

	if _, err := p.RequestPasswordReset(ctx, "ghost@example.com"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: %v", err)
	}

	token, err := p.RequestPasswordReset(ctx, "alice@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if err := p.ResetPassword(ctx, token, "brand new pw"); err != nil {
		t.Fatal(err)
	}
	if err := p.ResetPassword(ctx, token, "another pw!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("token reuse: %v, want ErrInvalidCredentials", err)
	}
	if _, err := p.SignIn(ctx, "alice", "brand new pw"); err != nil {
		t.Errorf("sign in after reset: %v", err)
	}

	expired, _ := p.RequestPasswordReset(ctx, "alice@example.com")
	p.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if err := p.ResetPassword(ctx, expired, "too late pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expired token: %v", err)
	}
}
