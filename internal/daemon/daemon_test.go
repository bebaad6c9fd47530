package daemon

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/chatsync/internal/api"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/lock"
	"github.com/matheus3301/chatsync/internal/session"
	"github.com/matheus3301/chatsync/internal/status"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// testHome points the base directory at a short temp path; Unix socket
// paths are limited to about 104 characters on macOS.
func testHome(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", "chatsync-d-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	t.Setenv(session.HomeEnv, dir)
	return dir
}

func startApp(t *testing.T, p Params) *fx.App {
	t.Helper()
	app := fx.New(Module(p), fx.NopLogger)
	if err := app.Err(); err != nil {
		t.Fatalf("fx.New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("app.Start: %v", err)
	}
	return app
}

func stopApp(t *testing.T, app *fx.App) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Stop(ctx); err != nil {
		t.Errorf("app.Stop: %v", err)
	}
}

func waitState(t *testing.T, c *api.Client, want status.State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var last string
	for time.Now().Before(deadline) {
		st, err := c.Status(context.Background())
		if err == nil {
			last = st.State
			if st.State == string(want) {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("state = %s, want %s", last, want)
}

func TestDaemonLifecycle(t *testing.T) {
	home := testHome(t)
	socketPath := filepath.Join(home, "d.sock")

	app := startApp(t, Params{ProfileName: "test", SocketPath: socketPath})

	c, err := api.Dial(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	// No saved sign-in: the daemon must not stay in BOOTING.
	waitState(t, c, status.SignedOut)

	if _, err := c.SignUp(context.Background(), &api.SignUpRequest{
		Email:    "alice@example.com",
		Username: "alice",
		Password: "correct horse",
	}); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	// The first conversation snapshot moves SYNCING to READY, even when
	// the list is empty.
	waitState(t, c, status.Ready)

	if _, err := os.Stat(session.DBPath("test")); err != nil {
		t.Errorf("database not created: %v", err)
	}
	if err := lock.Check(session.Dir("test")); err == nil {
		t.Error("profile lock not held while running")
	}

	stopApp(t, app)

	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Errorf("socket still present after stop: %v", err)
	}
	if err := lock.Check(session.Dir("test")); err != nil {
		t.Error("profile lock still held after stop")
	}
}

func TestRestartResumesSession(t *testing.T) {
	home := testHome(t)
	socketPath := filepath.Join(home, "d.sock")
	p := Params{ProfileName: "test", SocketPath: socketPath}

	app := startApp(t, p)
	c, err := api.Dial(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := c.SignUp(context.Background(), &api.SignUpRequest{Email: "bob@example.com", Username: "bob", Password: "correct horse"})
	if err != nil {
		t.Fatal(err)
	}
	_ = c.Close()
	stopApp(t, app)

	app = startApp(t, p)
	defer stopApp(t, app)
	c, err = api.Dial(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Close() }()

	waitState(t, c, status.Ready)
	st, err := c.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.UserID != resp.Profile.UserID {
		t.Errorf("resumed user = %q, want %q", st.UserID, resp.Profile.UserID)
	}
}

func TestHealthService(t *testing.T) {
	home := testHome(t)
	socketPath := filepath.Join(home, "d.sock")
	app := startApp(t, Params{ProfileName: "test", SocketPath: socketPath})
	defer stopApp(t, app)

	conn, err := grpc.NewClient("unix://"+socketPath, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = conn.Close() }()

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: api.ServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("health = %v, want SERVING", resp.Status)
	}
}

func TestSecondDaemonRefused(t *testing.T) {
	home := testHome(t)
	app := startApp(t, Params{ProfileName: "test", SocketPath: filepath.Join(home, "a.sock")})
	defer stopApp(t, app)

	second := fx.New(Module(Params{ProfileName: "test", SocketPath: filepath.Join(home, "b.sock")}), fx.NopLogger)
	err := second.Err()
	if err == nil {
		t.Fatal("second daemon for the same profile should fail")
	}
	if !strings.Contains(err.Error(), "profile lock held") {
		t.Errorf("error = %v, want lock held", err)
	}
}

// TestFxModuleWiring verifies the dependency graph resolves without
// running any constructor.
func TestFxModuleWiring(t *testing.T) {
	if err := fx.ValidateApp(Module(Params{ProfileName: "fxtest"})); err != nil {
		t.Fatalf("invalid fx graph: %v", err)
	}
}

func TestTrackReadinessOnlyFromSyncing(t *testing.T) {
	b := bus.New()
	m := status.NewMachine(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		trackReadiness(ctx, b, m, zap.NewNop())
		close(done)
	}()

	_ = m.Transition(status.SignedOut)
	b.Emit(bus.ConversationsUpdated, "alice")
	time.Sleep(50 * time.Millisecond)
	if m.Current() != status.SignedOut {
		t.Fatalf("state = %s, want SIGNED_OUT untouched", m.Current())
	}

	_ = m.Transition(status.Syncing)
	deadline := time.Now().Add(2 * time.Second)
	for m.Current() != status.Ready && time.Now().Before(deadline) {
		b.Emit(bus.ConversationsUpdated, "alice")
		time.Sleep(10 * time.Millisecond)
	}
	if m.Current() != status.Ready {
		t.Errorf("state = %s, want READY", m.Current())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("trackReadiness did not return after cancel")
	}
}
