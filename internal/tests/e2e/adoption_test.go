//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"github.com/petcare/apiserver/config"
	"github.com/petcare/apiserver/internal/db"
	"github.com/petcare/apiserver/internal/server"
)

const (
	serverPort = 18080
)

var baseURL = fmt.Sprintf("http://localhost:%d", serverPort)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	setTestEnv()
	cfg := config.LoadConfig()

	if err := waitForPostgres(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := db.Migrate(db.DSN(cfg.Database), db.Up); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown(context.Background())
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown(context.Background())
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestAdoptionLifecycle(t *testing.T) {
	suffix := time.Now().UnixNano()
	owner := mustRegister(t, "Olive Owner", fmt.Sprintf("owner_%d@example.com", suffix), "Owner")
	adopter := mustRegister(t, "Ann Adopter", fmt.Sprintf("adopter_%d@example.com", suffix), "Adopter")

	var pet struct {
		ID int `json:"id"`
	}
	call(t, http.MethodPost, "/pets", owner, map[string]any{"category": "Dog", "name": "Rex"}, http.StatusCreated, &pet)
	if pet.ID == 0 {
		t.Fatalf("expected pet ID to be set")
	}

	var first, second struct {
		RequestID int    `json:"request_id"`
		Status    string `json:"status"`
	}
	call(t, http.MethodPost, "/adoption-requests", adopter, application(pet.ID), http.StatusCreated, &first)
	if first.Status != "Pending" {
		t.Fatalf("unexpected status %q", first.Status)
	}
	call(t, http.MethodPost, "/adoption-requests", adopter, application(pet.ID), http.StatusCreated, &second)

	call(t, http.MethodPost, fmt.Sprintf("/adoption-requests/%d/approve", first.RequestID), adopter, nil, http.StatusForbidden, nil)
	call(t, http.MethodPost, fmt.Sprintf("/adoption-requests/%d/approve", first.RequestID), owner, nil, http.StatusOK, nil)
	call(t, http.MethodPost, fmt.Sprintf("/adoption-requests/%d/reject", first.RequestID), owner, nil, http.StatusConflict, nil)

	var sibling struct {
		Status          string `json:"status"`
		RejectionReason string `json:"rejection_reason"`
	}
	call(t, http.MethodGet, fmt.Sprintf("/adoption-requests/%d", second.RequestID), adopter, nil, http.StatusOK, &sibling)
	if sibling.Status != "Rejected" || sibling.RejectionReason == "" {
		t.Fatalf("expected sibling request to be rejected with a reason, got %+v", sibling)
	}

	call(t, http.MethodPost, "/adoption-requests", adopter, application(pet.ID), http.StatusConflict, nil)
}

func TestConcurrentApprovalsAdoptOnce(t *testing.T) {
	suffix := time.Now().UnixNano()
	owner := mustRegister(t, "Olive Owner", fmt.Sprintf("race_owner_%d@example.com", suffix), "Owner")
	adopter := mustRegister(t, "Ann Adopter", fmt.Sprintf("race_adopter_%d@example.com", suffix), "Adopter")

	var pet struct {
		ID int `json:"id"`
	}
	call(t, http.MethodPost, "/pets", owner, map[string]any{"category": "Cat", "name": "Tom"}, http.StatusCreated, &pet)

	const n = 5
	ids := make([]int, n)
	for i := range ids {
		var created struct {
			RequestID int `json:"request_id"`
		}
		call(t, http.MethodPost, "/adoption-requests", adopter, application(pet.ID), http.StatusCreated, &created)
		ids[i] = created.RequestID
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		approved int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			status, _ := send(http.MethodPost, fmt.Sprintf("/adoption-requests/%d/approve", id), owner, nil)
			if status == http.StatusOK {
				mu.Lock()
				approved++
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	if approved != 1 {
		t.Fatalf("expected exactly one approval, got %d", approved)
	}
}

func application(petID int) map[string]any {
	return map[string]any{
		"pet_id":    petID,
		"full_name": "Ann Adopter",
		"email":     "ann@example.com",
		"phone":     "5551234567",
		"address":   "1 Main Street",
	}
}

func mustRegister(t *testing.T, name, email, role string) string {
	t.Helper()

	var parsed struct {
		Token string `json:"token"`
	}
	call(t, http.MethodPost, "/auth/register", "", map[string]any{
		"full_name": name,
		"email":     email,
		"password":  "testpass123",
		"role":      role,
	}, http.StatusCreated, &parsed)
	if parsed.Token == "" {
		t.Fatalf("missing token in register response")
	}
	return parsed.Token
}

func call(t *testing.T, method, path, token string, payload any, want int, out any) {
	t.Helper()

	status, body := send(method, path, token, payload)
	if status != want {
		t.Fatalf("%s %s: status %d, want %d: %s", method, path, status, want, strings.TrimSpace(string(body)))
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			t.Fatalf("%s %s: decode response: %v", method, path, err)
		}
	}
}

func send(method, path, token string, payload any) (int, []byte) {
	var reader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return 0, []byte(err.Error())
		}
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, baseURL+path, reader)
	if err != nil {
		return 0, []byte(err.Error())
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, []byte(err.Error())
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, body
}

func setTestEnv() {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "petcare")
	_ = os.Setenv("DB_PASSWORD", "petcare")
	_ = os.Setenv("DB_NAME", "petcare")
	_ = os.Setenv("DB_SSL", "false")
	_ = os.Setenv("STORAGE_BACKEND", "minio")
	_ = os.Setenv("MINIO_ENDPOINT", "localhost:9000")
	_ = os.Setenv("MINIO_ACCESS_KEY", "minioadmin")
	_ = os.Setenv("MINIO_SECRET_KEY", "minioadmin")
	_ = os.Setenv("MINIO_BUCKET", "petcare")
	_ = os.Setenv("LOGIN_RATE_LIMIT", "0")
}

func waitForPostgres(ctx context.Context, cfg config.Config) error {
	conn, err := sql.Open("postgres", db.DSN(cfg.Database))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func startServer(ctx context.Context, cfg config.Config) (*server.Server, error) {
	srv, err := server.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
