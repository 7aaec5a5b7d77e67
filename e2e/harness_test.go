//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
)

// serverProc is a climate-server binary running against a real dataset.
type serverProc struct {
	cmd    *exec.Cmd
	base   string
	client *http.Client
}

// moduleRoot walks up from the test directory to the directory holding go.mod.
func moduleRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("no go.mod above the e2e directory")
		}
		dir = parent
	}
}

// buildServer compiles ./cmd into a temp dir and returns the binary path.
func buildServer(t *testing.T) string {
	t.Helper()

	bin := filepath.Join(t.TempDir(), "climate-server")
	build := exec.Command("go", "build", "-o", bin, "./cmd")
	build.Dir = moduleRoot(t)
	build.Env = os.Environ()

	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("building server: %v\n%s", err, out)
	}
	return bin
}

func freeAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		t.Fatalf("release port: %v", err)
	}
	return addr
}

// startServer launches bin with the given dataset env and blocks until
// /healthz answers 200.
func startServer(t *testing.T, bin string, datasetEnv ...string) *serverProc {
	t.Helper()

	addr := freeAddr(t)
	cmd := exec.Command(bin)
	cmd.Env = append(os.Environ(),
		"APP_ENV=dev",
		"LOG_LEVEL=debug",
		"HTTP_ADDR="+addr,
		"ENV_FILE=",
	)
	cmd.Env = append(cmd.Env, datasetEnv...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		t.Fatalf("launch server: %v", err)
	}
	t.Cleanup(func() {
		if cmd.ProcessState == nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
		}
	})

	p := &serverProc{cmd: cmd, base: "http://" + addr, client: &http.Client{Timeout: 2 * time.Second}}
	p.waitHealthy(t, 10*time.Second)
	return p
}

func (p *serverProc) waitHealthy(t *testing.T, within time.Duration) {
	t.Helper()

	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if resp, err := p.client.Get(p.base + "/healthz"); err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("%s/healthz never returned 200 within %s", p.base, within)
}

// getJSON decodes a 200 response from path into out.
func (p *serverProc) getJSON(t *testing.T, path string, out any) {
	t.Helper()

	resp, err := p.client.Get(p.base + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d, want 200", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("GET %s: decode: %v", path, err)
	}
}

// stop sends SIGTERM and expects a clean exit within the shutdown window.
func (p *serverProc) stop(t *testing.T) {
	t.Helper()

	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("signal server: %v", err)
	}

	exited := make(chan error, 1)
	go func() { exited <- p.cmd.Wait() }()

	select {
	case err := <-exited:
		if err != nil {
			t.Fatalf("server exit: %v", err)
		}
	case <-time.After(15 * time.Second):
		_ = p.cmd.Process.Kill()
		t.Fatal("server still running 15s after SIGTERM")
	}
}

// runContainer starts req and terminates the container when the test ends.
func runContainer(t *testing.T, req tc.ContainerRequest) tc.Container {
	t.Helper()

	ctx := context.Background()
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start %s: %v", req.Image, err)
	}
	t.Cleanup(func() {
		if err := c.Terminate(ctx); err != nil {
			t.Logf("terminate %s: %v", req.Image, err)
		}
	})
	return c
}
