package controlapi

import (
	"net/http"
	"testing"

	"github.com/raysnipe/sniper/internal/autopause"
)

func TestServer_HealthEndpoint(t *testing.T) {
	server := NewServer("0.0.0.0", 0, Deps{})

	req, _ := http.NewRequest("GET", "/health", nil)
	resp, err := server.app.Test(req, 1000)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestServer_PauseEndpointsDisabledWithoutAutoPause(t *testing.T) {
	server := NewServer("0.0.0.0", 0, Deps{})

	req, _ := http.NewRequest("GET", "/pause", nil)
	resp, err := server.app.Test(req, 1000)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404 when auto-pause is not wired, got %d", resp.StatusCode)
	}
}

func TestServer_ManualResumeRejectedWhenNotPaused(t *testing.T) {
	cfg := autopause.DefaultConfig()
	mgr := autopause.New(nil, "", cfg, nil, nil)
	server := NewServer("0.0.0.0", 0, Deps{AutoPause: mgr})

	req, _ := http.NewRequest("POST", "/resume", nil)
	resp, err := server.app.Test(req, 1000)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 409 {
		t.Fatalf("expected 409 when not paused, got %d", resp.StatusCode)
	}
}

func TestServer_ManualPauseThenStatus(t *testing.T) {
	cfg := autopause.DefaultConfig()
	mgr := autopause.New(nil, "", cfg, nil, nil)
	server := NewServer("0.0.0.0", 0, Deps{AutoPause: mgr})

	req, _ := http.NewRequest("POST", "/pause", nil)
	resp, err := server.app.Test(req, 1000)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	allowed, _ := mgr.IsTradingAllowed()
	if allowed {
		t.Fatal("expected trading to be blocked after manual pause")
	}
}
