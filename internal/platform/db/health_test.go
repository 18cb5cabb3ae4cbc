package db

import (
	"context"
	"errors"
	"testing"
)

func TestCheck_Healthy(t *testing.T) {
	h := Check(context.Background(), PingFunc(func(context.Context) error { return nil }))
	if h.Status != "healthy" {
		t.Errorf("expected healthy, got %q", h.Status)
	}
	if h.Error != "" {
		t.Errorf("expected no error, got %q", h.Error)
	}
	if h.Pool != nil {
		t.Error("expected no pool stats for a non-pool pinger")
	}
}

func TestCheck_Unhealthy(t *testing.T) {
	h := Check(context.Background(), PingFunc(func(context.Context) error {
		return errors.New("connection refused")
	}))
	if h.Status != "unhealthy" {
		t.Errorf("expected unhealthy, got %q", h.Status)
	}
	if h.Error != "connection refused" {
		t.Errorf("unexpected error: %q", h.Error)
	}
}

func TestCheck_HasDeadline(t *testing.T) {
	Check(context.Background(), PingFunc(func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected ping context to carry a deadline")
		}
		return nil
	}))
}
