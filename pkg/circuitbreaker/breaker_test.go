package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 3,
		FailureRatio:     0.5,
		MinRequests:      100,
	}
}

func TestExecutePassesThroughWhileClosed(t *testing.T) {
	b, err := New(testConfig("pass"), nil)
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	got, err := b.Execute(context.Background(), func() (interface{}, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if got.(string) != "ok" {
		t.Errorf("unexpected result %v", got)
	}
	if b.GetState() != StateClosed {
		t.Errorf("expected closed, got %s", b.GetState())
	}
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := New(testConfig("open"), nil)

	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		if _, err := b.Execute(context.Background(), func() (interface{}, error) {
			return nil, boom
		}); !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
	}

	if !b.IsOpen() {
		t.Fatal("expected circuit to open after threshold failures")
	}
}

func TestFallbackUsedWhileOpen(t *testing.T) {
	b, _ := New(testConfig("fallback"), nil)

	for i := 0; i < 3; i++ {
		b.Execute(context.Background(), func() (interface{}, error) {
			return nil, errors.New("down")
		})
	}

	got, err := b.ExecuteWithFallback(context.Background(),
		func() (interface{}, error) { return "live", nil },
		func(error) (interface{}, error) { return []string{}, nil },
	)
	if err != nil {
		t.Fatalf("fallback path errored: %v", err)
	}
	if _, ok := got.([]string); !ok {
		t.Errorf("expected fallback result, got %v", got)
	}
}

func TestFallbackNotUsedForPlainFailures(t *testing.T) {
	b, _ := New(testConfig("plain"), nil)

	boom := errors.New("boom")
	_, err := b.ExecuteWithFallback(context.Background(),
		func() (interface{}, error) { return nil, boom },
		func(error) (interface{}, error) { return "fallback", nil },
	)
	if !errors.Is(err, boom) {
		t.Errorf("plain failure should propagate, got %v", err)
	}
}
