package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	applog "invoicer/internal/log"
)

type countingPender struct {
	calls atomic.Int32
}

func (p *countingPender) ProcessPending(context.Context, int) (int, int, error) {
	p.calls.Add(1)
	return 1, 0, nil
}

func TestDefaultSyncProcessorConfig(t *testing.T) {
	config := DefaultSyncProcessorConfig()

	if config.PollInterval != 30*time.Second {
		t.Errorf("expected PollInterval 30s, got %v", config.PollInterval)
	}
	if config.BatchSize != 10 {
		t.Errorf("expected BatchSize 10, got %d", config.BatchSize)
	}
}

func TestNewSyncProcessor_FillsDefaults(t *testing.T) {
	processor := NewSyncProcessor(&countingPender{}, SyncProcessorConfig{}, nil)

	if processor.config.PollInterval != 30*time.Second {
		t.Errorf("expected default PollInterval, got %v", processor.config.PollInterval)
	}
	if processor.config.BatchSize != 10 {
		t.Errorf("expected default BatchSize, got %d", processor.config.BatchSize)
	}
	if processor.IsRunning() {
		t.Error("processor should not be running initially")
	}
}

func TestSyncProcessor_StartTwice(t *testing.T) {
	processor := NewSyncProcessor(&countingPender{}, SyncProcessorConfig{PollInterval: time.Hour}, applog.Discard())

	ctx := context.Background()
	if err := processor.Start(ctx); err != nil {
		t.Fatalf("first start: %v", err)
	}
	defer processor.Stop(ctx)

	if err := processor.Start(ctx); err == nil {
		t.Error("expected error when starting already running processor")
	}
}

func TestSyncProcessor_StopNotRunning(t *testing.T) {
	processor := NewSyncProcessor(&countingPender{}, DefaultSyncProcessorConfig(), applog.Discard())

	if err := processor.Stop(context.Background()); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
}

func TestSyncProcessor_PollsUntilStopped(t *testing.T) {
	pender := &countingPender{}
	processor := NewSyncProcessor(pender, SyncProcessorConfig{PollInterval: 5 * time.Millisecond}, applog.Discard())

	ctx := context.Background()
	if err := processor.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for pender.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if pender.calls.Load() < 2 {
		t.Fatalf("expected at least 2 polls, got %d", pender.calls.Load())
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := processor.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if processor.IsRunning() {
		t.Error("processor should not be running after Stop")
	}

	after := pender.calls.Load()
	time.Sleep(20 * time.Millisecond)
	if pender.calls.Load() != after {
		t.Error("processor kept polling after Stop")
	}

	if err := processor.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := processor.Stop(stopCtx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}
