package ducker

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/soundloop/camduck/internal/metrics"
)

func testLoop(cfg Config, setter Setter) *Loop {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}
	if cfg.DebounceWindow == 0 {
		cfg.DebounceWindow = 50 * time.Millisecond
	}
	if cfg.ActiveGain == 0 {
		cfg.ActiveGain = 0.25
	}
	return New(cfg, newScriptedProber(), setter, metrics.New())
}

func TestObserve_FirstTrueRaisesOnce(t *testing.T) {
	setter := &recordingSetter{}
	l := testLoop(Config{}, setter)

	l.observe(false)
	l.observe(false)
	if len(setter.commands()) != 0 {
		t.Fatalf("no command expected while inactive")
	}

	l.observe(true)
	l.observe(true)
	l.observe(true)

	sent := setter.commands()
	if len(sent) != 1 {
		t.Fatalf("expected exactly one command, got %d", len(sent))
	}
	if sent[0].name != "volume" || sent[0].value != 0.25 {
		t.Fatalf("unexpected command %+v", sent[0])
	}
}

func TestObserve_SingleFalseDoesNotMute(t *testing.T) {
	setter := &recordingSetter{}
	l := testLoop(Config{DebounceWindow: 60 * time.Millisecond}, setter)

	l.observe(true)
	l.observe(false)

	if got := len(setter.commands()); got != 1 {
		t.Fatalf("mute must not fire before the debounce window, got %d commands", got)
	}

	time.Sleep(120 * time.Millisecond)
	sent := setter.commands()
	if len(sent) != 2 {
		t.Fatalf("expected mute after debounce, got %d commands", len(sent))
	}
	if sent[1].value != 0 {
		t.Fatalf("expected mute command, got %+v", sent[1])
	}
	if gap := sent[1].at.Sub(sent[0].at); gap < 60*time.Millisecond {
		t.Fatalf("mute fired %v after raise, before the window elapsed", gap)
	}
}

func TestObserve_ReactivationCancelsPendingMute(t *testing.T) {
	setter := &recordingSetter{}
	l := testLoop(Config{DebounceWindow: 60 * time.Millisecond}, setter)

	l.observe(true)
	l.observe(false)
	l.observe(true)

	time.Sleep(120 * time.Millisecond)
	if got := len(setter.commands()); got != 1 {
		t.Fatalf("cancelled mute must not issue a command, got %d", got)
	}
	if got := testutil.ToFloat64(l.mets.DebounceCancels); got != 1 {
		t.Fatalf("expected one recorded cancel, got %v", got)
	}
}

func TestObserve_CommandFailureIsSwallowed(t *testing.T) {
	setter := &recordingSetter{}
	setter.fail(errSetterDown)
	l := testLoop(Config{}, setter)

	l.observe(true)

	// Fire-and-forget: the state advanced even though the send failed, and
	// no retry happens on subsequent identical readings.
	l.observe(true)
	if len(setter.commands()) != 0 {
		t.Fatalf("failed sends must not be recorded")
	}
	if got := testutil.ToFloat64(l.mets.Commands.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected one command error, got %v", got)
	}
}

func TestRun_ScenarioA_ActiveCommandOnThirdReading(t *testing.T) {
	setter := &recordingSetter{}
	poll := 20 * time.Millisecond
	l := New(Config{
		PollInterval:   poll,
		DebounceWindow: time.Second,
		ActiveGain:     0.25,
	}, newScriptedProber(false, false, true, true, true), setter, metrics.New())

	ctx, cancel := context.WithCancel(context.Background())
	start := time.Now()
	go l.Run(ctx)
	time.Sleep(6 * poll)
	cancel()
	time.Sleep(2 * poll)

	sent := setter.commands()
	// One raise during the run plus the shutdown mute.
	if len(sent) != 2 {
		t.Fatalf("expected raise + shutdown mute, got %d commands: %+v", len(sent), sent)
	}
	if sent[0].value != 0.25 {
		t.Fatalf("first command should raise, got %+v", sent[0])
	}
	if elapsed := sent[0].at.Sub(start); elapsed < 2*poll {
		t.Fatalf("raise fired at %v, before the third poll", elapsed)
	}
	if sent[1].value != 0 {
		t.Fatalf("shutdown command should mute, got %+v", sent[1])
	}
}

func TestRun_ScenarioB_MuteAfterDebounce(t *testing.T) {
	setter := &recordingSetter{}
	poll := 20 * time.Millisecond
	l := New(Config{
		PollInterval:   poll,
		DebounceWindow: 2 * poll,
		ActiveGain:     0.25,
	}, newScriptedProber(true, true, false, false, false, false), setter, metrics.New())

	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	time.Sleep(10 * poll)
	cancel()
	time.Sleep(2 * poll)

	sent := setter.commands()
	// Raise at the first reading, debounced mute, shutdown mute.
	if len(sent) != 3 {
		t.Fatalf("expected raise + mute + shutdown mute, got %d: %+v", len(sent), sent)
	}
	if sent[0].value != 0.25 || sent[1].value != 0 {
		t.Fatalf("unexpected command order: %+v", sent)
	}
	if gap := sent[1].at.Sub(sent[0].at); gap < 3*poll {
		// First false lands on the third poll; the mute must trail it by the
		// 2-poll window.
		t.Fatalf("mute fired %v after raise, too early", gap)
	}
}

func TestRun_ScenarioC_FlapIssuesNoMute(t *testing.T) {
	setter := &recordingSetter{}
	poll := 20 * time.Millisecond
	l := New(Config{
		PollInterval:   poll,
		DebounceWindow: 2 * poll,
		ActiveGain:     0.25,
	}, newScriptedProber(true, false, true), setter, metrics.New())

	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	time.Sleep(8 * poll)
	cancel()
	time.Sleep(2 * poll)

	sent := setter.commands()
	// Raise plus the shutdown mute only; the armed window was cancelled by
	// the following true reading.
	if len(sent) != 2 {
		t.Fatalf("expected no debounced mute, got %d commands: %+v", len(sent), sent)
	}
	if sent[0].value != 0.25 || sent[1].value != 0 {
		t.Fatalf("unexpected commands: %+v", sent)
	}
	if got := testutil.ToFloat64(l.mets.DebounceCancels); got != 1 {
		t.Fatalf("expected one cancel, got %v", got)
	}
}

func TestRun_CancelAttemptsFinalMute(t *testing.T) {
	setter := &recordingSetter{}
	poll := 10 * time.Millisecond
	l := New(Config{
		PollInterval:   poll,
		DebounceWindow: time.Second,
		ActiveGain:     0.25,
	}, newScriptedProber(true), setter, metrics.New())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	time.Sleep(3 * poll)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancellation")
	}

	sent := setter.commands()
	if len(sent) == 0 || sent[len(sent)-1].value != 0 {
		t.Fatalf("expected final command to be a mute, got %+v", sent)
	}
}
