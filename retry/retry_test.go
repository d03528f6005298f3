package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

// noSleep records requested delays without waiting.
type noSleep struct {
	delays []time.Duration
}

func (s *noSleep) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func TestNew_Defaults(t *testing.T) {
	p := New(Config{})

	if p.config.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", p.config.MaxAttempts)
	}
	if p.config.InitialDelay != 100*time.Millisecond {
		t.Errorf("InitialDelay = %v, want 100ms", p.config.InitialDelay)
	}
	if p.config.MaxDelay != 30*time.Second {
		t.Errorf("MaxDelay = %v, want 30s", p.config.MaxDelay)
	}
	if p.config.Multiplier != 2.0 {
		t.Errorf("Multiplier = %v, want 2.0", p.config.Multiplier)
	}
}

func TestExecute_SuccessFirstAttempt(t *testing.T) {
	p := New(Config{MaxAttempts: 3})

	calls := 0
	err := p.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})

	if err != nil {
		t.Errorf("Execute() error = %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("operation invoked %d times, want 1", calls)
	}
}

func TestExecute_RetryableExhaustsAttempts(t *testing.T) {
	sleeper := &noSleep{}
	p := New(Config{MaxAttempts: 3, Sleep: sleeper.sleep})

	boom := errors.New("boom")
	calls := 0
	err := p.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	})

	// Exactly MaxAttempts invocations, terminal error is the last failure.
	if calls != 3 {
		t.Errorf("operation invoked %d times, want 3", calls)
	}
	if err != boom {
		t.Errorf("Execute() error = %v, want %v", err, boom)
	}
	if len(sleeper.delays) != 2 {
		t.Errorf("slept %d times, want 2", len(sleeper.delays))
	}
}

func TestExecute_NonRetryableFailsImmediately(t *testing.T) {
	fatal := errors.New("bad request")
	p := New(Config{
		MaxAttempts: 5,
		RetryIf:     func(err error) bool { return !errors.Is(err, fatal) },
	})

	calls := 0
	err := p.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return fatal
	})

	if calls != 1 {
		t.Errorf("operation invoked %d times, want 1", calls)
	}
	if err != fatal {
		t.Errorf("Execute() error = %v, want %v", err, fatal)
	}
}

func TestExecute_SuccessAfterRetries(t *testing.T) {
	sleeper := &noSleep{}
	p := New(Config{MaxAttempts: 5, Sleep: sleeper.sleep})

	calls := 0
	err := p.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if err != nil {
		t.Errorf("Execute() error = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("operation invoked %d times, want 3", calls)
	}
}

func TestExecuteGated_GateRefusalIsTerminal(t *testing.T) {
	sleeper := &noSleep{}
	p := New(Config{MaxAttempts: 5, Sleep: sleeper.sleep})

	open := errors.New("circuit open")
	gateCalls := 0
	gate := func() error {
		gateCalls++
		if gateCalls >= 3 {
			return open
		}
		return nil
	}

	calls := 0
	err := p.ExecuteGated(context.Background(), gate, func(ctx context.Context) error {
		calls++
		return errors.New("transient")
	})

	// Two attempts ran, then the gate refused the third: terminal,
	// no further attempts consumed.
	if err != open {
		t.Errorf("ExecuteGated() error = %v, want gate error", err)
	}
	if calls != 2 {
		t.Errorf("operation invoked %d times, want 2", calls)
	}
}

func TestExecuteGated_GateConsultedBeforeFirstAttempt(t *testing.T) {
	p := New(Config{MaxAttempts: 3})

	open := errors.New("circuit open")
	err := p.ExecuteGated(context.Background(), func() error { return open },
		func(ctx context.Context) error {
			t.Error("operation invoked despite gate refusal")
			return nil
		})

	if err != open {
		t.Errorf("ExecuteGated() error = %v, want gate error", err)
	}
}

func TestExecute_ContextCancelledDuringBackoff(t *testing.T) {
	p := New(Config{MaxAttempts: 3, InitialDelay: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	calls := 0
	err := p.Execute(ctx, func(ctx context.Context) error {
		calls++
		return errors.New("transient")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("operation invoked %d times, want 1", calls)
	}
}

func TestDelay_ExponentialBoundsWithJitter(t *testing.T) {
	base := 100 * time.Millisecond
	p := New(Config{InitialDelay: base, MaxDelay: time.Hour})

	// For attempt n the delay lies in [base*2^(n-1), base*2^(n-1)+base).
	for attempt := 1; attempt <= 5; attempt++ {
		floor := base * (1 << (attempt - 1))
		ceil := floor + base
		for i := 0; i < 200; i++ {
			d := p.delay(attempt)
			if d < floor || d >= ceil {
				t.Fatalf("delay(%d) = %v, want in [%v, %v)", attempt, d, floor, ceil)
			}
		}
	}
}

func TestDelay_CapAppliedBeforeJitter(t *testing.T) {
	base := time.Second
	p := New(Config{InitialDelay: base, MaxDelay: 2 * time.Second})

	for i := 0; i < 200; i++ {
		d := p.delay(10)
		if d < 2*time.Second || d >= 3*time.Second {
			t.Fatalf("capped delay = %v, want in [2s, 3s)", d)
		}
	}
}

func TestDelay_Strategies(t *testing.T) {
	base := 100 * time.Millisecond

	tests := []struct {
		name     string
		strategy Strategy
		attempt  int
		want     time.Duration
	}{
		{"constant attempt 1", StrategyConstant, 1, base},
		{"constant attempt 4", StrategyConstant, 4, base},
		{"linear attempt 1", StrategyLinear, 1, base},
		{"linear attempt 3", StrategyLinear, 3, 3 * base},
		{"exponential attempt 1", StrategyExponential, 1, base},
		{"exponential attempt 4", StrategyExponential, 4, 8 * base},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(Config{
				InitialDelay:  base,
				MaxDelay:      time.Hour,
				Strategy:      tt.strategy,
				DisableJitter: true,
			})
			if got := p.delay(tt.attempt); got != tt.want {
				t.Errorf("delay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestOnRetry_ReportsAttemptAndDelay(t *testing.T) {
	sleeper := &noSleep{}

	type call struct {
		attempt int
		delay   time.Duration
	}
	var calls []call

	p := New(Config{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		DisableJitter: true,
		Sleep:         sleeper.sleep,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			calls = append(calls, call{attempt, delay})
		},
	})

	p.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("transient")
	})

	if len(calls) != 2 {
		t.Fatalf("OnRetry called %d times, want 2", len(calls))
	}
	if calls[0].attempt != 1 || calls[0].delay != time.Millisecond {
		t.Errorf("first OnRetry = %+v, want attempt 1 delay 1ms", calls[0])
	}
	if calls[1].attempt != 2 || calls[1].delay != 2*time.Millisecond {
		t.Errorf("second OnRetry = %+v, want attempt 2 delay 2ms", calls[1])
	}
}
