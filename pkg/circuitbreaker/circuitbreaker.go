package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var ErrOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

type Config struct {
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold int
	// SuccessThreshold successful probes close it again.
	SuccessThreshold int
	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration
	// MaxProbes bounds concurrent calls while half-open.
	MaxProbes int
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Cooldown:         30 * time.Second,
		MaxProbes:        1,
	}
}

// Breaker stops calling a failing dependency for a while.
type Breaker struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	probes    int
	openedAt  time.Time

	// generation increases on every transition into half-open.
	generation uint64
}

// ticket records how a call was admitted.
type ticket struct {
	probe      bool
	generation uint64
}

func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg, now: time.Now}
}

// WithClock replaces time.Now; for tests.
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.now = now
	return b
}

// Execute runs fn unless the breaker is open. ErrOpen is returned without
// calling fn.
func (b *Breaker) Execute(fn func() error) error {
	t, ok := b.allow()
	if !ok {
		return ErrOpen
	}
	err := fn()
	b.record(t, err)
	return err
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()
	return b.state
}

func (b *Breaker) allow() (ticket, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance()
	switch b.state {
	case StateOpen:
		return ticket{}, false
	case StateHalfOpen:
		if b.probes >= b.cfg.MaxProbes {
			return ticket{}, false
		}
		b.probes++
		return ticket{probe: true, generation: b.generation}, true
	}
	return ticket{}, true
}

// advance moves an open breaker to half-open once the cooldown has passed.
func (b *Breaker) advance() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		b.state = StateHalfOpen
		b.probes = 0
		b.successes = 0
		b.generation++
	}
}

// record applies the outcome of a call. Only probes of the current
// half-open generation count toward closing or reopening it; a call admitted
// earlier that finishes late leaves the probe accounting alone.
func (b *Breaker) record(t ticket, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	currentProbe := t.probe && b.state == StateHalfOpen && t.generation == b.generation
	if currentProbe {
		b.probes--
	}

	if err != nil {
		switch {
		case currentProbe:
			b.open()
		case b.state == StateClosed:
			b.failures++
			if b.failures >= b.cfg.FailureThreshold {
				b.open()
			}
		}
		return
	}

	switch {
	case currentProbe:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.state = StateClosed
			b.failures = 0
		}
	case b.state == StateClosed:
		b.failures = 0
	}
}

func (b *Breaker) open() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.failures = 0
}
