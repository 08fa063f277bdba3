// Package payment симулирует оплату проезда: NFC-терминал пассажира и
// кассу водителя с уведомлениями. Реальных списаний не происходит.
package payment

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// TerminalState фаза NFC-терминала.
type TerminalState string

const (
	StateIdle       TerminalState = "idle"
	StateScanning   TerminalState = "scanning"
	StateProcessing TerminalState = "processing"
	StateSuccess    TerminalState = "success"
)

const (
	DefaultScanDelay    = 1800 * time.Millisecond
	DefaultProcessDelay = 1800 * time.Millisecond
)

var ErrTerminalBusy = errors.New("terminal is busy")

// TerminalStatus снимок терминала. Fare задан только в фазе success.
type TerminalStatus struct {
	State TerminalState    `json:"state"`
	Fare  *decimal.Decimal `json:"fare,omitempty"`
}

// Terminal симуляция NFC-оплаты пассажиром.
type Terminal struct {
	scanDelay    time.Duration
	processDelay time.Duration
	rnd          func() float64

	mu    sync.Mutex
	state TerminalState
	fare  decimal.Decimal
}

// TerminalOption настройка терминала.
type TerminalOption func(*Terminal)

// WithDelays задаёт длительность сканирования и обработки.
func WithDelays(scan, process time.Duration) TerminalOption {
	return func(t *Terminal) {
		t.scanDelay, t.processDelay = scan, process
	}
}

// WithRandom подменяет источник случайных чисел в [0, 1).
func WithRandom(rnd func() float64) TerminalOption {
	return func(t *Terminal) { t.rnd = rnd }
}

func NewTerminal(opts ...TerminalOption) *Terminal {
	t := &Terminal{
		scanDelay:    DefaultScanDelay,
		processDelay: DefaultProcessDelay,
		rnd:          rand.Float64,
		state:        StateIdle,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Fare случайный тариф в [1, 6), округлённый до сотых.
func Fare(r float64) decimal.Decimal {
	return decimal.NewFromFloat(r*5 + 1).Round(2)
}

// Run проводит сканирование и обработку и возвращает тариф.
// При отмене ctx терминал возвращается в idle.
func (t *Terminal) Run(ctx context.Context) (decimal.Decimal, error) {
	t.mu.Lock()
	if t.state == StateScanning || t.state == StateProcessing {
		t.mu.Unlock()
		return decimal.Zero, ErrTerminalBusy
	}
	t.state = StateScanning
	t.mu.Unlock()

	if err := t.wait(ctx, t.scanDelay); err != nil {
		return decimal.Zero, err
	}
	t.set(StateProcessing)
	if err := t.wait(ctx, t.processDelay); err != nil {
		return decimal.Zero, err
	}

	fare := Fare(t.rnd())
	t.mu.Lock()
	t.state = StateSuccess
	t.fare = fare
	t.mu.Unlock()
	return fare, nil
}

func (t *Terminal) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		t.Reset()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (t *Terminal) set(s TerminalState) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// Reset возвращает терминал в idle.
func (t *Terminal) Reset() {
	t.mu.Lock()
	t.state = StateIdle
	t.fare = decimal.Zero
	t.mu.Unlock()
}

// Status текущее состояние.
func (t *Terminal) Status() TerminalStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := TerminalStatus{State: t.state}
	if t.state == StateSuccess {
		fare := t.fare
		st.Fare = &fare
	}
	return st
}
