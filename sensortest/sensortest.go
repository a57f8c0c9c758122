// Package sensortest provides a fake clock and scripted gpiotest pins for
// exercising an HC-SR04 rig without hardware.
//
// Each Read of an EchoPin advances the shared Clock by one PollStep, so the
// busy-wait loops in rangesensor run deterministically.
package sensortest

import (
	"sync"
	"time"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpiotest"
)

// PollStep is how far the Clock advances on every EchoPin read.
const PollStep = time.Microsecond

// Clock is a manually advanced rangesensor.Clock.
type Clock struct {
	mu      sync.Mutex
	base    time.Time
	elapsed time.Duration
}

// NewClock returns a Clock starting at an arbitrary fixed instant.
func NewClock() *Clock {
	return &Clock{base: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the start instant plus everything advanced so far.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base.Add(c.elapsed)
}

// Sleep advances the clock by d without blocking.
func (c *Clock) Sleep(d time.Duration) {
	c.Advance(d)
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.elapsed += d
	c.mu.Unlock()
}

// Elapsed reports how far the clock has advanced since creation.
func (c *Clock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

// Edge is a recorded output transition.
type Edge struct {
	Level gpio.Level
	At    time.Duration
}

// TriggerPin records every level written to it along with the Clock time.
// Each falling edge re-arms Echo, when set, so the echo pulse starts timing
// from the end of the trigger pulse.
type TriggerPin struct {
	gpiotest.Pin
	Clock *Clock
	Echo  *EchoPin

	mu    sync.Mutex
	edges []Edge
}

// Out records l and sets the pin level.
func (p *TriggerPin) Out(l gpio.Level) error {
	p.mu.Lock()
	p.edges = append(p.edges, Edge{Level: l, At: p.Clock.Elapsed()})
	p.mu.Unlock()
	if l == gpio.Low && p.Echo != nil {
		p.Echo.Arm()
	}
	return p.Pin.Out(l)
}

// Edges returns the transitions written so far.
func (p *TriggerPin) Edges() []Edge {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Edge(nil), p.edges...)
}

// EchoPin replays one echo pulse per trigger. After Arm, it reads Low for
// Delay, then High for Width, then Low. A negative Delay never rises and a
// negative Width never falls.
type EchoPin struct {
	gpiotest.Pin
	Clock *Clock
	Delay time.Duration
	Width time.Duration

	mu    sync.Mutex
	armed time.Duration
	reads int
}

// Arm starts a new pulse relative to the current Clock time.
func (p *EchoPin) Arm() {
	p.mu.Lock()
	p.armed = p.Clock.Elapsed()
	p.mu.Unlock()
}

// SetPulse changes the pulse replayed after the next Arm.
func (p *EchoPin) SetPulse(delay, width time.Duration) {
	p.mu.Lock()
	p.Delay, p.Width = delay, width
	p.mu.Unlock()
}

// Read returns the scripted level for the current Clock time and advances
// the Clock by PollStep.
func (p *EchoPin) Read() gpio.Level {
	p.mu.Lock()
	since := p.Clock.Elapsed() - p.armed
	delay, width := p.Delay, p.Width
	p.reads++
	p.mu.Unlock()
	defer p.Clock.Advance(PollStep)

	switch {
	case delay < 0 || since < delay:
		return gpio.Low
	case width < 0 || since < delay+width:
		return gpio.High
	default:
		return gpio.Low
	}
}

// Reads counts calls to Read.
func (p *EchoPin) Reads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads
}

// NewRig returns a clock with a trigger and echo pin wired together. The
// echo replays a pulse of the given width 200us after each trigger.
func NewRig(width time.Duration) (*Clock, *TriggerPin, *EchoPin) {
	clk := NewClock()
	echo := &EchoPin{
		Pin:   gpiotest.Pin{N: "echo", L: gpio.Low},
		Clock: clk,
		Delay: 200 * time.Microsecond,
		Width: width,
	}
	trigger := &TriggerPin{
		Pin:   gpiotest.Pin{N: "trigger", L: gpio.Low},
		Clock: clk,
		Echo:  echo,
	}
	return clk, trigger, echo
}

// NewIndicator returns an output pin for an indicator LED.
func NewIndicator(name string) *gpiotest.Pin {
	return &gpiotest.Pin{N: name, L: gpio.Low}
}
