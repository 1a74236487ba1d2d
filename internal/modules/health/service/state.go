package service

import (
	"sync/atomic"
	"time"
)

// Probe reports whether any venue can take orders.
type Probe interface {
	Available() bool
}

type State struct {
	ready     atomic.Bool
	startedAt time.Time
	probe     Probe

	commandCenterURL string
}

func NewState(probe Probe, commandCenterURL string) *State {
	s := &State{startedAt: time.Now(), probe: probe, commandCenterURL: commandCenterURL}
	s.ready.Store(false)
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) TradingAvailable() bool {
	return s.probe != nil && s.probe.Available()
}

func (s *State) CommandCenterURL() string { return s.commandCenterURL }

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
