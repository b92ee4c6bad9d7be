// Package domain contains core concepts of the chat relay.
// This file defines Participant entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// Participant is one client connection, registering or registered.
// A fresh participant carries random placeholder identity fields so it
// occupies a unique slot in the name registry before NICK/USER arrive.
type Participant struct {
	Nick     string
	NickSet  bool
	User     string
	UserSet  bool
	RealName string
	Host     string

	// Registered flips once after both NICK and USER have been seen.
	Registered bool

	// Channels holds normalized channel names in join order.
	// Invariant: mirrors the member lists of the channel registry.
	Channels []string

	// Keepalive bookkeeping. LastSeen is the last liveness response;
	// AwaitingPong marks an outstanding challenge.
	LastSeen     time.Time
	AwaitingPong bool
	PingSentAt   time.Time
}

func NewParticipant(host string) *Participant {
	if host == "" {
		host = "h" + randomID()
	}
	return &Participant{
		Nick:     "n" + randomID(),
		User:     "u" + randomID(),
		Host:     host,
		LastSeen: time.Now(),
	}
}

// Hostmask is the participant's current wire identity.
func (p *Participant) Hostmask() string {
	return Hostmask(p.Nick, p.User, p.Host)
}

// InChannel reports membership by normalized channel name.
func (p *Participant) InChannel(name string) bool {
	for _, c := range p.Channels {
		if c == name {
			return true
		}
	}
	return false
}

func (p *Participant) AddChannel(name string) {
	if !p.InChannel(name) {
		p.Channels = append(p.Channels, name)
	}
}

func (p *Participant) RemoveChannel(name string) {
	for i, c := range p.Channels {
		if c == name {
			p.Channels = append(p.Channels[:i], p.Channels[i+1:]...)
			return
		}
	}
}
