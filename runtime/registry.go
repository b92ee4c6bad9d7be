package runtime

import (
	stderrors "errors"
	"fmt"

	"github.com/samber/lo"

	"chat-relay/domain"
	"chat-relay/errors"
)

// Registry holds the two shared maps of the relay: normalized nick to
// session, and normalized channel name to channel. It is owned by the
// engine goroutine exclusively. Handlers never run concurrently, so
// the registry carries no lock; access from any other goroutine is a
// bug.
type Registry struct {
	sessions map[string]*Session
	channels map[string]*domain.Channel

	// order keeps channel names in creation order so LIST output is
	// insertion-stable.
	order []string
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		channels: make(map[string]*domain.Channel),
	}
}

// Bind inserts a fresh session under its placeholder nick. The
// placeholder is re-rolled on the off chance it collides.
func (r *Registry) Bind(s *Session) {
	for {
		if _, taken := r.sessions[domain.Normalize(s.Nick)]; !taken {
			break
		}
		s.Participant = domain.NewParticipant(s.Participant.Host)
	}
	r.sessions[domain.Normalize(s.Nick)] = s
}

// Lookup resolves a nick to its live session.
func (r *Registry) Lookup(nick string) (*Session, bool) {
	s, ok := r.sessions[domain.Normalize(nick)]
	return s, ok
}

// Each visits every live session.
func (r *Registry) Each(fn func(*Session)) {
	for _, s := range r.sessions {
		fn(s)
	}
}

// Rename atomically moves a session to a new nick. The new name must be
// well-formed and free (case-insensitively) unless it is held by the
// same session. On failure both the proposer's and the holder's names
// stay unchanged. The session's channel member lists are re-keyed in
// the same operation so both registries stay consistent.
func (r *Registry) Rename(s *Session, nick string) error {
	if !domain.IsValidNickname(nick) {
		return fmt.Errorf("%w: %q", errors.ErrErroneousNickname, nick)
	}
	oldKey, newKey := domain.Normalize(s.Nick), domain.Normalize(nick)
	if holder, taken := r.sessions[newKey]; taken && holder != s {
		return fmt.Errorf("%w: %q", errors.ErrNicknameInUse, nick)
	}

	delete(r.sessions, oldKey)
	r.sessions[newKey] = s
	for _, name := range s.Channels {
		if ch, ok := r.channels[name]; ok {
			ch.Rename(oldKey, newKey)
		}
	}
	s.Nick = nick
	return nil
}

// Join adds the session to a channel, creating it on first join.
// Re-joining is a no-op success: already reports it so the caller can
// suppress the duplicate join broadcast.
func (r *Registry) Join(s *Session, name string) (ch *domain.Channel, already bool, err error) {
	if !domain.IsValidChannel(name) {
		return nil, false, fmt.Errorf("%w: %q", errors.ErrBadChannelName, name)
	}
	key := domain.Normalize(name)
	ch, ok := r.channels[key]
	if !ok {
		ch = domain.NewChannel(key)
		r.channels[key] = ch
		r.order = append(r.order, key)
	}
	if !ch.Add(s.Nick) {
		return ch, true, nil
	}
	s.AddChannel(key)
	return ch, false, nil
}

// Leave removes the session from a channel. An empty channel is
// deleted together with its topic. The error distinguishes a missing
// channel from a non-membership so callers can pick the right numeric.
func (r *Registry) Leave(s *Session, name string) error {
	key := domain.Normalize(name)
	ch, ok := r.channels[key]
	if !ok {
		return fmt.Errorf("%w: %q", errors.ErrNoSuchChannel, name)
	}
	if !ch.Remove(s.Nick) {
		return fmt.Errorf("%w: %q", errors.ErrNotOnChannel, name)
	}
	s.RemoveChannel(key)
	if ch.Empty() {
		r.deleteChannel(key)
	}
	return nil
}

// Remove unwinds a session from both registries: every joined channel
// is left (empty ones deleted) and the nick key is released. Returns
// the normalized names of the channels that were left.
func (r *Registry) Remove(s *Session) []string {
	left := make([]string, 0, len(s.Channels))
	for _, name := range append([]string(nil), s.Channels...) {
		if err := r.Leave(s, name); err == nil {
			left = append(left, name)
		}
	}
	delete(r.sessions, domain.Normalize(s.Nick))
	return left
}

// Channel resolves a normalized or raw channel name.
func (r *Registry) Channel(name string) (*domain.Channel, bool) {
	ch, ok := r.channels[domain.Normalize(name)]
	return ch, ok
}

// Channels lists live channels in creation order.
func (r *Registry) Channels() []*domain.Channel {
	return lo.FilterMap(r.order, func(name string, _ int) (*domain.Channel, bool) {
		ch, ok := r.channels[name]
		return ch, ok
	})
}

// MembersOf resolves a channel's member nicks to live sessions,
// preserving join order. Nicks with no live session are skipped; the
// member lists hold weak references by design.
func (r *Registry) MembersOf(ch *domain.Channel) []*Session {
	return lo.FilterMap(ch.Members(), func(nick string, _ int) (*Session, bool) {
		s, ok := r.sessions[nick]
		return s, ok
	})
}

func (r *Registry) CountParticipants() int {
	return len(r.sessions)
}

func (r *Registry) CountChannels() int {
	return len(r.channels)
}

func (r *Registry) deleteChannel(key string) {
	delete(r.channels, key)
	r.order = lo.Without(r.order, key)
}

// IsNoSuchChannel and IsNotOnChannel classify Leave failures.
func IsNoSuchChannel(err error) bool {
	return stderrors.Is(err, errors.ErrNoSuchChannel)
}

func IsNotOnChannel(err error) bool {
	return stderrors.Is(err, errors.ErrNotOnChannel)
}

// IsErroneousNickname classifies Rename failures.
func IsErroneousNickname(err error) bool {
	return stderrors.Is(err, errors.ErrErroneousNickname)
}
