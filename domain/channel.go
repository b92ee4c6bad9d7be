package domain

// Channel is a named group of participants with an optional topic.
// Members are stored as normalized nicks in join order; the channel
// does not own participant lifetime, the registry resolves nicks to
// live sessions at use time.
type Channel struct {
	Name    string
	Topic   string
	members []string
}

func NewChannel(name string) *Channel {
	return &Channel{Name: Normalize(name)}
}

// Add appends a member nick. Re-adding an existing member is a no-op
// and reported as false so callers can keep join idempotent.
func (c *Channel) Add(nick string) bool {
	nick = Normalize(nick)
	if c.Has(nick) {
		return false
	}
	c.members = append(c.members, nick)
	return true
}

func (c *Channel) Remove(nick string) bool {
	nick = Normalize(nick)
	for i, m := range c.members {
		if m == nick {
			c.members = append(c.members[:i], c.members[i+1:]...)
			return true
		}
	}
	return false
}

// Rename swaps a member key in place, keeping join order.
func (c *Channel) Rename(oldNick, newNick string) {
	oldNick, newNick = Normalize(oldNick), Normalize(newNick)
	for i, m := range c.members {
		if m == oldNick {
			c.members[i] = newNick
			return
		}
	}
}

func (c *Channel) Has(nick string) bool {
	nick = Normalize(nick)
	for _, m := range c.members {
		if m == nick {
			return true
		}
	}
	return false
}

// Members returns the member nicks in join order.
func (c *Channel) Members() []string {
	out := make([]string, len(c.members))
	copy(out, c.members)
	return out
}

func (c *Channel) Len() int {
	return len(c.members)
}

func (c *Channel) Empty() bool {
	return len(c.members) == 0
}
