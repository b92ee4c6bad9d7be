package protocol

import "fmt"

// Numeric is a 3-digit server reply code.
type Numeric int

const (
	Welcome            Numeric = 1
	YourHost           Numeric = 2
	Created            Numeric = 3
	MyInfo             Numeric = 4
	ISupport           Numeric = 5
	WhoisUser          Numeric = 311
	WhoisServer        Numeric = 312
	EndOfWho           Numeric = 315
	EndOfWhois         Numeric = 318
	ListStart          Numeric = 321
	List               Numeric = 322
	ListEnd            Numeric = 323
	ChannelModeIs      Numeric = 324
	NoTopicSet         Numeric = 331
	Topic              Numeric = 332
	WhoReply           Numeric = 352
	NameReply          Numeric = 353
	EndOfNames         Numeric = 366
	Motd               Numeric = 372
	MotdStart          Numeric = 375
	EndOfMotd          Numeric = 376
	NoSuchNick         Numeric = 401
	NoSuchChannel      Numeric = 403
	UnknownCommand     Numeric = 421
	NoMotd             Numeric = 422
	ErroneousNickname  Numeric = 432
	NicknameInUse      Numeric = 433
	NotRegistered      Numeric = 451
	BadChannelName     Numeric = 479
)

// String renders the zero-padded wire form, e.g. "001".
func (n Numeric) String() string {
	return fmt.Sprintf("%03d", int(n))
}

// Reply formats a full numeric reply line (terminator excluded):
// ":<server> <code> <target-nick> <text>". This shape is a fixed
// external contract of the relay.
func (n Numeric) Reply(server, nick, text string) string {
	return fmt.Sprintf(":%s %s %s %s", server, n, nick, text)
}
