package errors

import "fmt"

var (
	ErrWorkerPanic       = fmt.Errorf("worker panic")
	ErrErroneousNickname = fmt.Errorf("erroneous nickname")
	ErrNicknameInUse     = fmt.Errorf("nickname is already in use")
	ErrBadChannelName    = fmt.Errorf("bad channel name")
	ErrNoSuchChannel     = fmt.Errorf("no such channel")
	ErrNotOnChannel      = fmt.Errorf("not on that channel")
	ErrEmptyWords        = fmt.Errorf("no words have been found")
)
