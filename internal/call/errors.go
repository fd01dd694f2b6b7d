package call

import "errors"

// ErrCallActive is returned by StartCall while another call is running.
var ErrCallActive = errors.New("call already active")

// ErrNoActiveCall is returned by EndCall when no call is active.
var ErrNoActiveCall = errors.New("no active call")
