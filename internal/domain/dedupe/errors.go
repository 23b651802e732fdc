package dedupe

import "errors"

// ErrFull is returned by Claim when every slot holds a live claim.
var ErrFull = errors.New("dedupe table full")
