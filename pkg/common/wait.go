package common

import (
	"runtime"
	"time"
)

// WaitFor polls cond until it holds or timeout expires.
// The condition is checked before any sleep. A zero step only yields the
// processor between checks. The last sleep is cut short at the expiry.
func WaitFor(cond func() bool, timeout, step time.Duration) bool {
	expiry := time.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		remaining := time.Until(expiry)
		if remaining < 0 {
			return false
		}
		if step > 0 {
			time.Sleep(min(step, remaining))
		} else {
			runtime.Gosched()
		}
	}
}
