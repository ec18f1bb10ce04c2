//go:build !tinygo

package core

import "sync"

// State is the saved interrupt state returned by disableInterrupts.
type State uintptr

// On the host, interrupt handlers are invoked from ordinary goroutines (tests,
// simulated peripherals), so the critical section has to be a real lock.
// Critical sections never nest.
var hostCriticalSection sync.Mutex

// disableInterrupts enters the critical section shared with interrupt handlers
func disableInterrupts() State {
	hostCriticalSection.Lock()
	return 0
}

// restoreInterrupts leaves the critical section
func restoreInterrupts(state State) {
	hostCriticalSection.Unlock()
}
