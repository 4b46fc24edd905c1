package linksync

import "sync/atomic"

// EchoFlag marks that the next settled change on one side was caused by the
// other side. The side about to mutate raises its peer's flag before touching
// anything; the peer consumes it on its next settle.
type EchoFlag struct {
	raised atomic.Bool
}

func (f *EchoFlag) Raise() {
	f.raised.Store(true)
}

// Lower retracts a raised flag when the mutation it announced never happened.
func (f *EchoFlag) Lower() {
	f.raised.Store(false)
}

// Consume clears the flag and reports whether it was raised.
func (f *EchoFlag) Consume() bool {
	return f.raised.CompareAndSwap(true, false)
}

func (f *EchoFlag) Raised() bool {
	return f.raised.Load()
}

// EchoGuard holds the flag pair shared by a directory and archive watcher.
// Each watcher receives its own flag and its peer's flag, never the peer.
type EchoGuard struct {
	Directory EchoFlag
	Archive   EchoFlag
}
