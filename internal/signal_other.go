//go:build !aix && !darwin && !dragonfly && !freebsd && !linux && !netbsd && !openbsd && !solaris
// +build !aix,!darwin,!dragonfly,!freebsd,!linux,!netbsd,!openbsd,!solaris

package internal

import "os"

// interruptSignals are the signals NotifyInterrupts forwards.
var interruptSignals = []os.Signal{os.Interrupt}
