//go:build aix || darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris
// +build aix darwin dragonfly freebsd linux netbsd openbsd solaris

package internal

import (
	"os"

	"golang.org/x/sys/unix"
)

// interruptSignals are the signals NotifyInterrupts forwards.
var interruptSignals = []os.Signal{unix.SIGINT}
