// Package coreext imports every core extension for its side effects.
package coreext

import (
	// importing for side effects
	_ "github.com/zephyrtronium/jlrt/coreext/collector"
	_ "github.com/zephyrtronium/jlrt/coreext/task"
)
