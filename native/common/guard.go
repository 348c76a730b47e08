package common

import "fmt"

// PauseView reports whether a native module is administratively paused.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard returns an error when the named module is paused. A nil view means
// pausing is not configured and the operation proceeds.
func Guard(view PauseView, module string) error {
	if view == nil {
		return nil
	}
	if view.IsPaused(module) {
		return fmt.Errorf("%s: module paused", module)
	}
	return nil
}

// StaticPauses is a fixed pause set, typically loaded from configuration.
type StaticPauses map[string]bool

func (s StaticPauses) IsPaused(module string) bool { return s[module] }
