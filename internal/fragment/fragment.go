// Package fragment is the request-time entry point for profile injection.
//
// Resolve is the failure-opaque path: whatever goes wrong underneath,
// it returns empty text rather than breaking the user's primary command.
package fragment

import (
	"github.com/rs/zerolog"

	"github.com/thebtf/recall/internal/monitor"
	"github.com/thebtf/recall/internal/profile"
)

// TestText is the fixed diagnostic returned for the "test" argument.
const TestText = "TEST FRAGMENT: recall memory is wired up and responding."

// ProfileSource tags profile-derived fragments.
const ProfileSource = "memory:profile"

// Fragment is a named piece of text for prompt injection.
type Fragment struct {
	Text   string
	Source string
}

// Loader resolves fragment arguments. It owns the monitor handle:
// there is exactly one monitor per Loader, started lazily on the
// first "auto" resolution and stopped via Close.
type Loader struct {
	store       *profile.Store
	mon         *monitor.Monitor
	autoUpdates bool
	logger      zerolog.Logger
}

// NewLoader creates a loader over store. mon may be nil (or
// autoUpdates false) to disable background updates entirely.
func NewLoader(store *profile.Store, mon *monitor.Monitor, autoUpdates bool, logger zerolog.Logger) *Loader {
	return &Loader{
		store:       store,
		mon:         mon,
		autoUpdates: autoUpdates,
		logger:      logger.With().Str("component", "fragment").Logger(),
	}
}

// Resolve maps a fragment argument to injectable text.
//
//	"auto"  -> current profile (starts the monitor as a side effect)
//	"test"  -> fixed diagnostic string
//	other   -> nothing
//
// Errors never propagate; they degrade to an empty fragment.
func (l *Loader) Resolve(argument string) Fragment {
	switch argument {
	case "auto":
		if l.autoUpdates && l.mon != nil {
			l.mon.Start()
		}
		content, err := l.store.Load()
		if err != nil {
			l.logger.Debug().Err(err).Msg("Profile load failed, injecting nothing")
			return Fragment{}
		}
		if profile.IsBlank(content) {
			return Fragment{}
		}
		return Fragment{Text: content, Source: ProfileSource}
	case "test":
		return Fragment{Text: TestText, Source: "memory:test"}
	default:
		return Fragment{}
	}
}

// Monitor exposes the owned monitor handle for status reporting.
// May be nil when updates are disabled.
func (l *Loader) Monitor() *monitor.Monitor {
	return l.mon
}

// Close stops the background monitor. Safe to call without a prior
// "auto" resolution and safe to call twice.
func (l *Loader) Close() {
	if l.mon != nil {
		l.mon.Stop()
	}
}
