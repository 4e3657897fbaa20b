// Package config loads the daemon's configuration file: a small
// key = value / category { } language with one repeatable "listener"
// block and a transitive "source = <glob>" include directive.
package config

import "fmt"

// Rule is one "listener { }" block: a timeout paired with the shell
// commands to run on idle and on resume.
type Rule struct {
	TimeoutSec    int
	OnTimeout     string
	OnResume      string
	IgnoreInhibit bool
}

// Error returned when a rule is skipped during Load; aggregated rather
// than treated as fatal unless it leaves zero usable rules (see Load).
type RuleError struct {
	Source string // file the rule came from
	Index  int    // ordinal position of the listener block within Source
	Reason string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%s: listener #%d: %s", e.Source, e.Index, e.Reason)
}

// scalarDefaults holds every recognized "category:key" option with its default.
var scalarDefaults = map[string]string{
	"general:lock_cmd":                "",
	"general:unlock_cmd":              "",
	"general:on_lock_cmd":             "",
	"general:on_unlock_cmd":           "",
	"general:before_sleep_cmd":        "",
	"general:after_sleep_cmd":         "",
	"general:ignore_dbus_inhibit":     "0",
	"general:ignore_systemd_inhibit":  "0",
	"general:ignore_wayland_inhibit":  "0",
	"general:inhibit_sleep":           "2",
}

// View is a read-only snapshot of the loaded configuration. It is safe
// for concurrent reads from multiple goroutines; nothing in this build
// ever mutates a View after Load returns it.
type View struct {
	rules   []Rule
	scalars map[string]string
}

// Rules returns every successfully parsed listener rule, in file order.
func (v *View) Rules() []Rule {
	return v.rules
}

// Value returns the raw string value of a scalar option, or its default
// if the configuration did not set it. A key with no entry in
// scalarDefaults that the file did not set yields "".
func (v *View) Value(name string) string {
	if val, ok := v.scalars[name]; ok {
		return val
	}
	return scalarDefaults[name]
}

// Bool interprets a scalar option as a boolean: "1"/"true"/"yes"/"on"
// are true, everything else is false.
func (v *View) Bool(name string) bool {
	switch v.Value(name) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Int interprets a scalar option as an integer, returning 0 if it
// cannot be parsed.
func (v *View) Int(name string) int {
	n, err := parseInt(v.Value(name))
	if err != nil {
		return 0
	}
	return n
}

// Watched returns a stable handle whose Value() always reflects the
// scalar currently loaded into this View. This build never reloads a
// View in place, but the handle exists so callers don't need to special
// case a future hot-reload (see Design Notes in SPEC_FULL.md).
type Watched struct {
	view *View
	name string
}

func (v *View) WatchedValue(name string) *Watched {
	return &Watched{view: v, name: name}
}

func (w *Watched) Value() string { return w.view.Value(w.name) }
func (w *Watched) Bool() bool    { return w.view.Bool(w.name) }
func (w *Watched) Int() int      { return w.view.Int(w.name) }
