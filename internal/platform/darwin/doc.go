// Package darwin bridges AppKit, the accessibility API and NSAppleScript
// through cgo. Everything here is macOS only.
package darwin
