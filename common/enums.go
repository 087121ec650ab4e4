// Package common keeps enums shared by configuration and the color engine so
// the engine does not depend on configuration.
package common

// How color keywords are recognized inside a property value.
// ENUM(word, substring)
type MatchMode int

// Legacy reports whether keywords are matched as plain case-sensitive
// substrings of the value instead of whole words.
func (m MatchMode) Legacy() bool {
	return m == MatchModeSubstring
}
