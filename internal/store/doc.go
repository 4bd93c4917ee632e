// Package store defines the persistence contracts of the drill service:
// mastery records keyed by lesson and language, and the ordered lesson
// curriculum of each language. Implementations live under
// internal/platform.
package store
