// Package domain contains the core entities of the drill service: sentence
// cards, lessons and the per-lesson mastery record kept for each language.
// It has no knowledge of storage or transport.
package domain
