// Package service holds what the application services share. The services
// themselves live in subpackages: mastery tracks per-lesson exposure and
// decay, schedule builds and caches drill schedules.
package service
