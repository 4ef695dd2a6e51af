// Package audience decides whether a broadcast-scoped item is relevant to
// a recipient. The same function backs the live fan-out and the pull-path
// catalog queries, so push and pull can never disagree.
package audience

import (
	"github.com/escolalink/messaging-platform/internal/model"
)

// Relevant reports whether an item with targeting triple a should be seen
// by a user with profile p. Unknown scopes fail closed.
func Relevant(a model.Audience, p model.Profile) bool {
	switch a.Scope {
	case model.ScopeAll:
		return true
	case model.ScopeCourse:
		return a.CourseID != 0 && a.CourseID == p.CourseID
	case model.ScopeClassSection:
		return a.CourseID != 0 && a.CourseID == p.CourseID &&
			a.ClassSection != "" && a.ClassSection == p.ClassSection
	default:
		return false
	}
}

// FilterPosts returns the mural posts relevant to p, preserving order.
func FilterPosts(items []model.BroadcastMessage, p model.Profile) []model.BroadcastMessage {
	out := make([]model.BroadcastMessage, 0, len(items))
	for _, it := range items {
		if Relevant(it.Target(), p) {
			out = append(out, it)
		}
	}
	return out
}

// FilterEvents returns the calendar events relevant to p, preserving order.
func FilterEvents(items []model.CalendarEvent, p model.Profile) []model.CalendarEvent {
	out := make([]model.CalendarEvent, 0, len(items))
	for _, it := range items {
		if Relevant(it.Target(), p) {
			out = append(out, it)
		}
	}
	return out
}
