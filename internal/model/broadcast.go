package model

import (
	"errors"
	"time"
)

// Scope is the targeting tag of a broadcast item.
type Scope string

const (
	ScopeAll          Scope = "ALL"
	ScopeCourse       Scope = "COURSE"
	ScopeClassSection Scope = "CLASS_SECTION"
)

// Audience is the targeting triple shared by every broadcast-scoped entity.
// CourseID is required for COURSE and CLASS_SECTION scopes, ClassSection
// additionally for CLASS_SECTION.
type Audience struct {
	Scope        Scope  `json:"scope"`
	CourseID     int64  `json:"course_id,omitempty"`
	ClassSection string `json:"class_section,omitempty"`
}

// Validate checks the scope/course/class-section invariant.
func (a Audience) Validate() error {
	switch a.Scope {
	case ScopeAll:
		return nil
	case ScopeCourse:
		if a.CourseID == 0 {
			return errors.New("course_id is required for COURSE scope")
		}
		return nil
	case ScopeClassSection:
		if a.CourseID == 0 {
			return errors.New("course_id is required for CLASS_SECTION scope")
		}
		if a.ClassSection == "" {
			return errors.New("class_section is required for CLASS_SECTION scope")
		}
		return nil
	default:
		return errors.New("invalid scope")
	}
}

// Target is implemented by every entity the audience filter applies to.
type Target interface {
	Target() Audience
}

// BroadcastMessage is a mural post. Immutable once created.
type BroadcastMessage struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Audience
	CreatedAt time.Time `json:"created_at"`
}

// Target returns the targeting triple of the post.
func (b BroadcastMessage) Target() Audience { return b.Audience }

// CalendarEvent is a dated calendar entry with the same targeting triple as
// a mural post.
type CalendarEvent struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date"`
	Audience
	CreatedAt time.Time `json:"created_at"`
}

// Target returns the targeting triple of the event.
func (e CalendarEvent) Target() Audience { return e.Audience }

// PublishBroadcastRequest is the request to publish a mural post.
type PublishBroadcastRequest struct {
	Content      string `json:"content"`
	Scope        Scope  `json:"scope"`
	CourseID     int64  `json:"course_id,omitempty"`
	ClassSection string `json:"class_section,omitempty"`
}

// CreateEventRequest is the request to create a calendar event.
type CreateEventRequest struct {
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Date         time.Time `json:"date"`
	Scope        Scope     `json:"scope"`
	CourseID     int64     `json:"course_id,omitempty"`
	ClassSection string    `json:"class_section,omitempty"`
}
