// Package policy decides what an authenticated subject may do with a resource.
package policy

import (
	"alcyxob/motion-coach/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Action names a capability.
type Action string

const (
	ExerciseRead  Action = "exercise:read"
	ExerciseWrite Action = "exercise:write"
	MediaRead     Action = "media:read"
	MediaWrite    Action = "media:write"
	MediaAnalyze  Action = "media:analyze"
	ClientRead    Action = "client:read"
	ClientWrite   Action = "client:write"
	ImageRead     Action = "image:read"
	ImageWrite    Action = "image:write"
)

// Subject is the authenticated caller.
type Subject struct {
	UserID primitive.ObjectID
	Role   domain.Role
}

func (s Subject) IsAdmin() bool {
	return s.Role == domain.RoleAdmin
}

// Resource is what the action is applied to. A zero OwnerID means the action is not
// about a specific record (listing or creating).
type Resource struct {
	OwnerID primitive.ObjectID
	// Shared marks records every authenticated user may read, such as reference media.
	Shared bool
}

// Can reports whether subject may perform action on resource.
func Can(subject Subject, action Action, resource Resource) bool {
	if subject.UserID.IsZero() {
		return false
	}
	if subject.IsAdmin() {
		return true
	}

	switch action {
	case ExerciseRead:
		return true
	case ExerciseWrite:
		return false
	case MediaRead, ImageRead, ClientRead:
		return resource.OwnerID.IsZero() || resource.OwnerID == subject.UserID || (action == MediaRead && resource.Shared)
	case MediaWrite, ImageWrite, ClientWrite:
		return resource.OwnerID.IsZero() || resource.OwnerID == subject.UserID
	case MediaAnalyze:
		// Comparing against someone else's reference is fine, the analyzed video must be ours.
		return resource.OwnerID == subject.UserID
	}
	return false
}
