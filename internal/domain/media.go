package domain

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MediaRole says who produced a piece of media.
type MediaRole string

const (
	MediaRolePro    MediaRole = "pro"    // Reference performance by a professional
	MediaRoleClient MediaRole = "client" // Athlete upload
	MediaRoleIA     MediaRole = "ia"     // Generated by the AI service
)

func (r MediaRole) Valid() bool {
	return r == MediaRolePro || r == MediaRoleClient || r == MediaRoleIA
}

// MediaType discriminates images from videos.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// MediaTypeFromMIME maps a MIME type to a MediaType. ok is false for anything that is
// neither image/* nor video/*.
func MediaTypeFromMIME(mime string) (MediaType, bool) {
	mime = strings.ToLower(strings.TrimSpace(mime))
	switch {
	case strings.HasPrefix(mime, "image/"):
		return MediaTypeImage, true
	case strings.HasPrefix(mime, "video/"):
		return MediaTypeVideo, true
	}
	return "", false
}

// AnalysisStatus tracks the analysis lifecycle of a ProcessedData record.
type AnalysisStatus string

const (
	StatusUploaded          AnalysisStatus = "uploaded"           // No analysis yet
	StatusAnalysisRequested AnalysisStatus = "analysis_requested" // AI call in flight
	StatusLinked            AnalysisStatus = "linked"             // analysis_id set
	StatusAnalysisFailed    AnalysisStatus = "analysis_failed"    // AI call failed, analysis_id untouched
)

// transitions maps a target status to the statuses it may be entered from.
var transitions = map[AnalysisStatus][]AnalysisStatus{
	StatusAnalysisRequested: {StatusUploaded, StatusAnalysisFailed, StatusLinked},
	StatusLinked:            {StatusAnalysisRequested},
	StatusAnalysisFailed:    {StatusAnalysisRequested},
}

// SourcesFor returns the statuses from which next may be entered.
func SourcesFor(next AnalysisStatus) []AnalysisStatus {
	return append([]AnalysisStatus(nil), transitions[next]...)
}

// CanTransition reports whether moving from s to next is allowed.
func (s AnalysisStatus) CanTransition(next AnalysisStatus) bool {
	for _, from := range transitions[next] {
		if from == s {
			return true
		}
	}
	return false
}

// ProcessedData is an uploaded image or video tied to an exercise, plus its analysis link.
// Records may also be written by the AI service, so every field other than _id can be
// missing on decode; see EffectiveStatus.
type ProcessedData struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	URL             string              `bson:"url" json:"url"`
	ExerciseID      primitive.ObjectID  `bson:"exercise_id" json:"exercise_id"`
	UserID          primitive.ObjectID  `bson:"user_id" json:"user_id"`
	Role            MediaRole           `bson:"role" json:"role"`
	MediaType       MediaType           `bson:"media_type" json:"media_type"`
	IsReference     bool                `bson:"is_reference" json:"is_reference"`
	AnalysisID      *string             `bson:"analysis_id" json:"analysis_id"`
	Frames          []LegacyFrame       `bson:"frames,omitempty" json:"frames,omitempty"`
	AIRecordID      string              `bson:"ai_record_id,omitempty" json:"ai_record_id,omitempty"`
	StorageKey      string              `bson:"storage_key,omitempty" json:"-"`
	OriginalName    string              `bson:"original_name,omitempty" json:"original_name,omitempty"`
	ContentType     string              `bson:"content_type,omitempty" json:"content_type,omitempty"`
	Size            int64               `bson:"size,omitempty" json:"size,omitempty"`
	Status          AnalysisStatus      `bson:"status,omitempty" json:"status"`
	StatusUpdatedAt *time.Time          `bson:"status_updated_at,omitempty" json:"status_updated_at,omitempty"`
	AnalysisError   string              `bson:"analysis_error,omitempty" json:"analysis_error,omitempty"`
	ReferenceID     *primitive.ObjectID `bson:"reference_id,omitempty" json:"reference_id,omitempty"` // Reference compared against in the last analysis
	CreatedAt       time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time           `bson:"updated_at" json:"updated_at"`
}

// EffectiveStatus fills in the status of records written before the status field
// existed: a record with an analysis id is linked, anything else is uploaded.
func (p *ProcessedData) EffectiveStatus() AnalysisStatus {
	if p.Status != "" {
		return p.Status
	}
	if p.AnalysisID != nil && *p.AnalysisID != "" {
		return StatusLinked
	}
	return StatusUploaded
}

// Transition describes a compare-and-set status change on a ProcessedData record.
type Transition struct {
	To          AnalysisStatus
	At          time.Time
	AnalysisID  *string             // Set when entering StatusLinked
	ReferenceID *primitive.ObjectID // Set when entering StatusAnalysisRequested
	Error       string              // Set when entering StatusAnalysisFailed
	// StaleBefore allows re-entering StatusAnalysisRequested from a request that
	// started before this instant (a lost in-flight call). Zero disables it.
	StaleBefore time.Time
}

// Allows reports whether the transition may be applied to a record in state current
// whose status was last changed at changedAt.
func (t Transition) Allows(current AnalysisStatus, changedAt *time.Time) bool {
	if current.CanTransition(t.To) {
		return true
	}
	if t.To == StatusAnalysisRequested && current == StatusAnalysisRequested && !t.StaleBefore.IsZero() {
		return changedAt == nil || changedAt.Before(t.StaleBefore)
	}
	return false
}

// Apply mutates p as the transition prescribes. Callers check Allows first.
func (t Transition) Apply(p *ProcessedData) {
	at := t.At
	p.Status = t.To
	p.StatusUpdatedAt = &at
	p.UpdatedAt = at
	switch t.To {
	case StatusAnalysisRequested:
		p.AnalysisError = ""
		if t.ReferenceID != nil {
			ref := *t.ReferenceID
			p.ReferenceID = &ref
		}
	case StatusLinked:
		p.AnalysisError = ""
		if t.AnalysisID != nil {
			id := *t.AnalysisID
			p.AnalysisID = &id
		}
	case StatusAnalysisFailed:
		p.AnalysisError = t.Error
	}
}
