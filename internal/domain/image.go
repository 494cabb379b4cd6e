package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Image stores metadata about an image uploaded into the media store.
// The bytes themselves live in the configured FileStorage under StorageKey.
type Image struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID     primitive.ObjectID `bson:"ownerId" json:"ownerId"`
	FileName    string             `bson:"fileName" json:"fileName"`       // Original filename provided by client
	StorageKey  string             `bson:"storageKey" json:"-"`            // Internal use
	URL         string             `bson:"url" json:"url"`                 // Public URL under /uploads
	ContentType string             `bson:"contentType" json:"contentType"` // MIME type (e.g., "image/png")
	Size        int64              `bson:"size" json:"size"`               // File size in bytes
	UploadedAt  time.Time          `bson:"uploadedAt" json:"uploadedAt"`
}
