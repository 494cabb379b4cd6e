package policy

import (
	"alcyxob/motion-coach/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCan(t *testing.T) {
	me := primitive.NewObjectID()
	other := primitive.NewObjectID()
	user := Subject{UserID: me, Role: domain.RoleUser}
	admin := Subject{UserID: primitive.NewObjectID(), Role: domain.RoleAdmin}

	tests := []struct {
		name     string
		subject  Subject
		action   Action
		resource Resource
		want     bool
	}{
		{"anyone reads exercises", user, ExerciseRead, Resource{}, true},
		{"user cannot write exercises", user, ExerciseWrite, Resource{}, false},
		{"admin writes exercises", admin, ExerciseWrite, Resource{}, true},
		{"owner reads media", user, MediaRead, Resource{OwnerID: me}, true},
		{"stranger media hidden", user, MediaRead, Resource{OwnerID: other}, false},
		{"reference media shared", user, MediaRead, Resource{OwnerID: other, Shared: true}, true},
		{"shared does not grant image read", user, ImageRead, Resource{OwnerID: other, Shared: true}, false},
		{"analyze own video", user, MediaAnalyze, Resource{OwnerID: me}, true},
		{"analyze foreign video", user, MediaAnalyze, Resource{OwnerID: other}, false},
		{"admin analyzes anything", admin, MediaAnalyze, Resource{OwnerID: other}, true},
		{"create client", user, ClientWrite, Resource{}, true},
		{"edit foreign client", user, ClientWrite, Resource{OwnerID: other}, false},
		{"anonymous", Subject{Role: domain.RoleAdmin}, ExerciseRead, Resource{}, false},
		{"unknown action", user, Action("media:delete"), Resource{OwnerID: me}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Can(tt.subject, tt.action, tt.resource))
		})
	}
}
