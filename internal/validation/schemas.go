package validation

import (
	"alcyxob/motion-coach/internal/domain"
	"strings"
)

// UserInput is the registration payload.
type UserInput struct {
	Email     string      `json:"email" validate:"required,email,max=254"`
	Password  string      `json:"password" validate:"required,min=6,max=128"`
	FirstName string      `json:"firstName" validate:"required,max=100"`
	LastName  string      `json:"lastName" validate:"required,max=100"`
	Role      domain.Role `json:"role" validate:"required,oneof=user admin"`
}

// User normalizes and validates a registration payload. The role defaults to user.
func User(in UserInput) (UserInput, *FieldError) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Role = domain.Role(strings.ToLower(strings.TrimSpace(string(in.Role))))
	if in.Role == "" {
		in.Role = domain.RoleUser
	}
	if err := Struct(in); err != nil {
		return in, err
	}
	return in, nil
}

// CredentialsInput is the login payload.
type CredentialsInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func Credentials(in CredentialsInput) (CredentialsInput, *FieldError) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := Struct(in); err != nil {
		return in, err
	}
	return in, nil
}

// ExerciseInput is the create and update payload of the catalogue.
type ExerciseInput struct {
	Name          string            `json:"name" validate:"required,max=120"`
	Description   string            `json:"description" validate:"required,max=2000"`
	Category      string            `json:"category" validate:"required,max=60"`
	Difficulty    domain.Difficulty `json:"difficulty" validate:"required,oneof=beginner intermediate advanced"`
	Instructions  string            `json:"instructions" validate:"max=5000"`
	ImageURL      string            `json:"imageUrl" validate:"omitempty,max=2048"`
	VideoURL      string            `json:"videoUrl" validate:"omitempty,max=2048"`
	TargetMuscles []string          `json:"targetMuscles" validate:"max=30,dive,max=60"`
	Equipment     []string          `json:"equipment" validate:"max=30,dive,max=60"`
}

// Exercise normalizes and validates an exercise payload.
func Exercise(in ExerciseInput) (ExerciseInput, *FieldError) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	in.Difficulty = domain.Difficulty(strings.ToLower(strings.TrimSpace(string(in.Difficulty))))
	in.Instructions = strings.TrimSpace(in.Instructions)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.VideoURL = strings.TrimSpace(in.VideoURL)
	in.TargetMuscles = normalizeList(in.TargetMuscles)
	in.Equipment = normalizeList(in.Equipment)
	if err := Struct(in); err != nil {
		return in, err
	}
	return in, nil
}

// ToDomain copies the validated payload into an Exercise.
func (in ExerciseInput) ToDomain() *domain.Exercise {
	return &domain.Exercise{
		Name:          in.Name,
		Description:   in.Description,
		Category:      in.Category,
		Difficulty:    in.Difficulty,
		Instructions:  in.Instructions,
		ImageURL:      in.ImageURL,
		VideoURL:      in.VideoURL,
		TargetMuscles: in.TargetMuscles,
		Equipment:     in.Equipment,
	}
}

// ClientInput is the create and update payload of a coached client.
type ClientInput struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Email     string `json:"email" validate:"omitempty,email,max=254"`
	Sport     string `json:"sport" validate:"max=60"`
	Level     string `json:"level" validate:"max=60"`
	Notes     string `json:"notes" validate:"max=5000"`
}

func Client(in ClientInput) (ClientInput, *FieldError) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Sport = strings.TrimSpace(in.Sport)
	in.Level = strings.TrimSpace(in.Level)
	in.Notes = strings.TrimSpace(in.Notes)
	if err := Struct(in); err != nil {
		return in, err
	}
	return in, nil
}

// AnalyzeInput is the body of an analysis request.
type AnalyzeInput struct {
	VideoID     string `json:"video_id" validate:"required,mongodb"`
	ReferenceID string `json:"reference_id" validate:"required,mongodb"`
	Email       string `json:"email" validate:"omitempty,email"`
}

func Analyze(in AnalyzeInput) (AnalyzeInput, *FieldError) {
	in.VideoID = strings.TrimSpace(in.VideoID)
	in.ReferenceID = strings.TrimSpace(in.ReferenceID)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := Struct(in); err != nil {
		return in, err
	}
	return in, nil
}
