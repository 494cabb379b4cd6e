package service

import (
	"alcyxob/motion-coach/internal/domain"
	"alcyxob/motion-coach/internal/policy"
	"alcyxob/motion-coach/internal/repository"
	"alcyxob/motion-coach/internal/validation"
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrClientNotFound = errors.New("client not found")
)

// ClientService manages the athletes followed by a coach.
type ClientService interface {
	CreateClient(ctx context.Context, subject policy.Subject, in validation.ClientInput) (*domain.Client, error)
	GetClient(ctx context.Context, subject policy.Subject, clientID primitive.ObjectID) (*domain.Client, error)
	ListClients(ctx context.Context, subject policy.Subject) ([]domain.Client, error)
	UpdateClient(ctx context.Context, subject policy.Subject, clientID primitive.ObjectID, in validation.ClientInput) (*domain.Client, error)
}

type clientService struct {
	clientRepo repository.ClientRepository
}

func NewClientService(clientRepo repository.ClientRepository) ClientService {
	return &clientService{clientRepo: clientRepo}
}

// CreateClient stores a client owned by the calling coach.
func (s *clientService) CreateClient(ctx context.Context, subject policy.Subject, in validation.ClientInput) (*domain.Client, error) {
	if !policy.Can(subject, policy.ClientWrite, policy.Resource{}) {
		return nil, ErrForbidden
	}
	in, ferr := validation.Client(in)
	if ferr != nil {
		return nil, ferr
	}

	client := &domain.Client{
		CoachID:   subject.UserID,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Sport:     in.Sport,
		Level:     in.Level,
		Notes:     in.Notes,
	}
	if _, err := s.clientRepo.Create(ctx, client); err != nil {
		return nil, err
	}
	return client, nil
}

func (s *clientService) GetClient(ctx context.Context, subject policy.Subject, clientID primitive.ObjectID) (*domain.Client, error) {
	client, err := s.clientRepo.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	if !policy.Can(subject, policy.ClientRead, policy.Resource{OwnerID: client.CoachID}) {
		return nil, ErrForbidden
	}
	return client, nil
}

// ListClients returns the caller's clients, or all clients for an admin.
func (s *clientService) ListClients(ctx context.Context, subject policy.Subject) ([]domain.Client, error) {
	if subject.IsAdmin() {
		return s.clientRepo.List(ctx, nil)
	}
	return s.clientRepo.List(ctx, &subject.UserID)
}

func (s *clientService) UpdateClient(ctx context.Context, subject policy.Subject, clientID primitive.ObjectID, in validation.ClientInput) (*domain.Client, error) {
	in, ferr := validation.Client(in)
	if ferr != nil {
		return nil, ferr
	}
	client, err := s.clientRepo.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	if !policy.Can(subject, policy.ClientWrite, policy.Resource{OwnerID: client.CoachID}) {
		return nil, ErrForbidden
	}

	client.FirstName = in.FirstName
	client.LastName = in.LastName
	client.Email = in.Email
	client.Sport = in.Sport
	client.Level = in.Level
	client.Notes = in.Notes
	if err := s.clientRepo.Update(ctx, client); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return client, nil
}
