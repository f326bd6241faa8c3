package usecase

import (
	"context"
	"errors"

	"contact-intake/internal/domain"
	"contact-intake/internal/integrations/turnstile"
)

// Verifier checks a bot-challenge token. See turnstile.Client.Verify for the
// error contract.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// MessageSaver persists an accepted message.
type MessageSaver interface {
	Save(ctx context.Context, msg *domain.ContactMessage) (bool, error)
}

type ContactService struct {
	verifier Verifier
	store    MessageSaver
}

type SubmitInput struct {
	Token    string
	ClientIP string
	Category string
	Email    string
	Name     string
	Message  string
	Data     map[string]string
}

func NewContactService(v Verifier, s MessageSaver) (*ContactService, error) {
	if v == nil {
		return nil, errors.New("usecase: verifier must not be nil")
	}
	if s == nil {
		return nil, errors.New("usecase: message store must not be nil")
	}
	return &ContactService{verifier: v, store: s}, nil
}

// Submit verifies the caller's token, validates the message and stores it.
// The first failing step ends the submission; nothing is stored unless every
// earlier step passed.
func (s *ContactService) Submit(ctx context.Context, in SubmitInput) error {
	if err := s.verifier.Verify(ctx, in.Token, in.ClientIP); err != nil {
		var rejected *turnstile.RejectedError
		switch {
		case errors.As(err, &rejected):
			return newError(ErrorUnauthorised, ReasonVerificationFailed, err)
		case errors.Is(err, turnstile.ErrInvalidSecret):
			return newError(ErrorInternal, ReasonInvalidSecret, err)
		default:
			return newError(ErrorInternal, ReasonVerifierError, err)
		}
	}

	category, err := domain.ParseCategory(in.Category)
	if err != nil {
		return newError(ErrorInvalidInput, ReasonValidation, err)
	}
	msg, err := domain.NewContactMessage(category, in.Email, in.Name, in.Message, in.Data)
	if err != nil {
		return newError(ErrorInvalidInput, ReasonValidation, err)
	}

	ok, err := s.store.Save(ctx, msg)
	if err != nil {
		return newError(ErrorInternal, ReasonStoreWrite, err)
	}
	if !ok {
		return newError(ErrorInternal, ReasonStoreWrite, errors.New("write not acknowledged"))
	}
	return nil
}
