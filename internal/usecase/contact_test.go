package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"contact-intake/internal/domain"
	"contact-intake/internal/integrations/turnstile"
)

type mockVerifier struct {
	err       error
	callCount int
	token     string
	ip        string
}

func (m *mockVerifier) Verify(_ context.Context, token, remoteIP string) error {
	m.callCount++
	m.token = token
	m.ip = remoteIP
	return m.err
}

type mockStore struct {
	saved   []*domain.ContactMessage
	saveErr error
	notAck  bool
}

func (m *mockStore) Save(_ context.Context, msg *domain.ContactMessage) (bool, error) {
	if m.saveErr != nil {
		return false, m.saveErr
	}
	if m.notAck {
		return false, nil
	}
	m.saved = append(m.saved, msg)
	return true, nil
}

func newTestService(t *testing.T, v Verifier, s MessageSaver) *ContactService {
	t.Helper()
	svc, err := NewContactService(v, s)
	require.NoError(t, err)
	return svc
}

func validInput() SubmitInput {
	return SubmitInput{
		Token:    "tok-1",
		ClientIP: "203.0.113.7",
		Category: "ERROR",
		Email:    "test@example.com",
		Name:     "John Doe",
		Message:  "Test message",
	}
}

func expectSubmitError(t *testing.T, err error, code ErrorCode, reason string) {
	t.Helper()
	var usecaseErr *Error
	require.ErrorAs(t, err, &usecaseErr)
	require.Equal(t, code, usecaseErr.Code)
	require.Equal(t, reason, usecaseErr.Reason)
}

func TestNewContactService_ValidatesDependencies(t *testing.T) {
	_, err := NewContactService(nil, &mockStore{})
	require.Error(t, err)

	_, err = NewContactService(&mockVerifier{}, nil)
	require.Error(t, err)
}

func TestSubmit_HappyPath(t *testing.T) {
	v := &mockVerifier{}
	store := &mockStore{}
	svc := newTestService(t, v, store)

	require.NoError(t, svc.Submit(context.Background(), validInput()))
	require.Equal(t, "tok-1", v.token)
	require.Equal(t, "203.0.113.7", v.ip)

	require.Len(t, store.saved, 1)
	saved := store.saved[0]
	require.NotEmpty(t, saved.ID)
	require.Equal(t, domain.CategoryError, saved.Category)
	require.Equal(t, "test@example.com", saved.Email)
	require.Equal(t, "John Doe", saved.Name)
	require.Equal(t, "Test message", saved.Message)
	require.Nil(t, saved.Data)
}

func TestSubmit_WithData(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(t, &mockVerifier{}, store)

	in := validInput()
	in.Category = "IDEA"
	in.Data = map[string]string{"rating": "5", "testimonial": "I love it"}
	require.NoError(t, svc.Submit(context.Background(), in))

	require.Len(t, store.saved, 1)
	require.Equal(t, domain.CategoryIdea, store.saved[0].Category)
	require.Equal(t, in.Data, store.saved[0].Data)
}

func TestSubmit_AllCategoriesCaseInsensitive(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(t, &mockVerifier{}, store)

	inputs := []string{"ERROR", "idea", "Testimonial", "other"}
	want := []domain.Category{domain.CategoryError, domain.CategoryIdea, domain.CategoryTestimonial, domain.CategoryOther}
	for i, c := range inputs {
		in := validInput()
		in.Category = c
		in.Email = fmt.Sprintf("test%d@example.com", i)
		require.NoError(t, svc.Submit(context.Background(), in), "category=%s", c)
	}

	require.Len(t, store.saved, 4)
	for i := range want {
		require.Equal(t, want[i], store.saved[i].Category)
	}
}

func TestSubmit_RepeatedIdenticalInputGetsUniqueIDs(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(t, &mockVerifier{}, store)

	require.NoError(t, svc.Submit(context.Background(), validInput()))
	require.NoError(t, svc.Submit(context.Background(), validInput()))
	require.Len(t, store.saved, 2)
	require.NotEqual(t, store.saved[0].ID, store.saved[1].ID)
}

func TestSubmit_InvalidCategory(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(t, &mockVerifier{}, store)

	in := validInput()
	in.Category = "INVALID_CATEGORY"
	err := svc.Submit(context.Background(), in)
	expectSubmitError(t, err, ErrorInvalidInput, ReasonValidation)

	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "Category 'INVALID_CATEGORY' is invalid", vErr.Reason)
	require.Empty(t, store.saved)
}

func TestSubmit_MissingEmail(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(t, &mockVerifier{}, store)

	in := validInput()
	in.Email = ""
	expectSubmitError(t, svc.Submit(context.Background(), in), ErrorInvalidInput, ReasonValidation)
	require.Empty(t, store.saved)
}

func TestSubmit_VerificationRejected(t *testing.T) {
	store := &mockStore{}
	v := &mockVerifier{err: &turnstile.RejectedError{Codes: []string{turnstile.CodeInvalidInputResponse}}}
	svc := newTestService(t, v, store)

	expectSubmitError(t, svc.Submit(context.Background(), validInput()), ErrorUnauthorised, ReasonVerificationFailed)
	require.Empty(t, store.saved)
}

func TestSubmit_VerificationInvalidSecret(t *testing.T) {
	store := &mockStore{}
	svc := newTestService(t, &mockVerifier{err: turnstile.ErrInvalidSecret}, store)

	expectSubmitError(t, svc.Submit(context.Background(), validInput()), ErrorInternal, ReasonInvalidSecret)
	require.Empty(t, store.saved)
}

func TestSubmit_VerifierUnavailable(t *testing.T) {
	store := &mockStore{}
	v := &mockVerifier{err: &turnstile.HTTPStatusError{StatusCode: 503}}
	svc := newTestService(t, v, store)

	expectSubmitError(t, svc.Submit(context.Background(), validInput()), ErrorInternal, ReasonVerifierError)
	require.Empty(t, store.saved)
}

func TestSubmit_VerifyRunsBeforeValidation(t *testing.T) {
	v := &mockVerifier{err: &turnstile.RejectedError{}}
	svc := newTestService(t, v, &mockStore{})

	in := validInput()
	in.Category = "nope"
	expectSubmitError(t, svc.Submit(context.Background(), in), ErrorUnauthorised, ReasonVerificationFailed)
	require.Equal(t, 1, v.callCount)
}

func TestSubmit_StoreError(t *testing.T) {
	store := &mockStore{saveErr: errors.New("mock database error on save")}
	svc := newTestService(t, &mockVerifier{}, store)

	err := svc.Submit(context.Background(), validInput())
	expectSubmitError(t, err, ErrorInternal, ReasonStoreWrite)
	require.ErrorContains(t, err, "mock database error")
	require.Empty(t, store.saved)
}

func TestSubmit_StoreNotAcknowledged(t *testing.T) {
	store := &mockStore{notAck: true}
	svc := newTestService(t, &mockVerifier{}, store)

	expectSubmitError(t, svc.Submit(context.Background(), validInput()), ErrorInternal, ReasonStoreWrite)
}
