package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/api-yamdb/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Put(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}
func (m *mockUserStore) Delete(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}

type mockVerifier struct{ mock.Mock }

func (m *mockVerifier) Generate(ctx context.Context, identity string) (string, error) {
	args := m.Called(ctx, identity)
	return args.String(0), args.Error(1)
}
func (m *mockVerifier) SendCode(ctx context.Context, address, code string) error {
	return m.Called(ctx, address, code).Error(0)
}
func (m *mockVerifier) CheckCode(ctx context.Context, identity, code string) (bool, error) {
	args := m.Called(ctx, identity, code)
	return args.Bool(0), args.Error(1)
}
func (m *mockVerifier) Cleanup(ctx context.Context, identity string) error {
	return m.Called(ctx, identity).Error(0)
}

type mockSigner struct{ mock.Mock }

func (m *mockSigner) Sign(u *domain.User) (string, error) {
	args := m.Called(u)
	return args.String(0), args.Error(1)
}

// --- helpers ---

func newService(us *mockUserStore, v *mockVerifier, sg *mockSigner) Service {
	return NewService(ServiceDeps{UserRepo: us, Verifier: v, Signer: sg, CodeLength: 6})
}

func signUpReq() domain.SignUpRequest {
	return domain.SignUpRequest{Email: "alice@example.com", Username: "alice"}
}

func notFound() error { return domain.ErrNotFound }

// --- SignUp ---

func TestSignUp_NewUser_CreatesAndSendsCode(t *testing.T) {
	us, v := &mockUserStore{}, &mockVerifier{}
	us.On("GetByUsername", mock.Anything, "alice").Return(nil, notFound())
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(nil, notFound())
	us.On("Put", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.Username == "alice" && u.Role == domain.RoleUser && u.UserID != "" && !u.EmailConfirmed
	})).Return(nil)
	v.On("Generate", mock.Anything, "alice").Return("482913", nil)
	v.On("SendCode", mock.Anything, "alice@example.com", "482913").Return(nil)

	res, err := newService(us, v, nil).SignUp(context.Background(), signUpReq())

	require.NoError(t, err)
	assert.Equal(t, &SignUpResult{Email: "alice@example.com", Username: "alice"}, res)
	us.AssertExpectations(t)
	v.AssertExpectations(t)
}

func TestSignUp_SamePair_ReissuesWithoutCreating(t *testing.T) {
	existing := &domain.User{UserID: "u1", Username: "Alice", Email: "alice@example.com"}
	us, v := &mockUserStore{}, &mockVerifier{}
	us.On("GetByUsername", mock.Anything, "alice").Return(existing, nil)
	us.On("GetByEmail", mock.Anything, "ALICE@example.com").Return(existing, nil)
	v.On("Generate", mock.Anything, "Alice").Return("111111", nil)
	v.On("SendCode", mock.Anything, "alice@example.com", "111111").Return(nil)

	res, err := newService(us, v, nil).SignUp(context.Background(),
		domain.SignUpRequest{Email: "ALICE@example.com", Username: "alice"})

	require.NoError(t, err)
	assert.Equal(t, "alice", res.Username)
	us.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	v.AssertExpectations(t)
}

func TestSignUp_EmailTakenByAnotherUser(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByUsername", mock.Anything, "alice").Return(nil, notFound())
	us.On("GetByEmail", mock.Anything, "alice@example.com").
		Return(&domain.User{UserID: "u2", Username: "bob", Email: "alice@example.com"}, nil)

	_, err := newService(us, &mockVerifier{}, nil).SignUp(context.Background(), signUpReq())

	var fe *domain.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "email", fe.Field)
	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestSignUp_UsernameTakenWithAnotherEmail(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByUsername", mock.Anything, "alice").
		Return(&domain.User{UserID: "u1", Username: "alice", Email: "other@example.com"}, nil)
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(nil, notFound())

	_, err := newService(us, &mockVerifier{}, nil).SignUp(context.Background(), signUpReq())

	var fe *domain.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "username", fe.Field)
}

func TestSignUp_LookupFailure_Propagates(t *testing.T) {
	boom := errors.New("dynamo down")
	us := &mockUserStore{}
	us.On("GetByUsername", mock.Anything, "alice").Return(nil, boom)

	_, err := newService(us, &mockVerifier{}, nil).SignUp(context.Background(), signUpReq())
	assert.ErrorIs(t, err, boom)
}

func TestSignUp_PutConflict_IsNonFieldError(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByUsername", mock.Anything, "alice").Return(nil, notFound())
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(nil, notFound())
	us.On("Put", mock.Anything, mock.Anything).Return(domain.ErrConflict)

	_, err := newService(us, &mockVerifier{}, nil).SignUp(context.Background(), signUpReq())

	var fe *domain.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, domain.NonFieldErrors, fe.Field)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestSignUp_GenerationFailure_RollsBackNewUser(t *testing.T) {
	us, v := &mockUserStore{}, &mockVerifier{}
	us.On("GetByUsername", mock.Anything, "alice").Return(nil, notFound())
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(nil, notFound())
	us.On("Put", mock.Anything, mock.Anything).Return(nil)
	us.On("Delete", mock.Anything, mock.MatchedBy(func(u *domain.User) bool { return u.Username == "alice" })).Return(nil)
	v.On("Generate", mock.Anything, "alice").
		Return("", domain.NewVerificationError(domain.KindGenerationFailed, errors.New("redis down")))

	_, err := newService(us, v, nil).SignUp(context.Background(), signUpReq())

	assert.True(t, domain.IsVerificationKind(err, domain.KindGenerationFailed))
	us.AssertExpectations(t)
	v.AssertNotCalled(t, "SendCode", mock.Anything, mock.Anything, mock.Anything)
}

func TestSignUp_DeliveryFailure_RollsBackAndPurges(t *testing.T) {
	us, v := &mockUserStore{}, &mockVerifier{}
	us.On("GetByUsername", mock.Anything, "alice").Return(nil, notFound())
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(nil, notFound())
	us.On("Put", mock.Anything, mock.Anything).Return(nil)
	us.On("Delete", mock.Anything, mock.Anything).Return(nil)
	v.On("Generate", mock.Anything, "alice").Return("482913", nil)
	v.On("SendCode", mock.Anything, "alice@example.com", "482913").
		Return(domain.NewVerificationError(domain.KindDeliveryFailed, errors.New("smtp 554")))
	v.On("Cleanup", mock.Anything, "alice").Return(nil)

	_, err := newService(us, v, nil).SignUp(context.Background(), signUpReq())

	assert.True(t, domain.IsVerificationKind(err, domain.KindDeliveryFailed))
	us.AssertExpectations(t)
	v.AssertExpectations(t)
}

func TestSignUp_DeliveryFailure_KeepsPreexistingUser(t *testing.T) {
	existing := &domain.User{UserID: "u1", Username: "alice", Email: "alice@example.com"}
	us, v := &mockUserStore{}, &mockVerifier{}
	us.On("GetByUsername", mock.Anything, "alice").Return(existing, nil)
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(existing, nil)
	v.On("Generate", mock.Anything, "alice").Return("482913", nil)
	v.On("SendCode", mock.Anything, "alice@example.com", "482913").
		Return(domain.NewVerificationError(domain.KindDeliveryFailed, errors.New("smtp 554")))
	v.On("Cleanup", mock.Anything, "alice").
		Return(domain.NewVerificationError(domain.KindCleanupFailed, errors.New("redis down")))

	_, err := newService(us, v, nil).SignUp(context.Background(), signUpReq())

	assert.True(t, domain.IsVerificationKind(err, domain.KindDeliveryFailed), "cleanup failure is not surfaced")
	us.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

// --- IssueToken ---

func TestIssueToken_Success_ConfirmsEmailAndSigns(t *testing.T) {
	u := &domain.User{UserID: "u1", Username: "alice", Role: domain.RoleUser}
	us, v, sg := &mockUserStore{}, &mockVerifier{}, &mockSigner{}
	us.On("GetByUsername", mock.Anything, "alice").Return(u, nil)
	v.On("CheckCode", mock.Anything, "alice", "482913").Return(true, nil)
	us.On("Update", mock.Anything, "u1", map[string]interface{}{"email_confirmed": true}).Return(nil)
	sg.On("Sign", u).Return("jwt-token", nil)

	tok, err := newService(us, v, sg).IssueToken(context.Background(),
		domain.TokenRequest{Username: "alice", ConfirmationCode: "482913"})

	require.NoError(t, err)
	assert.Equal(t, "jwt-token", tok)
	assert.True(t, u.EmailConfirmed)
	us.AssertExpectations(t)
	sg.AssertExpectations(t)
}

func TestIssueToken_AlreadyConfirmed_SkipsUpdate(t *testing.T) {
	u := &domain.User{UserID: "u1", Username: "alice", EmailConfirmed: true}
	us, v, sg := &mockUserStore{}, &mockVerifier{}, &mockSigner{}
	us.On("GetByUsername", mock.Anything, "alice").Return(u, nil)
	v.On("CheckCode", mock.Anything, "alice", "482913").Return(true, nil)
	sg.On("Sign", u).Return("jwt-token", nil)

	_, err := newService(us, v, sg).IssueToken(context.Background(),
		domain.TokenRequest{Username: "alice", ConfirmationCode: "482913"})

	require.NoError(t, err)
	us.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestIssueToken_ConfirmFailure_StillIssues(t *testing.T) {
	u := &domain.User{UserID: "u1", Username: "alice"}
	us, v, sg := &mockUserStore{}, &mockVerifier{}, &mockSigner{}
	us.On("GetByUsername", mock.Anything, "alice").Return(u, nil)
	v.On("CheckCode", mock.Anything, "alice", "482913").Return(true, nil)
	us.On("Update", mock.Anything, "u1", mock.Anything).Return(errors.New("throttled"))
	sg.On("Sign", u).Return("jwt-token", nil)

	tok, err := newService(us, v, sg).IssueToken(context.Background(),
		domain.TokenRequest{Username: "alice", ConfirmationCode: "482913"})

	require.NoError(t, err)
	assert.Equal(t, "jwt-token", tok)
}

func TestIssueToken_WrongLength_IsFieldError(t *testing.T) {
	us, v := &mockUserStore{}, &mockVerifier{}
	us.On("GetByUsername", mock.Anything, "alice").Return(&domain.User{UserID: "u1", Username: "alice"}, nil)

	_, err := newService(us, v, nil).IssueToken(context.Background(),
		domain.TokenRequest{Username: "alice", ConfirmationCode: "1234"})

	var ve domain.ValidationErrors
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"The code must contain 6 numbers."}, ve["confirmation_code"])
	v.AssertNotCalled(t, "CheckCode", mock.Anything, mock.Anything, mock.Anything)
}

func TestIssueToken_UnknownUserWithWrongLength_IsNotFound(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByUsername", mock.Anything, "ghost").Return(nil, notFound())

	_, err := newService(us, &mockVerifier{}, nil).IssueToken(context.Background(),
		domain.TokenRequest{Username: "ghost", ConfirmationCode: "12"})

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIssueToken_UnknownUser_IsNotFound(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByUsername", mock.Anything, "ghost").Return(nil, notFound())

	_, err := newService(us, &mockVerifier{}, nil).IssueToken(context.Background(),
		domain.TokenRequest{Username: "ghost", ConfirmationCode: "482913"})

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIssueToken_CodeRejections_Propagate(t *testing.T) {
	kinds := []domain.VerificationKind{domain.KindCodeNotFound, domain.KindCodeExpired, domain.KindInvalidCode}
	for _, k := range kinds {
		t.Run(k.String(), func(t *testing.T) {
			us, v, sg := &mockUserStore{}, &mockVerifier{}, &mockSigner{}
			us.On("GetByUsername", mock.Anything, "alice").Return(&domain.User{UserID: "u1", Username: "alice"}, nil)
			v.On("CheckCode", mock.Anything, "alice", "482913").Return(false, domain.NewVerificationError(k, nil))

			_, err := newService(us, v, sg).IssueToken(context.Background(),
				domain.TokenRequest{Username: "alice", ConfirmationCode: "482913"})

			assert.True(t, domain.IsVerificationKind(err, k))
			sg.AssertNotCalled(t, "Sign", mock.Anything)
			us.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}
