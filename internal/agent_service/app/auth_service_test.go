package app

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/veripoint/identity-gateway/internal/agent_service/domain"
	"github.com/veripoint/identity-gateway/internal/platform/database"
)

type MockAgentRepository struct {
	mock.Mock
}

func (m *MockAgentRepository) Create(ctx context.Context, q database.Querier, agent *domain.Agent) (*domain.Agent, error) {
	args := m.Called(ctx, q, agent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Agent), args.Error(1)
}

func (m *MockAgentRepository) GetByID(ctx context.Context, q database.Querier, id uuid.UUID) (*domain.Agent, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Agent), args.Error(1)
}

func (m *MockAgentRepository) GetByEmail(ctx context.Context, q database.Querier, email string) (*domain.Agent, error) {
	args := m.Called(ctx, q, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Agent), args.Error(1)
}

func (m *MockAgentRepository) GetByAPIKeySecret(ctx context.Context, q database.Querier, secret string) (*domain.Agent, error) {
	args := m.Called(ctx, q, secret)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Agent), args.Error(1)
}

func (m *MockAgentRepository) UpdateAPIKeys(ctx context.Context, q database.Querier, id uuid.UUID, publicKey, secretKey string) error {
	return m.Called(ctx, q, id, publicKey, secretKey).Error(0)
}

func (m *MockAgentRepository) UpdateWebhookURL(ctx context.Context, q database.Querier, id uuid.UUID, webhookURL *string) error {
	return m.Called(ctx, q, id, webhookURL).Error(0)
}

func (m *MockAgentRepository) Debit(ctx context.Context, q database.Querier, id uuid.UUID, amount float64) (float64, bool, error) {
	args := m.Called(ctx, q, id, amount)
	return args.Get(0).(float64), args.Bool(1), args.Error(2)
}

func (m *MockAgentRepository) Credit(ctx context.Context, q database.Querier, id uuid.UUID, amount float64) (float64, error) {
	args := m.Called(ctx, q, id, amount)
	return args.Get(0).(float64), args.Error(1)
}

func newAuthService(repo *MockAgentRepository) *AuthService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAuthService(repo, nil, "test-secret", time.Hour, logger)
}

func TestRegister(t *testing.T) {
	repo := new(MockAgentRepository)
	svc := newAuthService(repo)

	var created *domain.Agent
	repo.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(a *domain.Agent) bool {
		created = a
		return true
	})).Return(&domain.Agent{ID: uuid.New(), Email: "ada@example.com"}, nil).Once()

	websiteURL := "https://agency.example.com"
	_, err := svc.Register(context.Background(), RegisterInput{
		FirstName:   "Ada",
		LastName:    "Obi",
		PhoneNumber: "08012345678",
		Email:       "  Ada@Example.com ",
		Password:    "s3cret-pass",
		WebsiteURL:  &websiteURL,
	})

	require.NoError(t, err)
	repo.AssertExpectations(t)

	assert.Equal(t, "ada@example.com", created.Email, "email is normalized before storage")
	assert.True(t, strings.HasPrefix(created.APIKeyPublic, "pk_live_"))
	assert.True(t, strings.HasPrefix(created.APIKeySecret, "sk_live_"))
	assert.NotEqual(t, "s3cret-pass", created.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("s3cret-pass")))
	require.NotNil(t, created.WebsiteURL)
	assert.Equal(t, websiteURL, *created.WebsiteURL, "website URL is stored with the agent")
}

func TestRegister_DuplicateEmail(t *testing.T) {
	repo := new(MockAgentRepository)
	svc := newAuthService(repo)
	repo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil, domain.ErrEmailTaken).Once()

	_, err := svc.Register(context.Background(), RegisterInput{Email: "ada@example.com", Password: "pw"})

	require.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestLogin_TokenRoundTrip(t *testing.T) {
	repo := new(MockAgentRepository)
	svc := newAuthService(repo)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	agent := &domain.Agent{ID: uuid.New(), Email: "ada@example.com", PasswordHash: string(hash)}

	repo.On("GetByEmail", mock.Anything, mock.Anything, "ada@example.com").Return(agent, nil).Once()
	repo.On("GetByID", mock.Anything, mock.Anything, agent.ID).Return(agent, nil).Once()

	token, loggedIn, err := svc.Login(context.Background(), "Ada@Example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, agent.ID, loggedIn.ID)

	// The token the login issued must authenticate subsequent calls.
	validated, err := svc.ValidateAccessToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, agent.ID, validated.ID)
}

func TestLogin_WrongPassword(t *testing.T) {
	repo := new(MockAgentRepository)
	svc := newAuthService(repo)

	hash, _ := bcrypt.GenerateFromPassword([]byte("right"), bcrypt.MinCost)
	agent := &domain.Agent{ID: uuid.New(), PasswordHash: string(hash)}
	repo.On("GetByEmail", mock.Anything, mock.Anything, "ada@example.com").Return(agent, nil).Once()

	_, _, err := svc.Login(context.Background(), "ada@example.com", "wrong")

	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_UnknownEmailIndistinguishableFromWrongPassword(t *testing.T) {
	repo := new(MockAgentRepository)
	svc := newAuthService(repo)
	repo.On("GetByEmail", mock.Anything, mock.Anything, "ghost@example.com").Return(nil, domain.ErrAgentNotFound).Once()

	_, _, err := svc.Login(context.Background(), "ghost@example.com", "whatever")

	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateAccessToken_Garbage(t *testing.T) {
	svc := newAuthService(new(MockAgentRepository))

	_, err := svc.ValidateAccessToken(context.Background(), "not-a-jwt")

	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRotateAPIKeys(t *testing.T) {
	repo := new(MockAgentRepository)
	svc := newAuthService(repo)
	agentID := uuid.New()

	repo.On("UpdateAPIKeys", mock.Anything, mock.Anything, agentID, mock.Anything, mock.Anything).Return(nil).Once()

	pub, sec, err := svc.RotateAPIKeys(context.Background(), agentID)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(pub, "pk_live_"))
	assert.True(t, strings.HasPrefix(sec, "sk_live_"))
	repo.AssertExpectations(t)
}

func TestUpdateWebhookURL(t *testing.T) {
	agentID := uuid.New()

	t.Run("ValidURL", func(t *testing.T) {
		repo := new(MockAgentRepository)
		svc := newAuthService(repo)
		url := "https://example.com/hook"
		repo.On("UpdateWebhookURL", mock.Anything, mock.Anything, agentID, &url).Return(nil).Once()

		require.NoError(t, svc.UpdateWebhookURL(context.Background(), agentID, url))
		repo.AssertExpectations(t)
	})

	t.Run("EmptyClears", func(t *testing.T) {
		repo := new(MockAgentRepository)
		svc := newAuthService(repo)
		repo.On("UpdateWebhookURL", mock.Anything, mock.Anything, agentID, (*string)(nil)).Return(nil).Once()

		require.NoError(t, svc.UpdateWebhookURL(context.Background(), agentID, "   "))
		repo.AssertExpectations(t)
	})

	t.Run("BadScheme", func(t *testing.T) {
		svc := newAuthService(new(MockAgentRepository))

		err := svc.UpdateWebhookURL(context.Background(), agentID, "ftp://example.com/hook")

		require.ErrorIs(t, err, ErrInvalidWebhookURL)
	})
}
