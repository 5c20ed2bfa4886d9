package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"keygate.backend/internal/domain/entities"
	"keygate.backend/internal/interfaces/http/middleware"
)

type MockAuthService struct{ mock.Mock }

func (m *MockAuthService) Register(ctx context.Context, input *entities.RegisterInput, ip string) (*entities.AuthResponse, error) {
	args := m.Called(ctx, input, ip)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.AuthResponse), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, input *entities.LoginInput, ip string) (*entities.AuthResponse, error) {
	args := m.Called(ctx, input, ip)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.AuthResponse), args.Error(1)
}

func (m *MockAuthService) RefreshToken(ctx context.Context, refreshToken string) (*entities.AuthResponse, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.AuthResponse), args.Error(1)
}

func (m *MockAuthService) Me(ctx context.Context, actor entities.Actor) (*entities.User, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

type MockKeyService struct{ mock.Mock }

func (m *MockKeyService) view(args mock.Arguments) (*entities.KeyView, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.KeyView), args.Error(1)
}

func (m *MockKeyService) CreateKey(ctx context.Context, actor entities.Actor, input *entities.CreateKeyInput) (*entities.KeyView, error) {
	return m.view(m.Called(ctx, actor, input))
}

func (m *MockKeyService) ActivateKey(ctx context.Context, actor entities.Actor, id uuid.UUID) (*entities.KeyView, error) {
	return m.view(m.Called(ctx, actor, id))
}

func (m *MockKeyService) ActivateKeyByCode(ctx context.Context, actor entities.Actor, code string) (*entities.KeyView, error) {
	return m.view(m.Called(ctx, actor, code))
}

func (m *MockKeyService) RevokeKey(ctx context.Context, actor entities.Actor, id uuid.UUID) (*entities.KeyView, error) {
	return m.view(m.Called(ctx, actor, id))
}

func (m *MockKeyService) GetKey(ctx context.Context, actor entities.Actor, id uuid.UUID) (*entities.KeyDetail, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.KeyDetail), args.Error(1)
}

func (m *MockKeyService) KeyStatus(ctx context.Context, actor entities.Actor, id uuid.UUID) (*entities.KeyView, error) {
	return m.view(m.Called(ctx, actor, id))
}

func (m *MockKeyService) ListKeys(ctx context.Context, actor entities.Actor, filter entities.KeyFilter) ([]*entities.KeyView, int64, error) {
	args := m.Called(ctx, actor, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*entities.KeyView), args.Get(1).(int64), args.Error(2)
}

type MockInviteService struct{ mock.Mock }

func (m *MockInviteService) invite(args mock.Arguments) (*entities.Invite, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Invite), args.Error(1)
}

func (m *MockInviteService) CreateInvite(ctx context.Context, actor entities.Actor, input *entities.CreateInviteInput) (*entities.Invite, error) {
	return m.invite(m.Called(ctx, actor, input))
}

func (m *MockInviteService) RevokeInvite(ctx context.Context, actor entities.Actor, id uuid.UUID) (*entities.Invite, error) {
	return m.invite(m.Called(ctx, actor, id))
}

func (m *MockInviteService) GetInvite(ctx context.Context, actor entities.Actor, id uuid.UUID) (*entities.Invite, error) {
	return m.invite(m.Called(ctx, actor, id))
}

func (m *MockInviteService) ValidateInvite(ctx context.Context, code string) (*entities.InviteValidation, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.InviteValidation), args.Error(1)
}

func (m *MockInviteService) ListInvites(ctx context.Context, actor entities.Actor, filter entities.InviteFilter) ([]*entities.Invite, int64, error) {
	args := m.Called(ctx, actor, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*entities.Invite), args.Get(1).(int64), args.Error(2)
}

func (m *MockInviteService) Quota(ctx context.Context, actor entities.Actor) (*entities.InviteQuota, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.InviteQuota), args.Error(1)
}

type MockUserService struct{ mock.Mock }

func (m *MockUserService) user(args mock.Arguments) (*entities.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockUserService) ListUsers(ctx context.Context, actor entities.Actor, filter entities.UserFilter) ([]*entities.User, int64, error) {
	args := m.Called(ctx, actor, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*entities.User), args.Get(1).(int64), args.Error(2)
}

func (m *MockUserService) GetUser(ctx context.Context, actor entities.Actor, id uuid.UUID) (*entities.User, error) {
	return m.user(m.Called(ctx, actor, id))
}

func (m *MockUserService) BanUser(ctx context.Context, actor entities.Actor, id uuid.UUID, reason string) (*entities.User, error) {
	return m.user(m.Called(ctx, actor, id, reason))
}

func (m *MockUserService) UnbanUser(ctx context.Context, actor entities.Actor, id uuid.UUID) (*entities.User, error) {
	return m.user(m.Called(ctx, actor, id))
}

func (m *MockUserService) ChangeRole(ctx context.Context, actor entities.Actor, id uuid.UUID, role entities.UserRole) (*entities.User, error) {
	return m.user(m.Called(ctx, actor, id, role))
}

type MockDiscordService struct{ mock.Mock }

func (m *MockDiscordService) GenerateBindingCode(ctx context.Context, actor entities.Actor) (*entities.BindingCode, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.BindingCode), args.Error(1)
}

func (m *MockDiscordService) Bind(ctx context.Context, actor entities.Actor, input *entities.DiscordBindInput) (*entities.User, error) {
	args := m.Called(ctx, actor, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

func (m *MockDiscordService) GetByDiscordID(ctx context.Context, actor entities.Actor, discordID string) (*entities.User, error) {
	args := m.Called(ctx, actor, discordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.User), args.Error(1)
}

type MockLogService struct{ mock.Mock }

func (m *MockLogService) ListLogs(ctx context.Context, actor entities.Actor, filter entities.ActivityLogFilter) ([]*entities.ActivityLog, int64, error) {
	args := m.Called(ctx, actor, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*entities.ActivityLog), args.Get(1).(int64), args.Error(2)
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func asActor(actor entities.Actor) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.SetActor(c, actor)
		c.Next()
	}
}

func testActor(role entities.UserRole) entities.Actor {
	return entities.Actor{ID: uuid.New(), Username: string(role) + "-1", Role: role}
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}
