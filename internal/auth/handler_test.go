package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/martpos/martpos/internal/shared"
	"github.com/martpos/martpos/internal/users"
)

type memUsers struct {
	byUsername map[string]*users.User
}

func (m *memUsers) List(ctx context.Context) ([]users.User, error) { return nil, nil }

func (m *memUsers) GetByUsername(ctx context.Context, username string) (*users.User, error) {
	u, ok := m.byUsername[username]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *memUsers) Create(ctx context.Context, u *users.User) (int64, error) { return 0, nil }

func (m *memUsers) SetActive(ctx context.Context, id int64, active bool) error { return nil }

func newTestHandler(t *testing.T) (*Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &memUsers{byUsername: map[string]*users.User{
		"ana": {ID: 7, Username: "ana", Name: "Ana", Role: users.RoleCashier, IsActive: true, PasswordHash: string(hash)},
	}}

	sessions := shared.NewSessionManager(client, 12*time.Hour)
	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	return NewHandler(logger, users.NewService(repo), sessions), sessions
}

func TestLoginIssuesToken(t *testing.T) {
	h, sessions := newTestHandler(t)
	r := chi.NewRouter()
	h.MountRoutes(r)

	body := bytes.NewBufferString(`{"username":"ana","password":"correct-horse","drawer_id":3}`)
	req := httptest.NewRequest(http.MethodPost, "/login", body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	require.Equal(t, int64(7), resp.User.ID)

	sess, err := sessions.Load(context.Background(), resp.Token)
	require.NoError(t, err)
	require.Equal(t, int64(7), sess.CashierID)
	require.Equal(t, int64(3), sess.DrawerID)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	h, _ := newTestHandler(t)
	r := chi.NewRouter()
	h.MountRoutes(r)

	body := bytes.NewBufferString(`{"username":"ana","password":"wrong","drawer_id":3}`)
	req := httptest.NewRequest(http.MethodPost, "/login", body)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutDestroysSession(t *testing.T) {
	h, sessions := newTestHandler(t)
	r := chi.NewRouter()
	h.MountRoutes(r)

	token, err := sessions.Create(context.Background(), 7, 3)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.Header.Set(TokenHeader, token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	_, err = sessions.Load(context.Background(), token)
	require.ErrorIs(t, err, shared.ErrSessionNotFound)
}
