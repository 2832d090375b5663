package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avdeyev/tasky/internal/models"
	"github.com/avdeyev/tasky/internal/services"
)

type mockAuthService struct {
	RegisterFunc      func(ctx context.Context, params services.RegisterParams) (*services.AuthResult, error)
	LoginFunc         func(ctx context.Context, params services.LoginParams) (*services.AuthResult, error)
	LogoutFunc        func(ctx context.Context, token string) error
	UpdateProfileFunc func(ctx context.Context, params services.UpdateProfileParams) error
	ParseTokenFunc    func(token string) (*services.TokenClaims, error)
}

func (m *mockAuthService) Register(ctx context.Context, params services.RegisterParams) (*services.AuthResult, error) {
	return m.RegisterFunc(ctx, params)
}

func (m *mockAuthService) Login(ctx context.Context, params services.LoginParams) (*services.AuthResult, error) {
	return m.LoginFunc(ctx, params)
}

func (m *mockAuthService) Logout(ctx context.Context, token string) error {
	return m.LogoutFunc(ctx, token)
}

func (m *mockAuthService) UpdateProfile(ctx context.Context, params services.UpdateProfileParams) error {
	return m.UpdateProfileFunc(ctx, params)
}

func (m *mockAuthService) ParseToken(token string) (*services.TokenClaims, error) {
	if m.ParseTokenFunc != nil {
		return m.ParseTokenFunc(token)
	}
	if token == validToken {
		return &services.TokenClaims{UserID: testUserID, Username: "alice"}, nil
	}
	return nil, services.ErrTokenRevoked
}

type mockTaskService struct {
	GetAllFunc        func(ctx context.Context, userID int64) ([]services.TaskView, error)
	CreateFunc        func(ctx context.Context, params services.CreateTaskParams) (int64, error)
	SetDoneFunc       func(ctx context.Context, userID, taskID int64, isDone bool) error
	SetExpandedFunc   func(ctx context.Context, userID, taskID int64, isExpanded bool) error
	UpdateDetailFunc  func(ctx context.Context, userID, taskID int64, field services.DetailField, value string) error
	DeleteSubtreeFunc func(ctx context.Context, userID, taskID int64) error
}

func (m *mockTaskService) GetAll(ctx context.Context, userID int64) ([]services.TaskView, error) {
	return m.GetAllFunc(ctx, userID)
}

func (m *mockTaskService) Create(ctx context.Context, params services.CreateTaskParams) (int64, error) {
	return m.CreateFunc(ctx, params)
}

func (m *mockTaskService) SetDone(ctx context.Context, userID, taskID int64, isDone bool) error {
	return m.SetDoneFunc(ctx, userID, taskID, isDone)
}

func (m *mockTaskService) SetExpanded(ctx context.Context, userID, taskID int64, isExpanded bool) error {
	return m.SetExpandedFunc(ctx, userID, taskID, isExpanded)
}

func (m *mockTaskService) UpdateDetail(ctx context.Context, userID, taskID int64, field services.DetailField, value string) error {
	return m.UpdateDetailFunc(ctx, userID, taskID, field, value)
}

func (m *mockTaskService) DeleteSubtree(ctx context.Context, userID, taskID int64) error {
	return m.DeleteSubtreeFunc(ctx, userID, taskID)
}

type mockShareService struct {
	ShareFunc        func(ctx context.Context, ownerID, taskID int64, granteeUsername string) error
	ContributorsFunc func(ctx context.Context, taskID int64) ([]models.Contributor, error)
	RemoveFunc       func(ctx context.Context, ownerID, taskID, granteeID int64) error
}

func (m *mockShareService) Share(ctx context.Context, ownerID, taskID int64, granteeUsername string) error {
	return m.ShareFunc(ctx, ownerID, taskID, granteeUsername)
}

func (m *mockShareService) Contributors(ctx context.Context, taskID int64) ([]models.Contributor, error) {
	return m.ContributorsFunc(ctx, taskID)
}

func (m *mockShareService) Remove(ctx context.Context, ownerID, taskID, granteeID int64) error {
	return m.RemoveFunc(ctx, ownerID, taskID, granteeID)
}

const (
	validToken = "valid-token"
	testUserID = int64(1)
)

func newTestRouter(auth *mockAuthService, tasks *mockTaskService, shares *mockShareService) *gin.Engine {
	gin.SetMode(gin.TestMode)

	if auth == nil {
		auth = &mockAuthService{}
	}
	if tasks == nil {
		tasks = &mockTaskService{}
	}
	if shares == nil {
		shares = &mockShareService{}
	}

	handler := New(zerolog.Nop(), auth, tasks, shares)

	router := gin.New()
	router.POST("/register", handler.HandleRegister)
	router.POST("/login", handler.HandleLogin)
	router.POST("/logout", handler.HandleAuthMiddleware, handler.HandleLogout)
	router.GET("/get_all", handler.HandleAuthMiddleware, handler.HandleGetAll)
	router.POST("/add_tsk", handler.HandleAuthMiddleware, handler.HandleAddTask)
	router.POST("/update_status", handler.HandleAuthMiddleware, handler.HandleUpdateStatus)
	router.POST("/update_expanded", handler.HandleAuthMiddleware, handler.HandleUpdateExpanded)
	router.POST("/update_details", handler.HandleAuthMiddleware, handler.HandleUpdateDetails)
	router.POST("/del_tsk", handler.HandleAuthMiddleware, handler.HandleDeleteTask)
	router.POST("/update_profile", handler.HandleAuthMiddleware, handler.HandleUpdateProfile)
	router.POST("/share_task", handler.HandleAuthMiddleware, handler.HandleShareTask)
	router.GET("/get_contr", handler.HandleAuthMiddleware, handler.HandleGetContributors)
	router.POST("/rem_contr", handler.HandleAuthMiddleware, handler.HandleRemoveContributor)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	router := newTestRouter(nil, nil, nil)

	w := doJSON(t, router, http.MethodGet, "/get_all", nil, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_RevokedToken(t *testing.T) {
	router := newTestRouter(nil, nil, nil)

	w := doJSON(t, router, http.MethodGet, "/get_all", nil, "revoked-token")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegister_MissingFields(t *testing.T) {
	router := newTestRouter(nil, nil, nil)

	w := doJSON(t, router, http.MethodPost, "/register", gin.H{"username": "alice"}, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing fields", errorMessage(t, w))
}

func TestRegister_UsernameTooLong(t *testing.T) {
	router := newTestRouter(nil, nil, nil)

	w := doJSON(t, router, http.MethodPost, "/register", gin.H{
		"username": "waytoolongname",
		"email":    "a@b.com",
		"password": "secret",
	}, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Username too long (max 10)", errorMessage(t, w))
}

func TestRegister_InvalidEmail(t *testing.T) {
	router := newTestRouter(nil, nil, nil)

	w := doJSON(t, router, http.MethodPost, "/register", gin.H{
		"username": "alice",
		"email":    "not-an-email",
		"password": "secret",
	}, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid email format", errorMessage(t, w))
}

func TestRegister_UsernameTaken(t *testing.T) {
	auth := &mockAuthService{
		RegisterFunc: func(_ context.Context, _ services.RegisterParams) (*services.AuthResult, error) {
			return nil, services.ErrUsernameTaken
		},
	}
	router := newTestRouter(auth, nil, nil)

	w := doJSON(t, router, http.MethodPost, "/register", gin.H{
		"username": "alice",
		"email":    "a@b.com",
		"password": "secret",
	}, "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Username already taken", errorMessage(t, w))
}

func TestRegister_Success(t *testing.T) {
	auth := &mockAuthService{
		RegisterFunc: func(_ context.Context, params services.RegisterParams) (*services.AuthResult, error) {
			return &services.AuthResult{
				Token: "issued-token",
				User: models.User{
					ID:       7,
					Username: params.Username,
					Email:    params.Email,
				},
			}, nil
		},
	}
	router := newTestRouter(auth, nil, nil)

	w := doJSON(t, router, http.MethodPost, "/register", gin.H{
		"username": "alice",
		"email":    "a@b.com",
		"password": "secret",
	}, "")

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Message string `json:"message"`
		Token   string `json:"token"`
		User    struct {
			ID       int64  `json:"id"`
			Username string `json:"username"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Message)
	assert.Equal(t, "issued-token", body.Token)
	assert.Equal(t, int64(7), body.User.ID)
	assert.Equal(t, "alice", body.User.Username)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	auth := &mockAuthService{
		LoginFunc: func(_ context.Context, _ services.LoginParams) (*services.AuthResult, error) {
			return nil, services.ErrInvalidCredentials
		},
	}
	router := newTestRouter(auth, nil, nil)

	w := doJSON(t, router, http.MethodPost, "/login", gin.H{
		"username": "alice",
		"password": "wrong",
	}, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid credentials", errorMessage(t, w))
}

func TestLogout_RevokesPresentedToken(t *testing.T) {
	var revoked string
	auth := &mockAuthService{
		LogoutFunc: func(_ context.Context, token string) error {
			revoked = token
			return nil
		},
	}
	router := newTestRouter(auth, nil, nil)

	w := doJSON(t, router, http.MethodPost, "/logout", nil, validToken)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, validToken, revoked)
}

func TestGetAll_ContributorsNeverNull(t *testing.T) {
	tasks := &mockTaskService{
		GetAllFunc: func(_ context.Context, userID int64) ([]services.TaskView, error) {
			return []services.TaskView{
				{Task: models.Task{ID: 1, Name: "Trip", UserID: userID}, OwnerName: "alice"},
			}, nil
		},
	}
	router := newTestRouter(nil, tasks, nil)

	w := doJSON(t, router, http.MethodGet, "/get_all", nil, validToken)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []map[string]json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.JSONEq(t, `[]`, string(body.Data[0]["contributors"]))
}

func TestAddTask_NameRequired(t *testing.T) {
	router := newTestRouter(nil, nil, nil)

	w := doJSON(t, router, http.MethodPost, "/add_tsk", gin.H{"name": ""}, validToken)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Name required", errorMessage(t, w))
}

func TestAddTask_NameTooLong(t *testing.T) {
	router := newTestRouter(nil, nil, nil)

	long := make([]byte, 51)
	for i := range long {
		long[i] = 'x'
	}
	w := doJSON(t, router, http.MethodPost, "/add_tsk", gin.H{"name": string(long)}, validToken)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Name too long (max 50)", errorMessage(t, w))
}

func TestAddTask_Success(t *testing.T) {
	tasks := &mockTaskService{
		CreateFunc: func(_ context.Context, params services.CreateTaskParams) (int64, error) {
			assert.Equal(t, testUserID, params.OwnerID)
			assert.Equal(t, int64(4), params.ParentID)
			return 42, nil
		},
	}
	router := newTestRouter(nil, tasks, nil)

	w := doJSON(t, router, http.MethodPost, "/add_tsk", gin.H{
		"name":      "Pack",
		"parent_id": 4,
	}, validToken)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(42), body.ID)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	tasks := &mockTaskService{
		SetDoneFunc: func(_ context.Context, _, _ int64, _ bool) error {
			return services.ErrTaskNotFound
		},
	}
	router := newTestRouter(nil, tasks, nil)

	w := doJSON(t, router, http.MethodPost, "/update_status", gin.H{
		"id":      9,
		"is_done": true,
	}, validToken)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Task not found", errorMessage(t, w))
}

func TestUpdateStatus_Forbidden(t *testing.T) {
	tasks := &mockTaskService{
		SetDoneFunc: func(_ context.Context, _, _ int64, _ bool) error {
			return services.ErrNotAuthorized
		},
	}
	router := newTestRouter(nil, tasks, nil)

	w := doJSON(t, router, http.MethodPost, "/update_status", gin.H{
		"id":      9,
		"is_done": true,
	}, validToken)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Not authorized", errorMessage(t, w))
}

func TestUpdateDetails_InvalidField(t *testing.T) {
	tasks := &mockTaskService{
		UpdateDetailFunc: func(_ context.Context, _, _ int64, field services.DetailField, _ string) error {
			assert.Equal(t, services.DetailField("is_done"), field)
			return services.ErrInvalidField
		},
	}
	router := newTestRouter(nil, tasks, nil)

	w := doJSON(t, router, http.MethodPost, "/update_details", gin.H{
		"id":    1,
		"field": "is_done",
		"value": "true",
	}, validToken)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid field", errorMessage(t, w))
}

func TestUpdateDetails_NotesTooLong(t *testing.T) {
	tasks := &mockTaskService{
		UpdateDetailFunc: func(_ context.Context, _, _ int64, _ services.DetailField, _ string) error {
			return services.ErrValueTooLong
		},
	}
	router := newTestRouter(nil, tasks, nil)

	w := doJSON(t, router, http.MethodPost, "/update_details", gin.H{
		"id":    1,
		"field": "notes",
		"value": "x",
	}, validToken)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Notes too long (max 1000)", errorMessage(t, w))
}

func TestDeleteTask_OwnerOnly(t *testing.T) {
	tasks := &mockTaskService{
		DeleteSubtreeFunc: func(_ context.Context, _, _ int64) error {
			return services.ErrNotTaskOwner
		},
	}
	router := newTestRouter(nil, tasks, nil)

	w := doJSON(t, router, http.MethodPost, "/del_tsk", gin.H{"id": 1}, validToken)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Only owner can delete", errorMessage(t, w))
}

func TestDeleteTask_Success(t *testing.T) {
	tasks := &mockTaskService{
		DeleteSubtreeFunc: func(_ context.Context, userID, taskID int64) error {
			assert.Equal(t, testUserID, userID)
			assert.Equal(t, int64(3), taskID)
			return nil
		},
	}
	router := newTestRouter(nil, tasks, nil)

	w := doJSON(t, router, http.MethodPost, "/del_tsk", gin.H{"id": 3}, validToken)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "deleted", body["message"])
}

func TestShareTask_ErrorMapping(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    int
		wantMessage string
	}{
		{"task missing", services.ErrTaskNotFound, http.StatusNotFound, "Task not found"},
		{"not owner", services.ErrNotTaskOwner, http.StatusForbidden, "Not authorized to share this task"},
		{"unknown grantee", services.ErrUserNotFound, http.StatusBadRequest, "User not found"},
		{"self share", services.ErrSelfShare, http.StatusBadRequest, "Cannot share with self"},
		{"duplicate", services.ErrAlreadyShared, http.StatusBadRequest, "Already shared with user"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares := &mockShareService{
				ShareFunc: func(_ context.Context, _, _ int64, _ string) error {
					return tt.err
				},
			}
			router := newTestRouter(nil, nil, shares)

			w := doJSON(t, router, http.MethodPost, "/share_task", gin.H{
				"task_id":  1,
				"username": "bob",
			}, validToken)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantMessage, errorMessage(t, w))
		})
	}
}

func TestGetContributors_ReturnsData(t *testing.T) {
	shares := &mockShareService{
		ContributorsFunc: func(_ context.Context, taskID int64) ([]models.Contributor, error) {
			assert.Equal(t, int64(5), taskID)
			return []models.Contributor{{ID: 2, Username: "bob"}}, nil
		},
	}
	router := newTestRouter(nil, nil, shares)

	w := doJSON(t, router, http.MethodGet, "/get_contr?task_id=5", nil, validToken)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []models.Contributor `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "bob", body.Data[0].Username)
}

func TestRemoveContributor_OwnerOnly(t *testing.T) {
	shares := &mockShareService{
		RemoveFunc: func(_ context.Context, _, _, _ int64) error {
			return services.ErrNotTaskOwner
		},
	}
	router := newTestRouter(nil, nil, shares)

	w := doJSON(t, router, http.MethodPost, "/rem_contr", gin.H{
		"task_id": 1,
		"user_id": 2,
	}, validToken)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Not authorized", errorMessage(t, w))
}

func TestUpdateProfile_UsernameTaken(t *testing.T) {
	auth := &mockAuthService{
		UpdateProfileFunc: func(_ context.Context, _ services.UpdateProfileParams) error {
			return services.ErrUsernameTaken
		},
	}
	router := newTestRouter(auth, nil, nil)

	w := doJSON(t, router, http.MethodPost, "/update_profile", gin.H{
		"username": "bob",
	}, validToken)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Username taken", errorMessage(t, w))
}
