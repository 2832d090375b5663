package services

import (
	"context"
	"errors"
	"time"

	"github.com/avdeyev/tasky/internal/models"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrEmailTaken         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenRevoked       = errors.New("token revoked")

	ErrTaskNotFound    = errors.New("task not found")
	ErrNotAuthorized   = errors.New("not authorized")
	ErrNotTaskOwner    = errors.New("only the owner may do this")
	ErrInvalidName     = errors.New("invalid task name")
	ErrValueTooLong    = errors.New("value too long")
	ErrInvalidField    = errors.New("invalid field")
	ErrInvalidPriority = errors.New("invalid priority")

	ErrSelfShare     = errors.New("cannot share with self")
	ErrAlreadyShared = errors.New("already shared with user")
)

type AuthService interface {
	// Register creates a user, hashes the password and issues a bearer token.
	//
	// It returns ErrUsernameTaken or ErrEmailTaken when the unique
	// handle or email is already in use.
	Register(ctx context.Context, params RegisterParams) (*AuthResult, error)

	// Login authenticates by username or email.
	//
	// It returns ErrInvalidCredentials both for an unknown login and for a
	// password mismatch, so the two cases are indistinguishable to a caller.
	Login(ctx context.Context, params LoginParams) (*AuthResult, error)

	// Logout revokes the presented token until its natural expiry.
	Logout(ctx context.Context, token string) error

	// UpdateProfile renames the user, replaces the avatar and, when a
	// password is supplied, re-hashes it.
	UpdateProfile(ctx context.Context, params UpdateProfileParams) error

	// ParseToken validates the signature, expiry and revocation state
	// of a bearer token. It returns ErrTokenRevoked for logged-out tokens.
	ParseToken(token string) (*TokenClaims, error)
}

type TaskService interface {
	// GetAll returns the union of the user's own tasks and every task
	// reachable from a share granted to the user, annotated with owner
	// name, origin project name and contributors.
	GetAll(ctx context.Context, userID int64) ([]TaskView, error)

	// Create inserts a task. The parent is taken as given and is not
	// checked for ownership.
	Create(ctx context.Context, params CreateTaskParams) (int64, error)

	// SetDone and SetExpanded require ownership or an inherited share.
	SetDone(ctx context.Context, userID, taskID int64, isDone bool) error
	SetExpanded(ctx context.Context, userID, taskID int64, isExpanded bool) error

	// UpdateDetail writes a single free-form field chosen from the
	// fixed allow-list.
	UpdateDetail(ctx context.Context, userID, taskID int64, field DetailField, value string) error

	// DeleteSubtree removes the task and all its descendants in one
	// statement. Owner only; shares never grant delete rights.
	DeleteSubtree(ctx context.Context, userID, taskID int64) error
}

type ShareService interface {
	// Share grants the named user access to the task subtree. Owner only.
	Share(ctx context.Context, ownerID, taskID int64, granteeUsername string) error

	// Contributors lists the users the task has been shared with.
	Contributors(ctx context.Context, taskID int64) ([]models.Contributor, error)

	// Remove revokes a grant. Owner only.
	Remove(ctx context.Context, ownerID, taskID, granteeID int64) error
}

type RegisterParams struct {
	Username   string
	Email      string
	Password   string
	ProfilePic string
}

type LoginParams struct {
	// Login matches either the username or the email.
	Login    string
	Password string
}

type UpdateProfileParams struct {
	UserID     int64
	Username   string
	ProfilePic string
	// Password is re-hashed only when non-empty.
	Password string
}

type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      models.User
}

type CreateTaskParams struct {
	OwnerID  int64
	Name     string
	ParentID int64
}

// TaskView is a task annotated for the visible-set response.
type TaskView struct {
	models.Task
	OwnerName    string
	ProjectName  string
	Contributors []models.Contributor
}

// DetailField enumerates the columns update_details may touch.
// The value is never interpolated into SQL; each field dispatches
// to its own constant query.
type DetailField string

const (
	FieldName        DetailField = "name"
	FieldDescription DetailField = "description"
	FieldStartDate   DetailField = "start_date"
	FieldEndDate     DetailField = "end_date"
	FieldAssignedTo  DetailField = "assigned_to"
	FieldLinks       DetailField = "links"
	FieldNotes       DetailField = "notes"
	FieldPriority    DetailField = "priority"
)
