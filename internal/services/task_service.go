package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/avdeyev/tasky/internal/models"
	"github.com/avdeyev/tasky/internal/resolver"
)

type taskServiceImpl struct {
	logger   zerolog.Logger
	pgPool   *pgxpool.Pool
	resolver *resolver.Resolver
}

func NewTaskService(
	logger zerolog.Logger,
	pgPool *pgxpool.Pool,
) TaskService {
	s := &taskServiceImpl{
		logger: logger,
		pgPool: pgPool,
	}
	s.resolver = resolver.New(s)
	return s
}

const taskColumns = `id,
       name,
       COALESCE(parent_id, 0),
       user_id,
       is_done,
       is_expanded,
       description,
       start_date,
       end_date,
       assigned_to,
       links,
       notes,
       priority`

func scanTask(row pgx.Row) (models.Task, error) {
	var t models.Task
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.ParentID,
		&t.UserID,
		&t.IsDone,
		&t.IsExpanded,
		&t.Description,
		&t.StartDate,
		&t.EndDate,
		&t.AssignedTo,
		&t.Links,
		&t.Notes,
		&t.Priority,
	)
	return t, err
}

func collectTasks(rows pgx.Rows) ([]models.Task, error) {
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Task implements resolver.Graph.
func (s *taskServiceImpl) Task(ctx context.Context, id int64) (*models.Task, error) {
	const selectTaskQuery = `
SELECT ` + taskColumns + `
FROM tsk_list
WHERE id = $1
`
	t, err := scanTask(s.pgPool.QueryRow(ctx, selectTaskQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		s.logger.Error().
			Err(err).
			Int64("task_id", id).
			Msg("failed to select task")
		return nil, err
	}
	return &t, nil
}

// Children implements resolver.Graph.
func (s *taskServiceImpl) Children(ctx context.Context, parentIDs []int64) ([]models.Task, error) {
	const selectChildrenQuery = `
SELECT ` + taskColumns + `
FROM tsk_list
WHERE parent_id = ANY($1)
ORDER BY id
`
	rows, err := s.pgPool.Query(ctx, selectChildrenQuery, parentIDs)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to select children")
		return nil, err
	}

	return collectTasks(rows)
}

// HasShare implements resolver.Graph.
func (s *taskServiceImpl) HasShare(ctx context.Context, taskID, userID int64) (bool, error) {
	const selectShareQuery = `
SELECT EXISTS (
    SELECT 1
    FROM task_shares
    WHERE task_id = $1 AND
          user_id = $2
)
`
	var shared bool
	err := s.pgPool.QueryRow(ctx, selectShareQuery, taskID, userID).Scan(&shared)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("task_id", taskID).
			Msg("failed to check share")
		return false, err
	}
	return shared, nil
}

func (s *taskServiceImpl) GetAll(ctx context.Context, userID int64) ([]TaskView, error) {
	const selectOwnedQuery = `
SELECT ` + taskColumns + `
FROM tsk_list
WHERE user_id = $1
ORDER BY id
`
	rows, err := s.pgPool.Query(ctx, selectOwnedQuery, userID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("user_id", userID).
			Msg("failed to select owned tasks")
		return nil, err
	}
	owned, err := collectTasks(rows)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to scan owned tasks")
		return nil, err
	}

	const selectGrantsQuery = `
SELECT t.id,
       t.name,
       COALESCE(t.parent_id, 0),
       t.user_id,
       t.is_done,
       t.is_expanded,
       t.description,
       t.start_date,
       t.end_date,
       t.assigned_to,
       t.links,
       t.notes,
       t.priority
FROM tsk_list t
JOIN task_shares ts ON t.id = ts.task_id
WHERE ts.user_id = $1
ORDER BY t.id
`
	rows, err = s.pgPool.Query(ctx, selectGrantsQuery, userID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("user_id", userID).
			Msg("failed to select direct grants")
		return nil, err
	}
	grants, err := collectTasks(rows)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to scan direct grants")
		return nil, err
	}

	shared, err := s.resolver.SharedClosure(ctx, grants)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to expand shared closure")
		return nil, err
	}

	// Grant origins resolve to their top-most ancestor; the root's name
	// labels every task the grant reaches.
	projectNames := make(map[int64]string, len(grants))
	for _, g := range grants {
		root, err := s.resolver.OriginRoot(ctx, g)
		if err != nil {
			s.logger.Error().
				Err(err).
				Int64("task_id", g.ID).
				Msg("failed to resolve origin root")
			return nil, err
		}
		projectNames[g.ID] = root.Name
	}

	ownerNames, err := s.usernamesFor(ctx, owned, shared, userID)
	if err != nil {
		return nil, err
	}

	contributors, err := s.contributorsByTask(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]TaskView, 0, len(owned)+len(shared))
	seen := make(map[int64]bool, len(owned))
	for _, t := range owned {
		seen[t.ID] = true
		views = append(views, TaskView{
			Task:         t,
			OwnerName:    ownerNames[t.UserID],
			Contributors: contributors[t.ID],
		})
	}
	for _, st := range shared {
		// Owned rows win when a task is both owned and reachable
		// through a grant.
		if seen[st.ID] {
			continue
		}
		seen[st.ID] = true
		views = append(views, TaskView{
			Task:         st.Task,
			OwnerName:    ownerNames[st.UserID],
			ProjectName:  projectNames[st.OriginID],
			Contributors: contributors[st.ID],
		})
	}

	s.logger.Info().
		Int("count", len(views)).
		Int64("user_id", userID).
		Msg("fetched visible tasks")
	return views, nil
}

func (s *taskServiceImpl) usernamesFor(ctx context.Context, owned []models.Task, shared []resolver.SharedTask, userID int64) (map[int64]string, error) {
	ids := map[int64]bool{userID: true}
	for _, t := range owned {
		ids[t.UserID] = true
	}
	for _, t := range shared {
		ids[t.UserID] = true
	}

	userIDs := make([]int64, 0, len(ids))
	for id := range ids {
		userIDs = append(userIDs, id)
	}

	const selectUsernamesQuery = `
SELECT id,
       username
FROM users
WHERE id = ANY($1)
`
	rows, err := s.pgPool.Query(ctx, selectUsernamesQuery, userIDs)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to select usernames")
		return nil, err
	}
	defer rows.Close()

	names := make(map[int64]string, len(userIDs))
	for rows.Next() {
		var id int64
		var name string
		if err = rows.Scan(&id, &name); err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to scan username")
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

func (s *taskServiceImpl) contributorsByTask(ctx context.Context) (map[int64][]models.Contributor, error) {
	const selectSharesQuery = `
SELECT ts.task_id,
       u.id,
       u.username,
       COALESCE(u.profile_pic, '')
FROM task_shares ts
JOIN users u ON ts.user_id = u.id
ORDER BY ts.id
`
	rows, err := s.pgPool.Query(ctx, selectSharesQuery)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to select shares")
		return nil, err
	}
	defer rows.Close()

	byTask := make(map[int64][]models.Contributor)
	for rows.Next() {
		var taskID int64
		var c models.Contributor
		if err = rows.Scan(&taskID, &c.ID, &c.Username, &c.ProfilePic); err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to scan share")
			return nil, err
		}
		byTask[taskID] = append(byTask[taskID], c)
	}
	return byTask, rows.Err()
}

func (s *taskServiceImpl) Create(ctx context.Context, params CreateTaskParams) (int64, error) {
	if strings.TrimSpace(params.Name) == "" || utf8.RuneCountInString(params.Name) > models.MaxTaskNameLen {
		return 0, ErrInvalidName
	}

	const insertTaskQuery = `
INSERT INTO tsk_list (name,
                      parent_id,
                      user_id)
VALUES ($1, $2, $3)
RETURNING id
`
	var taskID int64
	err := s.pgPool.QueryRow(
		ctx,
		insertTaskQuery,
		params.Name,
		params.ParentID,
		params.OwnerID,
	).Scan(&taskID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to insert task")
		return 0, err
	}
	s.logger.Debug().
		Int64("task_id", taskID).
		Int64("parent_id", params.ParentID).
		Msg("inserted task")

	s.logger.Info().
		Int64("task_id", taskID).
		Int64("user_id", params.OwnerID).
		Msg("created task")
	return taskID, nil
}

// authorize loads the task and checks the user may mutate it. Check
// order is fixed: a missing task reports not-found before any
// authorization failure.
func (s *taskServiceImpl) authorize(ctx context.Context, userID, taskID int64) (*models.Task, error) {
	task, err := s.Task(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		s.logger.Error().
			Int64("task_id", taskID).
			Msg("task not found")
		return nil, ErrTaskNotFound
	}

	allowed, err := s.resolver.CanModify(ctx, userID, *task)
	if err != nil {
		return nil, err
	}
	if !allowed {
		s.logger.Error().
			Int64("task_id", taskID).
			Int64("user_id", userID).
			Msg("not authorized")
		return nil, ErrNotAuthorized
	}
	return task, nil
}

func (s *taskServiceImpl) SetDone(ctx context.Context, userID, taskID int64, isDone bool) error {
	_, err := s.authorize(ctx, userID, taskID)
	if err != nil {
		return err
	}

	const updateDoneQuery = `
UPDATE tsk_list
SET is_done = $1
WHERE id = $2
`
	_, err = s.pgPool.Exec(ctx, updateDoneQuery, isDone, taskID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("task_id", taskID).
			Msg("failed to update status")
		return err
	}

	s.logger.Info().
		Int64("task_id", taskID).
		Bool("is_done", isDone).
		Msg("updated status")
	return nil
}

func (s *taskServiceImpl) SetExpanded(ctx context.Context, userID, taskID int64, isExpanded bool) error {
	_, err := s.authorize(ctx, userID, taskID)
	if err != nil {
		return err
	}

	const updateExpandedQuery = `
UPDATE tsk_list
SET is_expanded = $1
WHERE id = $2
`
	_, err = s.pgPool.Exec(ctx, updateExpandedQuery, isExpanded, taskID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("task_id", taskID).
			Msg("failed to update expanded flag")
		return err
	}

	s.logger.Info().
		Int64("task_id", taskID).
		Bool("is_expanded", isExpanded).
		Msg("updated expanded flag")
	return nil
}

func (s *taskServiceImpl) UpdateDetail(ctx context.Context, userID, taskID int64, field DetailField, value string) error {
	query, err := detailQuery(field, value)
	if err != nil {
		return err
	}

	_, err = s.authorize(ctx, userID, taskID)
	if err != nil {
		return err
	}

	_, err = s.pgPool.Exec(ctx, query, value, taskID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("task_id", taskID).
			Str("field", string(field)).
			Msg("failed to update detail")
		return err
	}

	s.logger.Info().
		Int64("task_id", taskID).
		Str("field", string(field)).
		Msg("updated detail")
	return nil
}

func detailQuery(field DetailField, value string) (string, error) {
	switch field {
	case FieldName:
		if strings.TrimSpace(value) == "" || utf8.RuneCountInString(value) > models.MaxTaskNameLen {
			return "", ErrInvalidName
		}
		return `UPDATE tsk_list SET name = $1 WHERE id = $2`, nil
	case FieldDescription:
		if utf8.RuneCountInString(value) > models.MaxDescriptionLen {
			return "", ErrValueTooLong
		}
		return `UPDATE tsk_list SET description = $1 WHERE id = $2`, nil
	case FieldStartDate:
		return `UPDATE tsk_list SET start_date = $1 WHERE id = $2`, nil
	case FieldEndDate:
		return `UPDATE tsk_list SET end_date = $1 WHERE id = $2`, nil
	case FieldAssignedTo:
		return `UPDATE tsk_list SET assigned_to = $1 WHERE id = $2`, nil
	case FieldLinks:
		return `UPDATE tsk_list SET links = $1 WHERE id = $2`, nil
	case FieldNotes:
		if utf8.RuneCountInString(value) > models.MaxNotesLen {
			return "", ErrValueTooLong
		}
		return `UPDATE tsk_list SET notes = $1 WHERE id = $2`, nil
	case FieldPriority:
		switch value {
		case "", models.PriorityHigh, models.PriorityMedium, models.PriorityLow:
		default:
			return "", ErrInvalidPriority
		}
		return `UPDATE tsk_list SET priority = $1 WHERE id = $2`, nil
	default:
		return "", ErrInvalidField
	}
}

func (s *taskServiceImpl) DeleteSubtree(ctx context.Context, userID, taskID int64) error {
	task, err := s.Task(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		s.logger.Error().
			Int64("task_id", taskID).
			Msg("task not found")
		return ErrTaskNotFound
	}
	if task.UserID != userID {
		s.logger.Error().
			Int64("task_id", taskID).
			Int64("user_id", userID).
			Msg("only the owner may delete")
		return ErrNotTaskOwner
	}

	// One statement, so the subtree disappears atomically.
	const deleteSubtreeQuery = `
WITH RECURSIVE subtasks AS (
    SELECT id
    FROM tsk_list
    WHERE id = $1
    UNION ALL
    SELECT t.id
    FROM tsk_list t
    JOIN subtasks st ON t.parent_id = st.id
)
DELETE FROM tsk_list
WHERE id IN (SELECT id FROM subtasks)
`
	tag, err := s.pgPool.Exec(ctx, deleteSubtreeQuery, taskID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("task_id", taskID).
			Msg("failed to delete subtree")
		return err
	}
	s.logger.Debug().
		Int64("task_id", taskID).
		Int64("affected", tag.RowsAffected()).
		Msg("deleted subtree")

	s.logger.Info().
		Int64("task_id", taskID).
		Int64("user_id", userID).
		Msg("deleted task")
	return nil
}
