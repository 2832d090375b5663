package services

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/avdeyev/tasky/internal/models"
)

type shareServiceImpl struct {
	logger zerolog.Logger
	pgPool *pgxpool.Pool
}

func NewShareService(
	logger zerolog.Logger,
	pgPool *pgxpool.Pool,
) ShareService {
	return &shareServiceImpl{
		logger: logger,
		pgPool: pgPool,
	}
}

func (s *shareServiceImpl) Share(ctx context.Context, ownerID, taskID int64, granteeUsername string) error {
	// Check order is part of the contract: task existence, ownership,
	// grantee existence, self-share, duplicate.
	taskOwnerID, err := s.taskOwner(ctx, taskID)
	if err != nil {
		return err
	}
	if taskOwnerID != ownerID {
		s.logger.Error().
			Int64("task_id", taskID).
			Int64("user_id", ownerID).
			Msg("only the owner may share")
		return ErrNotTaskOwner
	}

	const selectGranteeQuery = `
SELECT id
FROM users
WHERE username = $1
`
	var granteeID int64
	err = s.pgPool.QueryRow(ctx, selectGranteeQuery, granteeUsername).Scan(&granteeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error().
				Str("username", granteeUsername).
				Msg("grantee not found")
			return ErrUserNotFound
		}

		s.logger.Error().
			Err(err).
			Msg("failed to select grantee")
		return err
	}

	if granteeID == ownerID {
		s.logger.Error().
			Int64("task_id", taskID).
			Msg("attempted self-share")
		return ErrSelfShare
	}

	const selectExistingShareQuery = `
SELECT id
FROM task_shares
WHERE task_id = $1 AND
      user_id = $2
`
	var shareID int64
	err = s.pgPool.QueryRow(ctx, selectExistingShareQuery, taskID, granteeID).Scan(&shareID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		s.logger.Error().
			Err(err).
			Msg("failed to check existing share")
		return err
	}
	if err == nil {
		s.logger.Error().
			Int64("task_id", taskID).
			Int64("grantee_id", granteeID).
			Msg("already shared")
		return ErrAlreadyShared
	}

	const insertShareQuery = `
INSERT INTO task_shares (task_id,
                         user_id)
VALUES ($1, $2)
`
	_, err = s.pgPool.Exec(ctx, insertShareQuery, taskID, granteeID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("task_id", taskID).
			Msg("failed to insert share")
		return err
	}

	s.logger.Info().
		Int64("task_id", taskID).
		Int64("grantee_id", granteeID).
		Msg("shared task")
	return nil
}

func (s *shareServiceImpl) Contributors(ctx context.Context, taskID int64) ([]models.Contributor, error) {
	const selectContributorsQuery = `
SELECT u.id,
       u.username,
       COALESCE(u.profile_pic, '')
FROM task_shares ts
JOIN users u ON ts.user_id = u.id
WHERE ts.task_id = $1
ORDER BY ts.id
`
	rows, err := s.pgPool.Query(ctx, selectContributorsQuery, taskID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("task_id", taskID).
			Msg("failed to select contributors")
		return nil, err
	}
	defer rows.Close()

	contributors := make([]models.Contributor, 0)
	for rows.Next() {
		var c models.Contributor
		if err = rows.Scan(&c.ID, &c.Username, &c.ProfilePic); err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to scan contributor")
			return nil, err
		}
		contributors = append(contributors, c)
	}
	return contributors, rows.Err()
}

func (s *shareServiceImpl) Remove(ctx context.Context, ownerID, taskID, granteeID int64) error {
	taskOwnerID, err := s.taskOwner(ctx, taskID)
	if err != nil {
		return err
	}
	if taskOwnerID != ownerID {
		s.logger.Error().
			Int64("task_id", taskID).
			Int64("user_id", ownerID).
			Msg("only the owner may remove contributors")
		return ErrNotTaskOwner
	}

	const deleteShareQuery = `
DELETE FROM task_shares
WHERE task_id = $1 AND
      user_id = $2
`
	_, err = s.pgPool.Exec(ctx, deleteShareQuery, taskID, granteeID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("task_id", taskID).
			Msg("failed to delete share")
		return err
	}

	s.logger.Info().
		Int64("task_id", taskID).
		Int64("grantee_id", granteeID).
		Msg("removed contributor")
	return nil
}

func (s *shareServiceImpl) taskOwner(ctx context.Context, taskID int64) (int64, error) {
	const selectOwnerQuery = `
SELECT user_id
FROM tsk_list
WHERE id = $1
`
	var ownerID int64
	err := s.pgPool.QueryRow(ctx, selectOwnerQuery, taskID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error().
				Int64("task_id", taskID).
				Msg("task not found")
			return 0, ErrTaskNotFound
		}

		s.logger.Error().
			Err(err).
			Int64("task_id", taskID).
			Msg("failed to select task owner")
		return 0, err
	}
	return ownerID, nil
}
