package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/avdeyev/tasky/internal/models"
)

// TokenClaims is the payload carried by a bearer token.
type TokenClaims struct {
	UserID   int64  `json:"uid"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type authServiceImpl struct {
	logger        zerolog.Logger
	pgPool        *pgxpool.Pool
	revoker       TokenRevoker
	jwtIssuer     string
	jwtSigningKey []byte
	jwtTokenTTL   time.Duration
}

func NewAuthService(
	logger zerolog.Logger,
	pgPool *pgxpool.Pool,
	revoker TokenRevoker,
	jwtIssuer string,
	jwtSigningKey []byte,
	jwtTokenTTL time.Duration,
) AuthService {
	return &authServiceImpl{
		logger:        logger,
		pgPool:        pgPool,
		revoker:       revoker,
		jwtIssuer:     jwtIssuer,
		jwtSigningKey: jwtSigningKey,
		jwtTokenTTL:   jwtTokenTTL,
	}
}

func (s *authServiceImpl) Register(ctx context.Context, params RegisterParams) (*AuthResult, error) {
	user := models.User{
		Username:   params.Username,
		Email:      params.Email,
		ProfilePic: params.ProfilePic,
	}

	// Checked up front so the username conflict always wins over the
	// email conflict in the reported error.
	const selectExistingQuery = `
SELECT username,
       email
FROM users
WHERE username = $1 OR
      email = $2
`
	var existingUsername, existingEmail string
	err := s.pgPool.QueryRow(
		ctx,
		selectExistingQuery,
		user.Username,
		user.Email,
	).Scan(
		&existingUsername,
		&existingEmail,
	)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		s.logger.Error().
			Err(err).
			Msg("failed to select existing user")
		return nil, err
	}
	if err == nil {
		if existingUsername == user.Username {
			s.logger.Error().
				Str("username", user.Username).
				Msg("username already taken")
			return nil, ErrUsernameTaken
		}
		s.logger.Error().
			Str("email", user.Email).
			Msg("email already in use")
		return nil, ErrEmailTaken
	}

	passwordHash, err := argon2id.CreateHash(params.Password, argon2id.DefaultParams)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to hash password")
		return nil, err
	}
	user.Password = passwordHash

	const insertUserQuery = `
INSERT INTO users (username,
                   email,
                   password,
                   profile_pic)
VALUES ($1, $2, $3, $4)
RETURNING id
`
	err = s.pgPool.QueryRow(
		ctx,
		insertUserQuery,
		user.Username,
		user.Email,
		user.Password,
		user.ProfilePic,
	).Scan(&user.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.UniqueViolation {
				s.logger.Error().
					Str("username", user.Username).
					Msg("user already exists")
				return nil, ErrUsernameTaken
			}
		}

		s.logger.Error().
			Err(err).
			Msg("failed to insert user")
		return nil, err
	}
	s.logger.Debug().
		Int64("user_id", user.ID).
		Str("username", user.Username).
		Msg("inserted user")

	token, expiresAt, err := s.generateToken(user.ID, user.Username)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate token")
		return nil, err
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Msg("registered user")
	return &AuthResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	}, nil
}

func (s *authServiceImpl) Login(ctx context.Context, params LoginParams) (*AuthResult, error) {
	var user models.User

	const selectUserByLoginQuery = `
SELECT id,
       username,
       email,
       password,
       profile_pic
FROM users
WHERE username = $1 OR
      email = $1
`
	err := s.pgPool.QueryRow(
		ctx,
		selectUserByLoginQuery,
		params.Login,
	).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Password,
		&user.ProfilePic,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error().
				Str("login", params.Login).
				Msg("user not found")
			return nil, ErrInvalidCredentials
		}

		s.logger.Error().
			Err(err).
			Str("login", params.Login).
			Msg("failed to select user by login")
		return nil, err
	}
	s.logger.Debug().
		Int64("user_id", user.ID).
		Msg("selected user")

	match, err := argon2id.ComparePasswordAndHash(params.Password, user.Password)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to compare password")
		return nil, err
	} else if !match {
		s.logger.Error().Msg("passwords do not match")
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.generateToken(user.ID, user.Username)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate token")
		return nil, err
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Msg("logged in")
	return &AuthResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	}, nil
}

func (s *authServiceImpl) Logout(_ context.Context, token string) error {
	claims, err := s.parseClaims(token)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to parse token on logout")
		return err
	}

	s.revoker.Revoke(token, claims.ExpiresAt.Time)

	s.logger.Info().
		Int64("user_id", claims.UserID).
		Msg("logged out")
	return nil
}

func (s *authServiceImpl) UpdateProfile(ctx context.Context, params UpdateProfileParams) error {
	const selectTakenQuery = `
SELECT id
FROM users
WHERE username = $1 AND
      id <> $2
`
	var takenBy int64
	err := s.pgPool.QueryRow(
		ctx,
		selectTakenQuery,
		params.Username,
		params.UserID,
	).Scan(&takenBy)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		s.logger.Error().
			Err(err).
			Msg("failed to check username")
		return err
	}
	if err == nil {
		s.logger.Error().
			Str("username", params.Username).
			Msg("username already taken")
		return ErrUsernameTaken
	}

	if params.Password == "" {
		const updateProfileQuery = `
UPDATE users
SET username = $1,
    profile_pic = $2
WHERE id = $3
`
		_, err = s.pgPool.Exec(
			ctx,
			updateProfileQuery,
			params.Username,
			params.ProfilePic,
			params.UserID,
		)
		if err != nil {
			s.logger.Error().
				Err(err).
				Int64("user_id", params.UserID).
				Msg("failed to update profile")
			return err
		}
	} else {
		passwordHash, err := argon2id.CreateHash(params.Password, argon2id.DefaultParams)
		if err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to hash password")
			return err
		}

		const updateProfileWithPasswordQuery = `
UPDATE users
SET username = $1,
    profile_pic = $2,
    password = $3
WHERE id = $4
`
		_, err = s.pgPool.Exec(
			ctx,
			updateProfileWithPasswordQuery,
			params.Username,
			params.ProfilePic,
			passwordHash,
			params.UserID,
		)
		if err != nil {
			s.logger.Error().
				Err(err).
				Int64("user_id", params.UserID).
				Msg("failed to update profile")
			return err
		}
	}

	s.logger.Info().
		Int64("user_id", params.UserID).
		Msg("updated profile")
	return nil
}

func (s *authServiceImpl) ParseToken(token string) (*TokenClaims, error) {
	claims, err := s.parseClaims(token)
	if err != nil {
		return nil, err
	}

	if s.revoker.IsRevoked(token) {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

func (s *authServiceImpl) parseClaims(token string) (*TokenClaims, error) {
	t, err := jwt.ParseWithClaims(
		token,
		&TokenClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.jwtSigningKey, nil
		},
		jwt.WithIssuer(s.jwtIssuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("token is expired: %w", err)
		}
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := t.Claims.(*TokenClaims)
	if !ok {
		return nil, errors.New("failed to parse token claims")
	}
	return claims, nil
}

func (s *authServiceImpl) generateToken(userID int64, username string) (string, time.Time, error) {
	tokenUUID, err := uuid.NewRandom()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate id: %w", err)
	}

	now := time.Now()
	expiresAt := now.Add(s.jwtTokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, TokenClaims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenUUID.String(),
			Issuer:    s.jwtIssuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})

	signed, err := token.SignedString(s.jwtSigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}
