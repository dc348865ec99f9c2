package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskstream/backend/domain"
	"github.com/taskstream/backend/repository"
)

// Config carries the token-signing settings.
type Config struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

// UseCase issues and verifies the tokens the sync core consumes. Token
// issuance is boundary glue: the core only ever needs the user id a verified
// token resolves to.
type UseCase struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	cfg      Config
	logger   *zap.Logger
}

func New(users repository.UserRepository, sessions repository.SessionRepository, cfg Config, logger *zap.Logger) *UseCase {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:    users,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
	}
}

// Login provisions the user, opens a session and returns a signed JWT whose
// claims carry the user and session ids.
func (uc *UseCase) Login(ctx context.Context, userID, email string) (*domain.Session, string, error) {
	if userID == "" {
		userID = uuid.NewString()
	}
	user := &domain.User{ID: userID, Email: email}
	if err := uc.users.Upsert(ctx, user); err != nil {
		return nil, "", err
	}

	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(uc.cfg.TTL),
	}
	if err := uc.sessions.Save(ctx, session); err != nil {
		return nil, "", err
	}

	token, err := uc.sign(session)
	if err != nil {
		return nil, "", err
	}
	return session, token, nil
}

// Refresh extends an existing session and returns a fresh token.
func (uc *UseCase) Refresh(ctx context.Context, sessionID string) (*domain.Session, string, error) {
	session, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	if session.IsExpired(time.Now()) {
		_ = uc.sessions.Delete(ctx, sessionID)
		return nil, "", domain.ErrSessionNotFound
	}

	if err := uc.sessions.Extend(ctx, sessionID, int(uc.cfg.TTL.Seconds())); err != nil {
		return nil, "", err
	}
	session.ExpiresAt = time.Now().Add(uc.cfg.TTL)

	token, err := uc.sign(session)
	if err != nil {
		return nil, "", err
	}
	return session, token, nil
}

// VerifyToken resolves a token to its user id. Used by the websocket
// handshake, where the token arrives as a query parameter.
func (uc *UseCase) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrUnauthorized
		}
		return []byte(uc.cfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return "", domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", domain.ErrUnauthorized
	}
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return "", domain.ErrUnauthorized
	}
	return userID, nil
}

func (uc *UseCase) sign(session *domain.Session) (string, error) {
	claims := jwt.MapClaims{
		"user_id":    session.UserID,
		"session_id": session.ID,
		"iss":        uc.cfg.Issuer,
		"exp":        session.ExpiresAt.Unix(),
		"iat":        time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(uc.cfg.Secret))
	if err != nil {
		return "", domain.WrapError(domain.ErrCodeInternal, "failed to sign token", err)
	}
	return signed, nil
}
