package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dom/linklearn/internal/config"
	"github.com/dom/linklearn/internal/domain"
	"github.com/dom/linklearn/internal/metrics"
	"github.com/dom/linklearn/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	repos  *repository.Repositories
	ledger *LedgerService
	cfg    *config.Config
	now    Clock
}

func NewAuthService(repos *repository.Repositories, ledger *LedgerService, cfg *config.Config, clock Clock) *AuthService {
	return &AuthService{
		repos:  repos,
		ledger: ledger,
		cfg:    cfg,
		now:    clock,
	}
}

type RegisterInput struct {
	Password    string
	DisplayName string
}

type LoginInput struct {
	DisplayName string
	Password    string
}

type AuthResult struct {
	User        *domain.User
	AccessToken string
}

// Register creates the user and grants the signup bonus in one transaction,
// so the new balance is backed by a ledger entry from the start.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	input.DisplayName = strings.TrimSpace(input.DisplayName)
	if input.DisplayName == "" || input.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.New(),
		PasswordHash: string(hashedPassword),
		DisplayName:  input.DisplayName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var bonus *domain.LedgerEntry
	err = s.repos.Tx.WithinTransaction(ctx, func(repos *repository.Repositories) error {
		if err := repos.User.Create(ctx, user); err != nil {
			return err
		}
		if s.cfg.SignupCreditCents == 0 {
			return nil
		}
		entry, err := s.ledger.Post(ctx, repos, PostInput{
			UserID:      user.ID,
			Amount:      domain.Credits(s.cfg.SignupCreditCents),
			Type:        domain.TransactionSignup,
			Description: "Signup bonus",
		})
		bonus = entry
		return err
	})
	if err != nil {
		return nil, err
	}

	if bonus != nil {
		user.Credits = bonus.BalanceAfter
		metrics.RecordLedgerEntries(bonus)
	}
	return s.issueToken(user)
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	user, err := s.repos.User.GetByDisplayName(ctx, input.DisplayName)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	return s.issueToken(user)
}

func (s *AuthService) issueToken(user *domain.User) (*AuthResult, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":  user.ID.String(),
		"name": user.DisplayName,
		"exp":  now.Add(s.cfg.JWTExpiration()).Unix(),
		"iat":  now.Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &AuthResult{User: user, AccessToken: token}, nil
}

// ValidateToken returns the user id carried in the sub claim.
func (s *AuthService) ValidateToken(tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return uuid.Nil, domain.ErrInvalidToken
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, domain.ErrInvalidToken
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, domain.ErrInvalidToken
	}
	return userID, nil
}

func (s *AuthService) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.repos.User.GetByID(ctx, id)
}
