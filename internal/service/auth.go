package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/corebanking/digibank/internal/domain"
)

const minPasswordLen = 8

// AuthService handles registration, login and access-token verification.
type AuthService struct {
	store           Store
	secret          []byte
	issuer          string
	expiry          time.Duration
	defaultCurrency string
	log             *zap.Logger
}

func NewAuthService(store Store, secret, issuer string, expiry time.Duration, defaultCurrency string, log *zap.Logger) *AuthService {
	return &AuthService{
		store:           store,
		secret:          []byte(secret),
		issuer:          issuer,
		expiry:          expiry,
		defaultCurrency: defaultCurrency,
		log:             log,
	}
}

type RegisterResult struct {
	UserID    int64  `json:"user_id"`
	Email     string `json:"email"`
	AccountID int64  `json:"account_id"`
}

type LoginResult struct {
	UserID      int64  `json:"user_id"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Register creates a user and opens their first chequing account atomically.
func (s *AuthService) Register(ctx context.Context, email, password string) (RegisterResult, error) {
	var zero RegisterResult

	email, err := normalizeEmail(email)
	if err != nil {
		return zero, err
	}
	if len(password) < minPasswordLen {
		return zero, domain.Validationf("password must be at least %d characters", minPasswordLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return zero, fmt.Errorf("hash password: %w", err)
	}

	u := domain.User{Email: email, PasswordHash: string(hash), Role: "USER"}
	a := domain.Account{
		Type:     domain.AccountTypeChequing,
		Currency: s.defaultCurrency,
		Status:   domain.AccountActive,
	}
	err = s.store.WithinTx(ctx, func(tx Tx) error {
		if err := tx.InsertUser(ctx, &u); err != nil {
			return err
		}
		a.UserID = u.ID
		return tx.InsertAccount(ctx, &a)
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return zero, domain.ErrEmailTaken
		}
		return zero, err
	}

	s.log.Info("user registered", zap.Int64("user_id", u.ID))
	return RegisterResult{UserID: u.ID, Email: u.Email, AccountID: a.ID}, nil
}

// Login verifies credentials and issues an HS256 access token. Unknown email
// and wrong password are reported identically.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var zero LoginResult

	email, err := normalizeEmail(email)
	if err != nil {
		return zero, domain.ErrInvalidCredentials
	}

	u, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return zero, domain.ErrInvalidCredentials
		}
		return zero, err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return zero, domain.ErrInvalidCredentials
	}

	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":  s.issuer,
		"sub":  u.Email,
		"iat":  now.Unix(),
		"exp":  now.Add(s.expiry).Unix(),
		"uid":  u.ID,
		"role": u.Role,
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return zero, fmt.Errorf("sign token: %w", err)
	}

	return LoginResult{
		UserID:      u.ID,
		Email:       u.Email,
		Role:        u.Role,
		AccessToken: signed,
		ExpiresIn:   int64(s.expiry.Seconds()),
	}, nil
}

// VerifyToken validates an access token and returns the uid claim.
func (s *AuthService) VerifyToken(tokenString string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return 0, domain.ErrInvalidCredentials
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, domain.ErrInvalidCredentials
	}
	uid, ok := claims["uid"].(float64)
	if !ok || uid <= 0 {
		return 0, domain.ErrInvalidCredentials
	}
	return int64(uid), nil
}
