package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/forestpark/assistant/backend/internal/database"
	"github.com/forestpark/assistant/backend/internal/model/auth"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidSession     = errors.New("invalid session")
	ErrUserExists         = errors.New("username or email already registered")
	ErrInvalidUser        = errors.New("username, email and password are required")
	ErrInvalidRole        = errors.New("unknown role")
)

// NewUser 是注册账号所需的字段。
type NewUser struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

// Service resolves principals from session cookies and manages accounts.
type Service struct {
	db         *gorm.DB
	tokens     *TokenIssuer
	cookieName string
	secure     bool
}

type Option func(*Service)

// WithSecureCookie marks issued cookies Secure.
func WithSecureCookie(secure bool) Option {
	return func(s *Service) { s.secure = secure }
}

func NewService(db *gorm.DB, tokens *TokenIssuer, cookieName string, opts ...Option) *Service {
	if cookieName == "" {
		cookieName = "session"
	}
	s := &Service{db: db, tokens: tokens, cookieName: cookieName}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login checks credentials against active users.
func (s *Service) Login(ctx context.Context, email, password string) (*auth.Principal, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var user database.User
	err := s.db.WithContext(ctx).Where("email = ? AND is_active = ?", email, true).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !comparePassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	return toPrincipal(user), nil
}

// Register creates an account. The role defaults to visitor.
func (s *Service) Register(ctx context.Context, in NewUser) (*auth.Principal, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, ErrInvalidUser
	}
	switch in.Role {
	case "":
		in.Role = auth.RoleVisitor
	case auth.RoleAdmin, auth.RoleStaff, auth.RoleVisitor:
	default:
		return nil, ErrInvalidRole
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&database.User{}).
		Where("username = ? OR email = ?", in.Username, in.Email).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if count > 0 {
		return nil, ErrUserExists
	}

	hashed, err := hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := database.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hashed,
		FullName:     in.FullName,
		Role:         in.Role,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	log.Printf("[auth] registered user=%s role=%s", user.Username, user.Role)
	return toPrincipal(user), nil
}

// EnsureAdmin creates the bootstrap admin when no user with that email exists.
func (s *Service) EnsureAdmin(ctx context.Context, username, email, password string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&database.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return fmt.Errorf("check admin: %w", err)
	}
	if count > 0 {
		return nil
	}
	_, err := s.Register(ctx, NewUser{Username: username, Email: email, Password: password, Role: auth.RoleAdmin})
	return err
}

// StartSession sets the session cookie for p.
func (s *Service) StartSession(w http.ResponseWriter, p *auth.Principal) error {
	token, expires, err := s.tokens.Issue(p)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// EndSession expires the session cookie.
func (s *Service) EndSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// CurrentPrincipal resolves the caller from the session cookie, or nil.
func (s *Service) CurrentPrincipal(r *http.Request) *auth.Principal {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	p, err := s.tokens.Verify(cookie.Value)
	if err != nil {
		return nil
	}
	return p
}

func toPrincipal(user database.User) *auth.Principal {
	return &auth.Principal{
		ID:       strconv.FormatUint(uint64(user.ID), 10),
		Username: user.Username,
		Role:     user.Role,
	}
}
