package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/farellandr/eventive/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const tokenTTL = 24 * time.Hour

type RegisterInput struct {
	Email       string          `json:"email" binding:"required,email"`
	Password    string          `json:"password" binding:"required,min=6"`
	Name        string          `json:"name" binding:"required,max=120"`
	PhoneNumber string          `json:"phone_number" binding:"omitempty,max=32"`
	RoleName    models.RoleName `json:"role_name"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

type UserService struct {
	db     *gorm.DB
	secret []byte
	now    func() time.Time
}

func NewUserService(db *gorm.DB, jwtSecret string) *UserService {
	return &UserService{db: db, secret: []byte(jwtSecret), now: time.Now}
}

// Register creates an attendee or organizer account. Admins are only ever
// seeded from configuration.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	roleName := in.RoleName
	if roleName == "" {
		roleName = models.RoleAttendee
	}
	if roleName != models.RoleAttendee && roleName != models.RoleOrganizer {
		return nil, ErrInvalidRole
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || len(in.Password) < 6 {
		return nil, ErrInvalidInput
	}

	db := s.db.WithContext(ctx)

	var role models.Role
	if err := db.Where("name = ?", roleName).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRole
		}
		return nil, fmt.Errorf("load role: %w", err)
	}

	var existing int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if existing > 0 {
		return nil, ErrEmailTaken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Email:       email,
		Name:        strings.TrimSpace(in.Name),
		Password:    string(hashedPassword),
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
		RoleID:      role.ID,
		Role:        role,
	}
	if err := db.Omit("Role").Create(&user).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

func (s *UserService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Role").
		Where("email = ?", strings.ToLower(strings.TrimSpace(in.Email))).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	expiresAt := s.now().Add(tokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID.String(),
		"role":    string(user.Role.Name),
		"iat":     s.now().Unix(),
		"exp":     expiresAt.Unix(),
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &LoginResult{Token: tokenString, ExpiresAt: expiresAt, User: &user}, nil
}

// ParseToken validates a bearer token and returns the actor it was issued to.
func (s *UserService) ParseToken(tokenString string) (Actor, error) {
	token, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return Actor{}, ErrUnauthorized.WithMessage("Invalid or expired token.")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Actor{}, ErrUnauthorized.WithMessage("Invalid token claims.")
	}
	rawID, _ := claims["user_id"].(string)
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return Actor{}, ErrUnauthorized.WithMessage("Invalid token claims.")
	}
	rawRole, _ := claims["role"].(string)
	role := models.RoleName(rawRole)
	if !role.Valid() {
		return Actor{}, ErrUnauthorized.WithMessage("Invalid token claims.")
	}

	return Actor{UserID: userID, Role: role}, nil
}

func (s *UserService) Profile(ctx context.Context, actor Actor) (*models.User, error) {
	if !actor.Authenticated() {
		return nil, ErrUnauthorized
	}

	var user models.User
	if err := s.db.WithContext(ctx).Preload("Role").Where("id = ?", actor.UserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return &user, nil
}
