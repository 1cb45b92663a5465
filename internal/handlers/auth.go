package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/petrealm/pet-realm/internal/hash"
	"github.com/petrealm/pet-realm/internal/models"
	"github.com/petrealm/pet-realm/internal/mykafka"
	"github.com/petrealm/pet-realm/internal/token"
)

const (
	purposeVerifyEmail   = "verify_email"
	purposeResetPassword = "reset_password"

	verifyTokenTTL = 24 * time.Hour
	resetTokenTTL  = time.Hour

	// Returned by forgot-password and resend-verification regardless of
	// whether the account exists, so the endpoints cannot be used to
	// enumerate emails.
	genericMailMessage = "if the account exists, an email has been sent"
)

type AuthHandler struct {
	DB            *gorm.DB
	JWTSecret     []byte
	RefreshSecret []byte
	Producer      *mykafka.Producer
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
		Role     string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return echo.NewHTTPError(http.StatusBadRequest, "valid email required")
	}
	if len(req.Password) < 8 {
		return echo.NewHTTPError(http.StatusBadRequest, "password must be at least 8 characters")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name required")
	}
	role := req.Role
	if role == "" {
		role = token.RoleBuyer
	}
	if role != token.RoleBuyer && role != token.RoleSeller {
		return echo.NewHTTPError(http.StatusBadRequest, "role must be buyer or seller")
	}

	var existing models.User
	if err := h.DB.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "account already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	user := models.User{
		Email:        req.Email,
		PasswordHash: pwHash,
		Name:         req.Name,
		Role:         role,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "account already exists")
	}

	verify, err := h.issueAuthToken(user.ID, purposeVerifyEmail, verifyTokenTTL)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	// Mail delivery rides the event bus; a publish failure is logged by
	// publish() and never fails registration.
	h.publish(c, map[string]interface{}{
		"type":    "user_registered",
		"user_id": user.ID,
		"email":   user.Email,
		"token":   verify,
	})

	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var user models.User
	if err := h.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	accessToken, err := token.SignAccessToken(user.ID, user.Role, h.JWTSecret)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	refreshToken, err := token.SignRefreshToken(user.ID, user.Role, h.RefreshSecret)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if err := token.SaveRefreshToken(h.DB, refreshToken, user.ID, user.Role); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	c.SetCookie(token.CreateCookie("accessToken", accessToken, "/", time.Now().Add(token.AccessTTL)))
	c.SetCookie(token.CreateCookie("refreshToken", refreshToken, "/", time.Now().Add(token.RefreshTTL)))

	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"role":          user.Role,
	})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	if refreshCookie, err := c.Cookie("refreshToken"); err == nil {
		if err := h.DB.Model(&models.RefreshToken{}).
			Where("token = ?", refreshCookie.Value).
			Update("revoked", true).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
		}
	}

	expired := time.Now().Add(-time.Hour)
	c.SetCookie(token.CreateCookie("accessToken", "", "/", expired))
	c.SetCookie(token.CreateCookie("refreshToken", "", "/", expired))
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "token required")
	}

	userID, err := h.consumeAuthToken(req.Token, purposeVerifyEmail)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired token")
	}

	now := time.Now().UTC()
	if err := h.DB.Model(&models.User{}).Where("id = ?", userID).
		Update("email_verified_at", now).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "email verified"})
}

func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var user models.User
	err := h.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error
	if err == nil && user.EmailVerifiedAt == nil {
		if verify, err := h.issueAuthToken(user.ID, purposeVerifyEmail, verifyTokenTTL); err == nil {
			h.publish(c, map[string]interface{}{
				"type":    "verification_resent",
				"user_id": user.ID,
				"email":   user.Email,
				"token":   verify,
			})
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"message": genericMailMessage})
}

func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var user models.User
	err := h.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error
	if err == nil {
		if reset, err := h.issueAuthToken(user.ID, purposeResetPassword, resetTokenTTL); err == nil {
			h.publish(c, map[string]interface{}{
				"type":    "password_reset_requested",
				"user_id": user.ID,
				"email":   user.Email,
				"token":   reset,
			})
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"message": genericMailMessage})
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "token required")
	}
	if len(req.Password) < 8 {
		return echo.NewHTTPError(http.StatusBadRequest, "password must be at least 8 characters")
	}

	userID, err := h.consumeAuthToken(req.Token, purposeResetPassword)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired token")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if err := h.DB.Model(&models.User{}).Where("id = ?", userID).
		Update("password_hash", pwHash).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	// Drop every live session after a password reset.
	if err := h.DB.Model(&models.RefreshToken{}).Where("user_id = ?", userID).
		Update("revoked", true).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}

func (h *AuthHandler) issueAuthToken(userID uint, purpose string, ttl time.Duration) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	raw := hex.EncodeToString(buf)

	record := models.AuthToken{
		Token:     raw,
		UserID:    userID,
		Purpose:   purpose,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := h.DB.Create(&record).Error; err != nil {
		return "", err
	}
	return raw, nil
}

func (h *AuthHandler) consumeAuthToken(raw, purpose string) (uint, error) {
	var record models.AuthToken
	if err := h.DB.Where("token = ? AND purpose = ?", raw, purpose).First(&record).Error; err != nil {
		return 0, err
	}
	if record.UsedAt != nil {
		return 0, errors.New("token already used")
	}
	if time.Now().After(record.ExpiresAt) {
		return 0, errors.New("token expired")
	}

	now := time.Now().UTC()
	res := h.DB.Model(&models.AuthToken{}).
		Where("id = ? AND used_at IS NULL", record.ID).
		Update("used_at", now)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, errors.New("token already used")
	}
	return record.UserID, nil
}

func (h *AuthHandler) publish(c echo.Context, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "user_events", fmt.Sprint(event["user_id"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}
