package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mxshop/backend/internal/hash"
	"github.com/mxshop/backend/internal/logging"
	"github.com/mxshop/backend/internal/models"
	"github.com/mxshop/backend/internal/mykafka"
	"github.com/mxshop/backend/internal/sms"
	"github.com/mxshop/backend/pkg/tokens"
)

var mobileRe = regexp.MustCompile(`^1[3-9]\d{9}$`)

type AuthHandler struct {
	DB            *gorm.DB
	JWTSecret     []byte
	RefreshSecret []byte
	Codes         *sms.CodeStore
	Sender        sms.Sender
	Producer      *mykafka.Producer
}

func CreateCookie(name, value, path string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  exp,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

// SendCode generates a verification code, stores it with a TTL and hands it
// to the SMS collaborator. Resends are throttled per mobile.
func (h *AuthHandler) SendCode(c echo.Context) error {
	var req struct {
		Mobile string `json:"mobile"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if !mobileRe.MatchString(req.Mobile) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid mobile number")
	}

	ctx := c.Request().Context()
	code := sms.GenerateCode()
	if err := h.Codes.Save(ctx, req.Mobile, code); err != nil {
		if errors.Is(err, sms.ErrTooFrequent) {
			return echo.NewHTTPError(http.StatusTooManyRequests, "code already sent, retry later")
		}
		logging.FromContext(ctx).Error("save sms code", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if err := h.Sender.Send(ctx, req.Mobile, code); err != nil {
		logging.FromContext(ctx).Error("send sms", "error", err)
		// Nothing reached the user, release the throttle so a retry is
		// possible right away.
		if err := h.Codes.Drop(ctx, req.Mobile); err != nil {
			logging.FromContext(ctx).Error("drop sms code", "error", err)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "could not send sms")
	}

	return c.JSON(http.StatusOK, echo.Map{"mobile": req.Mobile})
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req struct {
		Mobile   string `json:"mobile"`
		Password string `json:"password"`
		Code     string `json:"code"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if !mobileRe.MatchString(req.Mobile) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid mobile number")
	}
	if len(req.Password) < 6 {
		return echo.NewHTTPError(http.StatusBadRequest, "password too short")
	}

	ctx := c.Request().Context()
	ok, err := h.Codes.Check(ctx, req.Mobile, req.Code)
	if err != nil {
		logging.FromContext(ctx).Error("check sms code", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "wrong or expired code")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	user := models.User{
		Username:     req.Mobile,
		Mobile:       req.Mobile,
		PasswordHash: pwHash,
		Role:         "user",
	}
	if err := h.DB.Create(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusConflict, "user already exists")
	}

	h.publish(c, map[string]any{"type": "user_registered", "userID": user.ID})
	return h.issueTokens(c, &user, http.StatusCreated)
}

// Login accepts username or mobile as the login name.
func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var user models.User
	err := h.DB.Where("username = ? OR mobile = ?", req.Username, req.Username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !hash.CheckPassword(user.PasswordHash, req.Password)) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid username or password")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return h.issueTokens(c, &user, http.StatusOK)
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	cookie, err := c.Cookie("refreshToken")
	if err != nil || cookie.Value == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing refresh cookie")
	}

	claims, err := tokens.RefreshClaimsFromToken(cookie.Value, h.RefreshSecret)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	var stored models.RefreshToken
	if err := h.DB.Where("token = ?", cookie.Value).First(&stored).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token not found")
	}
	if stored.Revoked || stored.ExpiresAt.Before(time.Now()) {
		return echo.NewHTTPError(http.StatusUnauthorized, "token expired or revoked")
	}

	userID, err := claims.UserID()
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid subject claim")
	}
	var user models.User
	if err := h.DB.First(&user, userID).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unknown user")
	}

	// Rotation: the presented token is spent either way.
	if err := h.DB.Model(&stored).Update("revoked", true).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return h.issueTokens(c, &user, http.StatusOK)
}

func (h *AuthHandler) issueTokens(c echo.Context, user *models.User, status int) error {
	accessExp := time.Now().Add(tokens.AccessTTL)
	access, err := tokens.NewAccessToken(user.ID, user.Role, h.JWTSecret, accessExp)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	refreshExp := time.Now().Add(tokens.RefreshTTL)
	refresh, err := tokens.NewRefreshToken(user.ID, h.RefreshSecret, refreshExp)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if err := h.DB.Create(&models.RefreshToken{
		Token:     refresh,
		UserID:    user.ID,
		ExpiresAt: refreshExp,
	}).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	c.SetCookie(CreateCookie("accessToken", access, "/", accessExp))
	c.SetCookie(CreateCookie("refreshToken", refresh, "/", refreshExp))

	return c.JSON(status, echo.Map{
		"id":       user.ID,
		"username": user.Username,
		"role":     user.Role,
	})
}

func (h *AuthHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	if err := h.Producer.PublishEvent(c.Request().Context(), "user_events", "auth", event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish", "error", err)
	}
}
