package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/fallenleaves/middleware"
	"github.com/cppla/fallenleaves/models"
	"github.com/cppla/fallenleaves/utils"
)

// AuthController handles account endpoints: register, login, logout and profile.
type AuthController struct {
	db *gorm.DB
}

// NewAuthController creates an AuthController.
func NewAuthController(db *gorm.DB) *AuthController {
	return &AuthController{db: db}
}

// Register handles local account registration with bcrypt hashing.
func (a *AuthController) Register(ctx *gin.Context) {
	type request struct {
		Username string `json:"username" binding:"required,min=3,max=32"`
		Email    string `json:"email" binding:"omitempty,email"`
		Password string `json:"password" binding:"required,min=6,max=72"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if !validUsername(req.Username) {
		utils.Error(ctx, http.StatusBadRequest, 40002, "username may only contain letters, digits, '-', '_' and '.'")
		return
	}

	var existing models.User
	if err := a.db.Where("username = ?", req.Username).First(&existing).Error; err == nil {
		utils.Error(ctx, http.StatusConflict, 40901, "username already exists")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to hash password")
		return
	}

	now := time.Now().UTC()
	user := models.User{
		Username:     req.Username,
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
		LastLoginAt:  &now,
	}
	if err := a.db.WithContext(ctx.Request.Context()).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "Duplicate entry") {
			utils.Error(ctx, http.StatusConflict, 40901, "username already exists")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to create user")
		return
	}

	a.issueToken(ctx, http.StatusCreated, user)
}

// Login verifies user credentials and issues a JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	type request struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var req request
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40003, "invalid request payload")
		return
	}

	var user models.User
	if err := a.db.Where("username = ?", strings.TrimSpace(req.Username)).First(&user).Error; err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.Error(ctx, http.StatusUnauthorized, 40106, "invalid username or password")
		return
	}
	if user.Status != "" && user.Status != "active" {
		utils.Error(ctx, http.StatusForbidden, 40301, "account is disabled")
		return
	}

	now := time.Now().UTC()
	if err := a.db.Model(&user).Update("last_login_at", now).Error; err != nil {
		utils.L().Sugar().Warnf("update last_login_at failed user=%d err=%v", user.ID, err)
	}
	user.LastLoginAt = &now

	a.issueToken(ctx, http.StatusOK, user)
}

func (a *AuthController) issueToken(ctx *gin.Context, status int, user models.User) {
	token, expiresAt, err := utils.GenerateToken(user.ID, user.Username, utils.TokenTTL())
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}
	utils.Respond(ctx, status, 0, "success", gin.H{
		"token":      token,
		"expires_at": expiresAt.UTC(),
		"user":       user,
	})
}

// Logout revokes the current token until it expires.
func (a *AuthController) Logout(ctx *gin.Context) {
	v, ok := ctx.Get(middleware.ContextClaimsKey)
	claims, _ := v.(*utils.Claims)
	if !ok || claims == nil {
		utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
		return
	}

	expiresAt := time.Now().Add(utils.TokenTTL())
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	utils.RevokeToken(claims.ID, expiresAt)
	utils.Success(ctx, gin.H{"message": "logged out"})
}

// Me returns the current authenticated user's information.
func (a *AuthController) Me(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}

	utils.Success(ctx, user)
}

// UpdateProfile lets the authenticated user change username, email and avatar.
// Absent fields are left untouched.
func (a *AuthController) UpdateProfile(ctx *gin.Context) {
	userID, ok := currentUserID(ctx)
	if !ok {
		return
	}

	var req struct {
		Username  *string `json:"username" binding:"omitempty,min=3,max=32"`
		Email     *string `json:"email" binding:"omitempty,email"`
		AvatarURL *string `json:"avatar_url" binding:"omitempty,url,max=512"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	var user models.User
	if err := a.db.First(&user, userID).Error; err != nil {
		utils.Error(ctx, http.StatusNotFound, 40401, "user not found")
		return
	}

	updates := map[string]interface{}{}
	if req.Username != nil {
		name := strings.TrimSpace(*req.Username)
		if !validUsername(name) {
			utils.Error(ctx, http.StatusBadRequest, 40002, "username may only contain letters, digits, '-', '_' and '.'")
			return
		}
		if name != user.Username {
			var count int64
			a.db.Model(&models.User{}).Where("username = ? AND id <> ?", name, user.ID).Count(&count)
			if count > 0 {
				utils.Error(ctx, http.StatusConflict, 40901, "username already exists")
				return
			}
			updates["username"] = name
		}
	}
	if req.Email != nil {
		updates["email"] = strings.TrimSpace(*req.Email)
	}
	if req.AvatarURL != nil {
		avatar := utils.SanitizeText(*req.AvatarURL)
		if avatar != "" && !strings.HasPrefix(avatar, "https://") && !strings.HasPrefix(avatar, "http://") {
			utils.Error(ctx, http.StatusBadRequest, 40031, "avatar_url must be an http(s) URL")
			return
		}
		updates["avatar_url"] = avatar
	}

	if len(updates) > 0 {
		if err := a.db.Model(&user).Updates(updates).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to update profile")
			return
		}
		if err := a.db.First(&user, userID).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50031, "failed to update profile")
			return
		}
	}

	utils.Success(ctx, user)
}

// validUsername allows ASCII letters, digits, '-', '_' and '.'.
func validUsername(s string) bool {
	if l := len(s); l < 3 || l > 32 {
		return false
	}
	for _, r := range s {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '-' || r == '_' || r == '.' {
			continue
		}
		return false
	}
	return true
}
