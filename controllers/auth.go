package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"callalert-backend/models"
	"callalert-backend/services"
	"callalert-backend/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
	"gorm.io/gorm"
)

type AuthController struct {
	db    *gorm.DB
	creds *services.CredentialService
}

func NewAuthController(db *gorm.DB, creds *services.CredentialService) *AuthController {
	return &AuthController{db: db, creds: creds}
}

type RegisterInput struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Register creates a local account. Calendar polling still requires the
// Google consent flow; registration only establishes the login identity.
func (a *AuthController) Register(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	var existing models.User
	result := a.db.Where("email = ?", input.Email).First(&existing)
	if result.Error == nil {
		utils.RespondWithError(c, http.StatusConflict, "Email already registered")
		return
	} else if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		return
	}

	user := models.User{
		Email:    input.Email,
		Name:     input.Name,
		Password: input.Password, // hashed in BeforeCreate hook
	}
	if err := a.db.Create(&user).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to create user")
		return
	}

	token, err := utils.GenerateToken(user.ID.String())
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Registration successful",
		"token":   token,
		"user": gin.H{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
		},
	})
}

func (a *AuthController) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input")
		return
	}

	var user models.User
	result := a.db.Where("email = ?", strings.TrimSpace(input.Email)).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusUnauthorized, "Invalid credentials")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	if user.Password == "" || !utils.CheckPasswordHash(input.Password, user.Password) {
		utils.RespondWithError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := utils.GenerateToken(user.ID.String())
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	now := time.Now()
	a.db.Model(&user).Update("last_login", &now)

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
		},
	})
}

func (a *AuthController) Me(c *gin.Context) {
	userID, exists := c.Get("userId")
	if !exists {
		utils.RespondWithError(c, http.StatusInternalServerError, "User ID not found in context")
		return
	}

	var user models.User
	if err := a.db.First(&user, "id = ?", userID).Error; err != nil {
		utils.RespondWithError(c, http.StatusUnauthorized, "User not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":        user.ID,
			"email":     user.Email,
			"name":      user.Name,
			"connected": user.RefreshToken != "",
		},
	})
}

// GoogleAuth redirects to the Google consent screen. Offline access plus
// the consent prompt guarantees a refresh token comes back.
func (a *AuthController) GoogleAuth(c *gin.Context) {
	url := a.creds.OAuthConfig().AuthCodeURL(
		"state",
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
	c.Redirect(http.StatusTemporaryRedirect, url)
}

// GoogleCallback exchanges the authorization code, resolves the Google
// identity, and upserts the user with the fresh token pair.
func (a *AuthController) GoogleCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		utils.RespondWithError(c, http.StatusBadRequest, "Authorization code is required")
		return
	}

	ctx := c.Request.Context()
	conf := a.creds.OAuthConfig()

	tokens, err := conf.Exchange(ctx, code)
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Authentication failed")
		return
	}

	svc, err := oauth2api.NewService(ctx, option.WithTokenSource(conf.TokenSource(ctx, tokens)))
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Authentication failed")
		return
	}
	info, err := svc.Userinfo.Get().Do()
	if err != nil || info.Email == "" || info.Name == "" {
		utils.RespondWithError(c, http.StatusBadRequest, "Unable to retrieve user information")
		return
	}

	var user models.User
	err = a.db.Where("email = ?", info.Email).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{
			Email:        info.Email,
			Name:         info.Name,
			AccessToken:  tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
		}
		if err := a.db.Create(&user).Error; err != nil {
			utils.RespondWithError(c, http.StatusInternalServerError, "Failed to save user")
			return
		}
	case err != nil:
		utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		return
	default:
		updates := map[string]interface{}{"access_token": tokens.AccessToken}
		if tokens.RefreshToken != "" {
			updates["refresh_token"] = tokens.RefreshToken
		}
		if err := a.db.Model(&user).Updates(updates).Error; err != nil {
			utils.RespondWithError(c, http.StatusInternalServerError, "Failed to save user")
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Logged in",
		"userId":  user.ID,
		"email":   user.Email,
		"name":    user.Name,
	})
}
