package controllers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"callalert-backend/models"
	"callalert-backend/services"
	"callalert-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EventController struct {
	db       *gorm.DB
	creds    *services.CredentialService
	calendar *services.CalendarService
}

func NewEventController(db *gorm.DB, creds *services.CredentialService, calendar *services.CalendarService) *EventController {
	return &EventController{db: db, creds: creds, calendar: calendar}
}

type CreateEventInput struct {
	Name        string    `json:"name" binding:"required"`
	Description string    `json:"description"`
	Date        time.Time `json:"date" binding:"required"`
	EndDate     time.Time `json:"endDate" binding:"required"`
	PhoneNumber string    `json:"phoneNumber" binding:"required"`
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	raw, exists := c.Get("userId")
	if !exists {
		return uuid.Nil, false
	}
	str, ok := raw.(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(str)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// CreateEvent inserts the event into the user's primary Google calendar
// first, then persists the local record with the returned provider id so
// the poll loop can match it.
func (e *EventController) CreateEvent(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "User ID not found in context")
		return
	}

	var input CreateEventInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	if !utils.ValidatePhone(input.PhoneNumber) {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid phone number")
		return
	}
	if !input.EndDate.After(input.Date) {
		utils.RespondWithError(c, http.StatusBadRequest, "endDate must be after date")
		return
	}

	var user models.User
	if err := e.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondWithError(c, http.StatusNotFound, "User not found")
		} else {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		}
		return
	}

	ctx := c.Request.Context()
	token, err := e.creds.ValidToken(ctx, userID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNoCredential):
			utils.RespondWithError(c, http.StatusForbidden, "Google account not connected")
		case errors.Is(err, services.ErrCredentialRefreshFailed):
			utils.RespondWithError(c, http.StatusBadGateway, "Google credential refresh failed, please re-authenticate")
		default:
			utils.RespondWithError(c, http.StatusInternalServerError, "Failed to obtain calendar credential")
		}
		return
	}

	providerEvent, err := e.calendar.Insert(ctx, token, services.EventSpec{
		Summary:     input.Name,
		Description: input.Description,
		Start:       input.Date,
		End:         input.EndDate,
	})
	if err != nil || providerEvent.ID == "" {
		utils.RespondWithError(c, http.StatusBadGateway, "Failed to create Google Calendar event")
		return
	}

	event := models.Event{
		UserID:        userID,
		Name:          input.Name,
		Description:   input.Description,
		StartTime:     input.Date,
		EndTime:       input.EndDate,
		PhoneNumber:   input.PhoneNumber,
		Email:         user.Email,
		GoogleEventID: providerEvent.ID,
	}
	if err := e.db.Create(&event).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to save event")
		return
	}

	c.JSON(http.StatusOK, event)
}

// ListEvents returns the user's events newest-first with page/limit
// pagination.
func (e *EventController) ListEvents(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		utils.RespondWithError(c, http.StatusUnauthorized, "User ID not found in context")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit < 1 || limit > 100 {
		limit = 10
	}

	var totalCount int64
	if err := e.db.Model(&models.Event{}).Where("user_id = ?", userID).Count(&totalCount).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to fetch events")
		return
	}

	var events []models.Event
	if err := e.db.Where("user_id = ?", userID).
		Order("start_time DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&events).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to fetch events")
		return
	}

	totalPages := int(math.Ceil(float64(totalCount) / float64(limit)))

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"pagination": gin.H{
			"currentPage": page,
			"totalPages":  totalPages,
			"totalCount":  totalCount,
			"hasNextPage": page < totalPages,
			"hasPrevPage": page > 1,
		},
	})
}
