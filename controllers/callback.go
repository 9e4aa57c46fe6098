package controllers

import (
	"log"
	"net/http"
	"time"

	"callalert-backend/models"
	"callalert-backend/ws"

	"github.com/gin-gonic/gin"
)

type CallbackController struct {
	hub *ws.Hub
}

func NewCallbackController(hub *ws.Hub) *CallbackController {
	return &CallbackController{hub: hub}
}

// TwilioStatusCallback receives call-progress webhooks and forwards them
// to the observers registered with the destination number. Always answers
// 200 so the provider does not retry.
func (t *CallbackController) TwilioStatusCallback(c *gin.Context) {
	update := models.CallStatusUpdate{
		CallSid:    c.PostForm("CallSid"),
		CallStatus: c.PostForm("CallStatus"),
		From:       c.PostForm("From"),
		To:         c.PostForm("To"),
		Timestamp:  time.Now().UTC(),
	}

	log.Printf("Twilio callback: CallSid=%s Status=%s", update.CallSid, update.CallStatus)

	n := t.hub.NotifyCallStatus(update)
	if n > 0 {
		log.Printf("Call status forwarded to %d observer(s) for %s", n, update.To)
	}

	c.Status(http.StatusOK)
}
