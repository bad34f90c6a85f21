package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"looprec/backend/internal/actionlog"
	"looprec/backend/internal/models"
	"looprec/backend/internal/recorder"
	"looprec/backend/internal/synth"
	"looprec/backend/pkg/database"
	"looprec/backend/pkg/response"
)

// ScriptFilename is the name generated scripts are downloaded under.
const ScriptFilename = "selenium_script.py"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ScriptOptions holds the defaults for generated scripts. SetupRoutes fills
// it from the script config section.
var ScriptOptions synth.Options

// Logger is used by handlers that outlive the request, like the websocket.
var Logger = zap.NewNop()

type sessionRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

func StartRecording(c *gin.Context) {
	var req struct {
		TargetURL string `json:"target_url" binding:"required,url"`
		DeviceID  uint   `json:"device_id"`
		Device    string `json:"device"`
		Width     int    `json:"width" binding:"omitempty,min=1"`
		Height    int    `json:"height" binding:"omitempty,min=1"`
		UserAgent string `json:"user_agent"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	deviceInfo := recorder.DeviceInfo{
		Name:      req.Device,
		Width:     req.Width,
		Height:    req.Height,
		UserAgent: req.UserAgent,
	}
	if req.DeviceID != 0 {
		device, err := database.LookupDevice(req.DeviceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				response.NotFound(c, "device not found")
			} else {
				response.InternalServerError(c, "failed to load device")
			}
			return
		}
		deviceInfo = recorder.DeviceInfo{
			Name:      device.Name,
			Width:     device.Width,
			Height:    device.Height,
			UserAgent: device.UserAgent,
		}
	}

	sessionID := uuid.New().String()

	if _, err := recorder.Manager.StartRecording(c.Request.Context(), sessionID, req.TargetURL, deviceInfo); err != nil {
		response.InternalServerError(c, "failed to start recording: "+err.Error())
		return
	}

	response.SuccessWithMessage(c, "recording started", gin.H{
		"session_id": sessionID,
	})
}

func StopRecording(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	err := recorder.Manager.StopRecording(c.Request.Context(), req.SessionID)
	switch {
	case errors.Is(err, recorder.ErrSessionNotFound):
		response.NotFound(c, "recording session not found")
		return
	case errors.Is(err, recorder.ErrNotRecording):
		response.BadRequest(c, err.Error())
		return
	case err != nil:
		response.InternalServerError(c, "failed to stop recording: "+err.Error())
		return
	}

	response.SuccessWithMessage(c, "recording stopped", nil)
}

// lookupSession resolves the session_id query parameter, writing the error
// response itself when it cannot.
func lookupSession(c *gin.Context) (*recorder.Session, bool) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		response.BadRequest(c, "session_id is required")
		return nil, false
	}
	session, ok := recorder.Manager.Get(sessionID)
	if !ok {
		response.NotFound(c, "recording session not found")
		return nil, false
	}
	return session, true
}

func GetRecordingStatus(c *gin.Context) {
	session, ok := lookupSession(c)
	if !ok {
		return
	}

	record := session.Record()
	response.Success(c, gin.H{
		"is_recording": record.Recording,
		"base_url":     record.BaseURL,
		"actions":      nonNil(record.Actions),
		"loop_state":   session.LoopState().Display(),
		"loop_subject": session.LoopSubject(),
	})
}

// GetRecordingActions returns the action log as a bare array.
func GetRecordingActions(c *gin.Context) {
	session, ok := lookupSession(c)
	if !ok {
		return
	}
	response.Success(c, nonNil(session.Actions()))
}

// ExportRecordingActions downloads the action log in its wire form.
func ExportRecordingActions(c *gin.Context) {
	session, ok := lookupSession(c)
	if !ok {
		return
	}
	data, err := actionlog.Encode(session.Record())
	if err != nil {
		response.InternalServerError(c, err.Error())
		return
	}
	c.Header("Content-Disposition", `attachment; filename="actions.json"`)
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func ClearRecordingActions(c *gin.Context) {
	session, ok := lookupSession(c)
	if !ok {
		return
	}
	session.Clear()
	response.SuccessWithMessage(c, "actions cleared", nil)
}

// ToggleTableLoop advances the table-loop control of a recording session.
func ToggleTableLoop(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	session, ok := recorder.Manager.Get(req.SessionID)
	if !ok {
		response.NotFound(c, "recording session not found")
		return
	}

	state, err := session.Toggle()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, state.Display())
}

func GetTableLoop(c *gin.Context) {
	session, ok := lookupSession(c)
	if !ok {
		return
	}
	response.Success(c, gin.H{
		"display": session.LoopState().Display(),
		"subject": session.LoopSubject(),
	})
}

// DownloadScript compiles the session's log into a Selenium script.
func DownloadScript(c *gin.Context) {
	session, ok := lookupSession(c)
	if !ok {
		return
	}
	opts, err := scriptOptions(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Script(c, ScriptFilename, synth.CompileRecord(session.Record(), opts))
}

func SaveRecording(c *gin.Context) {
	var req struct {
		SessionID   string `json:"session_id" binding:"required"`
		Name        string `json:"name" binding:"required,max=200"`
		Description string `json:"description" binding:"max=1000"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	session, ok := recorder.Manager.Get(req.SessionID)
	if !ok {
		response.NotFound(c, "recording session not found")
		return
	}
	if session.Recording() {
		response.BadRequest(c, "stop the recording before saving it")
		return
	}
	record := session.Record()
	if len(record.Actions) == 0 {
		response.BadRequest(c, "no actions were recorded")
		return
	}

	recording, err := models.NewRecording(req.Name, req.Description, req.SessionID, record)
	if err != nil {
		response.InternalServerError(c, "failed to encode recording: "+err.Error())
		return
	}
	if err := database.Recordings.Create(c.Request.Context(), recording); err != nil {
		response.InternalServerError(c, "failed to save recording: "+err.Error())
		return
	}

	if err := recorder.Manager.Remove(req.SessionID); err != nil {
		Logger.Warn("Failed to release saved session", zap.String("session", req.SessionID), zap.Error(err))
	}

	response.SuccessWithMessage(c, "recording saved", recording)
}

func RecordingWebSocket(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	stream, exists := recorder.Manager.Stream(sessionID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "recording session not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		Logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	// server read/write timeouts must not apply to the long-lived stream
	_ = conn.UnderlyingConn().SetDeadline(time.Time{})

	stream.Subscribe(conn)
	defer stream.Unsubscribe(conn)

	// the client only listens; reading detects the disconnect
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				Logger.Debug("WebSocket read error", zap.String("session", sessionID), zap.Error(err))
			}
			return
		}
	}
}

func nonNil(actions []actionlog.Action) []actionlog.Action {
	if actions == nil {
		return []actionlog.Action{}
	}
	return actions
}
