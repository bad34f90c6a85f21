package handlers

import (
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"looprec/backend/internal/actionlog"
	"looprec/backend/internal/synth"
	"looprec/backend/pkg/database"
	"looprec/backend/pkg/response"
)

// maxLogSize bounds the action log accepted by CompileActions.
const maxLogSize = 8 << 20

type scriptQuery struct {
	BaseURL    string `form:"base_url"`
	Browser    string `form:"browser" binding:"omitempty,oneof=chrome firefox edge safari Chrome Firefox Edge Safari"`
	Timeout    int    `form:"timeout" binding:"omitempty,min=1"`
	MaxRetries int    `form:"max_retries" binding:"omitempty,min=1"`
	MaxPages   int    `form:"max_pages" binding:"omitempty,min=1"`
}

// scriptOptions layers query overrides on top of ScriptOptions.
func scriptOptions(c *gin.Context) (synth.Options, error) {
	var q scriptQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return synth.Options{}, err
	}
	opts := ScriptOptions
	if q.BaseURL != "" {
		opts.BaseURL = q.BaseURL
	}
	if q.Browser != "" {
		opts.Browser = q.Browser
	}
	if q.Timeout > 0 {
		opts.Timeout = q.Timeout
	}
	if q.MaxRetries > 0 {
		opts.MaxRetries = q.MaxRetries
	}
	if q.MaxPages > 0 {
		opts.MaxPages = q.MaxPages
	}
	return opts, nil
}

// CompileActions compiles a posted action log, either a record object or a
// bare array, and returns the script with the synthesizer's warnings.
func CompileActions(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxLogSize))
	if err != nil {
		response.BadRequest(c, "failed to read body: "+err.Error())
		return
	}
	record, err := actionlog.Decode(body)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	opts, err := scriptOptions(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	program := synth.BuildRecord(record)
	script := synth.Render(program, opts)

	if c.Query("download") == "true" {
		response.Script(c, ScriptFilename, script)
		return
	}
	warnings := program.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	response.Success(c, gin.H{
		"script":   script,
		"warnings": warnings,
		"loops":    len(program.Loops()),
	})
}

func GetRecordings(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	recordings, total, err := database.Recordings.List(c.Request.Context(), page, pageSize)
	if err != nil {
		response.InternalServerError(c, "failed to list recordings")
		return
	}

	response.Page(c, recordings, total, page, pageSize)
}

// GetRecordingScript compiles a saved recording.
func GetRecordingScript(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}

	recording, err := database.Recordings.Get(c.Request.Context(), uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "recording not found")
		} else {
			response.InternalServerError(c, "failed to load recording")
		}
		return
	}

	record, err := recording.GetRecord()
	if err != nil {
		response.InternalServerError(c, err.Error())
		return
	}
	opts, err := scriptOptions(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Script(c, ScriptFilename, synth.CompileRecord(record, opts))
}
