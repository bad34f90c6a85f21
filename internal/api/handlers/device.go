package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"looprec/backend/pkg/database"
	"looprec/backend/pkg/response"
)

// GetDevices lists the viewport presets a recording can be started with.
func GetDevices(c *gin.Context) {
	devices, err := database.ListDevices()
	if err != nil {
		response.InternalServerError(c, "failed to list devices")
		return
	}

	response.Success(c, devices)
}

func GetDevice(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "invalid device id")
		return
	}

	device, err := database.LookupDevice(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "device not found")
		} else {
			response.InternalServerError(c, "failed to load device")
		}
		return
	}

	response.Success(c, device)
}
