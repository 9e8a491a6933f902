package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/onhand_api/internal/utils"
)

// errorStatus maps service sentinels to HTTP status codes. The sentinel text
// is the API error code.
var errorStatus = []struct {
	err    error
	status int
}{
	{utils.ErrValidation, http.StatusBadRequest},
	{utils.ErrInvalidToken, http.StatusUnauthorized},
	{utils.ErrInvalidCredentials, http.StatusUnauthorized},
	{utils.ErrAccountDisabled, http.StatusForbidden},
	{utils.ErrForbidden, http.StatusForbidden},
	{utils.ErrEmailTaken, http.StatusConflict},
	{utils.ErrCategoryNotFound, http.StatusNotFound},
	{utils.ErrProductNotFound, http.StatusNotFound},
	{utils.ErrCredentialNotFound, http.StatusNotFound},
	{utils.ErrOrderNotFound, http.StatusNotFound},
	{utils.ErrProductUnavailable, http.StatusConflict},
	{utils.ErrProductInUse, http.StatusConflict},
	{utils.ErrCredentialAssigned, http.StatusConflict},
	{utils.ErrInvalidStatus, http.StatusConflict},
	{utils.ErrInvalidStatusTransition, http.StatusConflict},
	{utils.ErrOutOfStock, http.StatusConflict},
	{utils.ErrAlreadyDelivered, http.StatusConflict},
	{utils.ErrReceiptTooLarge, http.StatusRequestEntityTooLarge},
	{utils.ErrReceiptType, http.StatusUnsupportedMediaType},
	{utils.ErrStorageDisabled, http.StatusServiceUnavailable},
}

// respondError writes err in the standard envelope. Unknown errors are
// logged and reported as INTERNAL_ERROR without their text.
func respondError(c *gin.Context, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			code := e.err.Error()
			msg := strings.TrimPrefix(err.Error(), code+": ")
			utils.Error(c, e.status, code, msg)
			return
		}
	}
	log.Error().Err(err).Str("path", c.FullPath()).Str("request_id", c.GetString("request_id")).Msg("request failed")
	utils.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
}

func bindError(c *gin.Context, err error) {
	utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body: "+err.Error())
}

// paramID parses a positive integer path parameter, writing a 400 on failure.
func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid "+name)
		return 0, false
	}
	return id, true
}

// queryInt returns an integer query parameter, or 0 when absent or invalid.
func queryInt(c *gin.Context, key string) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return v
}
