package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Reason keys returned in the msg field. Clients translate them.
const (
	MsgLoginSuccessful     = "loginSuccessful"
	MsgLogoutSuccessful    = "logoutSuccessful"
	MsgRegisterSuccessful  = "registerSuccessful"
	MsgAuthenticated       = "authenticated"
	MsgFetchingSuccessful  = "fetchingSuccessful"
	MsgMediaItemAdded      = "mediaItemAddSuccessful"
	MsgMediaItemEdited     = "mediaItemEditSuccessful"
	MsgMediaItemDeleted    = "mediaItemDeleteSuccessful"
	MsgFileUploaded        = "fileUploadSuccessful"
	MsgPartyCreated        = "partyCreateSuccessful"
	MsgPartyUpdated        = "partyUpdateSuccessful"
	MsgValidationError     = "validationError"
	MsgNotAuthenticated    = "notAuthenticated"
	MsgNotAuthorized       = "notAuthorized"
	MsgNotFound            = "notFound"
	MsgInvalidCredentials  = "invalidCredentials"
	MsgDuplicateUsername   = "duplicateUsername"
	MsgConflict            = "conflict"
	MsgRateLimited         = "rateLimited"
	MsgError               = "error"
)

// Response is the envelope for every JSON reply.
type Response struct {
	Success bool        `json:"success"`
	Msg     string      `json:"msg,omitempty"`
	User    interface{} `json:"user,omitempty"`
	Items   interface{} `json:"items,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// OK sends 200 with a reason key.
func OK(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, Response{Success: true, Msg: msg})
}

// JSON sends a successful envelope with the given status.
func JSON(c *gin.Context, status int, body Response) {
	body.Success = true
	c.JSON(status, body)
}

// Error sends a failed envelope.
func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, Response{Success: false, Msg: msg})
}

// Abort sends a failed envelope and stops the handler chain.
func Abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Response{Success: false, Msg: msg})
}

// BadRequest rejects a malformed body.
func BadRequest(c *gin.Context) { Error(c, http.StatusBadRequest, MsgValidationError) }
