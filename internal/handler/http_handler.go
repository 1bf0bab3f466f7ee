package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/sync-party/internal/auth"
	"github.com/weiawesome/sync-party/internal/domain"
	"github.com/weiawesome/sync-party/internal/media"
	"github.com/weiawesome/sync-party/internal/party"
	"github.com/weiawesome/sync-party/pkg/log"
	"github.com/weiawesome/sync-party/pkg/middleware"
	"github.com/weiawesome/sync-party/pkg/response"
)

// multipart framing allowance on top of the file itself
const uploadOverhead = 1 << 20

// Handler serves the REST API.
type Handler struct {
	authority *auth.Authority
	sessions  *auth.Middleware
	media     *media.Registry
	parties   *party.Service
	limiter   *middleware.RateLimiter
}

// NewHandler creates the REST handler. limiter guards login and register
// and may be nil.
func NewHandler(authority *auth.Authority, sessions *auth.Middleware, registry *media.Registry, parties *party.Service, limiter *middleware.RateLimiter) *Handler {
	return &Handler{
		authority: authority,
		sessions:  sessions,
		media:     registry,
		parties:   parties,
		limiter:   limiter,
	}
}

// RegisterRoutes registers all REST routes. The engine must already run
// the session Resolve middleware.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api")

	credentials := api.Group("")
	if h.limiter != nil {
		credentials.Use(h.limiter.Handler())
	}
	credentials.POST("/login", h.Login)
	credentials.POST("/register", h.Register)

	api.POST("/logout", h.Logout)

	authed := api.Group("")
	authed.Use(h.sessions.RequireAuth())
	{
		authed.GET("/auth", h.Auth)

		authed.POST("/mediaItem", h.CreateMediaItem)
		authed.PUT("/mediaItem/:id", h.EditMediaItem)
		authed.DELETE("/mediaItem/:id", h.DeleteMediaItem)
		authed.GET("/mediaItem/:id/url", h.MediaItemURL)
		authed.POST("/file", h.UploadFile)

		authed.GET("/party", h.ListParties)
		authed.GET("/party/:id", h.GetParty)
		authed.GET("/party/:id/mediaItems", h.ListPartyMediaItems)
		authed.PUT("/party/:id/active", h.SetPartyActive)
		authed.POST("/party/:id/members", h.AddPartyMember)
		authed.DELETE("/party/:id/members/:userId", h.RemovePartyMember)
	}

	admin := api.Group("")
	admin.Use(h.sessions.RequireAdmin())
	{
		admin.GET("/allMediaItems", h.AllMediaItems)
		admin.POST("/party", h.CreateParty)
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Login opens a session and sets the session cookie.
func (h *Handler) Login(c *gin.Context) {
	ctx := c.Request.Context()
	var req domain.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("invalid login request")
		response.BadRequest(c)
		return
	}

	sess, err := h.authority.Login(ctx, req.Username, req.Password)
	if err != nil {
		fail(c, err, "login")
		return
	}

	h.sessions.SetCookie(c, sess)
	response.JSON(c, http.StatusOK, response.Response{Msg: response.MsgLoginSuccessful, User: sess.Principal})
}

// Register creates a user and logs them in.
func (h *Handler) Register(c *gin.Context) {
	ctx := c.Request.Context()
	var req domain.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("invalid register request")
		response.BadRequest(c)
		return
	}

	p, err := h.authority.Register(ctx, req.Username, req.Password)
	if err != nil {
		fail(c, err, "register")
		return
	}

	sess, err := h.authority.OpenSession(ctx, *p)
	if err != nil {
		fail(c, err, "register session")
		return
	}

	h.sessions.SetCookie(c, sess)
	response.JSON(c, http.StatusCreated, response.Response{Msg: response.MsgRegisterSuccessful, User: p})
}

// Logout always succeeds.
func (h *Handler) Logout(c *gin.Context) {
	if token, err := c.Cookie(auth.CookieName); err == nil {
		h.authority.Logout(c.Request.Context(), token)
	}
	h.sessions.ClearCookie(c)
	response.OK(c, response.MsgLogoutSuccessful)
}

func (h *Handler) Auth(c *gin.Context) {
	response.JSON(c, http.StatusOK, response.Response{Msg: response.MsgAuthenticated, User: auth.PrincipalFrom(c)})
}

func (h *Handler) AllMediaItems(c *gin.Context) {
	items, err := h.media.ListAll(c.Request.Context(), auth.PrincipalFrom(c))
	if err != nil {
		fail(c, err, "list media items")
		return
	}
	response.JSON(c, http.StatusOK, response.Response{Msg: response.MsgFetchingSuccessful, Items: items})
}

func (h *Handler) CreateMediaItem(c *gin.Context) {
	var req domain.CreateMediaItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c)
		return
	}

	item, err := h.media.Create(c.Request.Context(), &req.MediaItem, auth.PrincipalFrom(c), req.PartyID)
	if err != nil {
		fail(c, err, "create media item")
		return
	}
	response.JSON(c, http.StatusCreated, response.Response{Msg: response.MsgMediaItemAdded, Data: item})
}

func (h *Handler) EditMediaItem(c *gin.Context) {
	var patch domain.MediaItemPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c)
		return
	}

	item, err := h.media.Edit(c.Request.Context(), c.Param("id"), &patch, auth.PrincipalFrom(c))
	if err != nil {
		fail(c, err, "edit media item")
		return
	}
	response.JSON(c, http.StatusOK, response.Response{Msg: response.MsgMediaItemEdited, Data: item})
}

func (h *Handler) DeleteMediaItem(c *gin.Context) {
	if err := h.media.Delete(c.Request.Context(), c.Param("id"), auth.PrincipalFrom(c)); err != nil {
		fail(c, err, "delete media item")
		return
	}
	response.OK(c, response.MsgMediaItemDeleted)
}

func (h *Handler) MediaItemURL(c *gin.Context) {
	u, err := h.media.PlaybackURL(c.Request.Context(), c.Param("id"), auth.PrincipalFrom(c))
	if err != nil {
		fail(c, err, "resolve media url")
		return
	}
	response.JSON(c, http.StatusOK, response.Response{Msg: response.MsgFetchingSuccessful, Data: gin.H{"url": u}})
}

// UploadFile accepts multipart fields file, name and partyId.
func (h *Handler) UploadFile(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.media.MaxUploadBytes()+uploadOverhead)

	fh, err := c.FormFile("file")
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Warn().Err(err).Msg("invalid upload request")
		response.BadRequest(c)
		return
	}

	f, err := fh.Open()
	if err != nil {
		fail(c, fmt.Errorf("open upload: %w", err), "upload file")
		return
	}
	defer f.Close()

	up := &domain.Upload{
		PartyID:     c.PostForm("partyId"),
		Name:        c.PostForm("name"),
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
	}
	item, err := h.media.Upload(c.Request.Context(), auth.PrincipalFrom(c), up, f)
	if err != nil {
		fail(c, err, "upload file")
		return
	}
	response.JSON(c, http.StatusCreated, response.Response{Msg: response.MsgFileUploaded, Data: item})
}

func (h *Handler) CreateParty(c *gin.Context) {
	var req domain.CreatePartyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c)
		return
	}

	p, err := h.parties.Create(c.Request.Context(), auth.PrincipalFrom(c), &req)
	if err != nil {
		fail(c, err, "create party")
		return
	}
	response.JSON(c, http.StatusCreated, response.Response{Msg: response.MsgPartyCreated, Data: p})
}

func (h *Handler) ListParties(c *gin.Context) {
	parties, err := h.parties.ListMine(c.Request.Context(), auth.PrincipalFrom(c))
	if err != nil {
		fail(c, err, "list parties")
		return
	}
	response.JSON(c, http.StatusOK, response.Response{Msg: response.MsgFetchingSuccessful, Items: parties})
}

func (h *Handler) GetParty(c *gin.Context) {
	p, err := h.parties.Get(c.Request.Context(), c.Param("id"), auth.PrincipalFrom(c))
	if err != nil {
		fail(c, err, "get party")
		return
	}
	response.JSON(c, http.StatusOK, response.Response{Msg: response.MsgFetchingSuccessful, Data: p})
}

func (h *Handler) ListPartyMediaItems(c *gin.Context) {
	items, err := h.media.ListByParty(c.Request.Context(), c.Param("id"), auth.PrincipalFrom(c))
	if err != nil {
		fail(c, err, "list party media items")
		return
	}
	response.JSON(c, http.StatusOK, response.Response{Msg: response.MsgFetchingSuccessful, Items: items})
}

func (h *Handler) SetPartyActive(c *gin.Context) {
	var req domain.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		response.BadRequest(c)
		return
	}

	p, err := h.parties.SetActive(c.Request.Context(), c.Param("id"), *req.Active, auth.PrincipalFrom(c))
	if err != nil {
		fail(c, err, "set party active")
		return
	}
	response.JSON(c, http.StatusOK, response.Response{Msg: response.MsgPartyUpdated, Data: p})
}

func (h *Handler) AddPartyMember(c *gin.Context) {
	var req domain.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c)
		return
	}

	p, err := h.parties.AddMember(c.Request.Context(), c.Param("id"), &req, auth.PrincipalFrom(c))
	if err != nil {
		fail(c, err, "add party member")
		return
	}
	response.JSON(c, http.StatusOK, response.Response{Msg: response.MsgPartyUpdated, Data: p})
}

func (h *Handler) RemovePartyMember(c *gin.Context) {
	p, err := h.parties.RemoveMember(c.Request.Context(), c.Param("id"), c.Param("userId"), auth.PrincipalFrom(c))
	if err != nil {
		fail(c, err, "remove party member")
		return
	}
	response.JSON(c, http.StatusOK, response.Response{Msg: response.MsgPartyUpdated, Data: p})
}
