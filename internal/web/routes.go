package web

import (
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/zulandar/quickdesk/internal/api"
	"github.com/zulandar/quickdesk/internal/app"
	"github.com/zulandar/quickdesk/internal/models"
	"github.com/zulandar/quickdesk/internal/notify"
	"github.com/zulandar/quickdesk/internal/render"
	"github.com/zulandar/quickdesk/internal/tickets"
)

// maxAttachmentBytes caps the multipart form read for ticket creation.
const maxAttachmentBytes = 10 << 20

type handlers struct {
	ctrl *app.Controller
	html *render.HTML
	log  zerolog.Logger
}

// registerRoutes sets up all UI routes on the Gin router.
func registerRoutes(router *gin.Engine, h *handlers) {
	staticFS, _ := fs.Sub(assetsFS, "assets")
	router.StaticFS("/static", http.FS(staticFS))

	router.GET("/", h.index)
	router.POST("/login", h.login)
	router.POST("/register", h.register)
	router.POST("/logout", h.logout)

	authed := router.Group("/", h.requireSession)
	authed.GET("/tickets", h.grid)
	authed.GET("/tickets/:id", h.detail)
	authed.GET("/stats", h.stats)

	// Mutations report a missing token through the alert banner.
	router.POST("/tickets", h.createTicket)
	router.POST("/tickets/:id/status", h.changeStatus)
	router.POST("/tickets/:id/reply", h.addReply)

	router.GET("/api/events", handleEvents(h.ctrl.Hub))
}

// pageData is the model for layout.html.
type pageData struct {
	Session     *models.Session
	Welcome     string
	RoleLabel   string
	Alert       *notify.Notification
	AuthTab     string
	AuthDisplay string
	Grid        template.HTML
	Stats       tickets.Stats
	Criteria    tickets.Criteria
	Statuses    []models.Status
	Categories  []string
}

func (h *handlers) index(c *gin.Context) {
	data := pageData{
		AuthTab:     "login",
		AuthDisplay: "flex",
		Statuses:    models.AllStatuses,
	}
	if c.Query("tab") == "register" {
		data.AuthTab = "register"
	}
	if n, ok := h.ctrl.Hub.Current(); ok {
		data.Alert = &n
	}

	sess := h.ctrl.Session.Current()
	if sess == nil {
		c.HTML(http.StatusOK, "layout.html", data)
		return
	}

	data.Session = sess
	data.Welcome = "Welcome back, " + sess.User.Name + "!"
	data.RoleLabel = sess.User.Role.Label()
	data.AuthDisplay = "none"

	filtered := h.ctrl.Tickets.Filtered()
	if hasCriteria(c) {
		crit, err := bindCriteria(c)
		if err != nil {
			c.String(http.StatusBadRequest, err.Error())
			return
		}
		filtered = h.ctrl.Tickets.ApplyFilter(crit)
	}
	grid, err := h.html.GridHTML(render.Grid(filtered, sess.User))
	if err != nil {
		h.log.Error().Err(err).Msg("render grid")
		c.String(http.StatusInternalServerError, "render failed")
		return
	}
	data.Grid = grid
	data.Stats = h.ctrl.Tickets.Stats(sess.User.ID)
	data.Criteria = h.ctrl.Tickets.Criteria()
	data.Categories = h.ctrl.Tickets.Categories()
	c.HTML(http.StatusOK, "layout.html", data)
}

func (h *handlers) login(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")
	// The outcome reaches the user through the alert banner.
	h.ctrl.Login(c.Request.Context(), email, password)
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *handlers) register(c *gin.Context) {
	role := models.Role(c.DefaultPostForm("role", string(models.RoleUser)))
	err := h.ctrl.Register(c.Request.Context(),
		strings.TrimSpace(c.PostForm("name")),
		strings.TrimSpace(c.PostForm("email")),
		c.PostForm("password"),
		role,
	)
	if err != nil {
		c.Redirect(http.StatusSeeOther, "/?tab=register")
		return
	}
	c.Redirect(http.StatusSeeOther, "/?tab=login")
}

func (h *handlers) logout(c *gin.Context) {
	if err := h.ctrl.Logout(c.Request.Context()); err != nil {
		h.log.Error().Err(err).Msg("logout: clear persisted session")
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// requireSession rejects fragment requests when nobody is logged in.
func (h *handlers) requireSession(c *gin.Context) {
	sess := h.ctrl.Session.Current()
	if sess == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": api.NoTokenMessage})
		return
	}
	c.Set("session", sess)
	c.Next()
}

func sessionFrom(c *gin.Context) *models.Session {
	return c.MustGet("session").(*models.Session)
}

func (h *handlers) grid(c *gin.Context) {
	sess := sessionFrom(c)
	crit, err := bindCriteria(c)
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	filtered := h.ctrl.Tickets.ApplyFilter(crit)
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := h.html.Grid(c.Writer, render.Grid(filtered, sess.User)); err != nil {
		h.log.Error().Err(err).Msg("render grid")
	}
}

func (h *handlers) detail(c *gin.Context) {
	sess := sessionFrom(c)
	t, ok := h.ctrl.Tickets.Find(models.ID(c.Param("id")))
	if !ok {
		c.String(http.StatusNotFound, "ticket not found")
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := h.html.Detail(c.Writer, render.Detail(t, sess.User)); err != nil {
		h.log.Error().Err(err).Msg("render detail")
	}
}

func (h *handlers) stats(c *gin.Context) {
	sess := sessionFrom(c)
	c.JSON(http.StatusOK, h.ctrl.Tickets.Stats(sess.User.ID))
}

func (h *handlers) createTicket(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAttachmentBytes)
	nt := api.NewTicket{
		Subject:     strings.TrimSpace(c.PostForm("subject")),
		Category:    c.PostForm("category"),
		Description: strings.TrimSpace(c.PostForm("description")),
		Priority:    c.PostForm("priority"),
	}
	if fh, err := c.FormFile("attachment"); err == nil && fh.Size > 0 {
		f, err := fh.Open()
		if err != nil {
			h.ctrl.Hub.Error(c.Request.Context(), "Could not read attachment")
			c.Redirect(http.StatusSeeOther, "/")
			return
		}
		defer f.Close()
		nt.Attachment = &api.Attachment{Filename: fh.Filename, Content: f}
	}
	_ = h.ctrl.CreateTicket(c.Request.Context(), nt)
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *handlers) changeStatus(c *gin.Context) {
	status, err := models.ParseStatus(c.PostForm("status"))
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	_ = h.ctrl.ChangeStatus(c.Request.Context(), models.ID(c.Param("id")), status)
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *handlers) addReply(c *gin.Context) {
	_ = h.ctrl.AddReply(c.Request.Context(), models.ID(c.Param("id")), strings.TrimSpace(c.PostForm("message")))
	c.Redirect(http.StatusSeeOther, "/")
}

func hasCriteria(c *gin.Context) bool {
	q := c.Request.URL.Query()
	return q.Has("status") || q.Has("category") || q.Has("search")
}

// bindCriteria reads the filter from the query string. The status may be
// given in display form or as a slug.
func bindCriteria(c *gin.Context) (tickets.Criteria, error) {
	var raw struct {
		Status   string `form:"status"`
		Category string `form:"category"`
		Search   string `form:"search"`
	}
	if err := c.ShouldBindQuery(&raw); err != nil {
		return tickets.Criteria{}, err
	}
	crit := tickets.Criteria{Category: raw.Category, Search: strings.TrimSpace(raw.Search)}
	if raw.Status != "" {
		s, err := models.ParseStatus(raw.Status)
		if err != nil {
			return tickets.Criteria{}, err
		}
		crit.Status = s
	}
	return crit, nil
}
