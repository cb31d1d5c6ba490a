// Package console is the operator's HTTP API: the client list, conversation
// activation, replies, history and a live event stream.
package console

import (
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/supportdesk/host/internal/auth"
	"github.com/supportdesk/host/internal/chat"
	apperrors "github.com/supportdesk/host/internal/errors"
	"github.com/supportdesk/host/internal/session"
)

// Subscriber provides the live event feed. session.Hub implements it.
type Subscriber interface {
	Subscribe() (<-chan session.Event, func())
}

// API handles operator requests.
type API struct {
	router *session.Router
	events Subscriber
}

// NewAPI creates the operator API. events may be nil, in which case
// /api/events is not served.
func NewAPI(router *session.Router, events Subscriber) *API {
	return &API{router: router, events: events}
}

// requestValidator plugs go-playground/validator into echo's c.Validate.
type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// New returns an echo instance with the API routes registered. It is an
// http.Handler suitable for mounting under /api/.
func New(api *API) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: validator.New()}
	api.RegisterRoutes(e)
	return e
}

// RegisterRoutes registers the API routes with e.
func (a *API) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/clients", a.ListClients)
	e.POST("/api/activate/:identity", a.Activate)
	e.POST("/api/deactivate", a.Deactivate)
	e.POST("/api/reply/:identity", a.Reply)
	e.GET("/api/history/:identity", a.History)
	if a.events != nil {
		e.GET("/api/events", a.Events)
	}
}

// ClientView is one row of GET /api/clients.
type ClientView struct {
	Identity string `json:"identity"`
	Label    string `json:"label"`
	Online   bool   `json:"online"`
	Unread   bool   `json:"unread"`
	Active   bool   `json:"active"`
}

// ListClients returns connected and unread identities.
// GET /api/clients
func (a *API) ListClients(c echo.Context) error {
	active := a.router.Active()
	views := lo.Map(a.router.Clients(), func(s session.ClientStatus, _ int) ClientView {
		return ClientView{
			Identity: s.Identity,
			Label:    s.Label(),
			Online:   s.Online,
			Unread:   s.Unread,
			Active:   s.Identity == active,
		}
	})
	return c.JSON(http.StatusOK, map[string]interface{}{
		"active":  active,
		"clients": views,
	})
}

// Activate opens a conversation and returns the messages drained from its inbox.
// POST /api/activate/:identity
func (a *API) Activate(c echo.Context) error {
	identity := c.Param("identity")
	if err := auth.ValidateIdentity(identity); err != nil {
		return writeError(c, err)
	}

	drained := a.router.Activate(identity)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"identity": identity,
		"messages": drained,
	})
}

// Deactivate closes the open conversation.
// POST /api/deactivate
func (a *API) Deactivate(c echo.Context) error {
	a.router.Deactivate()
	return c.NoContent(http.StatusNoContent)
}

// ReplyRequest is the body of POST /api/reply/:identity.
type ReplyRequest struct {
	Body string `json:"body" validate:"required,max=524288"`
}

// Reply sends an operator reply to a connected client.
// POST /api/reply/:identity
func (a *API) Reply(c echo.Context) error {
	identity := c.Param("identity")

	var req ReplyRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, apperrors.InvalidMessage("invalid request body"))
	}
	if err := c.Validate(&req); err != nil {
		return writeError(c, apperrors.InvalidField("body", err))
	}

	if err := a.router.SendReply(identity, req.Body); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":   true,
		"sent": chat.ReplyPrefix + req.Body,
	})
}

// History returns every logged message for an identity, oldest first.
// GET /api/history/:identity
func (a *API) History(c echo.Context) error {
	identity := c.Param("identity")

	msgs, err := a.router.QueryHistory(identity)
	if err != nil {
		log.Printf("console: history for %s failed: %v", identity, err)
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"identity": identity,
		"messages": msgs,
	})
}

// writeError renders err as {"error": code, "message": msg} with a status
// chosen from its code.
func writeError(c echo.Context, err error) error {
	code, msg := apperrors.ToCodeAndMessage(err)
	return c.JSON(statusFor(code), map[string]string{
		"error":   code,
		"message": msg,
	})
}

func statusFor(code string) int {
	switch code {
	case apperrors.CodeDeliveryClientOffline, apperrors.CodeStorageNotFound:
		return http.StatusNotFound
	case apperrors.CodeServerInvalidMessage, apperrors.CodeFrameInvalidField,
		apperrors.CodeFrameParseFailed, apperrors.CodeAuthIdentity:
		return http.StatusBadRequest
	case apperrors.CodeDeliverySendFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
