// Package httpapi is the thin gin adapter exposing the agent execution
// core over HTTP (spec §1/§6 outer surface, carried as ambient/domain
// wiring so the core has a real caller): session CRUD, a chat endpoint
// that streams events back over Server-Sent Events, ticket CRUD, and
// SSH node CRUD/approval endpoints. Grounded on the teacher's
// cmd/tarsy/main.go gin bootstrap and pkg/api-style handler shape, with
// github.com/gin-contrib/sse filling the streaming role
// original_source's FastAPI StreamingResponse plays for GET
// /sessions/{id}/events.
package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"github.com/opsforge/agentcore/pkg/apperr"
	"github.com/opsforge/agentcore/pkg/coordinator"
	"github.com/opsforge/agentcore/pkg/model"
	"github.com/opsforge/agentcore/pkg/sshnode"
	"github.com/opsforge/agentcore/pkg/ticketsvc"
)

// userIDHeader is the header this deployment trusts to carry the
// caller's identity; authentication itself is out of scope (spec §1).
const userIDHeader = "X-User-Id"

// Server wires the Agent Coordinator, Ticket Dispatcher and SSH node
// service to gin routes.
type Server struct {
	coordinator *coordinator.Coordinator
	tickets     *ticketsvc.Dispatcher
	sshnodes    *sshnode.Service
	router      *gin.Engine
}

// New builds a Server and registers every route.
func New(coord *coordinator.Coordinator, tickets *ticketsvc.Dispatcher, sshnodes *sshnode.Service) *Server {
	s := &Server{coordinator: coord, tickets: tickets, sshnodes: sshnodes, router: gin.New()}
	s.router.Use(gin.Recovery())
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for http.Server to serve.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	sessions := s.router.Group("/sessions")
	sessions.POST("", s.createSession)
	sessions.POST("/:id/chat", s.chat)
	sessions.POST("/:id/stop", s.stopSession)

	tickets := s.router.Group("/tickets")
	tickets.POST("", s.createTicket)
	tickets.GET("", s.listTickets)
	tickets.GET("/:id", s.getTicket)
	tickets.POST("/:id/reply", s.replyTicket)

	nodes := s.router.Group("/ssh-nodes")
	nodes.POST("", s.createNode)
	nodes.GET("", s.listNodes)
	nodes.DELETE("/:id", s.deleteNode)
	nodes.POST("/:id/approvals/:approvalId/approve", s.approveCommand)
	nodes.POST("/:id/approvals/:approvalId/reject", s.rejectCommand)
}

func userID(c *gin.Context) string { return c.GetHeader(userIDHeader) }

// writeError maps an apperr.Kind to its HTTP status, the one place this
// package knows HTTP exists (pkg/apperr's components never do).
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindBadRequest, apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindUnauthorized:
		status = http.StatusUnauthorized
	case apperr.KindNotFound:
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) createSession(c *gin.Context) {
	session, err := s.coordinator.CreateSession(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

type chatRequest struct {
	Message     string                  `json:"message"`
	Attachments []coordinator.Attachment `json:"attachments"`
	LastEventID string                  `json:"last_event_id"`
}

// chat streams the session's events back as Server-Sent Events, one
// per emitted model.Event, until a terminal event closes the stream —
// the SSE analogue of original_source's StreamingResponse over an
// async generator (spec §4.6).
func (s *Server) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, http.ErrBodyNotAllowed) {
		// A body-less resubscribe/catch-up call is valid; only a
		// malformed non-empty body is an error.
		if c.Request.ContentLength > 0 {
			writeError(c, apperr.BadRequest("malformed request body: %s", err))
			return
		}
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	chatReq := coordinator.ChatRequest{
		SessionID:   c.Param("id"),
		UserID:      userID(c),
		Message:     req.Message,
		Attachments: req.Attachments,
		LastEventID: req.LastEventID,
	}
	err := s.coordinator.Chat(c.Request.Context(), chatReq, func(ev model.Event) error {
		return sse.Encode(c.Writer, sse.Event{Id: ev.ID, Event: string(ev.Type), Data: ev})
	})
	if err != nil {
		sse.Encode(c.Writer, sse.Event{Event: "error", Data: gin.H{"error": err.Error()}}) //nolint:errcheck // best-effort, connection may already be gone
	}
}

func (s *Server) stopSession(c *gin.Context) {
	if err := s.coordinator.StopSession(c.Request.Context(), c.Param("id"), userID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) createTicket(c *gin.Context) {
	var in ticketsvc.CreateTicketInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, apperr.BadRequest("malformed request body: %s", err))
		return
	}
	ticket, err := s.tickets.CreateTicket(c.Request.Context(), userID(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

func (s *Server) listTickets(c *gin.Context) {
	tickets, err := s.tickets.ListTickets(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tickets)
}

func (s *Server) getTicket(c *gin.Context) {
	ticket, err := s.tickets.GetTicket(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (s *Server) replyTicket(c *gin.Context) {
	var body struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, apperr.BadRequest("malformed request body: %s", err))
		return
	}
	ticket, err := s.tickets.ReplyTicket(c.Request.Context(), c.Param("id"), userID(c), body.Message)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (s *Server) createNode(c *gin.Context) {
	var node model.SSHNode
	if err := c.ShouldBindJSON(&node); err != nil {
		writeError(c, apperr.BadRequest("malformed request body: %s", err))
		return
	}
	created, err := s.sshnodes.CreateNode(c.Request.Context(), userID(c), &node)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) listNodes(c *gin.Context) {
	nodes, err := s.sshnodes.ListNodes(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nodes)
}

func (s *Server) deleteNode(c *gin.Context) {
	if err := s.sshnodes.DeleteNode(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) approveCommand(c *gin.Context) {
	approval, log, err := s.sshnodes.Approve(c.Request.Context(), userID(c), c.Param("approvalId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"approval": approval, "log": log})
}

func (s *Server) rejectCommand(c *gin.Context) {
	approval, err := s.sshnodes.Reject(c.Request.Context(), c.Param("approvalId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, approval)
}
