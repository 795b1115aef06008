package httpapi

import (
	"net/http"

	"github.com/donets/jtrack/internal/domain"
	"github.com/donets/jtrack/internal/protocol"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	sync SyncAPI
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Pull(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("cannot read body"))
		return
	}
	req, err := protocol.DecodePullRequest(body)
	if err != nil {
		writeError(c, err)
		return
	}

	resp, err := h.sync.Pull(c.Request.Context(), principalFrom(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Push(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("cannot read body"))
		return
	}
	req, err := protocol.DecodePushRequest(body)
	if err != nil {
		writeError(c, err)
		return
	}

	resp, err := h.sync.Push(c.Request.Context(), principalFrom(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) AttachmentURL(c *gin.Context) {
	url, err := h.sync.AttachmentDownloadURL(c.Request.Context(), principalFrom(c), c.Param("locationId"), c.Param("attachmentId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, protocol.AttachmentURLResponse{URL: url})
}

type transitionsQuery struct {
	Current string `form:"current" binding:"required,oneof=New Scheduled InProgress Done Invoiced Paid Canceled"`
	Role    string `form:"role" binding:"required,oneof=Technician Manager Owner"`
	Next    string `form:"next" binding:"omitempty,oneof=New Scheduled InProgress Done Invoiced Paid Canceled"`
	System  bool   `form:"system"`
}

type TransitionsResponse struct {
	Current domain.Status            `json:"current"`
	Role    domain.Role              `json:"role"`
	Allowed []domain.Status          `json:"allowed"`
	Result  *domain.TransitionResult `json:"result,omitempty"`
}

// StatusTransitions lists the statuses a role may move a ticket to and,
// with ?next=, validates one transition.
func (h *Handler) StatusTransitions(c *gin.Context) {
	var q transitionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: bindingFields(err)})
		return
	}

	current, role := domain.Status(q.Current), domain.Role(q.Role)
	opt := domain.SystemIf(q.System)
	resp := TransitionsResponse{
		Current: current,
		Role:    role,
		Allowed: domain.ListAllowedStatusTransitions(current, role, opt),
	}
	if q.Next != "" {
		res := domain.ValidateStatusTransition(current, domain.Status(q.Next), role, opt)
		resp.Result = &res
	}
	c.JSON(http.StatusOK, resp)
}
