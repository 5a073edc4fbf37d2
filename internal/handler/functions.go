package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/utility-audit-portal/internal/relay"
)

const relayTimeout = 30 * time.Second

type ChatAPI interface {
	Complete(ctx context.Context, message string) (string, error)
}

type CRMAPI interface {
	Submit(ctx context.Context, formType string, formData map[string]any) (map[string]any, error)
}

// FunctionHandler exposes the two relay functions.  Both answer with
// {"success": bool, "data"|"error": ...}.
type FunctionHandler struct {
	Chat ChatAPI
	CRM  CRMAPI
}

func NewFunctionHandler(chat ChatAPI, crm CRMAPI) *FunctionHandler {
	return &FunctionHandler{Chat: chat, CRM: crm}
}

type chatReq struct {
	Message string `json:"message"`
}

type crmReq struct {
	FormType string         `json:"formType"`
	FormData map[string]any `json:"formData"`
}

func relayOK(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": data})
}

func relayFail(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "error": msg})
}

// Chat: POST /functions/v1/chat
func (h *FunctionHandler) ChatMessage(c echo.Context) error {
	var req chatReq
	if err := c.Bind(&req); err != nil {
		return relayFail(c, http.StatusBadRequest, "invalid body")
	}
	ctx, cancel := reqCtx(c, relayTimeout)
	defer cancel()

	reply, err := h.Chat.Complete(ctx, req.Message)
	switch {
	case err == nil:
		return relayOK(c, echo.Map{"reply": reply})
	case errors.Is(err, relay.ErrEmptyMessage):
		return relayFail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, relay.ErrNotConfigured):
		return relayFail(c, http.StatusServiceUnavailable, err.Error())
	}
	logError(c, "chat relay", err)
	return relayFail(c, http.StatusBadGateway, err.Error())
}

// CRMSubmit: POST /functions/v1/crm-submit
func (h *FunctionHandler) CRMSubmit(c echo.Context) error {
	var req crmReq
	if err := c.Bind(&req); err != nil {
		return relayFail(c, http.StatusBadRequest, "invalid body")
	}
	req.FormType = strings.TrimSpace(req.FormType)
	if req.FormType == "" || req.FormData == nil {
		return relayFail(c, http.StatusBadRequest, "formType and formData are required")
	}
	ctx, cancel := reqCtx(c, relayTimeout)
	defer cancel()

	data, err := h.CRM.Submit(ctx, req.FormType, req.FormData)
	if err != nil {
		logError(c, "crm relay", err)
		return relayFail(c, http.StatusInternalServerError, err.Error())
	}
	return relayOK(c, data)
}
