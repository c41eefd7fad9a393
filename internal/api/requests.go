package api

import (
	"log/slog"
	"net/http"

	"github.com/aaal/envanter/internal/lifecycle"
	"github.com/aaal/envanter/internal/model"
	"github.com/aaal/envanter/internal/store"
)

// RequestsHandler exposes the request lifecycle. Authorization beyond
// authentication is left to the engine.
type RequestsHandler struct {
	Engine *lifecycle.Engine
}

type createRequestRequest struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
}

type updateRequestRequest struct {
	ID         string           `json:"id"`
	Action     string           `json:"action"`
	AdminNote  string           `json:"adminNote"`
	ReturnType model.ReturnType `json:"returnType"`
}

type requestResponse struct {
	Message string                 `json:"message"`
	Request *model.MaterialRequest `json:"request"`
}

var actionMessages = map[lifecycle.Action]string{
	lifecycle.ActionApprove:       "request approved",
	lifecycle.ActionReject:        "request rejected",
	lifecycle.ActionCancel:        "request cancelled",
	lifecycle.ActionReturn:        "return recorded",
	lifecycle.ActionConfirmReturn: "return confirmed",
}

// List handles GET /api/requests?status=&userId=&itemId=. Every
// authenticated user sees every request.
func (h *RequestsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	requests, err := h.Engine.List(r.Context(), store.RequestFilter{
		Status: model.RequestStatus(q.Get("status")),
		UserID: q.Get("userId"),
		ItemID: q.Get("itemId"),
	})
	if err != nil {
		writeError(w, err, "failed to list requests")
		return
	}
	if requests == nil {
		requests = []model.MaterialRequest{}
	}
	jsonResponse(w, http.StatusOK, map[string]any{"requests": requests})
}

// Create handles POST /api/requests.
func (h *RequestsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequestRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ItemID == "" {
		jsonError(w, http.StatusBadRequest, "item id and quantity required")
		return
	}

	actor := actorFrom(r.Context())
	created, err := h.Engine.CreateRequest(r.Context(), actor, req.ItemID, req.Quantity, req.Reason)
	if err != nil {
		writeError(w, err, "failed to create request")
		return
	}

	slog.Info("request created", "user", actor.Name, "item", created.ItemName, "quantity", created.Quantity)
	jsonResponse(w, http.StatusOK, requestResponse{Message: "request created", Request: created})
}

// Update handles PUT /api/requests: approve, reject, return_request and
// confirm_return.
func (h *RequestsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateRequestRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" || req.Action == "" {
		jsonError(w, http.StatusBadRequest, "request id and action required")
		return
	}

	action, err := lifecycle.ParseAction(req.Action)
	if err != nil {
		writeError(w, err, "invalid action")
		return
	}

	h.apply(w, r, lifecycle.Command{
		RequestID:  req.ID,
		Action:     action,
		Note:       req.AdminNote,
		ReturnType: req.ReturnType,
	})
}

// Cancel handles DELETE /api/requests?id=.
func (h *RequestsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, "request id required")
		return
	}
	h.apply(w, r, lifecycle.Command{RequestID: id, Action: lifecycle.ActionCancel})
}

func (h *RequestsHandler) apply(w http.ResponseWriter, r *http.Request, cmd lifecycle.Command) {
	actor := actorFrom(r.Context())
	updated, err := h.Engine.Apply(r.Context(), actor, cmd)
	if err != nil {
		writeError(w, err, "failed to update request")
		return
	}

	slog.Info("request updated", "user", actor.Name, "action", cmd.Action, "request", updated.ID,
		"status", updated.Status, "return_status", updated.ReturnStatus)
	jsonResponse(w, http.StatusOK, requestResponse{Message: actionMessages[cmd.Action], Request: updated})
}
