package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aaal/envanter/internal/audit"
	"github.com/aaal/envanter/internal/imaging"
	"github.com/aaal/envanter/internal/ledger"
	"github.com/aaal/envanter/internal/model"
	"github.com/aaal/envanter/internal/photos"
	"github.com/aaal/envanter/internal/store"
)

// InventoryHandler handles inventory endpoints.
type InventoryHandler struct {
	DB     *sql.DB
	Ledger *ledger.Ledger
	Audit  *audit.Recorder
	Photos *photos.Photos
}

// itemView adds derived fields to an item.
type itemView struct {
	model.InventoryItem
	LowStock bool `json:"lowStock"`
}

func viewOf(item *model.InventoryItem) itemView {
	return itemView{InventoryItem: *item, LowStock: item.LowStock()}
}

type createItemRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Quantity    int    `json:"quantity"`
	MinQuantity int    `json:"minQuantity"`
	Location    string `json:"location"`
}

type updateItemRequest struct {
	ID          string  `json:"id"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	Quantity    *int    `json:"quantity"`
	MinQuantity *int    `json:"minQuantity"`
	Location    *string `json:"location"`
}

// List handles GET /api/inventory?category=&search=, or a single item with ?id=.
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if id := q.Get("id"); id != "" {
		item, err := store.GetItem(r.Context(), h.DB, id)
		if err != nil {
			slog.Error("failed to get item", "error", err)
			jsonError(w, http.StatusInternalServerError, "failed to get item")
			return
		}
		if item == nil {
			jsonError(w, http.StatusNotFound, "item not found")
			return
		}
		jsonResponse(w, http.StatusOK, map[string]any{"item": viewOf(item)})
		return
	}

	items, err := store.ListItems(r.Context(), h.DB, store.ItemFilter{
		Category: q.Get("category"),
		Search:   strings.TrimSpace(q.Get("search")),
	})
	if err != nil {
		slog.Error("failed to list inventory", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list inventory")
		return
	}

	views := make([]itemView, 0, len(items))
	for i := range items {
		views = append(views, viewOf(&items[i]))
	}
	jsonResponse(w, http.StatusOK, map[string]any{"items": views})
}

// Create handles POST /api/inventory.
func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Category == "" {
		jsonError(w, http.StatusBadRequest, "name and category required")
		return
	}
	if !model.ValidCategory(req.Category) {
		jsonError(w, http.StatusBadRequest, "invalid category")
		return
	}
	if req.Quantity < 0 || req.MinQuantity < 0 {
		jsonError(w, http.StatusBadRequest, "quantities cannot be negative")
		return
	}

	actor := actorFrom(r.Context())
	item, err := store.CreateItem(r.Context(), h.DB, &model.InventoryItem{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Quantity:    req.Quantity,
		MinQuantity: req.MinQuantity,
		Location:    req.Location,
		CreatedBy:   actor.ID,
	})
	if err != nil {
		slog.Error("failed to create item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create item")
		return
	}

	logActivity(r, h.Audit, model.ActionInventoryCreate, actor,
		fmt.Sprintf("added %s (%d)", item.Name, item.Quantity),
		map[string]any{"itemId": item.ID, "quantity": item.Quantity})
	slog.Info("item created", "user", actor.Name, "item", item.Name, "quantity", item.Quantity)
	jsonResponse(w, http.StatusCreated, viewOf(item))
}

// Update handles PUT /api/inventory. Only the fields present in the body
// change, all in one ledger transaction.
func (h *InventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ID == "" {
		jsonError(w, http.StatusBadRequest, "item id required")
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		jsonError(w, http.StatusBadRequest, "name cannot be empty")
		return
	}
	if req.Category != nil && !model.ValidCategory(*req.Category) {
		jsonError(w, http.StatusBadRequest, "invalid category")
		return
	}
	if (req.Quantity != nil && *req.Quantity < 0) || (req.MinQuantity != nil && *req.MinQuantity < 0) {
		jsonError(w, http.StatusBadRequest, "quantities cannot be negative")
		return
	}

	err := h.Ledger.Update(r.Context(), req.ID, store.ItemUpdate{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		MinQuantity: req.MinQuantity,
		Location:    req.Location,
	}, req.Quantity)
	if err != nil {
		writeError(w, err, "failed to update item")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, req.ID)
	if err != nil {
		writeError(w, err, "failed to update item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	actor := actorFrom(r.Context())
	metadata := map[string]any{"itemId": item.ID}
	if req.Quantity != nil {
		metadata["quantity"] = *req.Quantity
	}
	logActivity(r, h.Audit, model.ActionInventoryUpdate, actor, "updated "+item.Name, metadata)
	slog.Info("item updated", "user", actor.Name, "item", item.Name)
	jsonResponse(w, http.StatusOK, viewOf(item))
}

// Delete handles DELETE /api/inventory?id=. Open requests for the item are
// left as they are.
func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, "item id required")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	if err := h.Photos.Remove(r.Context(), id); err != nil {
		slog.Warn("failed to remove item photo", "item", id, "error", err)
	}

	unlock := h.Ledger.Lock(id)
	_, err = store.DeleteItem(r.Context(), h.DB, id)
	unlock()
	if err != nil {
		slog.Error("failed to delete item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete item")
		return
	}

	actor := actorFrom(r.Context())
	logActivity(r, h.Audit, model.ActionInventoryDelete, actor, "deleted "+item.Name,
		map[string]any{"itemId": item.ID})
	slog.Info("item deleted", "user", actor.Name, "item", item.Name)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// UploadPhoto handles PUT /api/inventory/photo?id= with the raw image as body.
func (h *InventoryHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, "item id required")
		return
	}

	body := http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1)
	defer body.Close()

	photo, err := h.Photos.Upload(r.Context(), id, body)
	if err != nil {
		writeError(w, err, "failed to store photo")
		return
	}

	slog.Info("item photo updated", "user", actorFrom(r.Context()).Name, "item", id, "bytes", len(photo.Data))
	jsonResponse(w, http.StatusOK, map[string]any{
		"message": "photo updated",
		"mime":    photo.MIME,
		"width":   photo.Width,
		"height":  photo.Height,
	})
}

// GetPhoto handles GET /api/inventory/photo?id=.
func (h *InventoryHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		jsonError(w, http.StatusBadRequest, "item id required")
		return
	}

	data, mime, err := h.Photos.Open(r.Context(), id)
	if err != nil {
		writeError(w, err, "failed to load photo")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Write(data)
}
