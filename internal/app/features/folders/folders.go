// Package folders provides faculty folder management: create, partial update,
// and cascading delete of a folder together with every material filed under it.
package folders

import (
	"net/http"

	errorsfeature "github.com/coursestack/coursestack/internal/app/features/errors"
	folderstore "github.com/coursestack/coursestack/internal/app/store/folder"
	materialstore "github.com/coursestack/coursestack/internal/app/store/material"
	"github.com/coursestack/coursestack/internal/app/system/auth"
	"github.com/coursestack/coursestack/internal/app/system/cleanup"
	"github.com/coursestack/coursestack/internal/app/system/htmlsanitize"
	"github.com/coursestack/coursestack/internal/app/system/jsonutil"
	"github.com/coursestack/coursestack/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler provides folder management handlers.
type Handler struct {
	folders   *folderstore.Store
	materials *materialstore.Store
	cleaner   *cleanup.Cleaner
	errLog    *errorsfeature.ErrorLogger
	logger    *zap.Logger
}

// NewHandler creates a new folders Handler.
func NewHandler(db *mongo.Database, cleaner *cleanup.Cleaner, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		folders:   folderstore.New(db),
		materials: materialstore.New(db),
		cleaner:   cleaner,
		errLog:    errLog,
		logger:    logger,
	}
}

// Routes returns a chi.Router with folder routes mounted. All folder
// management is faculty only.
func Routes(h *Handler, mw *auth.Middleware) http.Handler {
	r := chi.NewRouter()
	r.Use(mw.RequireAuth)
	r.Use(mw.RequireRole(models.RoleFaculty))

	r.Post("/", h.create)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)

	return r
}

// folderView is the API shape of a folder.
type folderView struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	CreatedBy       string   `json:"createdBy"`
	Access          string   `json:"access"`
	AllowedBranches []string `json:"allowedBranches,omitempty"`
	AllowedClasses  []string `json:"allowedClasses,omitempty"`
}

func viewOf(f *models.Folder) folderView {
	return folderView{
		ID:              f.ID.Hex(),
		Name:            f.Name,
		Description:     f.Description,
		CreatedBy:       f.CreatedBy.Hex(),
		Access:          f.Access,
		AllowedBranches: f.AllowedBranches,
		AllowedClasses:  f.AllowedClasses,
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := auth.CurrentUser(r)

	var in struct {
		Name            string   `json:"name"`
		Description     string   `json:"description"`
		Access          string   `json:"access"`
		AllowedBranches []string `json:"allowedBranches"`
		AllowedClasses  []string `json:"allowedClasses"`
	}
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "invalid JSON payload")
		return
	}

	in.Name = htmlsanitize.Strip(in.Name)
	in.Description = htmlsanitize.Strip(in.Description)

	fields := map[string]string{}
	if in.Name == "" {
		fields["name"] = "required"
	}
	if in.Access != "" && !models.IsValidAccess(in.Access) {
		fields["access"] = "invalid access level"
	}
	if len(fields) > 0 {
		jsonutil.ValidationError(w, fields)
		return
	}

	f, err := h.folders.Create(ctx, folderstore.CreateInput{
		Name:            in.Name,
		Description:     in.Description,
		CreatedBy:       actor.ID,
		Access:          in.Access,
		AllowedBranches: in.AllowedBranches,
		AllowedClasses:  in.AllowedClasses,
	})
	if err != nil {
		h.errLog.Log(r, "failed to create folder", err)
		jsonutil.InternalError(w, "failed to create folder")
		return
	}

	jsonutil.Created(w, viewOf(f), "Folder created successfully")
}

// update applies a partial update. Absent fields stay untouched; materials
// already filed under the folder keep their denormalized access values.
func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := auth.CurrentUser(r)

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.BadRequest(w, "invalid folder id")
		return
	}

	var in struct {
		Name            *string  `json:"name"`
		Description     *string  `json:"description"`
		Access          *string  `json:"access"`
		AllowedBranches []string `json:"allowedBranches"`
		AllowedClasses  []string `json:"allowedClasses"`
	}
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "invalid JSON payload")
		return
	}

	if in.Access != nil && !models.IsValidAccess(*in.Access) {
		jsonutil.BadRequest(w, "invalid access level")
		return
	}
	if in.Name != nil {
		clean := htmlsanitize.Strip(*in.Name)
		if clean == "" {
			jsonutil.BadRequest(w, "name cannot be empty")
			return
		}
		in.Name = &clean
	}
	if in.Description != nil {
		clean := htmlsanitize.Strip(*in.Description)
		in.Description = &clean
	}

	existing, err := h.folders.GetByID(ctx, id)
	if err == mongo.ErrNoDocuments {
		jsonutil.NotFound(w, "folder not found")
		return
	} else if err != nil {
		h.errLog.Log(r, "failed to load folder", err)
		jsonutil.InternalError(w, "failed to update folder")
		return
	}
	if existing.CreatedBy != actor.ID {
		jsonutil.Forbidden(w, "only the folder owner can update it")
		return
	}

	f, err := h.folders.Update(ctx, id, folderstore.UpdateInput{
		Name:            in.Name,
		Description:     in.Description,
		Access:          in.Access,
		AllowedBranches: in.AllowedBranches,
		AllowedClasses:  in.AllowedClasses,
	})
	if err != nil {
		h.errLog.Log(r, "failed to update folder", err)
		jsonutil.InternalError(w, "failed to update folder")
		return
	}

	jsonutil.OK(w, viewOf(f), "Folder updated successfully")
}

// delete removes a folder and everything filed under it. Binary cleanup is
// best effort; only the initial existence check can abort the operation.
func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := auth.CurrentUser(r)

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.BadRequest(w, "invalid folder id")
		return
	}

	existing, err := h.folders.GetByID(ctx, id)
	if err == mongo.ErrNoDocuments {
		jsonutil.NotFound(w, "folder not found")
		return
	} else if err != nil {
		h.errLog.Log(r, "failed to load folder", err)
		jsonutil.InternalError(w, "failed to delete folder")
		return
	}
	if existing.CreatedBy != actor.ID {
		jsonutil.Forbidden(w, "only the folder owner can delete it")
		return
	}

	materials, err := h.materials.ListByFolder(ctx, id)
	if err != nil {
		h.errLog.Log(r, "failed to enumerate folder materials", err)
		jsonutil.InternalError(w, "failed to delete folder")
		return
	}

	for i := range materials {
		m := &materials[i]
		for _, item := range m.Items {
			h.cleaner.Item(ctx, item)
		}
		if err := h.materials.Delete(ctx, m.ID); err != nil {
			h.errLog.Log(r, "failed to delete material during folder cascade", err)
			jsonutil.InternalError(w, "failed to delete folder")
			return
		}
	}

	if err := h.folders.Delete(ctx, id); err != nil {
		h.errLog.Log(r, "failed to delete folder", err)
		jsonutil.InternalError(w, "failed to delete folder")
		return
	}

	h.logger.Info("folder deleted",
		zap.String("folder_id", id.Hex()),
		zap.Int("materials_removed", len(materials)),
	)
	jsonutil.OK(w, nil, "Folder and its materials deleted successfully")
}
