// Package materials provides material management: multipart upload to the
// storage backend, partial updates with folder access inheritance, the
// access-filtered visibility listing, and best-effort deletion.
package materials

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	errorsfeature "github.com/coursestack/coursestack/internal/app/features/errors"
	folderstore "github.com/coursestack/coursestack/internal/app/store/folder"
	materialstore "github.com/coursestack/coursestack/internal/app/store/material"
	userstore "github.com/coursestack/coursestack/internal/app/store/users"
	"github.com/coursestack/coursestack/internal/app/system/access"
	"github.com/coursestack/coursestack/internal/app/system/auth"
	"github.com/coursestack/coursestack/internal/app/system/cleanup"
	"github.com/coursestack/coursestack/internal/app/system/htmlsanitize"
	"github.com/coursestack/coursestack/internal/app/system/jsonutil"
	"github.com/coursestack/coursestack/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler provides material handlers.
type Handler struct {
	materials   *materialstore.Store
	folders     *folderstore.Store
	users       *userstore.Store
	fileStorage storage.Store
	cleaner     *cleanup.Cleaner
	errLog      *errorsfeature.ErrorLogger
	logger      *zap.Logger

	matchPolicy access.MatchPolicy
	maxFiles    int
	maxBytes    int64
}

// NewHandler creates a new materials Handler.
func NewHandler(
	db *mongo.Database,
	fileStorage storage.Store,
	cleaner *cleanup.Cleaner,
	errLog *errorsfeature.ErrorLogger,
	logger *zap.Logger,
	matchPolicy access.MatchPolicy,
	maxFiles int,
	maxBytes int64,
) *Handler {
	return &Handler{
		materials:   materialstore.New(db),
		folders:     folderstore.New(db),
		users:       userstore.New(db),
		fileStorage: fileStorage,
		cleaner:     cleaner,
		errLog:      errLog,
		logger:      logger,
		matchPolicy: matchPolicy,
		maxFiles:    maxFiles,
		maxBytes:    maxBytes,
	}
}

// Routes returns a chi.Router with material routes mounted. Reads are open to
// every authenticated user; writes are faculty only.
func Routes(h *Handler, mw *auth.Middleware) http.Handler {
	r := chi.NewRouter()
	r.Use(mw.RequireAuth)

	r.Get("/", h.listOwn)
	r.Get("/{id}", h.get)
	r.Get("/folder/{folderId}", h.listByFolder)
	r.Get("/visible/{facultyId}", h.listVisible)

	r.Group(func(r chi.Router) {
		r.Use(mw.RequireRole(models.RoleFaculty))
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Delete("/{id}/items/{itemId}", h.removeItem)
	})

	return r
}

// itemView is the API shape of an embedded item.
type itemView struct {
	ID               string `json:"id"`
	Type             string `json:"type"`
	OriginalFileName string `json:"originalFileName,omitempty"`
	FileURL          string `json:"fileUrl,omitempty"`
	ResourceType     string `json:"resourceType,omitempty"`
	Size             int64  `json:"size,omitempty"`
	NoteContent      string `json:"noteContent,omitempty"`
	LinkURL          string `json:"linkUrl,omitempty"`
	UploadedAt       string `json:"uploadedAt"`
}

// materialView is the API shape of a material.
type materialView struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	UploadedBy      string     `json:"uploadedBy"`
	Access          string     `json:"access"`
	AllowedBranches []string   `json:"allowedBranches,omitempty"`
	AllowedClasses  []string   `json:"allowedClasses,omitempty"`
	Folder          string     `json:"folder,omitempty"`
	Items           []itemView `json:"items"`
	CreatedAt       string     `json:"createdAt"`
}

func viewOf(m *models.Material) materialView {
	v := materialView{
		ID:              m.ID.Hex(),
		Title:           m.Title,
		Description:     m.Description,
		UploadedBy:      m.UploadedBy.Hex(),
		Access:          m.Access,
		AllowedBranches: m.AllowedBranches,
		AllowedClasses:  m.AllowedClasses,
		Items:           make([]itemView, len(m.Items)),
		CreatedAt:       m.CreatedAt.Format(time.RFC3339),
	}
	if m.Folder != nil {
		v.Folder = m.Folder.Hex()
	}
	for i, item := range m.Items {
		v.Items[i] = itemView{
			ID:               item.ID.Hex(),
			Type:             item.Type,
			OriginalFileName: item.OriginalFileName,
			FileURL:          item.FileURL,
			ResourceType:     item.ResourceType,
			Size:             item.Size,
			NoteContent:      item.NoteContent,
			LinkURL:          item.LinkURL,
			UploadedAt:       item.UploadedAt.Format(time.RFC3339),
		}
	}
	return v
}

func viewsOf(materials []models.Material) []materialView {
	views := make([]materialView, len(materials))
	for i := range materials {
		views[i] = viewOf(&materials[i])
	}
	return views
}

// itemTypeForFile maps a filename extension to an item type.
func itemTypeForFile(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return models.ItemTypePDF
	case ".ppt", ".pptx":
		return models.ItemTypePPT
	case ".mp4", ".mkv", ".webm", ".mov":
		return models.ItemTypeVideo
	default:
		return models.ItemTypeNote
	}
}

// splitList turns repeated and comma-separated form values into one list.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// uploadFiles stores each multipart file in the storage backend and returns
// the item records. The storage key is persisted on the item so deletion
// never has to derive it from the URL.
func (h *Handler) uploadFiles(r *http.Request, files []*multipart.FileHeader) ([]models.Item, error) {
	ctx := r.Context()
	now := time.Now().UTC()

	items := make([]models.Item, 0, len(files))
	for _, header := range files {
		f, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("open upload %q: %w", header.Filename, err)
		}

		ext := filepath.Ext(header.Filename)
		uniqueName := fmt.Sprintf("%s%s", uuid.New().String()[:8], ext)
		storageKey := fmt.Sprintf("materials/%04d/%02d/%s", now.Year(), int(now.Month()), uniqueName)

		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		err = h.fileStorage.Put(ctx, storageKey, f, &storage.PutOptions{ContentType: contentType})
		f.Close()
		if err != nil {
			// Roll back the files already stored for this request.
			for _, it := range items {
				_ = h.fileStorage.Delete(ctx, it.StorageKey)
			}
			return nil, fmt.Errorf("store upload %q: %w", header.Filename, err)
		}

		items = append(items, models.Item{
			ID:               primitive.NewObjectID(),
			Type:             itemTypeForFile(header.Filename),
			OriginalFileName: header.Filename,
			StoredFileName:   uniqueName,
			FileURL:          h.fileStorage.URL(storageKey),
			StorageKey:       storageKey,
			ResourceType:     contentType,
			Size:             header.Size,
			UploadedAt:       now,
		})
	}
	return items, nil
}

// create uploads a new material from a multipart form. When folderId is
// supplied the folder must exist and its non-empty access values win over
// whatever the form carries.
func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := auth.CurrentUser(r)

	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		jsonutil.BadRequest(w, "invalid multipart form or upload too large")
		return
	}

	title := htmlsanitize.Strip(strings.TrimSpace(r.FormValue("title")))
	if title == "" {
		jsonutil.ValidationError(w, map[string]string{"title": "required"})
		return
	}
	description := htmlsanitize.Strip(strings.TrimSpace(r.FormValue("description")))

	accessLevel := r.FormValue("access")
	if accessLevel != "" && !models.IsValidAccess(accessLevel) {
		jsonutil.BadRequest(w, "invalid access level")
		return
	}
	allowedBranches := splitList(r.Form["allowedBranches"])
	allowedClasses := splitList(r.Form["allowedClasses"])

	var folderID *primitive.ObjectID
	if raw := r.FormValue("folderId"); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			jsonutil.BadRequest(w, "invalid folder id")
			return
		}
		f, err := h.folders.GetByID(ctx, id)
		if err == mongo.ErrNoDocuments {
			jsonutil.NotFound(w, "folder not found")
			return
		} else if err != nil {
			h.errLog.Log(r, "failed to load folder", err)
			jsonutil.InternalError(w, "failed to upload material")
			return
		}
		folderID = &id

		// Folder access wins over the submitted values. The lists are
		// taken as-is: a restricted folder with empty lists keeps its
		// materials just as invisible.
		if f.Access != "" {
			accessLevel = f.Access
		}
		allowedBranches = f.AllowedBranches
		allowedClasses = f.AllowedClasses
	}

	files := r.MultipartForm.File["files"]
	if len(files) > h.maxFiles {
		jsonutil.BadRequest(w, fmt.Sprintf("too many files (max %d)", h.maxFiles))
		return
	}

	items, err := h.uploadFiles(r, files)
	if err != nil {
		h.errLog.Log(r, "failed to upload files", err)
		jsonutil.InternalError(w, "failed to upload material")
		return
	}
	items = append(items, h.inlineItems(r)...)

	m, err := h.materials.Create(ctx, materialstore.CreateInput{
		Title:           title,
		Description:     description,
		UploadedBy:      actor.ID,
		Access:          accessLevel,
		AllowedBranches: allowedBranches,
		AllowedClasses:  allowedClasses,
		Folder:          folderID,
		Items:           items,
	})
	if err != nil {
		for _, it := range items {
			if it.StorageKey != "" {
				_ = h.fileStorage.Delete(ctx, it.StorageKey)
			}
		}
		h.errLog.Log(r, "failed to create material", err)
		jsonutil.InternalError(w, "failed to upload material")
		return
	}

	jsonutil.Created(w, viewOf(m), "Material uploaded successfully")
}

// inlineItems builds note and link items from plain form fields. These carry
// no binary content, so they never touch the storage backend.
func (h *Handler) inlineItems(r *http.Request) []models.Item {
	var items []models.Item
	now := time.Now().UTC()

	if note := htmlsanitize.Sanitize(strings.TrimSpace(r.FormValue("noteContent"))); note != "" {
		items = append(items, models.Item{
			ID:          primitive.NewObjectID(),
			Type:        models.ItemTypeNote,
			NoteContent: note,
			UploadedAt:  now,
		})
	}
	if link := strings.TrimSpace(r.FormValue("linkUrl")); link != "" {
		items = append(items, models.Item{
			ID:         primitive.NewObjectID(),
			Type:       models.ItemTypeLink,
			LinkURL:    link,
			UploadedAt: now,
		})
	}
	return items
}

// update applies a partial update and appends any newly uploaded files. A
// supplied folderId refiles the material and its folder's access values win;
// otherwise explicit access fields are applied as given.
func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := auth.CurrentUser(r)

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.BadRequest(w, "invalid material id")
		return
	}

	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		jsonutil.BadRequest(w, "invalid multipart form or upload too large")
		return
	}

	existing, err := h.materials.GetByID(ctx, id)
	if err == mongo.ErrNoDocuments {
		jsonutil.NotFound(w, "material not found")
		return
	} else if err != nil {
		h.errLog.Log(r, "failed to load material", err)
		jsonutil.InternalError(w, "failed to update material")
		return
	}
	if existing.UploadedBy != actor.ID {
		jsonutil.Forbidden(w, "only the uploader can update this material")
		return
	}

	input := materialstore.UpdateInput{}
	if title := htmlsanitize.Strip(strings.TrimSpace(r.FormValue("title"))); title != "" {
		input.Title = &title
	}
	if desc := htmlsanitize.Strip(strings.TrimSpace(r.FormValue("description"))); desc != "" {
		input.Description = &desc
	}

	if raw := r.FormValue("folderId"); raw != "" {
		folderID, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			jsonutil.BadRequest(w, "invalid folder id")
			return
		}
		f, err := h.folders.GetByID(ctx, folderID)
		if err == mongo.ErrNoDocuments {
			jsonutil.NotFound(w, "folder not found")
			return
		} else if err != nil {
			h.errLog.Log(r, "failed to load folder", err)
			jsonutil.InternalError(w, "failed to update material")
			return
		}

		input.Folder = &folderID
		if f.Access != "" {
			input.Access = &f.Access
		}
		// The folder's lists replace the material's even when empty; a
		// restricted folder with no listed branches or classes keeps its
		// materials hidden from every student.
		input.AllowedBranches = append([]string{}, f.AllowedBranches...)
		input.AllowedClasses = append([]string{}, f.AllowedClasses...)
	} else {
		if accessLevel := r.FormValue("access"); accessLevel != "" {
			if !models.IsValidAccess(accessLevel) {
				jsonutil.BadRequest(w, "invalid access level")
				return
			}
			input.Access = &accessLevel
		}
		if branches := splitList(r.Form["allowedBranches"]); len(branches) > 0 {
			input.AllowedBranches = branches
		}
		if classes := splitList(r.Form["allowedClasses"]); len(classes) > 0 {
			input.AllowedClasses = classes
		}
	}

	m, err := h.materials.Update(ctx, id, input)
	if err != nil {
		h.errLog.Log(r, "failed to update material", err)
		jsonutil.InternalError(w, "failed to update material")
		return
	}

	var files []*multipart.FileHeader
	if r.MultipartForm != nil {
		files = r.MultipartForm.File["files"]
	}
	if len(files) > 0 {
		if len(files) > h.maxFiles {
			jsonutil.BadRequest(w, fmt.Sprintf("too many files (max %d)", h.maxFiles))
			return
		}
		items, err := h.uploadFiles(r, files)
		if err != nil {
			h.errLog.Log(r, "failed to upload files", err)
			jsonutil.InternalError(w, "failed to update material")
			return
		}
		m, err = h.materials.AppendItems(ctx, id, items)
		if err != nil {
			h.errLog.Log(r, "failed to append items", err)
			jsonutil.InternalError(w, "failed to update material")
			return
		}
	}

	jsonutil.OK(w, viewOf(m), "Material updated successfully")
}

// get returns one material by id.
func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.BadRequest(w, "invalid material id")
		return
	}

	m, err := h.materials.GetByID(r.Context(), id)
	if err == mongo.ErrNoDocuments {
		jsonutil.NotFound(w, "material not found")
		return
	} else if err != nil {
		h.errLog.Log(r, "failed to load material", err)
		jsonutil.InternalError(w, "failed to fetch material")
		return
	}

	jsonutil.OK(w, viewOf(m), "Material fetched successfully")
}

// listOwn returns the requester's folders plus their folderless materials,
// both newest first.
func (h *Handler) listOwn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := auth.CurrentUser(r)

	folders, err := h.folders.ListByOwner(ctx, actor.ID)
	if err != nil {
		h.errLog.Log(r, "failed to list folders", err)
		jsonutil.InternalError(w, "failed to fetch uploads")
		return
	}

	unfiled, err := h.materials.ListUnfiledByOwner(ctx, actor.ID)
	if err != nil {
		h.errLog.Log(r, "failed to list unfiled materials", err)
		jsonutil.InternalError(w, "failed to fetch uploads")
		return
	}

	type folderSummary struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Access string `json:"access"`
	}
	folderViews := make([]folderSummary, len(folders))
	for i, f := range folders {
		folderViews[i] = folderSummary{ID: f.ID.Hex(), Name: f.Name, Access: f.Access}
	}

	jsonutil.OK(w, map[string]any{
		"folders":                folderViews,
		"materialsWithoutFolder": viewsOf(unfiled),
	}, "Folders and materials without folder fetched successfully")
}

// listByFolder returns the materials filed under one folder.
func (h *Handler) listByFolder(w http.ResponseWriter, r *http.Request) {
	folderID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "folderId"))
	if err != nil {
		jsonutil.BadRequest(w, "invalid folder id")
		return
	}

	materials, err := h.materials.ListByFolder(r.Context(), folderID)
	if err != nil {
		h.errLog.Log(r, "failed to list folder materials", err)
		jsonutil.InternalError(w, "failed to fetch materials")
		return
	}

	jsonutil.OK(w, viewsOf(materials), "Materials from folder")
}

// listVisible returns one faculty member's folders and materials filtered by
// what the requester may see. An unknown owner simply yields empty sets.
func (h *Handler) listVisible(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := auth.CurrentUser(r)

	ownerID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "facultyId"))
	if err != nil {
		jsonutil.BadRequest(w, "invalid faculty id")
		return
	}

	req := access.Requester{ID: actor.ID, Role: actor.Role}
	if actor.IsStudent() {
		student, err := h.users.GetByID(ctx, actor.ID)
		if err != nil {
			h.errLog.Log(r, "failed to load student profile", err)
			jsonutil.InternalError(w, "failed to fetch materials")
			return
		}
		req.Branch = student.Branch
		req.Year = student.Year
	}

	folders, err := h.folders.ListVisible(ctx, ownerID, req, h.matchPolicy)
	if err != nil {
		h.errLog.Log(r, "failed to list visible folders", err)
		jsonutil.InternalError(w, "failed to fetch materials")
		return
	}
	materials, err := h.materials.ListVisible(ctx, ownerID, req, h.matchPolicy)
	if err != nil {
		h.errLog.Log(r, "failed to list visible materials", err)
		jsonutil.InternalError(w, "failed to fetch materials")
		return
	}

	type folderSummary struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		Access      string `json:"access"`
	}
	folderViews := make([]folderSummary, len(folders))
	for i, f := range folders {
		folderViews[i] = folderSummary{
			ID:          f.ID.Hex(),
			Name:        f.Name,
			Description: f.Description,
			Access:      f.Access,
		}
	}

	jsonutil.OK(w, map[string]any{
		"folders":   folderViews,
		"materials": viewsOf(materials),
	}, "Faculty folders and materials fetched successfully")
}

// delete removes a material, cleaning up each item's binary copies first.
// The parent folder is untouched.
func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := auth.CurrentUser(r)

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.BadRequest(w, "invalid material id")
		return
	}

	m, err := h.materials.GetByID(ctx, id)
	if err == mongo.ErrNoDocuments {
		jsonutil.NotFound(w, "material not found")
		return
	} else if err != nil {
		h.errLog.Log(r, "failed to load material", err)
		jsonutil.InternalError(w, "failed to delete material")
		return
	}
	if m.UploadedBy != actor.ID {
		jsonutil.Forbidden(w, "only the uploader can delete this material")
		return
	}

	for _, item := range m.Items {
		h.cleaner.Item(ctx, item)
	}

	if err := h.materials.Delete(ctx, id); err != nil {
		h.errLog.Log(r, "failed to delete material", err)
		jsonutil.InternalError(w, "failed to delete material")
		return
	}

	jsonutil.OK(w, nil, "Material and all items removed successfully")
}

// removeItem removes one embedded item from a material. The material record
// survives even when its last item is removed.
func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := auth.CurrentUser(r)

	materialID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.BadRequest(w, "invalid material id")
		return
	}
	itemID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "itemId"))
	if err != nil {
		jsonutil.BadRequest(w, "invalid item id")
		return
	}

	m, err := h.materials.GetByID(ctx, materialID)
	if err == mongo.ErrNoDocuments {
		jsonutil.NotFound(w, "material not found")
		return
	} else if err != nil {
		h.errLog.Log(r, "failed to load material", err)
		jsonutil.InternalError(w, "failed to remove item")
		return
	}
	if m.UploadedBy != actor.ID {
		jsonutil.Forbidden(w, "only the uploader can modify this material")
		return
	}

	item := m.ItemByID(itemID)
	if item == nil {
		jsonutil.NotFound(w, "item not found in material")
		return
	}

	h.cleaner.Item(ctx, *item)

	if err := h.materials.PullItem(ctx, materialID, itemID); err != nil {
		h.errLog.Log(r, "failed to pull item", err)
		jsonutil.InternalError(w, "failed to remove item")
		return
	}

	jsonutil.OK(w, nil, "Item removed successfully from material")
}
