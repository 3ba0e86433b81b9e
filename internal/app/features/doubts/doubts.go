// Package doubts provides the Q&A threads attached to materials: posting a
// doubt, replying to one, and listing a material's doubts with author details.
package doubts

import (
	"net/http"
	"strings"
	"time"

	errorsfeature "github.com/coursestack/coursestack/internal/app/features/errors"
	doubtstore "github.com/coursestack/coursestack/internal/app/store/doubt"
	userstore "github.com/coursestack/coursestack/internal/app/store/users"
	"github.com/coursestack/coursestack/internal/app/system/auth"
	"github.com/coursestack/coursestack/internal/app/system/htmlsanitize"
	"github.com/coursestack/coursestack/internal/app/system/jsonutil"
	"github.com/coursestack/coursestack/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler provides doubt handlers.
type Handler struct {
	doubts *doubtstore.Store
	users  *userstore.Store
	errLog *errorsfeature.ErrorLogger
	logger *zap.Logger
}

// NewHandler creates a new doubts Handler.
func NewHandler(db *mongo.Database, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		doubts: doubtstore.New(db),
		users:  userstore.New(db),
		errLog: errLog,
		logger: logger,
	}
}

// Routes returns a chi.Router with doubt routes mounted.
func Routes(h *Handler, mw *auth.Middleware) http.Handler {
	r := chi.NewRouter()
	r.Use(mw.RequireAuth)

	r.Post("/", h.create)
	r.Post("/{id}/replies", h.reply)
	r.Get("/", h.listForMaterial)

	return r
}

// author is the resolved poster of a doubt or reply.
type author struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type replyView struct {
	ID        string `json:"id"`
	PostedBy  author `json:"postedBy"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

type doubtView struct {
	ID        string      `json:"id"`
	Material  string      `json:"material"`
	PostedBy  author      `json:"postedBy"`
	Content   string      `json:"content"`
	Replies   []replyView `json:"replies"`
	CreatedAt string      `json:"createdAt"`
}

// create posts a new doubt on a material. The material reference is taken as
// given; a doubt on a deleted material is allowed and simply orphaned.
func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := auth.CurrentUser(r)

	var in struct {
		MaterialID string `json:"materialId"`
		Content    string `json:"content"`
	}
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "invalid JSON payload")
		return
	}

	content := strings.TrimSpace(htmlsanitize.Sanitize(in.Content))
	if content == "" {
		jsonutil.ValidationError(w, map[string]string{"content": "required"})
		return
	}

	materialID, err := primitive.ObjectIDFromHex(in.MaterialID)
	if err != nil {
		jsonutil.BadRequest(w, "invalid material id")
		return
	}

	d, err := h.doubts.Create(ctx, materialID, actor.ID, content)
	if err != nil {
		h.errLog.Log(r, "failed to create doubt", err)
		jsonutil.InternalError(w, "failed to post doubt")
		return
	}

	views, err := h.resolveAuthors(r, []models.Doubt{*d})
	if err != nil {
		jsonutil.InternalError(w, "failed to post doubt")
		return
	}
	jsonutil.Created(w, views[0], "Doubt posted successfully")
}

// reply appends one reply to an existing doubt.
func (h *Handler) reply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := auth.CurrentUser(r)

	doubtID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.BadRequest(w, "invalid doubt id")
		return
	}

	var in struct {
		Content string `json:"content"`
	}
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "invalid JSON payload")
		return
	}

	content := strings.TrimSpace(htmlsanitize.Sanitize(in.Content))
	if content == "" {
		jsonutil.ValidationError(w, map[string]string{"content": "required"})
		return
	}

	d, err := h.doubts.AppendReply(ctx, doubtID, actor.ID, content)
	if err == mongo.ErrNoDocuments {
		jsonutil.NotFound(w, "doubt not found")
		return
	} else if err != nil {
		h.errLog.Log(r, "failed to append reply", err)
		jsonutil.InternalError(w, "failed to post reply")
		return
	}

	views, err := h.resolveAuthors(r, []models.Doubt{*d})
	if err != nil {
		jsonutil.InternalError(w, "failed to post reply")
		return
	}
	jsonutil.Created(w, views[0], "Reply added successfully")
}

// listForMaterial returns a material's doubts, newest first, with the poster
// of the doubt and of every reply resolved to name and role.
func (h *Handler) listForMaterial(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	materialID, err := primitive.ObjectIDFromHex(r.URL.Query().Get("materialId"))
	if err != nil {
		jsonutil.BadRequest(w, "materialId is required")
		return
	}

	doubts, err := h.doubts.ListByMaterial(ctx, materialID)
	if err != nil {
		h.errLog.Log(r, "failed to list doubts", err)
		jsonutil.InternalError(w, "failed to fetch doubts")
		return
	}

	views, err := h.resolveAuthors(r, doubts)
	if err != nil {
		jsonutil.InternalError(w, "failed to fetch doubts")
		return
	}
	jsonutil.OK(w, views, "Doubts fetched successfully")
}

// resolveAuthors batch-loads every poster referenced by the doubts and their
// replies and builds the response views. Deleted accounts come back with an
// id and empty name/role rather than failing the listing.
func (h *Handler) resolveAuthors(r *http.Request, doubts []models.Doubt) ([]doubtView, error) {
	seen := map[primitive.ObjectID]struct{}{}
	var ids []primitive.ObjectID
	for i := range doubts {
		d := &doubts[i]
		if _, ok := seen[d.PostedBy]; !ok {
			seen[d.PostedBy] = struct{}{}
			ids = append(ids, d.PostedBy)
		}
		for j := range d.Replies {
			if _, ok := seen[d.Replies[j].PostedBy]; !ok {
				seen[d.Replies[j].PostedBy] = struct{}{}
				ids = append(ids, d.Replies[j].PostedBy)
			}
		}
	}

	users, err := h.users.GetByIDs(r.Context(), ids)
	if err != nil {
		h.errLog.Log(r, "failed to resolve doubt authors", err)
		return nil, err
	}
	byID := make(map[primitive.ObjectID]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	authorOf := func(id primitive.ObjectID) author {
		a := author{ID: id.Hex()}
		if u, ok := byID[id]; ok {
			a.Name = u.Name
			a.Role = u.Role
		}
		return a
	}

	views := make([]doubtView, len(doubts))
	for i := range doubts {
		d := &doubts[i]
		replies := make([]replyView, len(d.Replies))
		for j, rep := range d.Replies {
			replies[j] = replyView{
				ID:        rep.ID.Hex(),
				PostedBy:  authorOf(rep.PostedBy),
				Content:   rep.Content,
				CreatedAt: rep.CreatedAt.Format(time.RFC3339),
			}
		}
		views[i] = doubtView{
			ID:        d.ID.Hex(),
			Material:  d.Material.Hex(),
			PostedBy:  authorOf(d.PostedBy),
			Content:   d.Content,
			Replies:   replies,
			CreatedAt: d.CreatedAt.Format(time.RFC3339),
		}
	}
	return views, nil
}
