package materials

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	errorsfeature "github.com/coursestack/coursestack/internal/app/features/errors"
	folderstore "github.com/coursestack/coursestack/internal/app/store/folder"
	materialstore "github.com/coursestack/coursestack/internal/app/store/material"
	"github.com/coursestack/coursestack/internal/app/system/access"
	"github.com/coursestack/coursestack/internal/app/system/auth"
	"github.com/coursestack/coursestack/internal/app/system/cleanup"
	"github.com/coursestack/coursestack/internal/domain/models"
	"github.com/coursestack/coursestack/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// recordingRemote records deletion keys and always succeeds.
type recordingRemote struct {
	deleted []string
}

func (r *recordingRemote) Delete(ctx context.Context, key string) error {
	r.deleted = append(r.deleted, key)
	return nil
}

func newHandler(t *testing.T, db *mongo.Database, remote cleanup.RemoteStore) *Handler {
	t.Helper()
	logger := zap.NewNop()
	return NewHandler(db, nil, cleanup.New(remote, logger), errorsfeature.NewErrorLogger(logger),
		logger, access.MatchExact, 10, 32<<20)
}

func testRouter(h *Handler, actor *auth.RequestUser) http.Handler {
	r := chi.NewRouter()
	inject := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, auth.WithUser(req, actor))
		})
	}
	r.Use(inject)
	r.Get("/", h.listOwn)
	r.Get("/{id}", h.get)
	r.Get("/visible/{facultyId}", h.listVisible)
	r.Post("/", h.create)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Delete("/{id}/items/{itemId}", h.removeItem)
	return r
}

// multipartRequest builds a multipart request with only text fields.
func multipartRequest(t *testing.T, method, target string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField(%s) error = %v", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("multipart close error = %v", err)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestCreateMaterial_FolderAccessWins(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := testutil.NewFaculty(t, db, "Prof", "prof@college.edu")
	f, err := folderstore.New(db).Create(ctx, folderstore.CreateInput{
		Name:            "Restricted",
		CreatedBy:       owner.ID,
		Access:          models.AccessSpecific,
		AllowedBranches: []string{"CS"},
		AllowedClasses:  []string{"TE"},
	})
	if err != nil {
		t.Fatalf("folder Create() error = %v", err)
	}

	h := newHandler(t, db, &recordingRemote{})
	router := testRouter(h, &auth.RequestUser{ID: owner.ID, Role: models.RoleFaculty})

	// The form asks for allStudents, but the folder's values must win.
	req := multipartRequest(t, http.MethodPost, "/", map[string]string{
		"title":           "Graphs",
		"access":          models.AccessAllStudents,
		"allowedBranches": "ME",
		"folderId":        f.ID.Hex(),
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body: %s", rec.Code, rec.Body.String())
	}

	created, err := materialstore.New(db).ListByFolder(ctx, f.ID)
	if err != nil {
		t.Fatalf("ListByFolder() error = %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("materials = %d, want 1", len(created))
	}
	m := created[0]
	if m.Access != models.AccessSpecific {
		t.Errorf("Access = %q, folder value should win", m.Access)
	}
	if len(m.AllowedBranches) != 1 || m.AllowedBranches[0] != "CS" {
		t.Errorf("AllowedBranches = %v, folder value should win", m.AllowedBranches)
	}
	if len(m.AllowedClasses) != 1 || m.AllowedClasses[0] != "TE" {
		t.Errorf("AllowedClasses = %v, folder value should win", m.AllowedClasses)
	}
}

func TestCreateMaterial_EmptyFolderListsReplaceFormLists(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := testutil.NewFaculty(t, db, "Prof", "prof@college.edu")
	f, err := folderstore.New(db).Create(ctx, folderstore.CreateInput{
		Name:      "Locked down",
		CreatedBy: owner.ID,
		Access:    models.AccessSpecific,
	})
	if err != nil {
		t.Fatalf("folder Create() error = %v", err)
	}

	h := newHandler(t, db, &recordingRemote{})
	router := testRouter(h, &auth.RequestUser{ID: owner.ID, Role: models.RoleFaculty})

	// The folder names no branches or classes; the form's lists must not
	// leak through and widen visibility.
	req := multipartRequest(t, http.MethodPost, "/", map[string]string{
		"title":           "Hidden",
		"allowedBranches": "CS",
		"allowedClasses":  "TE",
		"folderId":        f.ID.Hex(),
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body: %s", rec.Code, rec.Body.String())
	}

	materials := materialstore.New(db)
	created, err := materials.ListByFolder(ctx, f.ID)
	if err != nil {
		t.Fatalf("ListByFolder() error = %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("materials = %d, want 1", len(created))
	}
	m := created[0]
	if len(m.AllowedBranches) != 0 {
		t.Errorf("AllowedBranches = %v, folder's empty list should win", m.AllowedBranches)
	}
	if len(m.AllowedClasses) != 0 {
		t.Errorf("AllowedClasses = %v, folder's empty list should win", m.AllowedClasses)
	}

	// Under the exact policy a CS/TE student sees neither the folder nor
	// the material.
	visible, err := materials.ListVisible(ctx, owner.ID, access.Requester{
		Role:   models.RoleStudent,
		Branch: "CS",
		Year:   "TE",
	}, access.MatchExact)
	if err != nil {
		t.Fatalf("ListVisible() error = %v", err)
	}
	if len(visible) != 0 {
		t.Errorf("visible = %v, want none", visible)
	}
}

func TestUpdateMaterial_RefilingAdoptsEmptyFolderLists(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := testutil.NewFaculty(t, db, "Prof", "prof@college.edu")
	folders := folderstore.New(db)
	materials := materialstore.New(db)

	f, err := folders.Create(ctx, folderstore.CreateInput{
		Name:      "Locked down",
		CreatedBy: owner.ID,
		Access:    models.AccessSpecific,
	})
	if err != nil {
		t.Fatalf("folder Create() error = %v", err)
	}

	m, err := materials.Create(ctx, materialstore.CreateInput{
		Title:           "Was open to CS",
		UploadedBy:      owner.ID,
		Access:          models.AccessSpecific,
		AllowedBranches: []string{"CS"},
		AllowedClasses:  []string{"TE"},
	})
	if err != nil {
		t.Fatalf("material Create() error = %v", err)
	}

	h := newHandler(t, db, &recordingRemote{})
	router := testRouter(h, &auth.RequestUser{ID: owner.ID, Role: models.RoleFaculty})

	req := multipartRequest(t, http.MethodPut, "/"+m.ID.Hex(), map[string]string{
		"folderId": f.ID.Hex(),
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}

	loaded, err := materials.GetByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if len(loaded.AllowedBranches) != 0 {
		t.Errorf("AllowedBranches = %v, refiling should adopt the folder's empty list", loaded.AllowedBranches)
	}
	if len(loaded.AllowedClasses) != 0 {
		t.Errorf("AllowedClasses = %v, refiling should adopt the folder's empty list", loaded.AllowedClasses)
	}
}

func TestCreateMaterial_UnknownFolder(t *testing.T) {
	db := testutil.SetupTestDB(t)
	owner := testutil.NewFaculty(t, db, "Prof", "prof@college.edu")

	h := newHandler(t, db, &recordingRemote{})
	router := testRouter(h, &auth.RequestUser{ID: owner.ID, Role: models.RoleFaculty})

	req := multipartRequest(t, http.MethodPost, "/", map[string]string{
		"title":    "Orphan",
		"folderId": primitive.NewObjectID().Hex(),
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCreateMaterial_InlineNoteAndLink(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := testutil.NewFaculty(t, db, "Prof", "prof@college.edu")
	h := newHandler(t, db, &recordingRemote{})
	router := testRouter(h, &auth.RequestUser{ID: owner.ID, Role: models.RoleFaculty})

	req := multipartRequest(t, http.MethodPost, "/", map[string]string{
		"title":       "Reading list",
		"noteContent": "chapters 1-3",
		"linkUrl":     "https://example.com/syllabus",
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body: %s", rec.Code, rec.Body.String())
	}

	materials, err := materialstore.New(db).ListUnfiledByOwner(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListUnfiledByOwner() error = %v", err)
	}
	if len(materials) != 1 {
		t.Fatalf("materials = %d, want 1", len(materials))
	}
	if len(materials[0].Items) != 2 {
		t.Fatalf("items = %d, want note + link", len(materials[0].Items))
	}
}

func TestUpdateMaterial_RefilingInheritsFolderAccess(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := testutil.NewFaculty(t, db, "Prof", "prof@college.edu")
	folders := folderstore.New(db)
	materials := materialstore.New(db)

	f, err := folders.Create(ctx, folderstore.CreateInput{
		Name:            "Specific",
		CreatedBy:       owner.ID,
		Access:          models.AccessSpecific,
		AllowedBranches: []string{"IT"},
		AllowedClasses:  []string{"BE"},
	})
	if err != nil {
		t.Fatalf("folder Create() error = %v", err)
	}

	m, err := materials.Create(ctx, materialstore.CreateInput{
		Title:      "Loose material",
		UploadedBy: owner.ID,
		Access:     models.AccessAllStudents,
	})
	if err != nil {
		t.Fatalf("material Create() error = %v", err)
	}

	h := newHandler(t, db, &recordingRemote{})
	router := testRouter(h, &auth.RequestUser{ID: owner.ID, Role: models.RoleFaculty})

	req := multipartRequest(t, http.MethodPut, "/"+m.ID.Hex(), map[string]string{
		"folderId": f.ID.Hex(),
		"access":   models.AccessBoth, // ignored: folderId wins
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}

	loaded, err := materials.GetByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if loaded.Folder == nil || *loaded.Folder != f.ID {
		t.Error("material should be filed under the folder")
	}
	if loaded.Access != models.AccessSpecific {
		t.Errorf("Access = %q, folder value should win over form value", loaded.Access)
	}
}

func TestDeleteMaterial_NilLocalPathStillRemovesRemote(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := testutil.NewFaculty(t, db, "Prof", "prof@college.edu")
	materials := materialstore.New(db)

	folderID := primitive.NewObjectID()
	m, err := materials.Create(ctx, materialstore.CreateInput{
		Title:      "Remote only",
		UploadedBy: owner.ID,
		Folder:     &folderID,
		Items: []models.Item{
			{Type: models.ItemTypePDF, LocalPath: nil, FileURL: "https://cdn.example.com/materials/ab12cd34.pdf"},
		},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	remote := &recordingRemote{}
	h := newHandler(t, db, remote)
	router := testRouter(h, &auth.RequestUser{ID: owner.ID, Role: models.RoleFaculty})

	req := httptest.NewRequest(http.MethodDelete, "/"+m.ID.Hex(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
	if len(remote.deleted) != 1 || remote.deleted[0] != "ab12cd34" {
		t.Errorf("remote.deleted = %v, want the URL-derived key", remote.deleted)
	}
	if _, err := materials.GetByID(ctx, m.ID); err != mongo.ErrNoDocuments {
		t.Errorf("material should be deleted, got err = %v", err)
	}
}

func TestRemoveItem(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := testutil.NewFaculty(t, db, "Prof", "prof@college.edu")
	materials := materialstore.New(db)

	m, err := materials.Create(ctx, materialstore.CreateInput{
		Title:      "Two items",
		UploadedBy: owner.ID,
		Items: []models.Item{
			{Type: models.ItemTypePDF, StorageKey: "materials/keep"},
			{Type: models.ItemTypePDF, StorageKey: "materials/drop"},
		},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	remote := &recordingRemote{}
	h := newHandler(t, db, remote)
	router := testRouter(h, &auth.RequestUser{ID: owner.ID, Role: models.RoleFaculty})

	victim := m.Items[1]
	req := httptest.NewRequest(http.MethodDelete, "/"+m.ID.Hex()+"/items/"+victim.ID.Hex(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
	if len(remote.deleted) != 1 || remote.deleted[0] != "materials/drop" {
		t.Errorf("remote.deleted = %v, want [materials/drop]", remote.deleted)
	}

	loaded, err := materials.GetByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("material should survive item removal, got err = %v", err)
	}
	if len(loaded.Items) != 1 || loaded.Items[0].StorageKey != "materials/keep" {
		t.Errorf("items = %v, want only the kept item", loaded.Items)
	}
}

func TestRemoveItem_UnknownItem(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := testutil.NewFaculty(t, db, "Prof", "prof@college.edu")
	m, err := materialstore.New(db).Create(ctx, materialstore.CreateInput{
		Title:      "One item",
		UploadedBy: owner.ID,
		Items:      []models.Item{{Type: models.ItemTypePDF}},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	h := newHandler(t, db, &recordingRemote{})
	router := testRouter(h, &auth.RequestUser{ID: owner.ID, Role: models.RoleFaculty})

	req := httptest.NewRequest(http.MethodDelete, "/"+m.ID.Hex()+"/items/"+primitive.NewObjectID().Hex(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListVisible_StudentBranchYearLoadedFromProfile(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := testutil.NewFaculty(t, db, "Prof", "prof@college.edu")
	student := testutil.NewStudent(t, db, "Stu", "stu23@college.edu", "CS", "TE")

	materials := materialstore.New(db)
	if _, err := materials.Create(ctx, materialstore.CreateInput{
		Title:           "For CS TE",
		UploadedBy:      owner.ID,
		Access:          models.AccessSpecific,
		AllowedBranches: []string{"CS"},
		AllowedClasses:  []string{"TE"},
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := materials.Create(ctx, materialstore.CreateInput{
		Title:      "Faculty only",
		UploadedBy: owner.ID,
		Access:     models.AccessFacultyOnly,
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	h := newHandler(t, db, &recordingRemote{})
	router := testRouter(h, &auth.RequestUser{ID: student.ID, Role: models.RoleStudent})

	req := httptest.NewRequest(http.MethodGet, "/visible/"+owner.ID.Hex(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data struct {
			Materials []struct {
				Title string `json:"title"`
			} `json:"materials"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(envelope.Data.Materials) != 1 || envelope.Data.Materials[0].Title != "For CS TE" {
		t.Errorf("materials = %v, want only the CS/TE one", envelope.Data.Materials)
	}
}
