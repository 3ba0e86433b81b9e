package doubts

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	errorsfeature "github.com/coursestack/coursestack/internal/app/features/errors"
	doubtstore "github.com/coursestack/coursestack/internal/app/store/doubt"
	"github.com/coursestack/coursestack/internal/app/system/auth"
	"github.com/coursestack/coursestack/internal/domain/models"
	"github.com/coursestack/coursestack/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func testRouter(db *mongo.Database, actor *auth.RequestUser) http.Handler {
	logger := zap.NewNop()
	h := NewHandler(db, errorsfeature.NewErrorLogger(logger), logger)

	r := chi.NewRouter()
	inject := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, auth.WithUser(req, actor))
		})
	}
	r.Use(inject)
	r.Post("/", h.create)
	r.Post("/{id}/replies", h.reply)
	r.Get("/", h.listForMaterial)
	return r
}

func TestCreateDoubt_OnMissingMaterialAllowed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	student := testutil.NewStudent(t, db, "Asha", "asha23@college.edu", "CS", "TE")
	router := testRouter(db, &auth.RequestUser{ID: student.ID, Role: models.RoleStudent})

	// The material id resolves to nothing; the doubt is accepted anyway.
	body := fmt.Sprintf(`{"materialId":%q,"content":"what is a B-tree?"}`, primitive.NewObjectID().Hex())
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201, body: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateDoubt_EmptyContentRejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	student := testutil.NewStudent(t, db, "Asha", "asha23@college.edu", "CS", "TE")
	router := testRouter(db, &auth.RequestUser{ID: student.ID, Role: models.RoleStudent})

	body := fmt.Sprintf(`{"materialId":%q,"content":"  "}`, primitive.NewObjectID().Hex())
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestReply_UnknownDoubt(t *testing.T) {
	db := testutil.SetupTestDB(t)
	faculty := testutil.NewFaculty(t, db, "Prof", "prof@college.edu")
	router := testRouter(db, &auth.RequestUser{ID: faculty.ID, Role: models.RoleFaculty})

	req := httptest.NewRequest(http.MethodPost, "/"+primitive.NewObjectID().Hex()+"/replies",
		strings.NewReader(`{"content":"an answer"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListForMaterial_ResolvesAuthors(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	student := testutil.NewStudent(t, db, "Asha Patel", "asha23@college.edu", "CS", "TE")
	faculty := testutil.NewFaculty(t, db, "Prof Iyer", "prof.iyer@college.edu")

	materialID := primitive.NewObjectID()
	store := doubtstore.New(db)
	d, err := store.Create(ctx, materialID, student.ID, "why does this matter?")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := store.AppendReply(ctx, d.ID, faculty.ID, "because of the exam"); err != nil {
		t.Fatalf("AppendReply() error = %v", err)
	}

	router := testRouter(db, &auth.RequestUser{ID: student.ID, Role: models.RoleStudent})
	req := httptest.NewRequest(http.MethodGet, "/?materialId="+materialID.Hex(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data []struct {
			PostedBy struct {
				Name string `json:"name"`
				Role string `json:"role"`
			} `json:"postedBy"`
			Replies []struct {
				PostedBy struct {
					Name string `json:"name"`
					Role string `json:"role"`
				} `json:"postedBy"`
			} `json:"replies"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(envelope.Data) != 1 {
		t.Fatalf("doubts = %d, want 1", len(envelope.Data))
	}
	got := envelope.Data[0]
	if got.PostedBy.Name != "Asha Patel" || got.PostedBy.Role != models.RoleStudent {
		t.Errorf("doubt author = %+v, want Asha Patel/student", got.PostedBy)
	}
	if len(got.Replies) != 1 {
		t.Fatalf("replies = %d, want 1", len(got.Replies))
	}
	if got.Replies[0].PostedBy.Name != "Prof Iyer" || got.Replies[0].PostedBy.Role != models.RoleFaculty {
		t.Errorf("reply author = %+v, want Prof Iyer/faculty", got.Replies[0].PostedBy)
	}
}

func TestListForMaterial_DeletedAuthorStillListed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	materialID := primitive.NewObjectID()
	ghost := primitive.NewObjectID() // no user document behind this id
	if _, err := doubtstore.New(db).Create(ctx, materialID, ghost, "orphaned question"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	viewer := testutil.NewFaculty(t, db, "Prof", "prof@college.edu")
	router := testRouter(db, &auth.RequestUser{ID: viewer.ID, Role: models.RoleFaculty})

	req := httptest.NewRequest(http.MethodGet, "/?materialId="+materialID.Hex(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "orphaned question") {
		t.Error("doubt from a deleted account should still be listed")
	}
}
