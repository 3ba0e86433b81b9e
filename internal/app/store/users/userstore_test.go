package userstore

import (
	"testing"

	"github.com/coursestack/coursestack/internal/domain/models"
	"github.com/coursestack/coursestack/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestCreate_LowercasesEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := New(db)
	created, err := store.Create(ctx, CreateInput{
		Name:         "Asha Patel",
		Email:        "  Asha.Patel23@College.EDU ",
		PasswordHash: "not-a-real-hash",
		Role:         models.RoleStudent,
		Branch:       "CS",
		Year:         "SE",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if created.Email != "asha.patel23@college.edu" {
		t.Errorf("Email = %q, want lowercased and trimmed", created.Email)
	}

	loaded, err := store.GetByEmail(ctx, "ASHA.PATEL23@COLLEGE.EDU")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if loaded.ID != created.ID {
		t.Error("GetByEmail should be case-insensitive")
	}
}

func TestCreate_DuplicateEmailRejectedByIndex(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := New(db)
	in := CreateInput{Name: "A", Email: "dup@college.edu", PasswordHash: "h", Role: models.RoleFaculty}
	if _, err := store.Create(ctx, in); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := store.Create(ctx, in); err == nil {
		t.Error("second Create() with same email should fail on the unique index")
	}
}

func TestRefreshToken_SetLookupClear(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := New(db)
	u, err := store.Create(ctx, CreateInput{Name: "B", Email: "b@college.edu", PasswordHash: "h", Role: models.RoleFaculty})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := store.SetRefreshToken(ctx, u.ID, "token-abc"); err != nil {
		t.Fatalf("SetRefreshToken() error = %v", err)
	}

	found, err := store.GetByRefreshToken(ctx, "token-abc")
	if err != nil {
		t.Fatalf("GetByRefreshToken() error = %v", err)
	}
	if found.ID != u.ID {
		t.Error("GetByRefreshToken returned the wrong user")
	}

	if err := store.SetRefreshToken(ctx, u.ID, ""); err != nil {
		t.Fatalf("SetRefreshToken(clear) error = %v", err)
	}
	if _, err := store.GetByRefreshToken(ctx, "token-abc"); err != mongo.ErrNoDocuments {
		t.Errorf("cleared token should not resolve, got err = %v", err)
	}
}

func TestListByRole_PaginationAndExclusion(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := New(db)
	var firstID = testutil.NewFaculty(t, db, "Prof One", "one@college.edu").ID
	testutil.NewFaculty(t, db, "Prof Two", "two@college.edu")
	testutil.NewFaculty(t, db, "Prof Three", "three@college.edu")
	testutil.NewStudent(t, db, "Stu", "stu23@college.edu", "CS", "SE")

	page, err := store.ListByRole(ctx, models.RoleFaculty, nil, 2, 1)
	if err != nil {
		t.Fatalf("ListByRole() error = %v", err)
	}
	if page.Total != 3 {
		t.Errorf("Total = %d, want 3", page.Total)
	}
	if len(page.Users) != 2 {
		t.Errorf("page size = %d, want 2", len(page.Users))
	}
	if page.TotalPages != 2 {
		t.Errorf("TotalPages = %d, want 2", page.TotalPages)
	}

	excluded, err := store.ListByRole(ctx, models.RoleFaculty, &firstID, 10, 1)
	if err != nil {
		t.Fatalf("ListByRole(exclude) error = %v", err)
	}
	if excluded.Total != 2 {
		t.Errorf("Total with exclusion = %d, want 2", excluded.Total)
	}
	for _, u := range excluded.Users {
		if u.ID == firstID {
			t.Error("excluded user present in listing")
		}
	}
}

func TestSearchByName_CaseInsensitive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := New(db)
	testutil.NewFaculty(t, db, "Meera Iyer", "meera@college.edu")
	testutil.NewFaculty(t, db, "Rahul Mehta", "rahul@college.edu")
	testutil.NewStudent(t, db, "Meera Kulkarni", "meera23@college.edu", "CS", "FE")

	got, err := store.SearchByName(ctx, models.RoleFaculty, "meera")
	if err != nil {
		t.Fatalf("SearchByName() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("results = %d, want 1 (role-scoped)", len(got))
	}
	if got[0].Name != "Meera Iyer" {
		t.Errorf("Name = %q, want Meera Iyer", got[0].Name)
	}
}

func TestUpdateStudentProfile_EmptyFieldsUntouched(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := New(db)
	u := testutil.NewStudent(t, db, "Kiran", "kiran24@college.edu", "CS", "FE")

	if err := store.UpdateStudentProfile(ctx, u.ID, "", "SE"); err != nil {
		t.Fatalf("UpdateStudentProfile() error = %v", err)
	}

	loaded, err := store.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if loaded.Year != "SE" {
		t.Errorf("Year = %q, want SE", loaded.Year)
	}
	if loaded.Branch != "CS" {
		t.Errorf("Branch = %q, should be untouched", loaded.Branch)
	}
}
