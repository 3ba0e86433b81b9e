// Package usersapi provides account endpoints: signup, login, token refresh,
// logout, directory listings, and student profile updates.
package usersapi

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	errorsfeature "github.com/coursestack/coursestack/internal/app/features/errors"
	userstore "github.com/coursestack/coursestack/internal/app/store/users"
	"github.com/coursestack/coursestack/internal/app/system/auth"
	"github.com/coursestack/coursestack/internal/app/system/htmlsanitize"
	"github.com/coursestack/coursestack/internal/app/system/jsonutil"
	"github.com/coursestack/coursestack/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost        = 12
	refreshCookieName = "refreshToken"
)

// studentEmailPattern matches institute student addresses, which carry the
// admission year as two digits right before the @.
var studentEmailPattern = regexp.MustCompile(`\d{2}@`)

// Handler provides user account handlers.
type Handler struct {
	users  *userstore.Store
	tokens *auth.TokenManager
	errLog *errorsfeature.ErrorLogger
	logger *zap.Logger

	// secureCookies controls the Secure flag on the refresh cookie; off in dev.
	secureCookies bool
}

// NewHandler creates a new usersapi Handler.
func NewHandler(db *mongo.Database, tokens *auth.TokenManager, errLog *errorsfeature.ErrorLogger, logger *zap.Logger, secureCookies bool) *Handler {
	return &Handler{
		users:         userstore.New(db),
		tokens:        tokens,
		errLog:        errLog,
		logger:        logger,
		secureCookies: secureCookies,
	}
}

// Routes returns a chi.Router with user routes mounted.
func Routes(h *Handler, mw *auth.Middleware) http.Handler {
	r := chi.NewRouter()

	// Public routes
	r.Post("/signup", h.signup)
	r.Post("/login", h.login)
	r.Get("/refresh", h.refresh)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireAuth)
		r.Get("/logout", h.logout)
		r.Get("/faculty", h.listFaculty)
		r.Get("/faculty/search", h.searchFaculty)
		r.Get("/students", h.listStudents)
		r.Get("/students/search", h.searchStudents)
		r.Patch("/profile", h.updateStudentProfile)
	})

	return r
}

// roleFromEmail predicts the role from the email shape: student addresses
// carry two digits right before the @.
func roleFromEmail(email string) string {
	if studentEmailPattern.MatchString(email) {
		return models.RoleStudent
	}
	return models.RoleFaculty
}

// userView is the public shape of a user in API responses.
type userView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Branch string `json:"branch,omitempty"`
	Year   string `json:"year,omitempty"`
}

func viewOf(u *models.User) userView {
	return userView{
		ID:     u.ID.Hex(),
		Name:   u.Name,
		Email:  u.Email,
		Role:   u.Role,
		Branch: u.Branch,
		Year:   u.Year,
	}
}

// setRefreshCookie delivers the refresh token as an httpOnly cookie scoped
// to the refresh/logout endpoints' origin.
func (h *Handler) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokens.RefreshTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

// signup registers a new user. The declared role must agree with what the
// email address implies.
func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
		Branch   string `json:"branch"`
		Year     string `json:"year"`
	}
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "invalid JSON payload")
		return
	}

	in.Name = htmlsanitize.Strip(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	fields := map[string]string{}
	if in.Name == "" {
		fields["name"] = "required"
	}
	if in.Email == "" {
		fields["email"] = "required"
	}
	if in.Password == "" {
		fields["password"] = "required"
	}
	if !models.IsValidRole(in.Role) {
		fields["role"] = "must be student or faculty"
	}
	if in.Role == models.RoleStudent {
		if in.Branch == "" {
			fields["branch"] = "required for students"
		}
		if !models.IsValidYear(in.Year) {
			fields["year"] = "must be one of FE, SE, TE, BE"
		}
	}
	if len(fields) > 0 {
		jsonutil.ValidationError(w, fields)
		return
	}

	if roleFromEmail(in.Email) != in.Role {
		jsonutil.BadRequest(w, "role does not match email address")
		return
	}

	if _, err := h.users.GetByEmail(ctx, in.Email); err == nil {
		jsonutil.BadRequest(w, "user with this email already exists")
		return
	} else if err != mongo.ErrNoDocuments {
		h.errLog.Log(r, "failed to check existing user", err)
		jsonutil.InternalError(w, "failed to create user")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		h.errLog.Log(r, "failed to hash password", err)
		jsonutil.InternalError(w, "failed to create user")
		return
	}

	branch, year := "", ""
	if in.Role == models.RoleStudent {
		branch, year = in.Branch, in.Year
	}

	user, err := h.users.Create(ctx, userstore.CreateInput{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         in.Role,
		Branch:       branch,
		Year:         year,
	})
	if err != nil {
		h.errLog.Log(r, "failed to create user", err)
		jsonutil.InternalError(w, "failed to create user")
		return
	}

	accessToken, refreshToken, err := h.issueTokens(r, user)
	if err != nil {
		jsonutil.InternalError(w, "failed to issue tokens")
		return
	}
	h.setRefreshCookie(w, refreshToken)

	jsonutil.Created(w, map[string]any{
		"user":        viewOf(user),
		"accessToken": accessToken,
	}, "User registered successfully")
}

// login verifies credentials and issues a fresh token pair.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "invalid JSON payload")
		return
	}

	user, err := h.users.GetByEmail(ctx, in.Email)
	if err == mongo.ErrNoDocuments {
		jsonutil.BadRequest(w, "user not found")
		return
	} else if err != nil {
		h.errLog.Log(r, "failed to look up user", err)
		jsonutil.InternalError(w, "login failed")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		jsonutil.Unauthorized(w, "password is incorrect")
		return
	}

	accessToken, refreshToken, err := h.issueTokens(r, user)
	if err != nil {
		jsonutil.InternalError(w, "failed to issue tokens")
		return
	}
	h.setRefreshCookie(w, refreshToken)

	jsonutil.OK(w, map[string]any{
		"accessToken": accessToken,
		"role":        user.Role,
	}, "User logged in")
}

// issueTokens creates an access+refresh pair and persists the refresh token
// on the user record.
func (h *Handler) issueTokens(r *http.Request, user *models.User) (string, string, error) {
	accessToken, err := h.tokens.IssueAccess(user.ID, user.Role)
	if err != nil {
		h.errLog.Log(r, "failed to issue access token", err)
		return "", "", err
	}
	refreshToken, err := h.tokens.IssueRefresh(user.ID)
	if err != nil {
		h.errLog.Log(r, "failed to issue refresh token", err)
		return "", "", err
	}
	if err := h.users.SetRefreshToken(r.Context(), user.ID, refreshToken); err != nil {
		h.errLog.Log(r, "failed to store refresh token", err)
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// refresh exchanges a valid refresh cookie for a new access token.
func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		jsonutil.Unauthorized(w, "refresh cookie not found")
		return
	}

	user, err := h.users.GetByRefreshToken(ctx, cookie.Value)
	if err == mongo.ErrNoDocuments {
		jsonutil.Forbidden(w, "refresh token not recognized")
		return
	} else if err != nil {
		h.errLog.Log(r, "failed to look up refresh token", err)
		jsonutil.InternalError(w, "refresh failed")
		return
	}

	if err := h.tokens.VerifyRefresh(cookie.Value, user.ID); err != nil {
		jsonutil.Forbidden(w, "invalid refresh token")
		return
	}

	accessToken, err := h.tokens.IssueAccess(user.ID, user.Role)
	if err != nil {
		h.errLog.Log(r, "failed to issue access token", err)
		jsonutil.InternalError(w, "refresh failed")
		return
	}

	jsonutil.OK(w, map[string]any{"accessToken": accessToken}, "New token generated")
}

// logout clears the stored refresh token and the cookie.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cookie, err := r.Cookie(refreshCookieName)
	if err == nil && cookie.Value != "" {
		if user, err := h.users.GetByRefreshToken(ctx, cookie.Value); err == nil {
			if err := h.users.SetRefreshToken(ctx, user.ID, ""); err != nil {
				h.errLog.Log(r, "failed to clear refresh token", err)
			}
		}
	}

	h.clearRefreshCookie(w)
	jsonutil.NoContent(w)
}

// pageParams reads page/limit query parameters with the API defaults.
func pageParams(r *http.Request) (limit, page int64) {
	page = 1
	limit = 10
	if v, err := strconv.ParseInt(r.URL.Query().Get("page"), 10, 64); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64); err == nil && v > 0 {
		limit = v
	}
	return limit, page
}

// listFaculty returns a page of faculty accounts. Faculty requesters are
// excluded from their own listing.
func (h *Handler) listFaculty(w http.ResponseWriter, r *http.Request) {
	h.listRole(w, r, models.RoleFaculty)
}

// listStudents returns a page of student accounts. Only students may browse
// the student directory.
func (h *Handler) listStudents(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.CurrentUser(r)
	if !actor.IsStudent() {
		jsonutil.BadRequest(w, "faculty has no access to the student list")
		return
	}
	h.listRole(w, r, models.RoleStudent)
}

func (h *Handler) listRole(w http.ResponseWriter, r *http.Request, role string) {
	actor, _ := auth.CurrentUser(r)
	limit, page := pageParams(r)

	exclude := &actor.ID
	if actor.Role != role {
		exclude = nil
	}

	result, err := h.users.ListByRole(r.Context(), role, exclude, limit, page)
	if err != nil {
		h.errLog.Log(r, "failed to list users", err)
		jsonutil.InternalError(w, "failed to fetch users")
		return
	}

	views := make([]userView, len(result.Users))
	for i := range result.Users {
		views[i] = viewOf(&result.Users[i])
	}
	jsonutil.OK(w, map[string]any{
		"users":      views,
		"total":      result.Total,
		"page":       result.Page,
		"totalPages": result.TotalPages,
	}, "Fetched successfully")
}

// searchFaculty searches faculty by name.
func (h *Handler) searchFaculty(w http.ResponseWriter, r *http.Request) {
	h.searchRole(w, r, models.RoleFaculty)
}

// searchStudents searches students by name.
func (h *Handler) searchStudents(w http.ResponseWriter, r *http.Request) {
	h.searchRole(w, r, models.RoleStudent)
}

func (h *Handler) searchRole(w http.ResponseWriter, r *http.Request, role string) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		jsonutil.BadRequest(w, "name is required")
		return
	}

	users, err := h.users.SearchByName(r.Context(), role, name)
	if err != nil {
		h.errLog.Log(r, "failed to search users", err)
		jsonutil.InternalError(w, "search failed")
		return
	}

	views := make([]userView, len(users))
	for i := range users {
		views[i] = viewOf(&users[i])
	}
	jsonutil.OK(w, views, "Fetched successfully")
}

// updateStudentProfile updates the requester's year and/or branch. Branch is
// frozen once the student has progressed past FE.
func (h *Handler) updateStudentProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, _ := auth.CurrentUser(r)

	var in struct {
		Branch string `json:"branch"`
		Year   string `json:"year"`
	}
	if err := jsonutil.Decode(r, &in); err != nil {
		jsonutil.BadRequest(w, "invalid JSON payload")
		return
	}

	student, err := h.users.GetByID(ctx, actor.ID)
	if err == mongo.ErrNoDocuments || (err == nil && !student.IsStudent()) {
		jsonutil.NotFound(w, "student not found")
		return
	} else if err != nil {
		h.errLog.Log(r, "failed to load student", err)
		jsonutil.InternalError(w, "update failed")
		return
	}

	if in.Branch != "" && student.Year != "FE" {
		jsonutil.BadRequest(w, "branch cannot be updated after FE")
		return
	}
	if in.Year != "" && !models.IsValidYear(in.Year) {
		jsonutil.BadRequest(w, "invalid year")
		return
	}

	if err := h.users.UpdateStudentProfile(ctx, student.ID, in.Branch, in.Year); err != nil {
		h.errLog.Log(r, "failed to update student profile", err)
		jsonutil.InternalError(w, "update failed")
		return
	}

	updated, err := h.users.GetByID(ctx, student.ID)
	if err != nil {
		h.errLog.Log(r, "failed to reload student", err)
		jsonutil.InternalError(w, "update failed")
		return
	}

	jsonutil.OK(w, viewOf(updated), "Student profile updated successfully")
}
