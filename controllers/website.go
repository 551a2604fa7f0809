package controllers

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"acronym-restful/auth"
	"acronym-restful/models"
	"acronym-restful/services"
	"acronym-restful/sessions"

	restful "github.com/emicklei/go-restful/v3"
	"go.uber.org/zap"
)

// Renderer turns a page name and its context into a response body.
type Renderer interface {
	Render(response *restful.Response, status int, page string, context map[string]any) error
}

// PageView is what JSONRenderer writes.
type PageView struct {
	Template string         `json:"template"`
	Context  map[string]any `json:"context"`
}

// JSONRenderer writes the page context as JSON. It stands in for HTML
// templates and keeps the page flows testable.
type JSONRenderer struct{}

func (JSONRenderer) Render(response *restful.Response, status int, page string, context map[string]any) error {
	return response.WriteHeaderAndJson(status, PageView{Template: page, Context: context}, restful.MIME_JSON)
}

// WebsiteDeps groups what the browser pages need.
type WebsiteDeps struct {
	Users      services.UserService
	Acronyms   services.AcronymService
	Categories services.CategoryService
	Sessions   sessions.Store
	Cookies    *sessions.CookieCodec
	CSRF       *sessions.CSRFGuard
	// Filters must be built on a session-only Authenticator.
	Filters *auth.Filters
	// CookieBanner names the cookie a visitor sets once the banner was accepted.
	CookieBanner string
	Renderer     Renderer
}

// WebsiteController serves the browser pages. Writes go through a session
// and a single-use CSRF token; reads are public.
type WebsiteController struct {
	deps   WebsiteDeps
	logger *zap.Logger
}

func NewWebsiteController(deps WebsiteDeps, logger *zap.Logger) *WebsiteController {
	if deps.Renderer == nil {
		deps.Renderer = JSONRenderer{}
	}
	return &WebsiteController{deps: deps, logger: logger.Named("website")}
}

const loginPath = "/login"

func (ctl *WebsiteController) RegisterRoutes(ws *restful.WebService) {
	ws.Path("/").Produces(restful.MIME_JSON, "text/html")

	optional := ctl.deps.Filters.OptionalFilter()
	required := ctl.deps.Filters.RedirectFilter(loginPath)

	ws.Route(ws.GET("/").Filter(optional).To(ctl.indexHandler))
	ws.Route(ws.GET("/acronyms/{acronym-id}").Filter(optional).To(ctl.acronymHandler))
	ws.Route(ws.GET("/users").Filter(optional).To(ctl.usersHandler))
	ws.Route(ws.GET("/users/{user-id}").Filter(optional).To(ctl.userHandler))
	ws.Route(ws.GET("/categories").Filter(optional).To(ctl.categoriesHandler))
	ws.Route(ws.GET("/categories/{category-id}").Filter(optional).To(ctl.categoryHandler))

	ws.Route(ws.GET(loginPath).Filter(optional).To(ctl.loginPageHandler))
	ws.Route(ws.POST(loginPath).To(ctl.loginHandler))
	ws.Route(ws.POST("/logout").To(ctl.logoutHandler))

	ws.Route(ws.GET("/acronyms/create").Filter(required).To(ctl.createPageHandler))
	ws.Route(ws.POST("/acronyms/create").Filter(required).To(ctl.createHandler))
	ws.Route(ws.GET("/acronyms/{acronym-id}/edit").Filter(required).To(ctl.editPageHandler))
	ws.Route(ws.POST("/acronyms/{acronym-id}/edit").Filter(required).To(ctl.editHandler))
	ws.Route(ws.POST("/acronyms/{acronym-id}/delete").Filter(required).To(ctl.deleteHandler))
}

// page starts a context with the keys every page carries.
func (ctl *WebsiteController) page(request *restful.Request, title string) map[string]any {
	_, loggedIn := auth.IdentityFrom(request)
	_, err := request.Request.Cookie(ctl.deps.CookieBanner)
	return map[string]any{
		"title":             title,
		"userLoggedIn":      loggedIn,
		"showCookieMessage": err != nil,
	}
}

func (ctl *WebsiteController) render(response *restful.Response, page string, context map[string]any) {
	if err := ctl.deps.Renderer.Render(response, http.StatusOK, page, context); err != nil {
		ctl.logger.Error("Failed to render page", zap.String("page", page), zap.Error(err))
	}
}

func (ctl *WebsiteController) indexHandler(request *restful.Request, response *restful.Response) {
	acronyms, err := ctl.deps.Acronyms.List(request.Request.Context())
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	context := ctl.page(request, "Home page")
	context["acronyms"] = acronyms
	ctl.render(response, "index", context)
}

func (ctl *WebsiteController) acronymHandler(request *restful.Request, response *restful.Response) {
	id, ok := uintPathParameter(request, response, "acronym-id")
	if !ok {
		return
	}
	ctx := request.Request.Context()
	acronym, err := ctl.deps.Acronyms.Get(ctx, id)
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	owner, err := ctl.deps.Acronyms.Owner(ctx, id)
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	categories, err := ctl.deps.Acronyms.Categories(ctx, id)
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	context := ctl.page(request, acronym.Short)
	context["acronym"] = acronym
	context["user"] = owner.Public()
	context["categories"] = categories
	ctl.render(response, "acronym", context)
}

func (ctl *WebsiteController) usersHandler(request *restful.Request, response *restful.Response) {
	users, err := ctl.deps.Users.ListUsers(request.Request.Context())
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	context := ctl.page(request, "All Users")
	context["users"] = models.PublicUsers(users)
	ctl.render(response, "allUsers", context)
}

func (ctl *WebsiteController) userHandler(request *restful.Request, response *restful.Response) {
	id, ok := userPathParameter(request, response)
	if !ok {
		return
	}
	ctx := request.Request.Context()
	user, err := ctl.deps.Users.GetUser(ctx, id)
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	acronyms, err := ctl.deps.Users.UserAcronyms(ctx, id)
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	context := ctl.page(request, user.Name)
	context["user"] = user.Public()
	context["acronyms"] = acronyms
	ctl.render(response, "user", context)
}

func (ctl *WebsiteController) categoriesHandler(request *restful.Request, response *restful.Response) {
	categories, err := ctl.deps.Categories.List(request.Request.Context())
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	context := ctl.page(request, "All Categories")
	context["categories"] = categories
	ctl.render(response, "allCategories", context)
}

func (ctl *WebsiteController) categoryHandler(request *restful.Request, response *restful.Response) {
	id, ok := uintPathParameter(request, response, "category-id")
	if !ok {
		return
	}
	ctx := request.Request.Context()
	category, err := ctl.deps.Categories.Get(ctx, id)
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	acronyms, err := ctl.deps.Categories.Acronyms(ctx, id)
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	context := ctl.page(request, category.Name)
	context["category"] = category
	context["acronyms"] = acronyms
	ctl.render(response, "category", context)
}

func (ctl *WebsiteController) loginPageHandler(request *restful.Request, response *restful.Response) {
	context := ctl.page(request, "Log In")
	context["loginError"] = request.QueryParameter("error") != ""
	context["next"] = safeNext(request.QueryParameter("next"))
	ctl.render(response, "login", context)
}

func (ctl *WebsiteController) loginHandler(request *restful.Request, response *restful.Response) {
	ctx := request.Request.Context()
	if err := request.Request.ParseForm(); err != nil {
		writeError(response, http.StatusBadRequest, "Invalid form")
		return
	}
	form := request.Request.PostForm

	user, err := ctl.deps.Users.Authenticate(ctx, form.Get("username"), form.Get("password"))
	if err != nil {
		if !auth.IsAuthError(err) {
			handleServiceError(response, err, ctl.logger)
			return
		}
		seeOther(response, loginPath+"?error=true")
		return
	}

	// A login always starts a fresh session.
	ctl.destroyCurrentSession(request)
	session, err := ctl.deps.Sessions.Create(ctx, user.ID)
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	if err := ctl.deps.Cookies.Write(response.ResponseWriter, session.ID); err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	seeOther(response, safeNext(form.Get("next")))
}

func (ctl *WebsiteController) logoutHandler(request *restful.Request, response *restful.Response) {
	ctl.destroyCurrentSession(request)
	ctl.deps.Cookies.Clear(response.ResponseWriter)
	seeOther(response, "/")
}

func (ctl *WebsiteController) destroyCurrentSession(request *restful.Request) {
	value, ok := ctl.deps.Cookies.Read(request.Request)
	if !ok {
		return
	}
	sessionID, err := ctl.deps.Cookies.Decode(value)
	if err != nil {
		return
	}
	if err := ctl.deps.Sessions.Destroy(request.Request.Context(), sessionID); err != nil {
		ctl.logger.Warn("Failed to destroy session", zap.Error(err))
	}
}

// sessionIdentity returns the caller and their session id. The filters
// guarantee a session identity on guarded routes; anything else is a wiring
// mistake and answered like a missing session.
func (ctl *WebsiteController) sessionIdentity(request *restful.Request, response *restful.Response) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFrom(request)
	if !ok || identity.SessionID == "" {
		seeOther(response, loginPath)
		return nil, false
	}
	return identity, true
}

func (ctl *WebsiteController) issueCSRF(request *restful.Request, response *restful.Response, identity *auth.Identity) (string, bool) {
	token, err := ctl.deps.CSRF.Issue(request.Request.Context(), identity.SessionID)
	if err != nil {
		handleServiceError(response, fmt.Errorf("issue csrf token: %w", err), ctl.logger)
		return "", false
	}
	return token, true
}

// checkForm parses the posted form and consumes its CSRF token. It answers
// 400 itself when the token is missing or stale.
func (ctl *WebsiteController) checkForm(request *restful.Request, response *restful.Response) (*auth.Identity, url.Values, bool) {
	identity, ok := ctl.sessionIdentity(request, response)
	if !ok {
		return nil, nil, false
	}
	if err := request.Request.ParseForm(); err != nil {
		writeError(response, http.StatusBadRequest, "Invalid form")
		return nil, nil, false
	}
	form := request.Request.PostForm
	valid, err := ctl.deps.CSRF.Consume(request.Request.Context(), identity.SessionID, form.Get("csrfToken"))
	if err != nil {
		handleServiceError(response, fmt.Errorf("consume csrf token: %w", err), ctl.logger)
		return nil, nil, false
	}
	if !valid {
		writeError(response, http.StatusBadRequest, sessions.ErrCSRFMismatch.Error())
		return nil, nil, false
	}
	return identity, form, true
}

// formInput reads an acronym form. An absent categories field means no
// categories, as browsers omit empty multi-value fields. Names are passed
// on exactly as submitted.
func formInput(form url.Values) *services.AcronymInput {
	categories := append([]string{}, form["categories"]...)
	return &services.AcronymInput{
		Short:      form.Get("short"),
		Long:       form.Get("long"),
		Categories: &categories,
	}
}

func (ctl *WebsiteController) createPageHandler(request *restful.Request, response *restful.Response) {
	identity, ok := ctl.sessionIdentity(request, response)
	if !ok {
		return
	}
	token, ok := ctl.issueCSRF(request, response, identity)
	if !ok {
		return
	}
	context := ctl.page(request, "Create An Acronym")
	context["csrfToken"] = token
	ctl.render(response, "createAcronym", context)
}

func (ctl *WebsiteController) createHandler(request *restful.Request, response *restful.Response) {
	identity, form, ok := ctl.checkForm(request, response)
	if !ok {
		return
	}
	acronym, err := ctl.deps.Acronyms.Create(request.Request.Context(), identity.User.ID, formInput(form))
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	seeOther(response, fmt.Sprintf("/acronyms/%d", acronym.ID))
}

func (ctl *WebsiteController) editPageHandler(request *restful.Request, response *restful.Response) {
	id, ok := uintPathParameter(request, response, "acronym-id")
	if !ok {
		return
	}
	identity, ok := ctl.sessionIdentity(request, response)
	if !ok {
		return
	}
	ctx := request.Request.Context()
	acronym, err := ctl.deps.Acronyms.Get(ctx, id)
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	categories, err := ctl.deps.Acronyms.Categories(ctx, id)
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	token, ok := ctl.issueCSRF(request, response, identity)
	if !ok {
		return
	}
	context := ctl.page(request, "Edit Acronym")
	context["acronym"] = acronym
	context["categories"] = models.CategoryNames(categories)
	context["editing"] = true
	context["csrfToken"] = token
	ctl.render(response, "createAcronym", context)
}

func (ctl *WebsiteController) editHandler(request *restful.Request, response *restful.Response) {
	id, ok := uintPathParameter(request, response, "acronym-id")
	if !ok {
		return
	}
	identity, form, ok := ctl.checkForm(request, response)
	if !ok {
		return
	}
	acronym, err := ctl.deps.Acronyms.Update(request.Request.Context(), id, identity.User.ID, formInput(form))
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	seeOther(response, fmt.Sprintf("/acronyms/%d", acronym.ID))
}

func (ctl *WebsiteController) deleteHandler(request *restful.Request, response *restful.Response) {
	id, ok := uintPathParameter(request, response, "acronym-id")
	if !ok {
		return
	}
	if _, _, ok := ctl.checkForm(request, response); !ok {
		return
	}
	if err := ctl.deps.Acronyms.Delete(request.Request.Context(), id); err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	seeOther(response, "/")
}

func seeOther(response *restful.Response, target string) {
	response.AddHeader("Location", target)
	response.WriteHeader(http.StatusSeeOther)
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
