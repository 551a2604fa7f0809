package controllers

import (
	"net/http"

	"acronym-restful/auth"
	"acronym-restful/models"
	"acronym-restful/services"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserController serves /api/users.
type UserController struct {
	userService services.UserService
	filters     *auth.Filters
	logger      *zap.Logger
}

func NewUserController(userService services.UserService, filters *auth.Filters, logger *zap.Logger) *UserController {
	return &UserController{userService: userService, filters: filters, logger: logger.Named("users")}
}

// RegisterRoutes sets up the user-related routes for a go-restful WebService.
func (ctl *UserController) RegisterRoutes(ws *restful.WebService) {
	ws.Path("/api/users").Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	tags := []string{"users"}

	ws.Route(ws.GET("").To(ctl.listUsersHandler).
		Doc("List all users").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Writes([]models.PublicUser{}).
		Returns(http.StatusOK, "OK", []models.PublicUser{}))

	ws.Route(ws.GET("/{user-id}").To(ctl.getUserHandler).
		Doc("Get user by ID").
		Param(ws.PathParameter("user-id", "Identifier of the user").DataType("string")).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Writes(models.PublicUser{}).
		Returns(http.StatusOK, "User found", models.PublicUser{}).
		Returns(http.StatusNotFound, "User not found", ErrorResponse{}))

	ws.Route(ws.GET("/{user-id}/acronyms").To(ctl.userAcronymsHandler).
		Doc("List the acronyms a user owns").
		Param(ws.PathParameter("user-id", "Identifier of the user").DataType("string")).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Writes([]models.Acronym{}).
		Returns(http.StatusOK, "OK", []models.Acronym{}).
		Returns(http.StatusNotFound, "User not found", ErrorResponse{}))

	ws.Route(ws.POST("/login").To(ctl.loginHandler).
		Doc("Exchange HTTP Basic credentials for a bearer token").
		AllowedMethodsWithoutContentType([]string{http.MethodPost}).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Writes(models.Token{}).
		Returns(http.StatusOK, "Token issued", models.Token{}).
		Returns(http.StatusUnauthorized, "Invalid credentials", ErrorResponse{}))

	ws.Route(ws.POST("").Filter(ctl.filters.AuthFilter()).To(ctl.createUserHandler).
		Doc("Create a user").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Reads(services.CreateUserInput{}).
		Returns(http.StatusCreated, "User created", models.PublicUser{}).
		Returns(http.StatusBadRequest, "Invalid request body", ErrorResponse{}).
		Returns(http.StatusUnauthorized, "Unauthorized", ErrorResponse{}).
		Returns(http.StatusConflict, "Username already exists", ErrorResponse{}))
}

func (ctl *UserController) listUsersHandler(request *restful.Request, response *restful.Response) {
	users, err := ctl.userService.ListUsers(request.Request.Context())
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, models.PublicUsers(users), restful.MIME_JSON)
}

func (ctl *UserController) getUserHandler(request *restful.Request, response *restful.Response) {
	id, ok := userPathParameter(request, response)
	if !ok {
		return
	}
	user, err := ctl.userService.GetUser(request.Request.Context(), id)
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, user.Public(), restful.MIME_JSON)
}

func (ctl *UserController) userAcronymsHandler(request *restful.Request, response *restful.Response) {
	id, ok := userPathParameter(request, response)
	if !ok {
		return
	}
	acronyms, err := ctl.userService.UserAcronyms(request.Request.Context(), id)
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, acronyms, restful.MIME_JSON)
}

func (ctl *UserController) loginHandler(request *restful.Request, response *restful.Response) {
	username, password, ok := request.Request.BasicAuth()
	if !ok {
		response.AddHeader("WWW-Authenticate", `Basic realm="acronyms"`)
		writeError(response, http.StatusUnauthorized, "Unauthorized")
		return
	}
	token, err := ctl.userService.Login(request.Request.Context(), username, password)
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, token, restful.MIME_JSON)
}

func (ctl *UserController) createUserHandler(request *restful.Request, response *restful.Response) {
	input := new(services.CreateUserInput)
	if err := request.ReadEntity(input); err != nil {
		writeError(response, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	user, err := ctl.userService.CreateUser(request.Request.Context(), input)
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusCreated, user.Public(), restful.MIME_JSON)
}

func userPathParameter(request *restful.Request, response *restful.Response) (uuid.UUID, bool) {
	id, err := uuid.Parse(request.PathParameter("user-id"))
	if err != nil {
		writeError(response, http.StatusBadRequest, "Invalid user-id")
		return uuid.Nil, false
	}
	return id, true
}
