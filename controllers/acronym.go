package controllers

import (
	"net/http"

	"acronym-restful/auth"
	"acronym-restful/models"
	"acronym-restful/services"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
	"go.uber.org/zap"
)

// AcronymController serves /api/acronyms.
type AcronymController struct {
	acronymService services.AcronymService
	filters        *auth.Filters
	logger         *zap.Logger
}

func NewAcronymController(acronymService services.AcronymService, filters *auth.Filters, logger *zap.Logger) *AcronymController {
	return &AcronymController{acronymService: acronymService, filters: filters, logger: logger.Named("acronyms")}
}

func (ctl *AcronymController) RegisterRoutes(ws *restful.WebService) {
	ws.Path("/api/acronyms").Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	tags := []string{"acronyms"}
	idParam := ws.PathParameter("acronym-id", "Identifier of the acronym").DataType("integer")
	categoryParam := ws.PathParameter("category-id", "Identifier of the category").DataType("integer")

	ws.Route(ws.GET("").To(ctl.listHandler).
		Doc("List all acronyms").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "OK", []models.Acronym{}))

	ws.Route(ws.GET("/search").To(ctl.searchHandler).
		Doc("Find acronyms whose short or long form equals the term").
		Param(ws.QueryParameter("term", "Exact short or long form").Required(true)).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "OK", []models.Acronym{}).
		Returns(http.StatusBadRequest, "Missing term", ErrorResponse{}))

	ws.Route(ws.GET("/first").To(ctl.firstHandler).
		Doc("Get the first stored acronym").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "OK", models.Acronym{}).
		Returns(http.StatusNotFound, "No acronyms", ErrorResponse{}))

	ws.Route(ws.GET("/sorted").To(ctl.sortedHandler).
		Doc("List acronyms ordered by short form").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "OK", []models.Acronym{}))

	ws.Route(ws.GET("/{acronym-id}").To(ctl.getHandler).
		Doc("Get acronym by ID").
		Param(idParam).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "OK", models.Acronym{}).
		Returns(http.StatusNotFound, "Acronym not found", ErrorResponse{}))

	ws.Route(ws.GET("/{acronym-id}/user").To(ctl.ownerHandler).
		Doc("Get the owner of an acronym").
		Param(idParam).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "OK", models.PublicUser{}).
		Returns(http.StatusNotFound, "Acronym not found", ErrorResponse{}))

	ws.Route(ws.GET("/{acronym-id}/categories").To(ctl.categoriesHandler).
		Doc("List the categories of an acronym").
		Param(idParam).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "OK", []models.Category{}).
		Returns(http.StatusNotFound, "Acronym not found", ErrorResponse{}))

	ws.Route(ws.POST("").Filter(ctl.filters.AuthFilter()).To(ctl.createHandler).
		Doc("Create an acronym owned by the caller").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Reads(services.AcronymInput{}).
		Returns(http.StatusCreated, "Created", models.Acronym{}).
		Returns(http.StatusBadRequest, "Invalid request body", ErrorResponse{}).
		Returns(http.StatusUnauthorized, "Unauthorized", ErrorResponse{}))

	ws.Route(ws.PUT("/{acronym-id}").Filter(ctl.filters.AuthFilter()).To(ctl.updateHandler).
		Doc("Update an acronym; the caller becomes its owner").
		Param(idParam).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Reads(services.AcronymInput{}).
		Returns(http.StatusOK, "Updated", models.Acronym{}).
		Returns(http.StatusBadRequest, "Invalid request body", ErrorResponse{}).
		Returns(http.StatusUnauthorized, "Unauthorized", ErrorResponse{}).
		Returns(http.StatusNotFound, "Acronym not found", ErrorResponse{}))

	ws.Route(ws.DELETE("/{acronym-id}").Filter(ctl.filters.AuthFilter()).To(ctl.deleteHandler).
		Doc("Delete an acronym and its category links").
		Param(idParam).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusNoContent, "Deleted", nil).
		Returns(http.StatusUnauthorized, "Unauthorized", ErrorResponse{}).
		Returns(http.StatusNotFound, "Acronym not found", ErrorResponse{}))

	ws.Route(ws.POST("/{acronym-id}/categories/{category-id}").Filter(ctl.filters.AuthFilter()).To(ctl.addCategoryHandler).
		Doc("Attach a category to an acronym").
		AllowedMethodsWithoutContentType([]string{http.MethodPost}).
		Param(idParam).Param(categoryParam).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusCreated, "Attached", nil).
		Returns(http.StatusUnauthorized, "Unauthorized", ErrorResponse{}).
		Returns(http.StatusNotFound, "Acronym or category not found", ErrorResponse{}))

	ws.Route(ws.DELETE("/{acronym-id}/categories/{category-id}").Filter(ctl.filters.AuthFilter()).To(ctl.removeCategoryHandler).
		Doc("Detach a category from an acronym").
		Param(idParam).Param(categoryParam).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusNoContent, "Detached", nil).
		Returns(http.StatusUnauthorized, "Unauthorized", ErrorResponse{}).
		Returns(http.StatusNotFound, "Acronym or category not found", ErrorResponse{}))
}

func (ctl *AcronymController) listHandler(request *restful.Request, response *restful.Response) {
	acronyms, err := ctl.acronymService.List(request.Request.Context())
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, acronyms, restful.MIME_JSON)
}

func (ctl *AcronymController) searchHandler(request *restful.Request, response *restful.Response) {
	acronyms, err := ctl.acronymService.Search(request.Request.Context(), request.QueryParameter("term"))
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, acronyms, restful.MIME_JSON)
}

func (ctl *AcronymController) firstHandler(request *restful.Request, response *restful.Response) {
	acronym, err := ctl.acronymService.First(request.Request.Context())
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, acronym, restful.MIME_JSON)
}

func (ctl *AcronymController) sortedHandler(request *restful.Request, response *restful.Response) {
	acronyms, err := ctl.acronymService.Sorted(request.Request.Context())
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, acronyms, restful.MIME_JSON)
}

func (ctl *AcronymController) getHandler(request *restful.Request, response *restful.Response) {
	id, ok := uintPathParameter(request, response, "acronym-id")
	if !ok {
		return
	}
	acronym, err := ctl.acronymService.Get(request.Request.Context(), id)
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, acronym, restful.MIME_JSON)
}

func (ctl *AcronymController) ownerHandler(request *restful.Request, response *restful.Response) {
	id, ok := uintPathParameter(request, response, "acronym-id")
	if !ok {
		return
	}
	owner, err := ctl.acronymService.Owner(request.Request.Context(), id)
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, owner.Public(), restful.MIME_JSON)
}

func (ctl *AcronymController) categoriesHandler(request *restful.Request, response *restful.Response) {
	id, ok := uintPathParameter(request, response, "acronym-id")
	if !ok {
		return
	}
	categories, err := ctl.acronymService.Categories(request.Request.Context(), id)
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, categories, restful.MIME_JSON)
}

func (ctl *AcronymController) createHandler(request *restful.Request, response *restful.Response) {
	identity, ok := auth.IdentityFrom(request)
	if !ok {
		writeError(response, http.StatusUnauthorized, "Unauthorized")
		return
	}
	input := new(services.AcronymInput)
	if err := request.ReadEntity(input); err != nil {
		writeError(response, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	acronym, err := ctl.acronymService.Create(request.Request.Context(), identity.User.ID, input)
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusCreated, acronym, restful.MIME_JSON)
}

func (ctl *AcronymController) updateHandler(request *restful.Request, response *restful.Response) {
	id, ok := uintPathParameter(request, response, "acronym-id")
	if !ok {
		return
	}
	identity, ok := auth.IdentityFrom(request)
	if !ok {
		writeError(response, http.StatusUnauthorized, "Unauthorized")
		return
	}
	input := new(services.AcronymInput)
	if err := request.ReadEntity(input); err != nil {
		writeError(response, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	acronym, err := ctl.acronymService.Update(request.Request.Context(), id, identity.User.ID, input)
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, acronym, restful.MIME_JSON)
}

func (ctl *AcronymController) deleteHandler(request *restful.Request, response *restful.Response) {
	id, ok := uintPathParameter(request, response, "acronym-id")
	if !ok {
		return
	}
	if err := ctl.acronymService.Delete(request.Request.Context(), id); err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	response.WriteHeader(http.StatusNoContent)
}

func (ctl *AcronymController) addCategoryHandler(request *restful.Request, response *restful.Response) {
	acronymID, ok := uintPathParameter(request, response, "acronym-id")
	if !ok {
		return
	}
	categoryID, ok := uintPathParameter(request, response, "category-id")
	if !ok {
		return
	}
	if err := ctl.acronymService.AddCategory(request.Request.Context(), acronymID, categoryID); err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	response.WriteHeader(http.StatusCreated)
}

func (ctl *AcronymController) removeCategoryHandler(request *restful.Request, response *restful.Response) {
	acronymID, ok := uintPathParameter(request, response, "acronym-id")
	if !ok {
		return
	}
	categoryID, ok := uintPathParameter(request, response, "category-id")
	if !ok {
		return
	}
	if err := ctl.acronymService.RemoveCategory(request.Request.Context(), acronymID, categoryID); err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	response.WriteHeader(http.StatusNoContent)
}
