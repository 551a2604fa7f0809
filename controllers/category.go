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

type CategoryController struct {
	categoryService services.CategoryService
	filters         *auth.Filters
	logger          *zap.Logger
}

func NewCategoryController(categoryService services.CategoryService, filters *auth.Filters, logger *zap.Logger) *CategoryController {
	return &CategoryController{categoryService: categoryService, filters: filters, logger: logger.Named("categories")}
}

func (ctl *CategoryController) RegisterRoutes(ws *restful.WebService) {
	ws.Path("/api/categories").Consumes(restful.MIME_JSON).Produces(restful.MIME_JSON)
	tags := []string{"categories"}
	idParam := ws.PathParameter("category-id", "Identifier of the category").DataType("integer")

	ws.Route(ws.GET("").To(ctl.listHandler).
		Doc("List all categories").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "OK", []models.Category{}))

	ws.Route(ws.GET("/{category-id}").To(ctl.getHandler).
		Doc("Get category by ID").
		Param(idParam).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "OK", models.Category{}).
		Returns(http.StatusNotFound, "Category not found", ErrorResponse{}))

	ws.Route(ws.GET("/{category-id}/acronyms").To(ctl.acronymsHandler).
		Doc("List the acronyms tagged with a category").
		Param(idParam).
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Returns(http.StatusOK, "OK", []models.Acronym{}).
		Returns(http.StatusNotFound, "Category not found", ErrorResponse{}))

	ws.Route(ws.POST("").Filter(ctl.filters.AuthFilter()).To(ctl.createHandler).
		Doc("Create a category").
		Metadata(restfulspec.KeyOpenAPITags, tags).
		Reads(services.CreateCategoryInput{}).
		Returns(http.StatusCreated, "Created", models.Category{}).
		Returns(http.StatusBadRequest, "Invalid request body", ErrorResponse{}).
		Returns(http.StatusUnauthorized, "Unauthorized", ErrorResponse{}).
		Returns(http.StatusConflict, "Name already exists", ErrorResponse{}))
}

func (ctl *CategoryController) listHandler(request *restful.Request, response *restful.Response) {
	categories, err := ctl.categoryService.List(request.Request.Context())
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, categories, restful.MIME_JSON)
}

func (ctl *CategoryController) getHandler(request *restful.Request, response *restful.Response) {
	id, ok := uintPathParameter(request, response, "category-id")
	if !ok {
		return
	}
	category, err := ctl.categoryService.Get(request.Request.Context(), id)
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, category, restful.MIME_JSON)
}

func (ctl *CategoryController) acronymsHandler(request *restful.Request, response *restful.Response) {
	id, ok := uintPathParameter(request, response, "category-id")
	if !ok {
		return
	}
	acronyms, err := ctl.categoryService.Acronyms(request.Request.Context(), id)
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusOK, acronyms, restful.MIME_JSON)
}

func (ctl *CategoryController) createHandler(request *restful.Request, response *restful.Response) {
	input := new(services.CreateCategoryInput)
	if err := request.ReadEntity(input); err != nil {
		writeError(response, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	category, err := ctl.categoryService.Create(request.Request.Context(), input)
	if err != nil {
		handleServiceError(response, err, ctl.logger)
		return
	}
	_ = response.WriteHeaderAndJson(http.StatusCreated, category, restful.MIME_JSON)
}
