package controllers

import (
	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	restful "github.com/emicklei/go-restful/v3"
	"github.com/go-openapi/spec"
)

// RouteRegistrar is implemented by every controller.
type RouteRegistrar interface {
	RegisterRoutes(ws *restful.WebService)
}

// Register gives each controller its own WebService on container and
// publishes the OpenAPI document of all of them at apiPath.
func Register(container *restful.Container, apiPath string, controllers ...RouteRegistrar) {
	services := make([]*restful.WebService, 0, len(controllers))
	for _, ctl := range controllers {
		ws := new(restful.WebService)
		ctl.RegisterRoutes(ws)
		container.Add(ws)
		services = append(services, ws)
	}

	container.Add(restfulspec.NewOpenAPIService(restfulspec.Config{
		WebServices:                   services,
		APIPath:                       apiPath,
		PostBuildSwaggerObjectHandler: describeAPI,
	}))
}

func describeAPI(swo *spec.Swagger) {
	swo.Info = &spec.Info{
		InfoProps: spec.InfoProps{
			Title:       "Acronyms API",
			Description: "Acronyms, their categories and the users who own them",
			Version:     "1.0.0",
		},
	}
	swo.Tags = []spec.Tag{
		{TagProps: spec.TagProps{Name: "users", Description: "Accounts and bearer tokens"}},
		{TagProps: spec.TagProps{Name: "acronyms", Description: "Acronyms and their categories"}},
		{TagProps: spec.TagProps{Name: "categories", Description: "Category tags"}},
	}
}
