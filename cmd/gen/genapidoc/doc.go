package genapidoc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/yusufsyaifudin/emailer/pkg/respbuilder"
	"github.com/yusufsyaifudin/openapidoc/schema"
)

const errorSchemaPrefix = "Error."

type BuildConfig struct {
	Title     string
	Version   string
	ServerURL string

	// SchemaLog receives the schema generator trace, may be nil.
	SchemaLog io.Writer
}

// Build documents every route into one OpenAPI 3 document.
// All responses follow respbuilder.HTTPSuccess or respbuilder.HTTPError.
func Build(ctx context.Context, conf BuildConfig, routes []Route) (doc *openapi3.T, err error) {
	if conf.SchemaLog == nil {
		conf.SchemaLog = io.Discard
	}

	components := openapi3.Components{
		Schemas:       map[string]*openapi3.SchemaRef{},
		Parameters:    map[string]*openapi3.ParameterRef{},
		RequestBodies: map[string]*openapi3.RequestBodyRef{},
		Responses:     map[string]*openapi3.ResponseRef{},
	}
	paths := make(map[string]*openapi3.PathItem)

	errSchemaName, err := addSchema(ctx, conf.SchemaLog, components, errorSchemaPrefix,
		respbuilder.Error(ctx, respbuilder.ErrValidation, errors.New("subject and body cannot be empty")),
	)
	if err != nil {
		return
	}

	for _, route := range routes {
		err = addRoute(ctx, conf.SchemaLog, components, paths, route, errSchemaName)
		if err != nil {
			err = fmt.Errorf("route %s %s: %w", route.Method, route.Path, err)
			return
		}
	}

	doc = &openapi3.T{
		OpenAPI:    "3.0.0",
		Components: components,
		Info: &openapi3.Info{
			Title:       conf.Title,
			Description: "Control API of the bulk email sender: recipient store, queue and campaign run.",
			Version:     conf.Version,
		},
		Servers: openapi3.Servers{
			{
				URL:         conf.ServerURL,
				Description: "Default server",
			},
		},
		Paths: paths,
	}

	return
}

func addRoute(ctx context.Context, log io.Writer, components openapi3.Components, paths map[string]*openapi3.PathItem, route Route, errSchemaName string) error {
	op := openapi3.NewOperation()
	op.Tags = []string{route.Tag}
	op.Summary = route.Summary
	op.Description = route.Description
	op.OperationID = route.OperationID

	for _, param := range route.Query {
		op.AddParameter(param)
	}

	if route.Request != nil {
		reqSchemaName, err := addSchema(ctx, log, components, route.OperationID+".", route.Request)
		if err != nil {
			return err
		}

		reqBody := openapi3.NewRequestBody().WithRequired(true)
		reqBody.WithJSONSchemaRef(&openapi3.SchemaRef{
			Ref: fmt.Sprintf("#/components/schemas/%s", reqSchemaName),
		})

		components.RequestBodies[route.OperationID] = &openapi3.RequestBodyRef{
			Value: reqBody,
		}

		op.RequestBody = &openapi3.RequestBodyRef{
			Ref: fmt.Sprintf("#/components/requestBodies/%s", route.OperationID),
		}
	}

	if route.Response == nil {
		op.AddResponse(route.Status, openapi3.NewResponse().
			WithContent(openapi3.NewContentWithSchema(openapi3.NewStringSchema(), []string{"text/plain"})).
			WithDescription(http.StatusText(route.Status)))
	} else {
		respSchemaName, err := addSchema(ctx, log, components,
			fmt.Sprintf("%s.Resp%d.", route.OperationID, route.Status),
			respbuilder.Success(ctx, route.Response),
		)
		if err != nil {
			return err
		}

		op.AddResponse(route.Status, openapi3.NewResponse().WithJSONSchemaRef(
			&openapi3.SchemaRef{
				Ref: fmt.Sprintf("#/components/schemas/%s", respSchemaName),
			},
		).WithDescription(http.StatusText(route.Status)))
	}

	errStatuses := append([]int{http.StatusInternalServerError}, route.Errors...)
	sort.Ints(errStatuses)
	for _, status := range errStatuses {
		op.AddResponse(status, openapi3.NewResponse().WithJSONSchemaRef(
			&openapi3.SchemaRef{
				Ref: fmt.Sprintf("#/components/schemas/%s", errSchemaName),
			},
		).WithDescription(errorDescription(status)))
	}

	item, exist := paths[route.Path]
	if !exist {
		item = &openapi3.PathItem{}
		paths[route.Path] = item
	}

	item.SetOperation(route.Method, op)
	return nil
}

func addSchema(ctx context.Context, log io.Writer, components openapi3.Components, prefix string, value interface{}) (string, error) {
	g, err := schema.NewGenerator(schema.WithLog(log), schema.WithSchemaPrefix(prefix))
	if err != nil {
		return "", fmt.Errorf("cannot prepare schema generator: %w", err)
	}

	out, err := g.Generate(ctx, value)
	if err != nil {
		return "", fmt.Errorf("cannot generate schema %s: %w", prefix, err)
	}

	for s, ref := range out.Schemas {
		components.Schemas[s] = ref
	}

	return out.ParentSchemaName, nil
}

func errorDescription(status int) string {
	for _, reason := range respbuilder.ReasonMap {
		if reason.Status == status {
			return fmt.Sprintf("%s, error_code %s", reason.Message, reason.Code)
		}
	}

	return http.StatusText(status)
}
