package extensions

import (
	"context"

	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/unchained/internal/templates"
)

// Title renders a scalar attribute in English title case.
func Title(_ context.Context, call *templates.OperationCall, data templates.ContextMap, _ *templates.RenderOptions) (string, error) {
	value, err := scalarParam(call, data)
	if err != nil {
		return "", err
	}

	return cases.Title(language.English).String(value), nil
}

// Slug renders a scalar attribute as a URL slug.
func Slug(_ context.Context, call *templates.OperationCall, data templates.ContextMap, _ *templates.RenderOptions) (string, error) {
	value, err := scalarParam(call, data)
	if err != nil {
		return "", err
	}

	return slug.Make(value), nil
}

func scalarParam(call *templates.OperationCall, data templates.ContextMap) (string, error) {
	params, err := templates.ExpectParams(call, 1)
	if err != nil {
		return "", err
	}

	return templates.LookupString(data, params[0])
}
