package params_test

import (
	"testing"

	"github.com/hashmap-kz/katomik-flow/id"
	"github.com/hashmap-kz/katomik-flow/params"
	"github.com/hashmap-kz/katomik-flow/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type url struct{ URL string }

func ctx() *params.ResolutionCtx {
	return params.NewResolutionCtx(params.Goal, id.MustNew("b"), "BParams")
}

func TestValueAlwaysResolves(t *testing.T) {
	spec := params.Value[int]{V: 42}
	v, err := spec.Resolve(resources.New(), ctx())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestStoredResolvesFromResourceMap(t *testing.T) {
	res := resources.New()
	resources.Insert(res, url{URL: "https://example.com"})

	spec := params.Stored[url]{}
	v, err := spec.Resolve(res, ctx())
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", v.URL)
}

func TestStoredMissingIsFromError(t *testing.T) {
	spec := params.Stored[url]{}
	_, err := spec.Resolve(resources.New(), ctx())
	require.Error(t, err)
	var resolveErr *params.ResolveError
	require.ErrorAs(t, err, &resolveErr)
	assert.Equal(t, "From", resolveErr.Kind)
}

func TestInMemoryResolvesSeededSlot(t *testing.T) {
	res := resources.New()
	params.PutInMemory(res, url{URL: "in-memory-url"})

	spec := params.InMemory[url]{}
	v, err := spec.Resolve(res, ctx())
	require.NoError(t, err)
	assert.Equal(t, "in-memory-url", v.URL)
}

func TestMappingFnPropagatesDependencyValue(t *testing.T) {
	res := resources.New()
	resources.Insert(res, url{URL: "https://propagated"})

	spec := params.MappingFn1[string, url]{
		Fn: func(u url) (string, bool) { return u.URL, true },
	}
	v, err := spec.Resolve(res, ctx())
	require.NoError(t, err)
	assert.Equal(t, "https://propagated", v)
}

func TestMappingFnPartialAbsentBeforeDependencyReady(t *testing.T) {
	res := resources.New()
	spec := params.MappingFn1[string, url]{
		Fn: func(u url) (string, bool) { return u.URL, true },
	}
	_, ok := spec.ResolvePartial(res, ctx())
	assert.False(t, ok)
}

type bParams struct {
	URL string
}

func TestFieldWiseAssemblesFromFields(t *testing.T) {
	res := resources.New()
	resources.Insert(res, url{URL: "https://a"})

	spec := params.FieldWise[bParams]{
		Fields: []params.FieldSpec{
			params.Field("url", "string", params.MappingFn1[string, url]{
				Fn: func(u url) (string, bool) { return u.URL, true },
			}),
		},
		Assemble: func(values map[string]any) bParams {
			return bParams{URL: values["url"].(string)}
		},
	}
	v, err := spec.Resolve(res, ctx())
	require.NoError(t, err)
	assert.Equal(t, "https://a", v.URL)
}

func TestResolutionCtxStringFormatsNestedChain(t *testing.T) {
	c := params.NewResolutionCtx(params.Goal, id.MustNew("b"), "BParams")
	c.Push(params.FieldNameAndType{FieldName: "outer", TypeName: "Outer"})
	c.Push(params.FieldNameAndType{FieldName: "inner", TypeName: "Inner"})
	assert.Equal(t, "BParams { outer: Outer { inner: Inner, .. }, .. }", c.String())
}

func TestResolutionCtxStringEmptyChain(t *testing.T) {
	c := params.NewResolutionCtx(params.Current, id.MustNew("a"), "AParams")
	assert.Equal(t, "AParams { .. }", c.String())
}
