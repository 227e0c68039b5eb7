package graph

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

//go:embed schema.graphqls
var schemaSource string

var parsedSchema = gqlparser.MustLoadSchema(&ast.Source{Name: "schema.graphqls", Input: schemaSource})

var null = json.RawMessage("null")

// fieldResolver computes one field of a schema type. obj is the parent value and is nil
// for Query and Mutation fields.
type fieldResolver func(ctx context.Context, obj any, args map[string]any) (any, error)

// Config mirrors the generated gqlgen config so the server wiring stays the same.
type Config struct {
	Resolvers *Resolver
}

type executableSchema struct {
	schema    *ast.Schema
	resolvers map[string]fieldResolver
}

// NewExecutableSchema serves schema.graphqls from the resolver map. Fields without a
// resolver are read from the parent Go struct by case-insensitive name.
func NewExecutableSchema(cfg Config) graphql.ExecutableSchema {
	return &executableSchema{schema: parsedSchema, resolvers: cfg.Resolvers.fields()}
}

func (e *executableSchema) Schema() *ast.Schema {
	return e.schema
}

func (e *executableSchema) Complexity(typeName, field string, childComplexity int, args map[string]interface{}) (int, bool) {
	return 0, false
}

func (e *executableSchema) Exec(ctx context.Context) graphql.ResponseHandler {
	rc := graphql.GetOperationContext(ctx)
	var root *ast.Definition
	switch rc.Operation.Operation {
	case ast.Query:
		root = e.schema.Query
	case ast.Mutation:
		root = e.schema.Mutation
	}
	if root == nil {
		return graphql.OneShot(graphql.ErrorResponse(ctx, "unsupported GraphQL operation"))
	}

	ec := &executionContext{OperationContext: rc, schema: e.schema, resolvers: e.resolvers}
	first := true
	return func(ctx context.Context) *graphql.Response {
		if !first {
			return nil
		}
		first = false
		data := ec.object(ctx, root, rc.Operation.SelectionSet, nil)
		return &graphql.Response{Data: data}
	}
}

type executionContext struct {
	*graphql.OperationContext
	schema    *ast.Schema
	resolvers map[string]fieldResolver
}

// object renders the selected fields in selection order. Fields run one after the
// other, so mutations apply in document order.
func (ec *executionContext) object(ctx context.Context, def *ast.Definition, sel ast.SelectionSet, obj any) json.RawMessage {
	fields := graphql.CollectFields(ec.OperationContext, sel, []string{def.Name})

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(field.Alias)
		buf.Write(key)
		buf.WriteByte(':')
		if field.Name == "__typename" {
			name, _ := json.Marshal(def.Name)
			buf.Write(name)
			continue
		}
		buf.Write(ec.field(ctx, def, field, obj))
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

func (ec *executionContext) field(ctx context.Context, parent *ast.Definition, field graphql.CollectedField, obj any) (res json.RawMessage) {
	if field.Definition == nil {
		graphql.AddError(ctx, fmt.Errorf("field %s.%s is not supported", parent.Name, field.Name))
		return null
	}
	fc := &graphql.FieldContext{
		Object: parent.Name,
		Field:  field,
		Args:   field.ArgumentMap(ec.Variables),
	}
	ctx = graphql.WithFieldContext(ctx, fc)
	defer func() {
		if r := recover(); r != nil {
			ec.recovered(ctx, r)
			res = null
		}
	}()

	var value any
	var err error
	if resolve, ok := ec.resolvers[parent.Name+"."+field.Name]; ok {
		fc.IsMethod = true
		fc.IsResolver = true
		next := func(rctx context.Context) (any, error) {
			return resolve(rctx, obj, fc.Args)
		}
		if ec.ResolverMiddleware != nil {
			value, err = ec.ResolverMiddleware(ctx, next)
		} else {
			value, err = next(ctx)
		}
	} else {
		value, err = structField(obj, field.Name)
	}
	if err != nil {
		graphql.AddError(ctx, err)
		return null
	}
	fc.Result = value
	return ec.value(ctx, field.Definition.Type, field.Selections, value)
}

// value renders v as typ. List elements render concurrently so per-element loads
// land in the same dataloader batch.
func (ec *executionContext) value(ctx context.Context, typ *ast.Type, sel ast.SelectionSet, v any) json.RawMessage {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return null
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return null
	}

	if typ.Elem != nil {
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			graphql.AddError(ctx, fmt.Errorf("expected a list, got %T", v))
			return null
		}
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return json.RawMessage("[]")
		}
		items := make([]json.RawMessage, rv.Len())
		var wg sync.WaitGroup
		for i := range items {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				idx := i
				item := rv.Index(i).Interface()
				ictx := graphql.WithFieldContext(ctx, &graphql.FieldContext{Index: &idx, Result: item})
				defer func() {
					if r := recover(); r != nil {
						ec.recovered(ictx, r)
						items[i] = null
					}
				}()
				items[i] = ec.value(ictx, typ.Elem, sel, item)
			}(i)
		}
		wg.Wait()

		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range items {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.Write(item)
		}
		buf.WriteByte(']')
		return buf.Bytes()
	}

	def := ec.schema.Types[typ.NamedType]
	if def != nil && def.Kind == ast.Object {
		return ec.object(ctx, def, sel, v)
	}
	b, err := json.Marshal(rv.Interface())
	if err != nil {
		graphql.AddError(ctx, err)
		return null
	}
	return b
}

func (ec *executionContext) recovered(ctx context.Context, r any) {
	if ec.RecoverFunc != nil {
		graphql.AddError(ctx, ec.Recover(ctx, r))
		return
	}
	graphql.AddError(ctx, fmt.Errorf("internal system error"))
}

// structField reads the exported field of obj whose name matches name ignoring case,
// looking through embedded structs.
func structField(obj any, name string) (any, error) {
	rv := reflect.ValueOf(obj)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("cannot resolve %s on %T", name, obj)
	}
	f := rv.FieldByNameFunc(func(n string) bool { return strings.EqualFold(n, name) })
	if !f.IsValid() || !f.CanInterface() {
		return nil, fmt.Errorf("cannot resolve %s on %T", name, obj)
	}
	return f.Interface(), nil
}
