package engine

import (
	"archivist/internal/types"
	"reflect"

	"github.com/jmespath/go-jmespath"
)

// Segment filters visits with a JMESPath expression evaluated against the visit document
// (see visitDocument). A visit matches when the expression yields a truthy value.
type Segment struct {
	expr string
	jp   *jmespath.JMESPath
}

// CompileSegment compiles expr. An empty expression matches every visit.
func CompileSegment(expr string) (*Segment, error) {
	if expr == "" {
		return &Segment{}, nil
	}
	jp, err := jmespath.Compile(expr)
	if err != nil {
		return nil, types.Err(types.ErrInvalidParams, err, "segment %q", expr)
	}
	return &Segment{expr: expr, jp: jp}, nil
}

func (s *Segment) Match(v types.Visit) (bool, error) {
	if s.jp == nil {
		return true, nil
	}
	out, err := s.jp.Search(visitDocument(v))
	if err != nil {
		return false, types.Err(types.ErrInvalidParams, err, "evaluate segment %q", s.expr)
	}
	return truthy(out), nil
}

func visitDocument(v types.Visit) map[string]any {
	attrs := v.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	return map[string]any{
		"visitor_id":       v.VisitorID,
		"actions":          float64(v.Actions),
		"duration_seconds": float64(v.DurationSeconds),
		"converted":        v.Converted,
		"revenue":          v.Revenue,
		"attributes":       attrs,
	}
}

// truthy follows JMESPath's notion of false values: null, false, "", empty arrays and objects.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() > 0
	}
	return true
}
