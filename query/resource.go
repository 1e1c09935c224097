package query

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// FieldType controls how filter values are coerced for a field.
type FieldType int

const (
	Infer FieldType = iota
	String
	Number
	Bool
	// ObjectID parses 24-hex ids; other input is kept as text and matches nothing.
	ObjectID
	// Date accepts RFC 3339 timestamps and YYYY-MM-DD dates, taken as UTC.
	Date
)

// Populate expands a related collection into Path, like a join on LocalField = ForeignField.
type Populate struct {
	Path         string
	From         string
	LocalField   string
	ForeignField string
	Select       []string
	// Single unwinds the joined array into one embedded document (or null).
	Single bool
}

// Resource describes a collection exposed through a list endpoint.
type Resource struct {
	Collection string
	Hidden     []string
	Types      map[string]FieldType
	Populate   []Populate
}

func (r Resource) typeOf(field string) FieldType {
	if t, ok := r.Types[field]; ok {
		return t
	}
	return Infer
}

// hides reports whether field or its top-level document is hidden.
func (r Resource) hides(field string) bool {
	root, _, _ := strings.Cut(field, ".")
	return r.hidden(root) || r.hidden(field)
}

func (r Resource) hidden(field string) bool {
	for _, h := range r.Hidden {
		if h == field {
			return true
		}
	}
	return false
}

// Projection merges the requested fields with the resource's hidden fields.
// An inclusion list wins over exclusions; hidden fields can never be included.
func (p *Plan) Projection(res Resource) bson.D {
	proj := bson.D{}
	for _, f := range p.Select {
		if !res.hidden(f) {
			proj = append(proj, bson.E{Key: f, Value: 1})
		}
	}
	if len(proj) > 0 {
		for _, pop := range res.Populate {
			if !containsKey(proj, pop.Path) {
				proj = append(proj, bson.E{Key: pop.Path, Value: 1})
			}
		}
		return proj
	}
	for _, f := range res.Hidden {
		proj = append(proj, bson.E{Key: f, Value: 0})
	}
	for _, f := range p.Exclude {
		if !containsKey(proj, f) {
			proj = append(proj, bson.E{Key: f, Value: 0})
		}
	}
	return proj
}

// Pipeline renders the plan for Aggregate.
func (p *Plan) Pipeline(res Resource) mongo.Pipeline {
	pipe := mongo.Pipeline{
		{{Key: "$match", Value: p.Match()}},
		{{Key: "$sort", Value: p.Sort}},
		{{Key: "$skip", Value: int64(p.Skip())}},
		{{Key: "$limit", Value: int64(p.Limit)}},
	}
	for _, pop := range res.Populate {
		pipe = append(pipe, pop.Stages()...)
	}
	if proj := p.Projection(res); len(proj) > 0 {
		pipe = append(pipe, bson.D{{Key: "$project", Value: proj}})
	}
	return pipe
}

// Stages renders the $lookup (and $unwind for single refs) for one relation.
func (pop Populate) Stages() []bson.D {
	inner := bson.A{
		bson.D{{Key: "$match", Value: bson.D{{Key: "$expr", Value: bson.D{
			{Key: "$eq", Value: bson.A{"$" + pop.ForeignField, "$$ref"}},
		}}}}},
	}
	if len(pop.Select) > 0 {
		proj := bson.D{}
		for _, f := range pop.Select {
			proj = append(proj, bson.E{Key: f, Value: 1})
		}
		inner = append(inner, bson.D{{Key: "$project", Value: proj}})
	}
	stages := []bson.D{{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: pop.From},
		{Key: "let", Value: bson.D{{Key: "ref", Value: "$" + pop.LocalField}}},
		{Key: "pipeline", Value: inner},
		{Key: "as", Value: pop.Path},
	}}}}
	if pop.Single {
		stages = append(stages, bson.D{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$" + pop.Path},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}})
	}
	return stages
}

func containsKey(d bson.D, key string) bool {
	for _, e := range d {
		if e.Key == key {
			return true
		}
	}
	return false
}
