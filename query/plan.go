// Package query turns list-endpoint query strings into a typed plan, renders the plan
// as a MongoDB aggregation pipeline and wraps the results in a paginated envelope.
//
// A query string such as
//
//	?tuition[gte]=1000&careers[in]=Business,UI/UX&select=name,tuition&sort=-tuition&page=2&limit=10
//
// yields conditions on tuition and careers, an inclusion projection, a descending sort
// on tuition and the window skip=10, limit=10.
package query

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultPage  = 1
	DefaultLimit = 25
	// MaxLimit and MaxPage bound the window so the skip never overflows.
	MaxLimit = 1000
	MaxPage  = 1_000_000
)

// Op is a comparison operator from the allow-list.
type Op string

const (
	OpEq  Op = "eq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	OpIn  Op = "in"
)

var operators = map[string]Op{
	"gt":  OpGt,
	"gte": OpGte,
	"lt":  OpLt,
	"lte": OpLte,
	"in":  OpIn,
}

var reserved = map[string]bool{"select": true, "sort": true, "limit": true, "page": true}

var (
	fieldPath  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z0-9_]+)*$`)
	bracketKey = regexp.MustCompile(`^([^\[\]]+)\[([^\[\]]+)\]$`)
)

// Condition is one field/operator/value triple of the filter.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// Plan is the normalized form of a list request.
type Plan struct {
	Filter  []Condition
	Select  []string
	Exclude []string
	Sort    bson.D
	Page    int
	Limit   int
}

// Skip is the number of documents before the page window.
func (p *Plan) Skip() int {
	return (p.Page - 1) * p.Limit
}

// Parse builds a Plan from raw query values.
func Parse(values map[string][]string, res Resource) *Plan {
	p := &Plan{
		Page:  positiveInt(first(values, "page"), DefaultPage, MaxPage),
		Limit: positiveInt(first(values, "limit"), DefaultLimit, MaxLimit),
		Sort:  parseSort(first(values, "sort"), res),
	}
	p.Select, p.Exclude = parseSelect(first(values, "select"))

	keys := make([]string, 0, len(values))
	for k := range values {
		if !reserved[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	embedded := map[string]bson.D{}
	var embeddedOrder []string
	for _, key := range keys {
		vals := values[key]
		if len(vals) == 0 {
			continue
		}
		field, opName := key, ""
		if m := bracketKey.FindStringSubmatch(key); m != nil {
			field, opName = m[1], m[2]
		}
		if !fieldPath.MatchString(field) || res.hides(field) {
			continue
		}
		if opName == "" {
			p.Filter = append(p.Filter, Condition{Field: field, Op: OpEq, Value: eqValue(res.typeOf(field), vals)})
			continue
		}
		op, ok := operators[opName]
		if !ok {
			// Left as a nested document match, never as an operator.
			if !fieldPath.MatchString(opName) {
				continue
			}
			if _, seen := embedded[field]; !seen {
				embeddedOrder = append(embeddedOrder, field)
			}
			embedded[field] = append(embedded[field], bson.E{Key: opName, Value: vals[0]})
			continue
		}
		t := res.typeOf(field)
		if op == OpIn {
			var list bson.A
			for _, v := range vals {
				for _, part := range strings.Split(v, ",") {
					if part = strings.TrimSpace(part); part != "" {
						list = append(list, coerce(t, part))
					}
				}
			}
			p.Filter = append(p.Filter, Condition{Field: field, Op: OpIn, Value: list})
			continue
		}
		p.Filter = append(p.Filter, Condition{Field: field, Op: op, Value: coerce(t, vals[0])})
	}
	for _, field := range embeddedOrder {
		p.Filter = append(p.Filter, Condition{Field: field, Op: OpEq, Value: embedded[field]})
	}
	return p
}

// Match renders the filter. Conditions on the same field share one operator document.
func (p *Plan) Match() bson.D {
	grouped := map[string][]Condition{}
	var order []string
	for _, c := range p.Filter {
		if _, ok := grouped[c.Field]; !ok {
			order = append(order, c.Field)
		}
		grouped[c.Field] = append(grouped[c.Field], c)
	}
	match := bson.D{}
	for _, field := range order {
		conds := grouped[field]
		if len(conds) == 1 && conds[0].Op == OpEq {
			match = append(match, bson.E{Key: field, Value: conds[0].Value})
			continue
		}
		ops := bson.D{}
		for _, c := range conds {
			ops = append(ops, bson.E{Key: "$" + string(c.Op), Value: c.Value})
		}
		match = append(match, bson.E{Key: field, Value: ops})
	}
	return match
}

func eqValue(t FieldType, vals []string) any {
	if len(vals) == 1 {
		return coerce(t, vals[0])
	}
	list := make(bson.A, 0, len(vals))
	for _, v := range vals {
		list = append(list, coerce(t, v))
	}
	return list
}

func coerce(t FieldType, v string) any {
	switch t {
	case String:
		return v
	case Number:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		return v
	case Bool:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		return v
	case ObjectID:
		if id, err := primitive.ObjectIDFromHex(v); err == nil {
			return id
		}
		return v
	case Date:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if ts, err := time.Parse(layout, v); err == nil {
				return ts.UTC()
			}
		}
		return v
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	if v == "true" || v == "false" {
		return v == "true"
	}
	return v
}

func parseSort(s string, res Resource) bson.D {
	var out bson.D
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		dir := 1
		if strings.HasPrefix(part, "-") {
			dir = -1
			part = part[1:]
		}
		if fieldPath.MatchString(part) && !res.hides(part) {
			out = append(out, bson.E{Key: part, Value: dir})
		}
	}
	if len(out) == 0 {
		return bson.D{{Key: "createdAt", Value: -1}}
	}
	return out
}

func parseSelect(s string) (include, exclude []string) {
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "-") {
			if f := part[1:]; fieldPath.MatchString(f) {
				exclude = append(exclude, f)
			}
			continue
		}
		if fieldPath.MatchString(part) {
			include = append(include, part)
		}
	}
	return include, exclude
}

// positiveInt parses s, falling back on junk and clamping to ceiling.
func positiveInt(s string, fallback, ceiling int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return fallback
	}
	return min(n, ceiling)
}

func first(values map[string][]string, key string) string {
	if v := values[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}
