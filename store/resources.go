package store

import (
	"github.com/kevinaaaquil/devcamper/models"
	"github.com/kevinaaaquil/devcamper/query"
)

// bootcampSummary is embedded wherever a course or review references its bootcamp.
var bootcampSummary = query.Populate{
	Path:         "bootcamp",
	From:         BootcampsCollection,
	LocalField:   "bootcamp",
	ForeignField: "_id",
	Select:       []string{"name", "description"},
	Single:       true,
}

// fieldTypes adds the id and timestamp fields every collection shares to extra.
func fieldTypes(extra map[string]query.FieldType) map[string]query.FieldType {
	types := map[string]query.FieldType{
		"_id":       query.ObjectID,
		"user":      query.ObjectID,
		"bootcamp":  query.ObjectID,
		"createdAt": query.Date,
	}
	for k, v := range extra {
		types[k] = v
	}
	return types
}

var (
	UserResource = query.Resource{
		Collection: UsersCollection,
		Hidden:     models.UserHiddenFields,
		Types:      fieldTypes(nil),
	}

	BootcampResource = query.Resource{
		Collection: BootcampsCollection,
		Types: fieldTypes(map[string]query.FieldType{
			"phone":            query.String,
			"location.zipcode": query.String,
			"averageCost":      query.Number,
			"averageRating":    query.Number,
			"housing":          query.Bool,
			"jobAssistance":    query.Bool,
			"jobGuarantee":     query.Bool,
			"acceptGi":         query.Bool,
		}),
		Populate: []query.Populate{{
			Path:         "courses",
			From:         CoursesCollection,
			LocalField:   "_id",
			ForeignField: "bootcamp",
		}},
	}

	CourseResource = query.Resource{
		Collection: CoursesCollection,
		Types: fieldTypes(map[string]query.FieldType{
			"weeks":                query.String,
			"tuition":              query.Number,
			"scholarshipAvailable": query.Bool,
		}),
		Populate: []query.Populate{bootcampSummary},
	}

	ReviewResource = query.Resource{
		Collection: ReviewsCollection,
		Types:      fieldTypes(map[string]query.FieldType{"rating": query.Number}),
		Populate:   []query.Populate{bootcampSummary},
	}
)
