package query

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Source is the persistence surface a list endpoint needs.
type Source interface {
	CountAll(ctx context.Context, collection string) (int64, error)
	Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline) ([]bson.M, error)
}

type PageRef struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type Pagination struct {
	Next *PageRef `json:"next,omitempty"`
	Prev *PageRef `json:"prev,omitempty"`
}

// Envelope is returned verbatim by list endpoints.
type Envelope struct {
	Success    bool       `json:"success"`
	Count      int        `json:"count"`
	Pagination Pagination `json:"pagination"`
	Data       []bson.M   `json:"data"`
}

// Paginate computes next/prev links against total.
// total is the unfiltered collection size, so next may point past the filtered results.
func (p *Plan) Paginate(total int64) Pagination {
	var pg Pagination
	start := p.Skip()
	end := p.Page * p.Limit
	if int64(end) < total {
		pg.Next = &PageRef{Page: p.Page + 1, Limit: p.Limit}
	}
	if start > 0 {
		pg.Prev = &PageRef{Page: p.Page - 1, Limit: p.Limit}
	}
	return pg
}

// Run parses values, executes the plan against src and builds the envelope.
func Run(ctx context.Context, src Source, res Resource, values map[string][]string) (*Envelope, error) {
	plan := Parse(values, res)
	total, err := src.CountAll(ctx, res.Collection)
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", res.Collection, err)
	}
	docs, err := src.Aggregate(ctx, res.Collection, plan.Pipeline(res))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", res.Collection, err)
	}
	if docs == nil {
		docs = []bson.M{}
	}
	return &Envelope{
		Success:    true,
		Count:      len(docs),
		Pagination: plan.Paginate(total),
		Data:       docs,
	}, nil
}
