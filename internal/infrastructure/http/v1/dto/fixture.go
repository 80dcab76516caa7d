package dto

import (
	"seedgraph/internal/domain/materialize"
	"seedgraph/internal/domain/persist"
)

// FixtureQuery holds the query parameters of POST /api/v1/fixtures/:name.
type FixtureQuery struct {
	Count   int    `form:"count" binding:"omitempty,min=1,max=100"`
	Persist bool   `form:"persist"`
	Mode    string `form:"mode" binding:"omitempty,oneof=ignore-optional include-optional a b"`
}

// Defaults sets default values.
func (q *FixtureQuery) Defaults() {
	if q.Count == 0 {
		q.Count = 1
	}
}

// CleanupQuery holds the query parameters of DELETE /api/v1/fixtures/:name.
type CleanupQuery struct {
	Exclude []string `form:"exclude"`
	Mode    string   `form:"mode" binding:"omitempty,oneof=ignore-optional include-optional a b"`
}

// FixtureResponse is the result of one generation request.
type FixtureResponse struct {
	Type      string          `json:"type"`
	Persisted bool            `json:"persisted"`
	Graphs    []GraphResponse `json:"graphs"`
}

// GraphResponse is one materialized graph.
type GraphResponse struct {
	Root     any            `json:"root"`
	Items    []ItemResponse `json:"items"`
	Warnings []string       `json:"warnings,omitempty"`
}

// ItemResponse is one instance of the construction sequence.
type ItemResponse struct {
	Type     string `json:"type"`
	Table    string `json:"table,omitempty"`
	Identity any    `json:"identity,omitempty"`
	Reused   bool   `json:"reused,omitempty"`
}

// CleanupResponse reports deleted rows.
type CleanupResponse struct {
	Type    string `json:"type"`
	Deleted int64  `json:"deleted"`
}

// FromResult converts a materialization result.
func FromResult(res *materialize.Result) GraphResponse {
	out := GraphResponse{
		Root:  res.Root.Interface(),
		Items: make([]ItemResponse, 0, len(res.Items)),
	}
	for _, it := range res.Items {
		item := ItemResponse{
			Type:   it.Descriptor.Name(),
			Table:  it.Descriptor.TableName(),
			Reused: it.Reused,
		}
		if v, ok := persist.IdentityOf(it.Descriptor, it.Instance); ok {
			item.Identity = v
		}
		out.Items = append(out.Items, item)
	}
	for _, w := range res.Warnings {
		out.Warnings = append(out.Warnings, w.String())
	}
	for _, w := range res.Associations {
		out.Warnings = append(out.Warnings, w.String())
	}
	return out
}
