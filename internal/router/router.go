// Package router maps classified topic tags to a pipeline branch.
package router

import (
	"fmt"

	"github.com/spec-kit/ticket-router/internal/config"
	"github.com/spec-kit/ticket-router/internal/domain"
)

// Entry binds one tag to a route. Collection is required for the rag route.
type Entry struct {
	Tag        domain.TopicTag
	Route      domain.RouteName
	Collection string
}

// Table is an immutable tag to route mapping.
type Table struct {
	entries map[domain.TopicTag]Entry
}

// NewTable validates entries and builds a table. A tag may appear once.
func NewTable(entries []Entry) (*Table, error) {
	t := &Table{entries: make(map[domain.TopicTag]Entry, len(entries))}
	for i, e := range entries {
		if !e.Tag.Valid() {
			return nil, fmt.Errorf("route %d: unknown tag %q", i, e.Tag)
		}
		if !e.Route.Valid() {
			return nil, fmt.Errorf("route %d: unknown route %q", i, e.Route)
		}
		if e.Route == domain.RouteRAG && e.Collection == "" {
			return nil, fmt.Errorf("route %d: rag route for %q needs a collection", i, e.Tag)
		}
		if e.Route == domain.RouteHandoff {
			e.Collection = ""
		}
		if _, dup := t.entries[e.Tag]; dup {
			return nil, fmt.Errorf("route %d: duplicate tag %q", i, e.Tag)
		}
		t.entries[e.Tag] = e
	}
	return t, nil
}

// DefaultTable answers product and developer questions. Connector, Lineage,
// Glossary and Sensitive data have no entry and fall through to handoff.
func DefaultTable(docsCollection, developerCollection string) *Table {
	t, err := NewTable([]Entry{
		{Tag: domain.TagHowTo, Route: domain.RouteRAG, Collection: docsCollection},
		{Tag: domain.TagProduct, Route: domain.RouteRAG, Collection: docsCollection},
		{Tag: domain.TagSSO, Route: domain.RouteRAG, Collection: docsCollection},
		{Tag: domain.TagBestPractices, Route: domain.RouteRAG, Collection: docsCollection},
		{Tag: domain.TagAPISDK, Route: domain.RouteRAG, Collection: developerCollection},
	})
	if err != nil {
		panic(err)
	}
	return t
}

// TableFromConfig converts a parsed route file into a table.
func TableFromConfig(file *config.RouteTableFileConfig) (*Table, error) {
	entries := make([]Entry, 0, len(file.Routes))
	for _, r := range file.Routes {
		entries = append(entries, Entry{
			Tag:        domain.TopicTag(r.Tag),
			Route:      domain.RouteName(r.Route),
			Collection: r.Collection,
		})
	}
	return NewTable(entries)
}

// Load returns the table from cfg.RouteTableFile, or the default table when no file is set.
func Load(cfg *config.Config) (*Table, error) {
	if cfg.RouteTableFile == "" {
		return DefaultTable(cfg.VectorDB.DocsCollection, cfg.VectorDB.DeveloperCollection), nil
	}
	file, err := config.LoadRouteTable(cfg.RouteTableFile)
	if err != nil {
		return nil, err
	}
	return TableFromConfig(file)
}

// Route walks tags in classifier order and returns the entry of the first tag
// that has one, so tag order decides the branch. Tags without an entry are
// skipped; an explicit handoff entry stops the walk. No match, or no tags,
// hands off.
func (t *Table) Route(tags []domain.TopicTag) domain.RouteDecision {
	for _, tag := range tags {
		e, ok := t.entries[tag]
		if !ok {
			continue
		}
		return domain.RouteDecision{Route: e.Route, Collection: e.Collection, MatchedTag: tag}
	}
	return domain.HandoffDecision()
}

// Collections lists the distinct rag collections in the table.
func (t *Table) Collections() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, tag := range domain.TopicTags {
		e, ok := t.entries[tag]
		if !ok || e.Route != domain.RouteRAG {
			continue
		}
		if _, dup := seen[e.Collection]; dup {
			continue
		}
		seen[e.Collection] = struct{}{}
		out = append(out, e.Collection)
	}
	return out
}
