package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RouteTableFileConfig is the on-disk shape of a route table.
//
//	routes:
//	  - tag: How-to
//	    route: rag
//	    collection: docs
type RouteTableFileConfig struct {
	Routes []RouteEntryConfig `yaml:"routes"`
}

// RouteEntryConfig maps one topic tag to a route.
type RouteEntryConfig struct {
	Tag        string `yaml:"tag"`
	Route      string `yaml:"route"`
	Collection string `yaml:"collection,omitempty"`
}

// LoadRouteTable parses a YAML route table. Semantic checks belong to the router.
func LoadRouteTable(path string) (*RouteTableFileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route table: %w", err)
	}
	var table RouteTableFileConfig
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse route table %s: %w", path, err)
	}
	if len(table.Routes) == 0 {
		return nil, fmt.Errorf("route table %s has no routes", path)
	}
	return &table, nil
}
