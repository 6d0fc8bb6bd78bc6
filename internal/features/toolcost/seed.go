// Package toolcost: seed.go reads a YAML price list, e.g.
//
//	tools:
//	  - tool_type: research
//	    name: Legal research
//	    credit_cost: 5
//	    active: true
package toolcost

import (
	"context"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Tools []seedEntry `yaml:"tools"`
}

// seedEntry defaults active to true when the key is missing.
type seedEntry struct {
	ToolType   string `yaml:"tool_type"`
	Name       string `yaml:"name"`
	CreditCost int64  `yaml:"credit_cost"`
	Active     *bool  `yaml:"active"`
}

// Writer stores seeded entries.
type Writer interface {
	UpsertToolCosts(ctx context.Context, entries []Entry) error
}

// ParseSeed decodes and validates a YAML price list.
func ParseSeed(r io.Reader) ([]Entry, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode tool costs: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Tools))
	out := make([]Entry, 0, len(f.Tools))
	for _, s := range f.Tools {
		e := Entry{ToolType: s.ToolType, Name: s.Name, CreditCost: s.CreditCost, Active: true}
		if s.Active != nil {
			e.Active = *s.Active
		}
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[e.ToolType]; dup {
			return nil, fmt.Errorf("tool %q listed twice", e.ToolType)
		}
		seen[e.ToolType] = struct{}{}
		out = append(out, e)
	}
	return out, nil
}

// SeedFile loads path and writes its entries to w.
func SeedFile(ctx context.Context, path string, w Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open tool costs file: %w", err)
	}
	defer f.Close()

	entries, err := ParseSeed(f)
	if err != nil {
		return err
	}
	if err := w.UpsertToolCosts(ctx, entries); err != nil {
		return err
	}
	log.WithFields(log.Fields{"file": path, "tools": len(entries)}).Info("Tool costs seeded")
	return nil
}
