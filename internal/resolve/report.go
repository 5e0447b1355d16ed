// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/rebib/pkg/types"
)

// Report summarizes a run for later inspection.
type Report struct {
	Input     string        `yaml:"input"`
	Started   time.Time     `yaml:"started"`
	Finished  time.Time     `yaml:"finished"`
	Updated   int           `yaml:"updated"`
	Untouched int           `yaml:"untouched"`
	Entries   []ReportEntry `yaml:"entries"`
}

// ReportEntry is one entry's line in a Report.
type ReportEntry struct {
	Key     string `yaml:"key"`
	Status  string `yaml:"status"`
	Type    string `yaml:"type,omitempty"`
	Title   string `yaml:"title,omitempty"`
	Journal string `yaml:"journal,omitempty"`
	Info    string `yaml:"info,omitempty"`
}

// NewReport builds a report from a finalized partition.
func NewReport(input string, started, finished time.Time, p Partition) Report {
	r := Report{
		Input:     input,
		Started:   started.UTC(),
		Finished:  finished.UTC(),
		Updated:   len(p.Updated),
		Untouched: len(p.Untouched),
		Entries:   make([]ReportEntry, 0, len(p.Outcomes)),
	}
	for _, o := range p.Outcomes {
		e := ReportEntry{Key: o.Source.Key, Status: "untouched", Info: o.Info}
		if o.Status == types.StatusSucceeded && o.Record != nil {
			e.Status = "updated"
			e.Type = o.Record.Type
			e.Title = o.Record.Title()
			e.Journal = o.Record.Fields["journal"]
		}
		r.Entries = append(r.Entries, e)
	}
	return r
}

// WriteReport writes r to path as YAML.
func WriteReport(path string, r Report) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return nil
}
