package main

import (
	"sort"
	"time"

	"github.com/FreeworkEarth/neodepends/internal/core"
)

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLIResolveSummary reports one resolve run.
type CLIResolveSummary struct {
	Path       string         `json:"path"`
	Database   string         `json:"database"`
	FileDeps   int            `json:"file_deps"`
	ByKind     map[string]int `json:"by_kind"`
	EntityDeps int            `json:"entity_deps"`
	DurationMs int64          `json:"duration_ms"`
}

// CLIImportSummary reports one model import.
type CLIImportSummary struct {
	Entities int `json:"entities"`
	Deps     int `json:"deps"`
	Lifted   int `json:"lifted"`
}

// CLICount reports how many edges a command stored.
type CLICount struct {
	Stored int `json:"stored"`
}

// CLIFileDep is a JSON-friendly file-level dep. Lines and columns are
// 0-based.
type CLIFileDep struct {
	Kind    string `json:"kind"`
	SrcFile string `json:"src_file"`
	SrcLine int    `json:"src_line"`
	SrcCol  int    `json:"src_col"`
	TgtFile string `json:"tgt_file"`
	TgtLine int    `json:"tgt_line"`
	TgtCol  int    `json:"tgt_col"`
	Commit  string `json:"commit,omitempty"`
}

// CLIEntityDep is a JSON-friendly entity dep.
type CLIEntityDep struct {
	Kind    string `json:"kind"`
	Src     string `json:"src"`
	SrcName string `json:"src_name"`
	Tgt     string `json:"tgt"`
	TgtName string `json:"tgt_name"`
	Line    int    `json:"line"`
	Commit  string `json:"commit,omitempty"`
}

func summarize(path, db string, deps []core.FileDep, lifted int, elapsed time.Duration) CLIResolveSummary {
	byKind := make(map[string]int)
	for _, d := range deps {
		byKind[string(d.Kind)]++
	}
	return CLIResolveSummary{
		Path:       path,
		Database:   db,
		FileDeps:   len(deps),
		ByKind:     byKind,
		EntityDeps: lifted,
		DurationMs: elapsed.Milliseconds(),
	}
}

func commitString(c core.PseudoCommitId) string {
	if c.IsWorkDir() {
		return ""
	}
	return c.String()
}

// toCLIFileDeps converts deps, keeping only the given kinds when any are
// given.
func toCLIFileDeps(deps []core.FileDep, kinds []core.DepKind) []CLIFileDep {
	keep := make(map[core.DepKind]bool, len(kinds))
	for _, k := range kinds {
		keep[k] = true
	}
	out := make([]CLIFileDep, 0, len(deps))
	for _, d := range deps {
		if len(keep) > 0 && !keep[d.Kind] {
			continue
		}
		src, tgt := d.Src.Position.Position(), d.Tgt.Position.Position()
		out = append(out, CLIFileDep{
			Kind:    string(d.Kind),
			SrcFile: d.Src.File.Filename,
			SrcLine: src.Row,
			SrcCol:  src.Column,
			TgtFile: d.Tgt.File.Filename,
			TgtLine: tgt.Row,
			TgtCol:  tgt.Column,
			Commit:  commitString(d.CommitId),
		})
	}
	return out
}

// toCLIEntityDeps converts deps, naming each endpoint from entities. Results
// are ordered by kind, then source and target name.
func toCLIEntityDeps(deps []core.EntityDep, entities []core.Entity) []CLIEntityDep {
	names := make(map[core.EntityId]string, len(entities))
	for _, e := range entities {
		names[e.Id] = e.Name
	}
	out := make([]CLIEntityDep, 0, len(deps))
	for _, d := range deps {
		out = append(out, CLIEntityDep{
			Kind:    string(d.Kind),
			Src:     d.Src.String(),
			SrcName: names[d.Src],
			Tgt:     d.Tgt.String(),
			TgtName: names[d.Tgt],
			Line:    d.Position.Row(),
			Commit:  commitString(d.CommitId),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		if out[i].SrcName != out[j].SrcName {
			return out[i].SrcName < out[j].SrcName
		}
		return out[i].TgtName < out[j].TgtName
	})
	return out
}
