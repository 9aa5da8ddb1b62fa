// Package neodepends computes a typed, cross-file dependency graph over
// Python and Java codebases. Edges are of kind Import, Extend, Call, Create,
// Use or Override and are keyed to a commit or to the working directory.
//
// # Pipeline
//
//  1. Index: files are read in parallel, their contents stored by content
//     hash, and each is built into a stack graph by a language-specific Risor
//     script. Graphs are cached by (filename, content) so unchanged files are
//     never rebuilt.
//
//  2. Resolve: the graphs of each language batch are stitched into complete
//     reference-to-definition paths. Each path becomes a file-level edge,
//     classified from the syntax around its reference.
//
//  3. Lift: file-level edges are mapped onto the innermost enclosing entity
//     (file, class, method) at each end. Entities come from an external
//     extractor and are loaded with Engine.ImportModel.
//
//  4. Overrides: Override edges are derived from the Extend edges between
//     classes, Python @abstractmethod markers and Java @Override annotations.
//
// # Usage
//
//	e, err := neodepends.New("deps.db")
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	err = e.IndexDirectory(ctx, "path/to/project")
//	deps, err := e.Resolve(ctx)
//	n, err := e.LiftAndStore(ctx)
//	n, err = e.DetectOverrides(ctx)
package neodepends
