// Package preflight provides readiness checks for the paths, executables and
// platform access a gear run depends on.
//
// These checks run in two contexts:
//   - The orchestrator calls RunAll before the pipeline starts. A failed
//     check aborts the run before hours are spent on a doomed segmentation.
//   - The CLI "synthgear check" command prints every result as a status line.
package preflight
