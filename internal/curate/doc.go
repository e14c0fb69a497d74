// Package curate turns the pipeline's work-directory outputs into the files
// published for a run.
//
// Each output table is the column-wise concatenation of the one-row
// demographics table and one or more pipeline tables, aligned by row number
// and prefixed with an unnamed zero-based index column. The two NIfTI images
// are copied under the acquisition label with size and SHA-256 verification.
package curate
