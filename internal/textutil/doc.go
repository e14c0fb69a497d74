// Package textutil derives filesystem-safe labels from input file names.
//
// Acquisition labels prefix every output file, so they keep only ASCII
// letters, digits, hyphens and underscores. Accented letters are folded to
// their base letter before the character filter runs.
package textutil
