// Package pipeline runs the external segmentation script.
//
// The script is opaque: it receives the subject, session and input labels as
// positional arguments and leaves its results at fixed paths in the work
// directory. Output lines are forwarded to the logger as they arrive.
package pipeline
