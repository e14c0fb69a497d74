// Package demographics recovers age and sex for the processed session.
//
// The session's custom info and the DICOM headers of its matching
// acquisitions are gathered into an age bundle and resolved. Platform
// failures degrade the record to unknown values instead of failing the run.
package demographics
