// Package age resolves a subject's age in months from the metadata available
// for a session.
//
// Sources are tried in a fixed order: an uploaded custom value in the session
// info, the DICOM PatientAge string, then the difference between
// PatientBirthDate and SeriesDate. Every failure is non-fatal. Resolve always
// returns a Result; an unknown result carries the reason it could not be
// determined so callers can log it and write NA.
package age
