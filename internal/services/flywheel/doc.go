// Package flywheel is a small REST client for the imaging-data platform.
//
// It covers the read-only calls the gear needs to recover labels and
// demographics: analyses, subjects, sessions, acquisitions and file info.
// Requests go through heimdall so timeouts and retries are configured in one
// place. Status codes are mapped to the services error markers.
package flywheel
