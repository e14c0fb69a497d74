// Package gear sequences one gear invocation end to end.
//
// Run takes the single-instance lock in the work directory, stamps a run id
// on the context, resolves the subject/session/input labels, runs the
// external pipeline, collects demographics and curates the outputs. Each
// invocation is recorded in the run ledger when it is enabled.
//
// Collaborators that talk to the outside world (the platform client and the
// pipeline runner) are interfaces on Options so tests can substitute fakes;
// Run builds the real ones from configuration when they are left nil.
package gear
