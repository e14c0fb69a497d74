// Package main hosts the synthgear CLI entrypoint and command graph.
//
// Invoked without a subcommand, synthgear performs a gear run: it loads the
// TOML configuration and the platform's config.json, runs the segmentation
// pipeline, resolves demographics and publishes the curated outputs. The
// remaining commands are operator tools around that run: resolving a single
// age, listing recorded runs, checking the environment, and scaffolding a
// configuration file.
//
// Keep this package thin. Behaviour belongs in the internal packages; commands
// here parse flags, build collaborators from configuration and render output.
package main
