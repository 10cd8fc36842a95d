// Package version holds the tool version stamped into checkpoints,
// reports and the CLI.
package version

const Number = "1.0.0"
