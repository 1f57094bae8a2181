// Package trace provides the leveled logging sink used by the build
// orchestrator and forwarded worker output.
package trace
