// Package diag defines the diagnostic model shared by every build
// phase: severity, phase tags, stable codes, and the per-cycle Bag.
package diag
