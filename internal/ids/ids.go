// Package ids derives the deterministic identifiers every stage relies on
// for idempotent re-insertion. Every function here is pure: same inputs,
// same string, no clock, no randomness.
package ids

import "fmt"

// Kind enumerates the derived-entity namespaces that hang off a video ID.
type Kind string

const (
	KindScene   Kind = "scene"
	KindFrame   Kind = "frame"
	KindSegment Kind = "segment"
)

// Derive builds "{videoID}_{kind}_{idx:03d}", zero-padded to at least three
// digits and wider for idx >= 1000.
func Derive(videoID string, kind Kind, idx int) string {
	return fmt.Sprintf("%s_%s_%03d", videoID, kind, idx)
}

// Scene derives a scene ID from its video and dense index.
func Scene(videoID string, idx int) string {
	return Derive(videoID, KindScene, idx)
}

// Frame derives a frame ID from its video and dense index.
func Frame(videoID string, idx int) string {
	return Derive(videoID, KindFrame, idx)
}

// Segment derives a transcript segment ID from its video and dense index.
func Segment(videoID string, idx int) string {
	return Derive(videoID, KindSegment, idx)
}

// Caption derives a frame caption ID by suffixing the parent frame ID.
func Caption(frameID string) string {
	return frameID + "_caption"
}
