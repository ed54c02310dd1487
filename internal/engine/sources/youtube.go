// Package sources holds the external caption sources used by the engine.
package sources

// YouTube implementation is split across two files by responsibility:
//   youtube_innertube.go: Innertube/timedtext types, endpoints, paced HTTP primitive
//   youtube_transcript.go: caption track selection, timedtext parsing, source fallback
