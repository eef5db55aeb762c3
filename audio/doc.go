// Package audio holds the PCM plumbing around the live stream: turn
// aggregation, WAV materialization, resampling, silence padding and the
// capability interfaces for capture sources and playback sinks.
//
// All PCM handled here is 16-bit signed little-endian mono.
package audio
