// Package audio provides the sample-level building blocks of the speech
// pipeline: the immutable Segment value, WAV encoding and decoding, linear
// resampling, silence generation, segment assembly, and G.711 telephony
// export. All audio is handled as mono float32 samples in [-1, 1].
package audio
