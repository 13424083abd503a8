// Package session drives sequential, context-conditioned speech generation.
// It maintains the speaker registry, the append-only session history, and the
// bounded conditioning window handed to each generation call, keeping voice
// identity stable across turns by anchoring every window with the active
// speaker's reference segment.
package session
