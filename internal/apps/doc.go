// Package apps contains the runnable applications built on the session
// orchestrator: story narration, scripted multi-speaker dialogue, and an
// interactive chat loop. Every app receives its wiring through an Env and
// persists results through the shared OutputWriter.
package apps
