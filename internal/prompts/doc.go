// Package prompts supplies the reference voice prompts used to seed speaker
// registration: a catalog of stock conversational prompts with their
// transcripts, and a caching downloader for the prompt audio.
package prompts
