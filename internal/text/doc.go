// Package text splits documents into generation units for sequential speech
// synthesis. Splitting policies control the granularity: paragraphs,
// sentences, greedy length-bounded word packing, or the whole document as one
// unit.
package text
