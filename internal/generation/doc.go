// Package generation defines the boundary to the speech model and its
// implementations: an HTTP client for a CSM inference server that carries the
// full conditioning context, and a stateless Google Cloud Text-to-Speech
// fallback. The model is treated as an opaque, slow, fallible collaborator;
// its errors surface unchanged to callers.
package generation
