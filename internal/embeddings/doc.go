// Package embeddings turns text into vectors for the memory store.
//
// Three providers are supported and selected with EMBEDDING_PROVIDER:
//   - fastembed: local ONNX inference (requires cgo); the default
//   - openai: OpenAI or any OpenAI-compatible endpoint via langchaingo
//   - tei: a Hugging Face Text Embeddings Inference server
//
// Every provider reports a fixed Dimension, used when collections are created.
package embeddings
