// Package rag implements retrieval-augmented generation over a PostgreSQL +
// pgvector corpus of legal reference material.
//
// Documents are grouped into corpora (statutes, cases, regulations,
// templates). Each document carries a 768-dimension embedding generated by
// the configured embedder; search is cosine-similarity ordered with optional
// JSONB metadata filters (e.g. jurisdiction).
package rag
