package vectordb

import "errors"

var (
	// ErrInvalidArgument indicates malformed caller input, such as
	// mismatched metadata/ids lengths or a non-positive topK.
	ErrInvalidArgument = errors.New("vectordb: invalid argument")

	// ErrCollectionNotFound is returned when an operation references a
	// collection that has never been created.
	ErrCollectionNotFound = errors.New("vectordb: collection not found")

	// ErrDimensionMismatch indicates a vector whose length disagrees with
	// the collection's established dimensionality.
	ErrDimensionMismatch = errors.New("vectordb: vector dimension mismatch")

	// ErrModelMismatch indicates an attempt to mix embeddings from
	// different models in one collection.
	ErrModelMismatch = errors.New("vectordb: embedding model mismatch")
)
