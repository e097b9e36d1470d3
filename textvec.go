// Package textvec assembles the embedding and retrieval core: a local
// deterministic embedding model, an in-memory vector store and the service
// that coordinates them.
package textvec

import (
	"context"

	"github.com/viant/textvec/embeddings/local"
	"github.com/viant/textvec/model"
	"github.com/viant/textvec/service"
	"github.com/viant/textvec/tokenizer"
	"github.com/viant/textvec/vectordb/mem"
)

// Config describes how to assemble a service.
type Config struct {
	Model model.Config
	// Words builds the vocabulary inline; VocabularyURL loads one instead.
	Words         []string
	VocabularyURL string
	// WeightsURL loads pretrained weights; when empty, weights derive
	// deterministically from Model.ID.
	WeightsURL string
	// BaseURL enables collection snapshots for the in-memory store.
	BaseURL string
}

// New assembles a retrieval service from the supplied configuration.
func New(ctx context.Context, cfg Config) (*service.Service, error) {
	vocab := tokenizer.NewVocabulary(cfg.Words...)
	if cfg.VocabularyURL != "" {
		var err error
		if vocab, err = tokenizer.LoadVocabulary(ctx, cfg.VocabularyURL); err != nil {
			return nil, err
		}
	}
	var aModel *model.Model
	var err error
	if cfg.WeightsURL != "" {
		aModel, err = model.Load(ctx, cfg.WeightsURL, vocab)
	} else {
		aModel, err = model.New(cfg.Model, vocab)
	}
	if err != nil {
		return nil, err
	}
	embedder := local.New(aModel)
	var storeOpts []mem.StoreOption
	storeOpts = append(storeOpts, mem.WithEmbedder(embedder))
	if cfg.BaseURL != "" {
		storeOpts = append(storeOpts, mem.WithBaseURL(cfg.BaseURL))
	}
	return service.New(
		service.WithEmbedder(embedder),
		service.WithStore(mem.NewStore(storeOpts...)),
	)
}
