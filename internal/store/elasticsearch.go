package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"

	"github.com/jonesrussell/newsharvest/internal/config"
	"github.com/jonesrussell/newsharvest/internal/domain"
	"github.com/jonesrussell/newsharvest/internal/logger"
)

// NewElasticsearchClient builds a client from the elasticsearch config section.
func NewElasticsearchClient(cfg config.ElasticsearchConfig) (*es.Client, error) {
	client, err := es.NewClient(es.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return client, nil
}

// Indexer mirrors article records into an Elasticsearch index. The document
// ID is derived from the article URL so re-crawls overwrite earlier copies.
type Indexer struct {
	client *es.Client
	index  string
	log    logger.Logger
}

// NewIndexer creates an Indexer writing to index.
func NewIndexer(client *es.Client, index string, log logger.Logger) *Indexer {
	return &Indexer{
		client: client,
		index:  index,
		log:    log.With(logger.Component("indexer"), logger.String("index", index)),
	}
}

// DocumentID returns the stable ID used for an article URL.
func DocumentID(articleURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(articleURL)).String()
}

// Index writes rec to the index.
func (i *Indexer) Index(ctx context.Context, rec domain.ArticleRecord) error {
	if i.client == nil {
		return errors.New("elasticsearch client is not initialized")
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record for indexing: %w", err)
	}

	id := DocumentID(rec.ArticleURL)
	res, err := i.client.Index(
		i.index,
		bytes.NewReader(body),
		i.client.Index.WithContext(ctx),
		i.client.Index.WithDocumentID(id),
	)
	if err != nil {
		return fmt.Errorf("index record: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}()

	if res.IsError() {
		return fmt.Errorf("elasticsearch error: %s", res.String())
	}

	i.log.Debug("Record indexed",
		logger.String("doc_id", id),
		logger.String("url", rec.ArticleURL),
	)
	return nil
}

// MirrorErrorFunc is told about records the mirror failed to index.
type MirrorErrorFunc func(rec domain.ArticleRecord, err error)

// MirroredStore appends to a file store and then mirrors into an index. Only
// file store failures are returned; mirror failures go to the error hook.
type MirroredStore struct {
	primary *JSONFileStore
	mirror  *Indexer
	onError MirrorErrorFunc
	log     logger.Logger
}

// NewMirroredStore wraps primary with an index mirror.
func NewMirroredStore(primary *JSONFileStore, mirror *Indexer, onError MirrorErrorFunc, log logger.Logger) *MirroredStore {
	return &MirroredStore{
		primary: primary,
		mirror:  mirror,
		onError: onError,
		log:     log.With(logger.Component("store")),
	}
}

// Append implements the record sink.
func (m *MirroredStore) Append(ctx context.Context, rec domain.ArticleRecord) error {
	if err := m.primary.Append(ctx, rec); err != nil {
		return err
	}

	if err := m.mirror.Index(ctx, rec); err != nil {
		m.log.Warn("Failed to mirror record",
			logger.String("url", rec.ArticleURL),
			logger.Error(err),
		)
		if m.onError != nil {
			m.onError(rec, err)
		}
	}
	return nil
}
