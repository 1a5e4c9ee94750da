package es

import (
	"Realty/internal/api/config"
	"Realty/internal/pkg/logger"
	"context"
	"errors"
	log "log/slog"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
)

const (
	NotFoundCode = 404
	ConflictCode = 409
)

// NewClient 初始化 Elasticsearch 客户端并探活
func NewClient(elasticCfg config.ElasticConfig) (*elasticsearch.TypedClient, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{elasticCfg.Address},
		Username:  elasticCfg.Username,
		Password:  elasticCfg.Password,
		Transport: &logger.ESTransport{
			Transport: http.DefaultTransport,
		},
	}

	client, err := elasticsearch.NewTypedClient(cfg)
	if err != nil {
		log.Error("Cannot Connect to Elasticsearch", "err", err)
		return nil, err
	}

	info, err := client.Info().Do(context.Background())
	if err != nil {
		log.Error("Cannot Connect to Elasticsearch", "err", err)
		return nil, err
	}

	log.Info("Connected to Elasticsearch", "version", info.Version.Int)

	if err = EnsureThreadIndex(context.Background(), client, elasticCfg.Indices.ThreadIndex); err != nil {
		log.Error("Cannot create thread index", "index", elasticCfg.Indices.ThreadIndex, "err", err)
		return nil, err
	}
	return client, nil
}

// threadMapping id 做精确匹配与排序的兜底，文本字段走全文检索
func threadMapping() *types.TypeMapping {
	return &types.TypeMapping{
		Properties: map[string]types.Property{
			"id":                types.NewKeywordProperty(),
			"participant_text":  types.NewTextProperty(),
			"last_message_text": types.NewTextProperty(),
			"last_sender":       types.NewKeywordProperty(),
			"status":            types.NewKeywordProperty(),
			"last_message_at":   types.NewDateProperty(),
			"created_at":        types.NewDateProperty(),
		},
	}
}

// EnsureThreadIndex 索引不存在时按固定 mapping 创建
func EnsureThreadIndex(ctx context.Context, client *elasticsearch.TypedClient, index string) error {
	exists, err := client.Indices.Exists(index).Do(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if _, err = client.Indices.Create(index).Mappings(threadMapping()).Do(ctx); err != nil {
		var e *types.ElasticsearchError
		// 多实例同时启动
		if errors.As(err, &e) && e.ErrorCause.Type == "resource_already_exists_exception" {
			return nil
		}
		return err
	}
	log.Info("Created thread index", "index", index)
	return nil
}
