package es

import (
	"context"
	"errors"
	log "log/slog"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types/enums/sortorder"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types/enums/versiontype"
)

type ThreadRepo interface {
	IndexThread(ctx context.Context, thread *ThreadES, version int64) error
	SearchThreadIDs(ctx context.Context, keyword string, after []interface{}, size int) ([]string, []interface{}, error)
}

type ThreadRepoImpl struct {
	client *elasticsearch.TypedClient
	index  string
}

func NewThreadRepo(client *elasticsearch.TypedClient, index string) ThreadRepo {
	return &ThreadRepoImpl{client: client, index: index}
}

// IndexThread 外部版本号写入，乱序到达的旧数据直接丢弃
func (s *ThreadRepoImpl) IndexThread(ctx context.Context, thread *ThreadES, version int64) error {
	_, err := s.client.Index(s.index).
		Id(thread.ID).
		Document(thread).
		Version(strconv.FormatInt(version, 10)).
		VersionType(versiontype.External).
		Do(ctx)

	if err != nil {
		var e *types.ElasticsearchError
		if errors.As(err, &e) {
			if e.Status == ConflictCode {
				log.Warn("Version conflict detected, skipping old data",
					"thread_id", thread.ID,
					"version", version)
				return nil
			}
		}
		return err
	}

	return nil
}

// SearchThreadIDs 关键字为空时按最后消息时间列出全部，search_after 翻页
func (s *ThreadRepoImpl) SearchThreadIDs(ctx context.Context, keyword string, after []interface{}, size int) ([]string, []interface{}, error) {
	query := &types.Query{MatchAll: &types.MatchAllQuery{}}
	if keyword != "" {
		query = &types.Query{
			MultiMatch: &types.MultiMatchQuery{
				Query:  keyword,
				Fields: []string{"participant_text^2", "last_message_text", "id"},
			},
		}
	}

	req := s.client.Search().
		Index(s.index).
		Query(query).
		Sort(
			types.SortOptions{SortOptions: map[string]types.FieldSort{
				"last_message_at": {Order: &sortorder.Desc},
			}},
			types.SortOptions{SortOptions: map[string]types.FieldSort{
				"id": {Order: &sortorder.Asc},
			}},
		).
		Source_(&types.SourceFilter{Includes: []string{"id"}}).
		Size(size)

	if len(after) > 0 {
		searchAfterValues := make([]types.FieldValue, len(after))
		for i, v := range after {
			searchAfterValues[i] = v
		}
		req.SearchAfter(searchAfterValues...)
	}

	resp, err := req.Do(ctx)
	if err != nil {
		return nil, nil, err
	}

	ids := make([]string, 0, len(resp.Hits.Hits))
	var next []interface{}
	for _, hit := range resp.Hits.Hits {
		if hit.Id_ == nil {
			continue
		}
		ids = append(ids, *hit.Id_)
		if len(hit.Sort) > 0 {
			next = make([]interface{}, len(hit.Sort))
			for i, v := range hit.Sort {
				next[i] = v
			}
		}
	}
	return ids, next, nil
}
