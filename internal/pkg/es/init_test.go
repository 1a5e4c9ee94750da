package es

import (
	"testing"

	"github.com/elastic/go-elasticsearch/v8/typedapi/types"
	"github.com/stretchr/testify/assert"
)

func TestThreadMapping(t *testing.T) {
	props := threadMapping().Properties

	assert.IsType(t, &types.KeywordProperty{}, props["id"])
	assert.IsType(t, &types.TextProperty{}, props["participant_text"])
	assert.IsType(t, &types.TextProperty{}, props["last_message_text"])
	assert.IsType(t, &types.DateProperty{}, props["last_message_at"])

	// 排序字段必须与 SearchThreadIDs 一致
	for _, field := range []string{"last_message_at", "id"} {
		assert.Contains(t, props, field)
	}
}
