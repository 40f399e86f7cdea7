package server

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// newID 生成带前缀的唯一 id，如 p_01hq...；ULID 按时间有序
func newID(prefix string) string {
	return prefix + "_" + strings.ToLower(ulid.Make().String())
}
