package storage

import (
	"errors"
	"strings"

	"github.com/minio/minio-go/v7"
)

// missingKey 与 missingBucket 分别列出 S3 错误码（小写）和代理层可能只保留的错误文本片段。
var (
	missingKey = errorShape{
		codes:     []string{"nosuchkey", "notfound"},
		fragments: []string{"nosuchkey", "specified key does not exist", "not found"},
	}
	missingBucket = errorShape{
		codes:     []string{"nosuchbucket"},
		fragments: []string{"nosuchbucket", "specified bucket does not exist"},
	}
)

type errorShape struct {
	codes     []string
	fragments []string
}

func (s errorShape) matches(err error) bool {
	if err == nil {
		return false
	}

	var minioErr minio.ErrorResponse
	if errors.As(err, &minioErr) {
		code := strings.ToLower(strings.TrimSpace(minioErr.Code))
		for _, c := range s.codes {
			if code == c {
				return true
			}
		}
	}

	lower := strings.ToLower(err.Error())
	for _, fragment := range s.fragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// IsNoSuchKey 判断错误是否表示导出快照对象不存在。
func IsNoSuchKey(err error) bool { return missingKey.matches(err) }

// IsNoSuchBucket 判断错误是否表示快照 Bucket 不存在，删除前缀时据此视为无事可做。
func IsNoSuchBucket(err error) bool { return missingBucket.matches(err) }
