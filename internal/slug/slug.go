// Package slug 从标题派生 URL 安全的标识符，并在冲突时追加 -1、-2 等后缀。
package slug

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// Fallback 在标题中没有任何可用字符时使用。
const Fallback = "resume"

// Slugify 小写化并解码百分号转义，去掉单词字符、空白与连字符以外的字符，
// 将连续的空白/连字符折叠为单个连字符，并去掉首尾的 "-" 与 "_"。
func Slugify(text string) string {
	decoded := strings.ToLower(percentDecode(strings.ToLower(text)))

	var b strings.Builder
	b.Grow(len(decoded))
	pendingSep := false
	for _, r := range decoded {
		switch {
		case r == unicode.ReplacementChar:
			continue
		case isWordRune(r):
			if pendingSep {
				b.WriteByte('-')
				pendingSep = false
			}
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			pendingSep = true
		}
	}
	if pendingSep {
		b.WriteByte('-')
	}

	return strings.Trim(b.String(), "-_")
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// percentDecode 解码合法的 %XX 序列，非法序列原样保留。
func percentDecode(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			hi, ok1 := unhex(s[i+1])
			lo, ok2 := unhex(s[i+2])
			if ok1 && ok2 {
				out = append(out, hi<<4|lo)
				i += 2
				continue
			}
		}
		out = append(out, s[i])
	}
	return string(out)
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// ExistsFunc 报告某个 slug 是否已被占用。
type ExistsFunc func(ctx context.Context, candidate string) (bool, error)

// Unique 依次尝试 base、base-1、base-2……直到 exists 返回 false。
// 这只是常见路径；并发下的最终保证来自存储层的唯一约束。
func Unique(ctx context.Context, base string, exists ExistsFunc) (string, error) {
	if base == "" {
		base = Fallback
	}
	candidate := base
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}
