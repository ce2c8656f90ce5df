package match

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrInvalidAnalysisPayload 模型输出缺少必需的顶层结构
var ErrInvalidAnalysisPayload = errors.New("analysis payload missing required structure")

var jsonFenceRe = regexp.MustCompile("(?s)```json\\s*(\\{.*\\})\\s*```")

// ExtractAnalysisJSON 从模型原始输出中提取JSON字符串：
// 去除BOM，优先剥离```json代码围栏，否则按花括号配对截取首个 {…} 子串
func ExtractAnalysisJSON(text string) string {
	text = strings.TrimPrefix(text, "\uFEFF")

	if matches := jsonFenceRe.FindStringSubmatch(text); len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	level := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			level++
		case '}':
			level--
			if level == 0 {
				return strings.TrimSpace(text[start : i+1])
			}
		}
	}
	return ""
}

// SanitizeJSON 遍历src，把字符串字面量内部未转义、又不是"真正结束"的双引号改写为 \"，
// 使模型输出的不规范JSON能在Go端正常反序列化。
// 通过下一个非空白字符是否为 :, ], }, 或 , 来判断 " 是否为字符串结束。
func SanitizeJSON(src string) string {
	var b strings.Builder
	inStr := false
	escaped := false

	for i := 0; i < len(src); i++ {
		c := src[i]

		if c == '"' && !escaped {
			if !inStr {
				inStr = true
				b.WriteByte(c)
			} else {
				j := i + 1
				for j < len(src) && (src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
					j++
				}
				if j < len(src) && (src[j] == ':' || src[j] == ',' || src[j] == ']' || src[j] == '}') {
					inStr = false
					b.WriteByte(c)
				} else {
					b.WriteString("\\\"")
				}
			}
			escaped = false

		} else if c == '\\' && !escaped {
			escaped = true
			b.WriteByte(c)

		} else {
			b.WriteByte(c)
			escaped = false
		}
	}

	return b.String()
}

// ParseModelResponse 解析模型输出为ModelResponse。
// 解析失败时做一次sanitize修复重试；结构校验要求同时存在
// resume与signauxAlerte两个顶层键。返回原始map供恢复路径使用。
func ParseModelResponse(text string) (*ModelResponse, map[string]any, error) {
	jsonStr := ExtractAnalysisJSON(text)
	if jsonStr == "" {
		return nil, nil, fmt.Errorf("模型输出中未找到JSON对象")
	}

	if !utf8.ValidString(jsonStr) {
		jsonStr = strings.ToValidUTF8(jsonStr, "")
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		fixed := SanitizeJSON(jsonStr)
		if fixErr := json.Unmarshal([]byte(fixed), &raw); fixErr != nil {
			return nil, nil, fmt.Errorf("JSON反序列化失败（修复后仍失败）: %w", err)
		}
		jsonStr = fixed
	}

	// 结构校验：两个顶层键缺一不可
	if _, ok := raw["resume"]; !ok {
		return nil, raw, fmt.Errorf("模型输出缺少resume键: %w", ErrInvalidAnalysisPayload)
	}
	if _, ok := raw["signauxAlerte"]; !ok {
		return nil, raw, fmt.Errorf("模型输出缺少signauxAlerte键: %w", ErrInvalidAnalysisPayload)
	}

	var resp ModelResponse
	if err := json.Unmarshal([]byte(jsonStr), &resp); err != nil {
		return nil, raw, fmt.Errorf("模型输出无法映射到预期结构: %w", err)
	}

	return &resp, raw, nil
}
