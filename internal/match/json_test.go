package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractAnalysisJSON(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "裸JSON",
			input:    `{"resume":{"score":80}}`,
			expected: `{"resume":{"score":80}}`,
		},
		{
			name:     "json代码围栏",
			input:    "```json\n{\"resume\":{\"score\":80},\"signauxAlerte\":[]}\n```",
			expected: `{"resume":{"score":80},"signauxAlerte":[]}`,
		},
		{
			name:     "JSON前后有解释文本",
			input:    "Voici le résultat:\n{\"resume\":{\"score\":70}}\nMerci.",
			expected: `{"resume":{"score":70}}`,
		},
		{
			name:     "带BOM前缀",
			input:    "\uFEFF{\"resume\":{}}",
			expected: `{"resume":{}}`,
		},
		{
			name:     "嵌套花括号",
			input:    `prefix {"a":{"b":{"c":1}}} suffix`,
			expected: `{"a":{"b":{"c":1}}}`,
		},
		{
			name:     "无JSON",
			input:    "I cannot analyze this",
			expected: "",
		},
		{
			name:     "括号不闭合",
			input:    `{"resume": {"score": 50`,
			expected: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ExtractAnalysisJSON(tc.input))
		})
	}
}

func TestSanitizeJSON(t *testing.T) {
	// 字符串内部的未转义双引号被修复
	broken := `{"probleme": "le candidat dit "non" au travail"}`
	fixed := SanitizeJSON(broken)
	assert.Equal(t, `{"probleme": "le candidat dit \"non\" au travail"}`, fixed)

	// 合法JSON保持原样
	valid := `{"a": "b", "c": [1, 2]}`
	assert.Equal(t, valid, SanitizeJSON(valid))
}

func TestParseModelResponseCodeFence(t *testing.T) {
	// 代码围栏应一次解析成功，不触发重试
	input := "```json\n{\"resume\":{\"score\":75,\"correspondance\":{\"competences\":80,\"experience\":true,\"formation\":true,\"langues\":60}},\"signauxAlerte\":[]}\n```"

	resp, raw, err := ParseModelResponse(input)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.NotNil(t, raw)
	assert.Equal(t, 75, resp.Resume.Score)
	assert.Equal(t, 80, resp.Resume.Correspondance.Competences)
	assert.True(t, resp.Resume.Correspondance.Experience)
	assert.Empty(t, resp.SignauxAlerte)
}

func TestParseModelResponseMissingKeys(t *testing.T) {
	// 缺signauxAlerte：结构校验失败，但原始map要返回给恢复路径
	_, raw, err := ParseModelResponse(`{"resume":{"score":60}}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidAnalysisPayload)
	assert.NotNil(t, raw)

	// 缺resume
	_, raw, err = ParseModelResponse(`{"signauxAlerte":[]}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidAnalysisPayload)
	assert.NotNil(t, raw)

	// 纯文本：无JSON可提取
	_, raw, err = ParseModelResponse("I cannot analyze this")
	require.Error(t, err)
	assert.Nil(t, raw)
}

func TestParseModelResponseSanitizeRetry(t *testing.T) {
	// 首次反序列化失败，sanitize修复后成功
	input := `{"resume":{"score":55,"correspondance":{"competences":50,"experience":false,"formation":true,"langues":40}},"signauxAlerte":[{"type":"Compétence","probleme":"manque "Docker" en production","severite":"moyenne","score":30}]}`

	resp, _, err := ParseModelResponse(input)
	require.NoError(t, err)
	require.Len(t, resp.SignauxAlerte, 1)
	assert.Contains(t, resp.SignauxAlerte[0].Probleme, "Docker")
}
