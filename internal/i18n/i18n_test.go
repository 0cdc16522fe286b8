package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslate(t *testing.T) {
	i := GetInstance()

	assert.Equal(t, "Invalid user ID or password.", i.Translate("invalid_credentials", LangEnUS))
	assert.Equal(t, "خطأ غير معروف", i.Translate("unknown_error", LangAr))

	// 阿拉伯语缺失的键回退到英语
	assert.Equal(t, "Storage Upload Failed", i.Translate("storage_upload_failed", LangAr))
	// 不支持的语言使用默认语言
	assert.Equal(t, "Success", i.Translate("success", "fr-FR"))
	// 不存在的键原样返回
	assert.Equal(t, "no_such_key", i.Translate("no_such_key", LangEnUS))
}

func TestResolveLanguage(t *testing.T) {
	i := GetInstance()

	assert.Equal(t, LangAr, i.ResolveLanguage("ar-SA,ar;q=0.9,en;q=0.8"))
	assert.Equal(t, LangEnUS, i.ResolveLanguage("en-GB"))
	assert.Equal(t, LangEnUS, i.ResolveLanguage(""))
	assert.Equal(t, LangEnUS, i.ResolveLanguage("fr-FR"))
	assert.True(t, i.IsSupportedLanguage(LangAr))
}
