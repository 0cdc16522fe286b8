// Package i18n 提供国际化支持
// 负责管理应用程序的语言包和翻译功能
package i18n

import (
	"strings"
	"sync"

	"github.com/go-playground/locales/ar"
	"github.com/go-playground/locales/en_US"
	ut "github.com/go-playground/universal-translator"
	"github.com/weiwangfds/tis/internal/logger"
)

// 支持的语言
const (
	LangEnUS = "en-US"
	LangAr   = "ar"
)

var (
	instance *I18n
	once     sync.Once

	// 语言包存储
	translations = map[string]map[string]string{
		LangEnUS: {
			"success":               "Success",
			"internal_server_error": "Internal Server Error",
			"invalid_params":        "Invalid Parameters",
			"unauthorized":          "Please sign in to continue.",
			"forbidden":             "You do not have permission to perform this action.",
			"not_found":             "Resource Not Found",
			"method_not_allowed":    "Method Not Allowed",
			"validation_failed":     "Please fix the highlighted fields and try again.",
			"conflict":              "The record conflicts with existing data.",

			"invalid_credentials": "Invalid user ID or password.",
			"session_expired":     "Your session has expired. Please sign in again.",
			"account_inactive":    "This account is inactive.",
			"scope_invalid":       "The selected scope is not available.",

			"storage_config_not_found":       "Storage Config Not Found",
			"storage_config_invalid":         "Storage Config Invalid",
			"storage_connection_failed":      "Storage Connection Failed",
			"storage_upload_failed":          "Storage Upload Failed",
			"storage_list_failed":            "Storage List Failed",
			"storage_provider_not_supported": "Storage Provider Not Supported",
			"archive_failed":                 "Audit Archive Failed",

			"database_connection":   "Database Connection Error",
			"database_query":        "Database Query Error",
			"database_insert":       "Database Insert Error",
			"database_update":       "Database Update Error",
			"database_delete":       "Database Delete Error",
			"database_transaction":  "Database Transaction Error",
			"record_not_found":      "Record Not Found",
			"record_already_exists": "Record Already Exists",

			"subject_in_use":      "Cannot delete this subject because it is assigned to one or more teachers.",
			"import_blocked":      "Import blocked. Please fix the file and try again.",
			"no_active_year":      "No active academic year found. Set current year first.",
			"allocation_mismatch": "Allocated subject hours must exactly match Max Hours.",
			"duplicate_section":   "This grade and section already exists in planning for the current scope.",

			"unknown_error": "Unknown Error",
		},
		LangAr: {
			"success":               "تمت العملية بنجاح",
			"internal_server_error": "خطأ داخلي في الخادم",
			"invalid_params":        "معلمات غير صالحة",
			"unauthorized":          "يرجى تسجيل الدخول للمتابعة.",
			"forbidden":             "ليس لديك صلاحية لتنفيذ هذا الإجراء.",
			"not_found":             "المورد غير موجود",
			"method_not_allowed":    "الطريقة غير مسموح بها",
			"validation_failed":     "يرجى تصحيح الحقول المحددة والمحاولة مرة أخرى.",
			"conflict":              "السجل يتعارض مع بيانات موجودة.",

			"invalid_credentials": "رقم المستخدم أو كلمة المرور غير صحيحة.",
			"session_expired":     "انتهت الجلسة. يرجى تسجيل الدخول مرة أخرى.",
			"account_inactive":    "هذا الحساب غير نشط.",
			"scope_invalid":       "النطاق المحدد غير متاح.",

			"record_not_found":      "السجل غير موجود",
			"record_already_exists": "السجل موجود بالفعل",

			"no_active_year": "لا يوجد عام دراسي نشط. يرجى تحديد العام الحالي أولاً.",
			"import_blocked": "تم إيقاف الاستيراد. يرجى تصحيح الملف والمحاولة مرة أخرى.",

			"unknown_error": "خطأ غير معروف",
		},
	}
)

// I18n 国际化管理器
type I18n struct {
	translators map[string]ut.Translator
	defaultLang string
}

// GetInstance 获取I18n单例
func GetInstance() *I18n {
	once.Do(func() {
		instance = &I18n{
			translators: make(map[string]ut.Translator),
			defaultLang: LangEnUS,
		}
		instance.initTranslators()
	})
	return instance
}

// initTranslators 初始化翻译器
func (i *I18n) initTranslators() {
	enUS := en_US.New()
	uni := ut.New(enUS, enUS, ar.New())

	langMappings := map[string]string{
		LangEnUS: "en_US",
		LangAr:   "ar",
	}

	for ourLang, localeLang := range langMappings {
		trans, found := uni.GetTranslator(localeLang)
		if !found {
			logger.Errorf("初始化翻译器失败 for language %s (locale: %s): translator not found", ourLang, localeLang)
			continue
		}
		i.translators[ourLang] = trans
		logger.Debugf("成功初始化翻译器: %s -> %s", ourLang, localeLang)
	}
}

// Translate 根据键和语言获取翻译
// 指定语言缺少该键时回退到默认语言
func (i *I18n) Translate(key, lang string) string {
	if _, exists := i.translators[lang]; !exists {
		lang = i.defaultLang
	}

	if translation, found := translations[lang][key]; found {
		return translation
	}

	if lang != i.defaultLang {
		if translation, found := translations[i.defaultLang][key]; found {
			return translation
		}
	}

	logger.Warnf("未找到翻译: %s, 语言: %s", key, lang)
	return key
}

// ResolveLanguage 从 Accept-Language 请求头中挑选支持的语言
func (i *I18n) ResolveLanguage(acceptLanguage string) string {
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if tag == "" {
			continue
		}
		if i.IsSupportedLanguage(tag) {
			return tag
		}
		base := strings.ToLower(strings.SplitN(tag, "-", 2)[0])
		switch base {
		case "ar":
			return LangAr
		case "en":
			return LangEnUS
		}
	}
	return i.defaultLang
}

// SetDefaultLanguage 设置默认语言
func (i *I18n) SetDefaultLanguage(lang string) {
	i.defaultLang = lang
	logger.Infof("设置默认语言为: %s", lang)
}

// GetDefaultLanguage 获取默认语言
func (i *I18n) GetDefaultLanguage() string {
	return i.defaultLang
}

// IsSupportedLanguage 检查语言是否支持
func (i *I18n) IsSupportedLanguage(lang string) bool {
	_, exists := i.translators[lang]
	return exists
}
