package i18n

import (
	"embed"
	"encoding/json"
	"log"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var locales embed.FS

var (
	mu     sync.RWMutex
	bundle *i18n.Bundle
	loc    *i18n.Localizer
)

func InitBundle(locale string) {
	b := i18n.NewBundle(language.English)
	b.RegisterUnmarshalFunc("json", json.Unmarshal)
	for _, name := range []string{"locales/en.json", "locales/zh-CN.json"} {
		buf, err := locales.ReadFile(name)
		if err != nil {
			panic(err)
		}
		b.MustParseMessageFileBytes(buf, name)
	}

	mu.Lock()
	defer mu.Unlock()
	bundle = b
	loc = i18n.NewLocalizer(bundle, locale)
}

// Localize renders msgID with data. It falls back to English when InitBundle
// was never called and to msgID itself when the message is missing.
func Localize(msgID string, data map[string]interface{}) string {
	mu.RLock()
	l := loc
	mu.RUnlock()
	if l == nil {
		InitBundle(language.English.String())
		mu.RLock()
		l = loc
		mu.RUnlock()
	}

	msg, _, err := l.LocalizeWithTag(&i18n.LocalizeConfig{
		MessageID:    msgID,
		TemplateData: data,
	})
	if msg == "" {
		log.Printf("Message %s not localized: %v\n", msgID, err)
		return msgID
	}
	return msg
}
