// Package locale хранит выбранный язык интерфейса и отдаёт переводы.
// Поддерживаются испанский и три языка коренных народов; недостающие
// строки берутся из испанского каталога.
package locale

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/camballey/tucan/internal/cache"
	"github.com/camballey/tucan/internal/lib/sl"
)

// Fallback язык по умолчанию.
const Fallback = "es"

var ErrUnsupported = errors.New("unsupported language")

//go:embed locales/*.json
var files embed.FS

// Language описание доступного языка.
type Language struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	NativeName string `json:"native_name"`
}

var available = []Language{
	{Code: "es", Name: "Español", NativeName: "Español"},
	{Code: "qu", Name: "Quechua", NativeName: "Runa Simi"},
	{Code: "ay", Name: "Aymara", NativeName: "Aymar Aru"},
	{Code: "gn", Name: "Guaraní", NativeName: "Avañe'ẽ"},
}

var names = map[string]string{
	"es": "Español",
	"qu": "Runa Simi (Quechua)",
	"ay": "Aymar Aru (Aymara)",
	"gn": "Avañe'ẽ (Guaraní)",
}

// Available список доступных языков.
func Available() []Language {
	out := make([]Language, len(available))
	copy(out, available)
	return out
}

// Name отображаемое имя языка. Для неизвестного кода возвращается сам код.
func Name(code string) string {
	if n, ok := names[code]; ok {
		return n
	}
	return code
}

// Store хранилище на устройстве.
type Store interface {
	GetString(ctx context.Context, key string) (string, bool, error)
	SetString(ctx context.Context, key, value string) error
}

// Service текущий язык и каталог переводов.
type Service struct {
	store Store
	log   *slog.Logger
	cat   *catalog.Builder
	def   string

	mu      sync.RWMutex
	current string
}

// New загружает встроенные каталоги. defaultCode используется, если в
// хранилище ничего нет; неподдерживаемый код заменяется на Fallback.
func New(store Store, defaultCode string, log *slog.Logger) (*Service, error) {
	const op = "locale.New"

	fallback, err := files.ReadFile("locales/" + Fallback + ".json")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cat := catalog.NewBuilder(catalog.Fallback(language.Spanish))
	for _, l := range available {
		raw, err := files.ReadFile("locales/" + l.Code + ".json")
		if errors.Is(err, fs.ErrNotExist) {
			// без собственного каталога язык показывает испанские строки
			raw = fallback
		} else if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := load(cat, language.Make(l.Code), raw); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op, l.Code, err)
		}
	}

	if !Supported(defaultCode) {
		defaultCode = Fallback
	}
	return &Service{store: store, log: log, cat: cat, def: defaultCode, current: defaultCode}, nil
}

// load раскладывает вложенный JSON в ключи через точку: chofer.balance.show.
func load(cat *catalog.Builder, tag language.Tag, raw []byte) error {
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return err
	}
	flat := make(map[string]string)
	flatten("", tree, flat)

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := cat.SetString(tag, k, flat[k]); err != nil {
			return err
		}
	}
	return nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case string:
			out[key] = val
		case map[string]any:
			flatten(key, val, out)
		}
	}
}

// Supported true для es, qu, ay, gn.
func Supported(code string) bool {
	tag, err := language.Parse(code)
	if err != nil {
		return false
	}
	base, _ := tag.Base()
	_, ok := names[base.String()]
	return ok && base.String() == code
}

// Detect читает сохранённый язык. Ошибки хранилища и неизвестные коды дают язык по умолчанию.
func (s *Service) Detect(ctx context.Context) string {
	code := s.def
	saved, ok, err := s.store.GetString(ctx, cache.KeyLanguage)
	switch {
	case err != nil:
		s.log.Warn("failed to read language", sl.Err(err))
	case ok && Supported(saved):
		code = saved
	case ok:
		s.log.Warn("ignoring unsupported saved language", slog.String("code", saved))
	}

	s.mu.Lock()
	s.current = code
	s.mu.Unlock()
	return code
}

// Change переключает язык и сохраняет выбор.
func (s *Service) Change(ctx context.Context, code string) error {
	const op = "locale.Change"
	if !Supported(code) {
		return fmt.Errorf("%s: %q: %w", op, code, ErrUnsupported)
	}

	s.mu.Lock()
	s.current = code
	s.mu.Unlock()

	if err := s.store.SetString(ctx, cache.KeyLanguage, code); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Current текущий язык.
func (s *Service) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Printer принтер для языка code; пустой code означает текущий язык.
func (s *Service) Printer(code string) *message.Printer {
	if code == "" {
		code = s.Current()
	}
	return message.NewPrinter(language.Make(code), message.Catalog(s.cat))
}

// T перевод ключа на текущий язык.
func (s *Service) T(key string, args ...any) string {
	return s.Printer("").Sprintf(key, args...)
}
