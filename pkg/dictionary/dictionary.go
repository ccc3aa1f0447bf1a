package dictionary

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"sort"

	json "github.com/goccy/go-json"
	"github.com/leonid6372/stock-arena/pkg/format"
	"github.com/leonid6372/stock-arena/pkg/log"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultLanguage = "en"

//go:embed dictionary.json
var defaultDictionary []byte

type Dictionary struct {
	dictionary map[string]map[string]string // map[language_code]map[key]value

	digitSeparator   string
	decimalSeparator string
}

// New loads texts from path, or the embedded dictionary when path is empty.
func New(path string) (*Dictionary, error) {
	file := defaultDictionary
	if path != "" {
		var err error
		if file, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("failed to read dictionary: %w", err)
		}
	}

	var dictionary map[string]map[string]string
	if err := json.Unmarshal(file, &dictionary); err != nil {
		return nil, fmt.Errorf("failed to parse dictionary: %w", err)
	}

	if _, ok := dictionary[DefaultLanguage]; !ok {
		return nil, fmt.Errorf("dictionary has no %q texts", DefaultLanguage)
	}

	return &Dictionary{
		dictionary:       dictionary,
		digitSeparator:   ",",
		decimalSeparator: ".",
	}, nil
}

func (d *Dictionary) Languages() []string {
	langs := make([]string, 0, len(d.dictionary))

	for lang := range d.dictionary {
		langs = append(langs, lang)
	}

	sort.Strings(langs)

	return langs
}

// Text renders the template stored under key. Unknown languages fall back to DefaultLanguage.
func (d *Dictionary) Text(lang, key string, values ...map[string]any) string {
	if _, ok := d.dictionary[lang]; !ok {
		lang = DefaultLanguage
	}

	text, ok := d.dictionary[lang][key]
	if !ok {
		log.Error("Text: value not found", zap.String("lang", lang), zap.String("key", key))
		return ""
	}

	tmpl, err := template.New(key).Parse(text)
	if err != nil {
		return text
	}

	valuesMap := map[string]any{}
	if len(values) > 0 {
		// format numeric types in values
		for k, value := range values[0] {
			switch v := value.(type) {
			case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, decimal.Decimal:
				valuesMap[k] = format.PrettyNumber(v, d.digitSeparator, d.decimalSeparator)
			default:
				valuesMap[k] = value
			}
		}
	}

	byteText := new(bytes.Buffer)
	if err = tmpl.Execute(byteText, valuesMap); err != nil {
		log.Error("Text: failed to execute template", zap.Error(err))
		return text
	}

	return byteText.String()
}
