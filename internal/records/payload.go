// Package records reads stored week rows. Rows come in two schema
// generations: current rows carry a parts list, legacy rows carry per-section
// lists and a handful of flat fields.
package records

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"mwb/internal"
	"mwb/internal/util"
)

var ErrMalformed = errors.New("malformed week record")

// Row is one stored week as read from the row store.
type Row struct {
	Content  json.RawMessage `json:"content"`
	WeekDate string          `json:"week_date"`
}

// Payload is either a CurrentPayload or a LegacyPayload.
type Payload interface {
	isPayload()
}

type CurrentPayload struct {
	Period       string          `json:"periodo"`
	BibleReading string          `json:"leituraBiblica"`
	Songs        internal.Songs  `json:"canticos"`
	Parts        []internal.Part `json:"partes"`
	Ministry     []LegacyItem    `json:"ministerioPrincipal,omitempty"`
}

type LegacyPayload struct {
	Date           string          `json:"data"`
	Treasures      []LegacyItem    `json:"tesouros"`
	Reading        *LegacyReading  `json:"leituraBiblia"`
	Ministry       []LegacyItem    `json:"ministerioPrincipal"`
	Living         []LegacyItem    `json:"vidaCrista"`
	BibleStudy     json.RawMessage `json:"estudoBiblico"`
	BibleReference string          `json:"referenciaBiblica"`
	SongOpening    json.RawMessage `json:"canticoInicial"`
	SongMiddle     json.RawMessage `json:"canticoMeio"`
	SongClosing    json.RawMessage `json:"canticoFinal"`
}

type LegacyReading struct {
	Duration string
}

func (CurrentPayload) isPayload() {}
func (LegacyPayload) isPayload()  {}

var legacyKeys = []string{"tesouros", "leituraBiblia", "ministerioPrincipal", "vidaCrista", "estudoBiblico", "referenciaBiblica", "canticoInicial", "canticoMeio", "canticoFinal", "data"}

// Decode classifies a stored content blob. A non-empty parts list makes it
// current; any legacy field makes it legacy; anything else is ErrMalformed.
func Decode(content json.RawMessage) (Payload, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(content, &probe); err != nil || probe == nil {
		return nil, ErrMalformed
	}

	if raw, ok := probe["partes"]; ok {
		var parts []json.RawMessage
		if err := json.Unmarshal(raw, &parts); err == nil && len(parts) > 0 {
			var cur CurrentPayload
			if err := json.Unmarshal(content, &cur); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
			}
			return cur, nil
		}
	}

	for _, key := range legacyKeys {
		if raw, ok := probe[key]; ok && !isNull(raw) {
			var leg LegacyPayload
			if err := json.Unmarshal(content, &leg); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
			}
			return leg, nil
		}
	}
	return nil, ErrMalformed
}

// Encode stores w as a current-schema row keyed by its start date.
func Encode(w internal.WeekProgram) (Row, error) {
	if len(w.Parts) == 0 {
		return Row{}, fmt.Errorf("%w: week %s has no parts", ErrMalformed, w.StartDate)
	}
	content, err := json.Marshal(CurrentPayload{
		Period:       w.Period,
		BibleReading: w.BibleReading,
		Songs:        w.Songs,
		Parts:        w.Parts,
	})
	if err != nil {
		return Row{}, err
	}
	return Row{Content: content, WeekDate: w.StartDate}, nil
}

// LegacyItem is one entry of a legacy section list. Entries are either a bare
// title string or an object.
type LegacyItem struct {
	Title       string
	Duration    string
	Material    string
	Scenario    string
	Description string
	Bare        bool
}

var descriptionKeys = []string{"descricao", "descrição", "texto", "detalhe", "detalhes", "observacao", "observação", "nota", "notas", "descricaoCena", "desc", "sceneText"}

var nonDescriptionKeys = map[string]bool{"titulo": true, "tempo": true, "material": true, "cenario": true, "sala": true}

func (it *LegacyItem) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*it = LegacyItem{Title: strings.TrimSpace(s), Bare: true}
		return nil
	}
	if isNull(data) {
		*it = LegacyItem{}
		return nil
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*it = LegacyItem{
		Title:    stringField(obj, "titulo"),
		Duration: scalarField(obj, "tempo"),
		Material: stringField(obj, "material"),
		Scenario: stringField(obj, "cenario"),
	}
	for _, k := range descriptionKeys {
		if v := stringField(obj, k); v != "" {
			it.Description = v
			return nil
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		if !nonDescriptionKeys[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var extra []string
	for _, k := range keys {
		if v := stringField(obj, k); v != "" {
			extra = append(extra, v)
		}
	}
	it.Description = strings.Join(extra, ". ")
	return nil
}

func (r *LegacyReading) UnmarshalJSON(data []byte) error {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	r.Duration = scalarField(obj, "tempo")
	return nil
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

func scalarField(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func isNull(raw json.RawMessage) bool {
	s := string(bytes.TrimSpace(raw))
	return s == "" || s == "null"
}

// truthy mirrors loose JSON truthiness: null, false, 0 and "" are false.
func truthy(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "false", "0", `""`:
		return false
	}
	return true
}

func looseSong(raw json.RawMessage) *int {
	if isNull(raw) {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	n, ok := util.LooseInt(v)
	if !ok || n <= 0 {
		return nil
	}
	return util.IntPtr(n)
}
