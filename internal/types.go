package internal

type Section string

const (
	SectionTreasures Section = "tesouros"
	SectionMinistry  Section = "ministerio"
	SectionLiving    Section = "vida_crista"
)

type PartType string

const (
	PartTalk               PartType = "discurso"
	PartQuestionsAnswers   PartType = "perguntas_respostas"
	PartReading            PartType = "leitura"
	PartDemonstration      PartType = "demonstracao"
	PartBibleStudy         PartType = "estudo_biblico"
	PartElderConsideration PartType = "consideracao_anciao"
	PartCongregationStudy  PartType = "estudo_congregacao"
)

type Room string

const (
	RoomMain      Room = "Principal"
	RoomSecondary Room = "Sala B"
	RoomBoth      Room = "Ambas"
)

type Scenario string

const (
	ScenarioHouseToHouse       Scenario = "DE CASA EM CASA"
	ScenarioInformalWitnessing Scenario = "TESTEMUNHO INFORMAL"
	ScenarioPublicWitnessing   Scenario = "TESTEMUNHO PÚBLICO"
	ScenarioInformalChat       Scenario = "CONVERSA INFORMAL"
	ScenarioHouseToHouseEN     Scenario = "HOUSE TO HOUSE"
	ScenarioInformalEN         Scenario = "INFORMAL WITNESSING"
	ScenarioPublicEN           Scenario = "PUBLIC WITNESSING"
)

// Scenarios is the closed delivery-method vocabulary.
var Scenarios = []Scenario{
	ScenarioHouseToHouse,
	ScenarioInformalWitnessing,
	ScenarioPublicWitnessing,
	ScenarioInformalChat,
	ScenarioHouseToHouseEN,
	ScenarioInformalEN,
	ScenarioPublicEN,
}

type Songs struct {
	Opening *int `json:"inicial"`
	Middle  *int `json:"meio"`
	Closing *int `json:"final"`
}

func (s Songs) Empty() bool {
	return s.Opening == nil && s.Middle == nil && s.Closing == nil
}

type Part struct {
	Number      int      `json:"numero"`
	Title       string   `json:"titulo"`
	Duration    int      `json:"duracao"`
	Section     Section  `json:"secao"`
	Type        PartType `json:"tipo"`
	Material    string   `json:"material,omitempty"`
	Scenario    Scenario `json:"cenario,omitempty"`
	Description string   `json:"descricao,omitempty"`
	Room        Room     `json:"sala,omitempty"`
}

// WeekProgram is one week's agenda. Unresolved marks a period phrase that could
// not be turned into dates; StartDate and EndDate then hold January 1st of the
// fallback year.
type WeekProgram struct {
	Period       string `json:"periodo"`
	StartDate    string `json:"dataInicio"`
	EndDate      string `json:"dataFim"`
	BibleReading string `json:"leituraBiblica"`
	Songs        Songs  `json:"canticos"`
	Parts        []Part `json:"partes"`
	IsFallback   bool   `json:"isFallback,omitempty"`
	Unresolved   bool   `json:"unresolved,omitempty"`
}

// MinistryParts returns the indexes of ministry parts in source order.
func (w WeekProgram) MinistryParts() []int {
	var out []int
	for i, p := range w.Parts {
		if p.Section == SectionMinistry {
			out = append(out, i)
		}
	}
	return out
}

// FillMissing returns a copy of w whose empty fields are taken from src. Ministry
// parts are paired by their ordinal among ministry parts. Present values are kept.
func (w WeekProgram) FillMissing(src WeekProgram) WeekProgram {
	out := w
	out.Parts = append([]Part(nil), w.Parts...)

	if out.BibleReading == "" {
		out.BibleReading = src.BibleReading
	}
	if out.Songs.Opening == nil {
		out.Songs.Opening = src.Songs.Opening
	}
	if out.Songs.Middle == nil {
		out.Songs.Middle = src.Songs.Middle
	}
	if out.Songs.Closing == nil {
		out.Songs.Closing = src.Songs.Closing
	}
	if len(out.Parts) == 0 {
		out.Parts = append(out.Parts, src.Parts...)
		return out
	}

	srcMinistry := src.MinistryParts()
	for k, idx := range out.MinistryParts() {
		if k >= len(srcMinistry) {
			break
		}
		from := src.Parts[srcMinistry[k]]
		p := &out.Parts[idx]
		if p.Material == "" {
			p.Material = from.Material
		}
		if p.Scenario == "" {
			p.Scenario = from.Scenario
		}
		if p.Description == "" {
			p.Description = from.Description
		}
	}
	return out
}

// NeedsEnrichment reports whether any ministry part lacks a description.
func (w WeekProgram) NeedsEnrichment() bool {
	for _, idx := range w.MinistryParts() {
		if w.Parts[idx].Description == "" {
			return true
		}
	}
	return false
}

// Renumber assigns consecutive part numbers starting at 1.
func Renumber(parts []Part) []Part {
	for i := range parts {
		parts[i].Number = i + 1
	}
	return parts
}
