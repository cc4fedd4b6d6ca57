package pipeline

import (
	"regexp"
	"sort"
	"strings"

	"mwb/internal/util"
)

// bookNames lists the canonical book names as printed in the Portuguese and
// English workbooks. Accent-free spellings are matched through accentClass.
var bookNames = []string{
	"Gênesis", "Êxodo", "Levítico", "Números", "Deuteronômio", "Josué", "Juízes", "Rute",
	"1 Samuel", "2 Samuel", "1 Reis", "2 Reis", "1 Crônicas", "2 Crônicas", "Esdras", "Neemias",
	"Ester", "Jó", "Salmos", "Salmo", "Provérbios", "Eclesiastes", "Cântico de Salomão",
	"Cântico dos Cânticos", "Isaías", "Jeremias", "Lamentações", "Ezequiel", "Daniel", "Oseias",
	"Oséias", "Joel", "Amós", "Obadias", "Jonas", "Miqueias", "Miquéias", "Naum", "Habacuque",
	"Sofonias", "Ageu", "Zacarias", "Malaquias",
	"Mateus", "Marcos", "Lucas", "João", "Atos", "Romanos", "1 Coríntios", "2 Coríntios",
	"Gálatas", "Efésios", "Filipenses", "Colossenses", "1 Tessalonicenses", "2 Tessalonicenses",
	"1 Timóteo", "2 Timóteo", "Tito", "Filemom", "Hebreus", "Tiago", "1 Pedro", "2 Pedro",
	"1 João", "2 João", "3 João", "Judas", "Apocalipse",

	"Genesis", "Exodus", "Leviticus", "Numbers", "Deuteronomy", "Joshua", "Judges", "Ruth",
	"1 Kings", "2 Kings", "1 Chronicles", "2 Chronicles", "Ezra", "Nehemiah", "Esther", "Job",
	"Psalms", "Psalm", "Proverbs", "Ecclesiastes", "Song of Solomon", "Isaiah", "Jeremiah",
	"Lamentations", "Ezekiel", "Hosea", "Amos", "Obadiah", "Jonah", "Micah", "Nahum",
	"Habakkuk", "Zephaniah", "Haggai", "Zechariah", "Malachi",
	"Matthew", "Mark", "Luke", "John", "Acts", "Romans", "1 Corinthians", "2 Corinthians",
	"Galatians", "Ephesians", "Philippians", "Colossians", "1 Thessalonians", "2 Thessalonians",
	"1 Timothy", "2 Timothy", "Titus", "Philemon", "Hebrews", "James", "1 Peter", "2 Peter",
	"1 John", "2 John", "3 John", "Jude", "Revelation",
}

var accentClass = map[rune]string{
	'á': "[áa]", 'â': "[âa]", 'ã': "[ãa]", 'à': "[àa]",
	'é': "[ée]", 'ê': "[êe]",
	'í': "[íi]",
	'ó': "[óo]", 'ô': "[ôo]", 'õ': "[õo]",
	'ú': "[úu]",
	'ç': "[çc]",
}

var (
	bibleReference = buildBibleReference()
	readingLabel   = regexp.MustCompile(`(?i)(?:Leitura\s+da\s+B[íi]blia|Bible\s+Reading|Leitura)\s*[:\-–—]?\s*(.{0,120})`)
)

func buildBibleReference() *regexp.Regexp {
	names := dedupeStrings(bookNames)
	sort.SliceStable(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })

	alts := make([]string, 0, len(names))
	for _, name := range names {
		var b strings.Builder
		for _, r := range strings.ToLower(name) {
			switch {
			case r == ' ':
				b.WriteString(`\s*`)
			case accentClass[r] != "":
				b.WriteString(accentClass[r])
			default:
				b.WriteString(regexp.QuoteMeta(string(r)))
			}
		}
		alts = append(alts, b.String())
	}

	citation := `\d{1,3}(?:\s*:\s*\d{1,3})?(?:\s*[-–—]\s*\d{1,3}(?::\d{1,3})?)?(?:\s*,\s*\d{1,3}(?:\s*[-–—]\s*\d{1,3})?)*`
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(` + strings.Join(alts, "|") + `)\s+(` + citation + `)`)
}

// FindBibleReference returns the first "BOOK chapter[:verse]" citation in text
// with the book name uppercased and the numeric part left as matched.
func FindBibleReference(text string) string {
	m := bibleReference.FindStringSubmatch(text)
	if len(m) < 3 {
		return ""
	}
	book := strings.ToUpper(util.NormalizeSpaces(m[1]))
	return book + " " + strings.TrimSpace(m[2])
}

// findReadingIn prefers a citation on an explicit reading label and falls back
// to the first citation anywhere in the window.
func findReadingIn(window string) string {
	for _, m := range readingLabel.FindAllStringSubmatch(window, -1) {
		if ref := FindBibleReference(m[1]); ref != "" {
			return ref
		}
	}
	return FindBibleReference(window)
}

func dedupeStrings(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
