package pipeline

import (
	"bytes"
	"strings"

	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"mwb/internal/util"
)

// SourceFromEmail reads a forwarded workbook message. The HTML and text bodies
// are kept and PDF, XLSX and RTF attachments are appended to the text.
func SourceFromEmail(raw []byte, year int) (Source, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return Source{}, err
	}

	texts := []string{}
	if env.Text != "" {
		texts = append(texts, env.Text)
	}
	for _, att := range env.Attachments {
		lower := strings.ToLower(strings.TrimSpace(att.FileName))
		var (
			text string
			err  error
		)
		switch {
		case strings.HasSuffix(lower, ".pdf"):
			text, err = TextFromPDF(att.Content)
		case strings.HasSuffix(lower, ".xlsx"):
			text, err = TextFromXLSX(att.Content)
		case strings.HasSuffix(lower, ".rtf"):
			text = TextFromRTF(att.Content)
		default:
			continue
		}
		if err == nil && strings.TrimSpace(text) != "" {
			texts = append(texts, text)
		}
	}

	src := Source{HTML: env.HTML, Year: year}
	if len(texts) > 0 {
		src.Text = strings.Join(texts, "\n")
	} else if env.HTML != "" {
		src.Text = StripHTML(env.HTML)
	}
	return src, nil
}

// TextFromXLSX renders every sheet row as one line.
func TextFromXLSX(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		for _, row := range rows {
			cells := make([]string, 0, len(row))
			for _, c := range row {
				if c = util.NormalizeSpaces(c); c != "" {
					cells = append(cells, c)
				}
			}
			if len(cells) == 0 {
				continue
			}
			b.WriteString(strings.Join(cells, " "))
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

func TextFromPDF(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

var rtfSkipDestinations = map[string]bool{
	"fonttbl": true, "colortbl": true, "stylesheet": true, "info": true, "pict": true,
	"header": true, "footer": true, "headerl": true, "headerr": true, "footerl": true,
	"footerr": true, "object": true, "themedata": true, "datastore": true, "listtable": true,
	"listoverridetable": true, "rsidtbl": true, "generator": true, "xmlnstbl": true,
}

// TextFromRTF strips control words and groups from an RTF document and keeps
// paragraph breaks. Hex escapes are read as Windows-1252.
func TextFromRTF(content []byte) string {
	var (
		b     strings.Builder
		skip  []bool
		depth int
		uc    = 1
		drop  int
	)
	skipping := func() bool { return depth > 0 && depth <= len(skip) && skip[depth-1] }

	for i := 0; i < len(content); i++ {
		c := content[i]
		switch c {
		case '{':
			depth++
			inherit := skipping()
			if depth > len(skip) {
				skip = append(skip, inherit)
			} else {
				skip[depth-1] = inherit
			}
			if i+2 < len(content) && content[i+1] == '\\' && content[i+2] == '*' {
				skip[depth-1] = true
			}
			continue
		case '}':
			if depth > 0 {
				depth--
			}
			continue
		case '\r', '\n':
			continue
		case '\\':
			if i+1 >= len(content) {
				continue
			}
			next := content[i+1]
			switch {
			case next == '\\' || next == '{' || next == '}':
				if !skipping() {
					b.WriteByte(next)
				}
				i++
				continue
			case next == '\'':
				if i+3 < len(content) {
					if v, ok := hexByte(content[i+2], content[i+3]); ok && !skipping() {
						if drop > 0 {
							drop--
						} else {
							b.WriteRune(charmap.Windows1252.DecodeByte(v))
						}
					}
				}
				i += 3
				continue
			case !isLetter(next):
				i++
				continue
			}

			j := i + 1
			for j < len(content) && isLetter(content[j]) {
				j++
			}
			word := string(content[i+1 : j])
			k := j
			if k < len(content) && content[k] == '-' {
				k++
			}
			for k < len(content) && content[k] >= '0' && content[k] <= '9' {
				k++
			}
			param := string(content[j:k])
			if k < len(content) && content[k] == ' ' {
				k++
			}
			i = k - 1

			if rtfSkipDestinations[word] && depth > 0 {
				skip[depth-1] = true
				continue
			}
			if skipping() {
				continue
			}
			switch word {
			case "par", "line", "sect", "page", "row":
				b.WriteByte('\n')
			case "tab", "cell":
				b.WriteByte(' ')
			case "uc":
				if n, ok := util.ParseLeadingInt(param); ok {
					uc = n
				}
			case "u":
				n := atoiSigned(param)
				if n < 0 {
					n += 65536
				}
				b.WriteRune(rune(n))
				drop = uc
			}
			continue
		}

		if skipping() {
			continue
		}
		if drop > 0 {
			drop--
			continue
		}
		b.WriteByte(c)
	}
	return strings.Join(util.SplitLines(b.String()), "\n")
}

func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

func hexByte(hi, lo byte) (byte, bool) {
	h, ok1 := hexVal(hi)
	l, ok2 := hexVal(lo)
	return h<<4 | l, ok1 && ok2
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func atoiSigned(s string) int {
	neg := strings.HasPrefix(s, "-")
	n, _ := util.ParseLeadingInt(strings.TrimPrefix(s, "-"))
	if neg {
		return -n
	}
	return n
}
