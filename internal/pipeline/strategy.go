package pipeline

import (
	"context"

	"mwb/internal"
	"mwb/internal/records"
)

// Source is everything known about one input. Strategies read the fields they
// understand and ignore the rest.
type Source struct {
	Rows []records.Row
	HTML string
	Text string
	URL  string
	Year int
}

// Strategy is one way of turning a Source into weeks. An empty result means
// the strategy does not apply.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, src Source) []internal.WeekProgram
}

type RecordStrategy struct{}

func (RecordStrategy) Name() string { return "records" }

func (RecordStrategy) Extract(_ context.Context, src Source) []internal.WeekProgram {
	if len(src.Rows) == 0 {
		return nil
	}
	return records.Normalize(src.Rows)
}

type MarkupStrategy struct{}

func (MarkupStrategy) Name() string { return "markup" }

func (MarkupStrategy) Extract(_ context.Context, src Source) []internal.WeekProgram {
	if src.HTML == "" {
		return nil
	}
	w := ExtractWeek(src.HTML, src.URL, src.Year)
	if w == nil || len(w.Parts) == 0 {
		return nil
	}
	return []internal.WeekProgram{*w}
}

type BulkStrictStrategy struct{}

func (BulkStrictStrategy) Name() string { return "bulk-strict" }

func (BulkStrictStrategy) Extract(_ context.Context, src Source) []internal.WeekProgram {
	return ExtractBulkStrict(src.plainText(), src.Year)
}

type BulkLooseStrategy struct{}

func (BulkLooseStrategy) Name() string { return "bulk-loose" }

func (BulkLooseStrategy) Extract(_ context.Context, src Source) []internal.WeekProgram {
	return ExtractBulkLoose(src.plainText(), src.Year)
}

func (s Source) plainText() string {
	if s.Text != "" {
		return s.Text
	}
	if s.HTML != "" {
		return StripHTML(s.HTML)
	}
	return ""
}

// Chain tries each strategy in order and stops at the first non-empty result.
type Chain []Strategy

// DefaultChain prefers stored rows, then a single-week page, then bulk text
// read line by line, then bulk text read as one stream.
func DefaultChain() Chain {
	return Chain{RecordStrategy{}, MarkupStrategy{}, BulkStrictStrategy{}, BulkLooseStrategy{}}
}

// Extract returns the first non-empty result and the name of the strategy that
// produced it. It returns an empty slice and "" when every strategy comes up
// empty or ctx is done.
func (c Chain) Extract(ctx context.Context, src Source) ([]internal.WeekProgram, string) {
	for _, s := range c {
		if ctx.Err() != nil {
			break
		}
		if weeks := s.Extract(ctx, src); len(weeks) > 0 {
			return weeks, s.Name()
		}
	}
	return []internal.WeekProgram{}, ""
}
