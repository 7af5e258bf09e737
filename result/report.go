package result

import "github.com/lukemcguire/wordcrawl/wordcount"

// PageReport pairs a fetched page with its word matches.
type PageReport struct {
	PageResult
	Matches int `json:"matches"`
}

// Report is a crawl result scored against a target word.
type Report struct {
	Word   string
	Count  int
	Pages  []PageReport
	Result *Result
}

// NewReport counts word across res.Texts. Count sums distinct texts only, so
// two pages serving identical text contribute once; per-page Matches are
// reported for every page.
func NewReport(res *Result, word string) *Report {
	perText := wordcount.CountEach(res.Texts, word)

	total := 0
	for _, n := range perText {
		total += n
	}

	pages := make([]PageReport, 0, len(res.Pages))
	for _, page := range res.Pages {
		matches := 0
		if page.TextIndex >= 0 && page.TextIndex < len(perText) {
			matches = perText[page.TextIndex]
		}
		pages = append(pages, PageReport{PageResult: page, Matches: matches})
	}

	return &Report{
		Word:   wordcount.Fold(word),
		Count:  total,
		Pages:  pages,
		Result: res,
	}
}

// Summary returns the one-line answer for the report.
func (r *Report) Summary() string {
	return wordcount.Summary(r.Count, r.Word)
}
