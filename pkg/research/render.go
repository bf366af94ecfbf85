package research

import (
	"fmt"
	"strings"
)

// renderNarrative implements §4.8 step 11's Markdown layout for narrative
// reports: H1 title, Summary, Findings (each with a Why/Quote annotation
// when present), Open Questions, and a numbered Sources list in
// first-seen order.
func renderNarrative(result SynthesisResult) (string, []string) {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", result.Title)

	if len(result.SummaryBullets) > 0 {
		b.WriteString("## Summary\n\n")
		for _, s := range result.SummaryBullets {
			fmt.Fprintf(&b, "- %s\n", s)
		}
		b.WriteString("\n")
	}

	citations := make([]string, 0)
	index := map[string]int{}
	cite := func(url string) int {
		if i, ok := index[url]; ok {
			return i
		}
		citations = append(citations, url)
		index[url] = len(citations)
		return len(citations)
	}

	if len(result.Findings) > 0 {
		b.WriteString("## Findings\n\n")
		for _, f := range result.Findings {
			nums := make([]string, 0, len(f.Citations))
			for _, c := range f.Citations {
				nums = append(nums, fmt.Sprintf("[%d]", cite(c)))
			}
			fmt.Fprintf(&b, "- %s %s\n", f.Claim, strings.Join(nums, " "))
			if f.Why != "" {
				fmt.Fprintf(&b, "  - Why: %s\n", f.Why)
			}
			if f.Quote != "" {
				fmt.Fprintf(&b, "  - Quote: %q\n", f.Quote)
			}
		}
		b.WriteString("\n")
	}

	if len(result.OpenQuestions) > 0 {
		b.WriteString("## Open Questions\n\n")
		for _, q := range result.OpenQuestions {
			fmt.Fprintf(&b, "- %s\n", q)
		}
		b.WriteString("\n")
	}

	renderSources(&b, citations)
	return b.String(), citations
}

// renderCatalog implements §4.8 step 11's catalog layout: one section per
// item with its canonical fields, followed by the same numbered Sources
// footer.
func renderCatalog(result SynthesisResult) (string, []string) {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", result.Title)

	if len(result.SummaryBullets) > 0 {
		b.WriteString("## Summary\n\n")
		for _, s := range result.SummaryBullets {
			fmt.Fprintf(&b, "- %s\n", s)
		}
		b.WriteString("\n")
	}

	citations := make([]string, 0)
	index := map[string]int{}
	cite := func(url string) int {
		if url == "" {
			return 0
		}
		if i, ok := index[url]; ok {
			return i
		}
		citations = append(citations, url)
		index[url] = len(citations)
		return len(citations)
	}

	b.WriteString("## Catalog\n\n")
	for _, item := range result.Items {
		fmt.Fprintf(&b, "### %s\n\n", item.Name)
		if item.WebsiteURL != "" {
			fmt.Fprintf(&b, "- Website: %s\n", item.WebsiteURL)
		}
		if item.ProblemSolved != "" {
			fmt.Fprintf(&b, "- Problem solved: %s\n", item.ProblemSolved)
		}
		if item.PricingModel != "" {
			fmt.Fprintf(&b, "- Pricing: %s\n", item.PricingModel)
		}
		for _, p := range item.ProofLinks {
			fmt.Fprintf(&b, "- Proof: %s [%d]\n", p, cite(p))
		}
		if item.Quote != "" {
			fmt.Fprintf(&b, "- Quote: %q [%d]\n", item.Quote, cite(item.SourceURL))
		} else if item.SourceURL != "" {
			cite(item.SourceURL)
		}
		b.WriteString("\n")
	}

	renderSources(&b, citations)
	return b.String(), citations
}

func renderSources(b *strings.Builder, citations []string) {
	if len(citations) == 0 {
		return
	}
	b.WriteString("## Sources\n\n")
	for i, url := range citations {
		fmt.Fprintf(b, "%d. %s\n", i+1, url)
	}
}
