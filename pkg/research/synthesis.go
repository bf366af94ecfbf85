package research

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kpaschalidis/anvil/pkg/errs"
	"github.com/kpaschalidis/anvil/pkg/llm"
	"github.com/kpaschalidis/anvil/pkg/models"
)

// Finding is one narrative-mode claim with its grounding citations (§4.8
// step 10).
type Finding struct {
	Claim     string
	Citations []string
	Quote     string
	Why       string
}

// CatalogItem is one catalog-mode entry (§4.8 step 1's canonical fields
// plus evidence).
type CatalogItem struct {
	Name          string
	WebsiteURL    string
	ProblemSolved string
	PricingModel  string
	ProofLinks    []string
	Quote         string
	SourceURL     string
}

// SynthesisResult is the structured output of any synthesis path, ready
// for Render.
type SynthesisResult struct {
	Title          string
	SummaryBullets []string
	Findings       []Finding
	Items          []CatalogItem
	OpenQuestions  []string
}

// evidenceIndex maps a citation URL to its extracted excerpt, for quote
// substring validation.
type evidenceIndex map[string]string

func buildEvidenceIndex(results []models.WorkerResult) evidenceIndex {
	idx := evidenceIndex{}
	for _, r := range results {
		for _, e := range r.Evidence {
			idx[e.URL] = e.Excerpt
		}
	}
	return idx
}

// allowedURLSet computes the citation set the synthesizer may cite: the
// curated subset when curation is enabled, else the union of every
// collected citation (§4.8 step 9).
func allowedURLSet(results []models.WorkerResult, cfg Config) map[string]bool {
	if cfg.CurateSources {
		return curateSources(results, cfg)
	}
	return uniqueCitations(results)
}

func joinResultOutputs(results []models.WorkerResult) string {
	var b strings.Builder
	for _, r := range results {
		if !r.Success {
			continue
		}
		fmt.Fprintf(&b, "### %s\n%s\n\n", r.TaskID, r.Output)
	}
	return b.String()
}

func allowedSourcesBlock(allowed map[string]bool) string {
	urls := make([]string, 0, len(allowed))
	for u := range allowed {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	var b strings.Builder
	b.WriteString("Allowed sources (cite only these URLs):\n")
	for _, u := range urls {
		fmt.Fprintf(&b, "- %s\n", u)
	}
	return b.String()
}

// --- Catalog synthesis (§4.8 step 10, catalog) ---

type rawCatalogResponse struct {
	Title          string           `json:"title"`
	SummaryBullets []string         `json:"summary_bullets"`
	Items          []rawCatalogItem `json:"items"`
}

type rawCatalogItem struct {
	Name          string   `json:"name"`
	WebsiteURL    string   `json:"website_url"`
	ProblemSolved string   `json:"problem_solved"`
	PricingModel  string   `json:"pricing_model"`
	ProofLinks    []string `json:"proof_links"`
	Quote         string   `json:"quote"`
	SourceURL     string   `json:"source_url"`
}

func (o *Orchestrator) synthesizeCatalog(ctx context.Context, results []models.WorkerResult, allowed map[string]bool, targetItems int, requiredFields []string) (SynthesisResult, error) {
	prompt := fmt.Sprintf(
		"Research notes:\n%s\n\n%s\nIdentify up to %d distinct items. Each item must report these fields: %s.\n"+
			"Emit a JSON object: "+
			`{"title":"...","summary_bullets":["..."],"items":[{"name":"...","website_url":"...","problem_solved":"...","pricing_model":"...","proof_links":["..."],"quote":"...","source_url":"..."}]}`+
			"\nEvery URL field must be one of the allowed sources above. Return raw JSON only, no commentary, no code fence.",
		joinResultOutputs(results), allowedSourcesBlock(allowed), targetItems, strings.Join(requiredFields, ", "))

	resp, err := completeWithRetry(ctx, o.completion, llm.Request{Model: o.cfg.Model, Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}}, Temperature: 0.0, MaxTokens: 4096})
	if err != nil {
		return SynthesisResult{}, errs.Synthesis("catalog", "synthesis completion failed", err)
	}
	raw, err := parseJSONRepair[rawCatalogResponse](resp.Content)
	if err != nil {
		return SynthesisResult{}, errs.Synthesis("catalog", "invalid synthesis JSON", err)
	}

	idx := buildEvidenceIndex(results)
	var items []CatalogItem
	for _, ri := range raw.Items {
		if !urlsAllowed(allowed, ri.WebsiteURL, ri.SourceURL) || !allAllowed(allowed, ri.ProofLinks) {
			continue
		}
		quote := ri.Quote
		if quote != "" {
			excerpt := idx[ri.SourceURL]
			if excerpt == "" || !strings.Contains(excerpt, quote) {
				quote = ""
			}
		}
		items = append(items, CatalogItem{
			Name: ri.Name, WebsiteURL: ri.WebsiteURL, ProblemSolved: ri.ProblemSolved,
			PricingModel: ri.PricingModel, ProofLinks: ri.ProofLinks, Quote: quote, SourceURL: ri.SourceURL,
		})
	}

	return SynthesisResult{Title: raw.Title, SummaryBullets: raw.SummaryBullets, Items: items}, nil
}

func urlsAllowed(allowed map[string]bool, urls ...string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, u := range urls {
		if u == "" {
			continue
		}
		if !allowed[u] {
			return false
		}
	}
	return true
}

func allAllowed(allowed map[string]bool, urls []string) bool {
	return urlsAllowed(allowed, urls...)
}

// --- Narrative single-pass synthesis (§4.8 step 10, narrative) ---

type rawNarrative struct {
	Title          string       `json:"title"`
	SummaryBullets []string     `json:"summary_bullets"`
	Findings       []rawFinding `json:"findings"`
	OpenQuestions  []string     `json:"open_questions"`
}

type rawFinding struct {
	Claim     string   `json:"claim"`
	Citations []string `json:"citations"`
}

func narrativePrompt(results []models.WorkerResult, allowed map[string]bool) string {
	return fmt.Sprintf(
		"Research notes:\n%s\n\n%s\nEmit a JSON object: "+
			`{"title":"...","summary_bullets":["..."],"findings":[{"claim":"...","citations":["..."]}],"open_questions":["..."]}`+
			"\nEvery citation URL must be one of the allowed sources above. Return raw JSON only, no commentary, no code fence.",
		joinResultOutputs(results), allowedSourcesBlock(allowed))
}

func (o *Orchestrator) synthesizeNarrativeSinglePass(ctx context.Context, results []models.WorkerResult, allowed map[string]bool) (SynthesisResult, error) {
	messages := []llm.Message{{Role: llm.RoleUser, Content: narrativePrompt(results, allowed)}}

	raw, err := o.completeNarrative(ctx, messages)
	if err != nil {
		return SynthesisResult{}, err
	}

	findings, ungrounded := groundFindings(raw.Findings, allowed)
	if ungrounded {
		repaired, rerr := o.repairNarrative(ctx, messages, raw)
		if rerr != nil {
			return SynthesisResult{}, errs.Synthesis("narrative", "grounding violation after repair pass", rerr)
		}
		findings, ungrounded = groundFindings(repaired.Findings, allowed)
		if ungrounded {
			return SynthesisResult{}, errs.Synthesis("synthesize", "grounding violation persisted after repair", nil)
		}
		raw = repaired
	}

	if err := o.checkCoverage(findings, results); err != nil {
		return SynthesisResult{}, err
	}

	annotateWhy(findings, results)
	return SynthesisResult{Title: raw.Title, SummaryBullets: raw.SummaryBullets, Findings: findings, OpenQuestions: raw.OpenQuestions}, nil
}

// buildSourceIndex merges every worker's per-URL search metadata into one
// lookup keyed by URL, for annotateWhy.
func buildSourceIndex(results []models.WorkerResult) map[string]models.SourceMetadata {
	idx := map[string]models.SourceMetadata{}
	for _, r := range results {
		for u, m := range r.Sources {
			idx[u] = m
		}
	}
	return idx
}

// whyFor derives a short grounding explanation for a finding's primary
// citation: the extracted excerpt (capped at 220 chars) if evidence was
// pulled for that URL, else the search-result snippet or title, else the
// bare domain. Grounded on original_source's deep_research_render.py
// `_why` helper.
func whyFor(url string, sources map[string]models.SourceMetadata, evidence evidenceIndex) string {
	if ex := strings.TrimSpace(strings.Join(strings.Fields(evidence[url]), " ")); ex != "" {
		if len(ex) > 220 {
			return ex[:220] + "…"
		}
		return ex
	}
	if meta, ok := sources[url]; ok {
		if meta.Snippet != "" {
			return meta.Snippet
		}
		if meta.Title != "" {
			return meta.Title
		}
	}
	if d := models.DomainOf(url); d != "" {
		return d
	}
	return url
}

// annotateWhy fills in each finding's Why field from its primary (first)
// citation, mutating findings in place.
func annotateWhy(findings []Finding, results []models.WorkerResult) {
	if len(findings) == 0 {
		return
	}
	sources := buildSourceIndex(results)
	evidence := buildEvidenceIndex(results)
	for i := range findings {
		if len(findings[i].Citations) == 0 {
			continue
		}
		findings[i].Why = whyFor(findings[i].Citations[0], sources, evidence)
	}
}

// completeNarrative runs the completion call with one retry on invalid
// JSON (temperature 0.0, raw-JSON instruction) per §4.8 step 10.
func (o *Orchestrator) completeNarrative(ctx context.Context, messages []llm.Message) (rawNarrative, error) {
	resp, err := completeWithRetry(ctx, o.completion, llm.Request{Model: o.cfg.Model, Messages: messages, Temperature: 0.0, MaxTokens: 4096})
	if err != nil {
		return rawNarrative{}, errs.Synthesis("narrative", "synthesis completion failed", err)
	}
	raw, perr := parseJSONRepair[rawNarrative](resp.Content)
	if perr == nil {
		return raw, nil
	}

	retryMessages := append(append([]llm.Message{}, messages...),
		llm.Message{Role: llm.RoleAssistant, Content: resp.Content},
		llm.Message{Role: llm.RoleUser, Content: "That was not valid JSON. Return raw JSON only, no commentary, no code fence."})
	resp2, err := o.completion.Complete(ctx, llm.Request{Model: o.cfg.Model, Messages: retryMessages, Temperature: 0.0, MaxTokens: 4096})
	if err != nil {
		return rawNarrative{}, errs.Synthesis("narrative", "synthesis retry completion failed", err)
	}
	raw2, perr2 := parseJSONRepair[rawNarrative](resp2.Content)
	if perr2 != nil {
		return rawNarrative{}, errs.Synthesis("narrative", "invalid synthesis JSON after retry", perr2)
	}
	return raw2, nil
}

func (o *Orchestrator) repairNarrative(ctx context.Context, messages []llm.Message, bad rawNarrative) (rawNarrative, error) {
	prompt := fmt.Sprintf("Your previous findings cited sources outside the allowed set. Previous payload:\n%+v\n\nReturn a corrected JSON object with only allowed citations, raw JSON, no commentary.", bad)
	repairMessages := append(append([]llm.Message{}, messages...), llm.Message{Role: llm.RoleUser, Content: prompt})
	return o.completeNarrative(ctx, repairMessages)
}

// groundFindings drops findings with any citation outside allowed, and
// reports whether any violation occurred at all (grounding failures are
// always fatal, so callers use the bool to decide whether to repair).
func groundFindings(raw []rawFinding, allowed map[string]bool) ([]Finding, bool) {
	var out []Finding
	violated := false
	for _, rf := range raw {
		if !urlsAllowed(allowed, rf.Citations...) {
			violated = true
			continue
		}
		out = append(out, Finding{Claim: rf.Claim, Citations: rf.Citations})
	}
	return out, violated
}

// checkCoverage implements §4.8 step 10's coverage validation: unique
// citations, unique domains, and per-finding citation count against
// CitationsPerFindingTarget. Failures are fatal under coverage_mode=error,
// advisory (no-op here; caller may log) under coverage_mode=warn.
func (o *Orchestrator) checkCoverage(findings []Finding, results []models.WorkerResult) error {
	cited := map[string]bool{}
	domains := map[string]bool{}
	for _, f := range findings {
		if len(f.Citations) < o.cfg.CitationsPerFindingTarget {
			if o.cfg.CoverageMode == "error" {
				return errs.Synthesis("coverage", fmt.Sprintf("finding %q has %d citations, below target %d", f.Claim, len(f.Citations), o.cfg.CitationsPerFindingTarget), nil)
			}
		}
		for _, c := range f.Citations {
			cited[c] = true
			if d := models.DomainOf(c); d != "" {
				domains[d] = true
			}
		}
	}
	if len(cited) < o.cfg.MinTotalCitations || len(domains) < o.cfg.MinTotalDomains {
		if o.cfg.CoverageMode == "error" {
			return errs.Synthesis("coverage", fmt.Sprintf("coverage below target: %d citations, %d domains", len(cited), len(domains)), nil)
		}
	}
	return nil
}

// --- Narrative multi-pass synthesis (§4.8 step 10, multi-pass) ---

type rawOutline struct {
	Title    string   `json:"title"`
	Sections []string `json:"sections"`
}

type rawSection struct {
	Findings []rawSectionFinding `json:"findings"`
}

type rawSectionFinding struct {
	Claim string          `json:"claim"`
	Quote string          `json:"quote"`
	URL   string           `json:"url"`
}

type rawSummary struct {
	SummaryBullets []string `json:"summary_bullets"`
	OpenQuestions  []string `json:"open_questions"`
}

// synthesizeNarrativeMultiPass implements §4.8 step 10's multi-pass
// variant: outline -> per-section writer (3..5 findings with 1..2
// copied-quote evidences, validated by substring match) -> summary, then a
// deterministic greedy diversity selector caps the final findings list.
func (o *Orchestrator) synthesizeNarrativeMultiPass(ctx context.Context, results []models.WorkerResult, allowed map[string]bool) (SynthesisResult, error) {
	idx := buildEvidenceIndex(results)
	notes := joinResultOutputs(results)

	outlinePrompt := fmt.Sprintf("Research notes:\n%s\n\nPropose an outline as JSON: {\"title\":\"...\",\"sections\":[\"...\"]}. Return raw JSON only.", notes)
	outlineResp, err := o.completion.Complete(ctx, llm.Request{Model: o.cfg.Model, Messages: []llm.Message{{Role: llm.RoleUser, Content: outlinePrompt}}, Temperature: 0.0, MaxTokens: 1024})
	if err != nil {
		return SynthesisResult{}, errs.Synthesis("outline", "outline completion failed", err)
	}
	outline, err := parseJSONRepair[rawOutline](outlineResp.Content)
	if err != nil {
		return SynthesisResult{}, errs.Synthesis("outline", "invalid outline JSON", err)
	}

	var allFindings []Finding
	for _, section := range outline.Sections {
		prompt := fmt.Sprintf(
			"Research notes:\n%s\n\n%s\nWrite 3 to 5 findings for the section %q as JSON: "+
				`{"findings":[{"claim":"...","quote":"...","url":"..."}]}`+
				"\nEach quote must be copied verbatim from the cited source's extracted text. Return raw JSON only.",
			notes, allowedSourcesBlock(allowed), section)
		resp, err := o.completion.Complete(ctx, llm.Request{Model: o.cfg.Model, Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}}, Temperature: 0.0, MaxTokens: 2048})
		if err != nil {
			return SynthesisResult{}, errs.Synthesis("section", "section completion failed", err)
		}
		sec, err := parseJSONRepair[rawSection](resp.Content)
		if err != nil {
			continue // a single bad section doesn't abort the whole report
		}
		for _, sf := range sec.Findings {
			if !urlsAllowed(allowed, sf.URL) {
				continue
			}
			excerpt := idx[sf.URL]
			if sf.Quote != "" && !strings.Contains(excerpt, sf.Quote) {
				continue
			}
			allFindings = append(allFindings, Finding{Claim: sf.Claim, Citations: []string{sf.URL}, Quote: sf.Quote})
		}
	}

	summaryPrompt := fmt.Sprintf("Research notes:\n%s\n\nSummarize as JSON: {\"summary_bullets\":[\"...\"],\"open_questions\":[\"...\"]}. Return raw JSON only.", notes)
	summaryResp, err := o.completion.Complete(ctx, llm.Request{Model: o.cfg.Model, Messages: []llm.Message{{Role: llm.RoleUser, Content: summaryPrompt}}, Temperature: 0.0, MaxTokens: 1024})
	if err != nil {
		return SynthesisResult{}, errs.Synthesis("summary", "summary completion failed", err)
	}
	summary, err := parseJSONRepair[rawSummary](summaryResp.Content)
	if err != nil {
		return SynthesisResult{}, errs.Synthesis("summary", "invalid summary JSON", err)
	}

	final := diversitySelect(allFindings, o.cfg.ReportFindingsTarget)
	annotateWhy(final, results)
	return SynthesisResult{Title: outline.Title, SummaryBullets: summary.SummaryBullets, Findings: final, OpenQuestions: summary.OpenQuestions}, nil
}

// diversitySelect is the deterministic greedy set-cover diversity selector
// of §4.8 step 10: repeatedly pick the remaining finding that introduces
// the most new URLs/domains, until cap findings are selected or the pool
// is exhausted.
func diversitySelect(findings []Finding, cap int) []Finding {
	if cap <= 0 || cap >= len(findings) {
		return findings
	}

	seenURLs := map[string]bool{}
	seenDomains := map[string]bool{}
	remaining := append([]Finding(nil), findings...)
	var selected []Finding

	for len(selected) < cap && len(remaining) > 0 {
		bestIdx, bestScore := -1, -1
		for i, f := range remaining {
			score := 0
			for _, c := range f.Citations {
				if !seenURLs[c] {
					score++
				}
				if d := models.DomainOf(c); d != "" && !seenDomains[d] {
					score++
				}
			}
			if score > bestScore {
				bestScore, bestIdx = score, i
			}
		}
		chosen := remaining[bestIdx]
		selected = append(selected, chosen)
		for _, c := range chosen.Citations {
			seenURLs[c] = true
			if d := models.DomainOf(c); d != "" {
				seenDomains[d] = true
			}
		}
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}
