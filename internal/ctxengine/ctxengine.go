// Package ctxengine assembles a bounded-size context payload from a
// repo's symbol index: query lookup, piece extraction and overlap-merge,
// multi-signal ranking, bounded callgraph expansion, deduplication, and
// two-pass budget fitting (spec.md §4.3), grounded on
// original_source/src/core/context.rs's end-to-end flow.
package ctxengine

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"corectx/internal/config"
	"corectx/internal/contract"
	"corectx/internal/ctxengine/callgraph"
	"corectx/internal/ctxengine/failsignal"
	"corectx/internal/ctxengine/novelty"
	"corectx/internal/errs"
	"corectx/internal/piece"
	"corectx/internal/symbols"
)

// Options are the context engine's inputs (spec.md §4.3.1).
type Options struct {
	Queries    []string
	AnchorFile string
	AnchorLine int
	History    []string // MRU-ordered file paths from prior sessions
	Limit      int      // per-query cap before merge/rank
	Kinds      []string // restrict to these symbol kinds, empty = all
	FailLog    string   // raw compiler/test log text, optional
	Tier       string   // "A"/"B"/"C" budget tier, resolved via config
	BucketSpec string   // e.g. "Code:700,Interface:200,Test:100"
}

// RenderedItem mirrors piece.Item but carries the rendering metadata callers need.
type RenderedItem struct {
	ID      string `json:"id"`
	File    string `json:"file"`
	Tokens  int    `json:"tokens"`
	Content string `json:"content"`
}

// Result is the context engine's output payload (spec.md §4.3.9's JSON
// envelope shape, sans the outer {schema,ok} wrapper which internal/envelope
// adds).
type Result struct {
	Tier        string          `json:"tier"`
	BudgetTotal int             `json:"budgetTotal"`
	TotalTokens int             `json:"totalTokens"`
	Items       []RenderedItem  `json:"items"`
	Refusals    []piece.Refusal `json:"refusals,omitempty"`
}

// Engine ties the symbol index, tokenizer, and budget fitter together.
type Engine struct {
	Index     *symbols.Index
	Tokenizer contract.Tokenizer
	Config    config.BudgetConfig
}

// New builds an Engine over a loaded symbol index.
func New(idx *symbols.Index, tokenizer contract.Tokenizer, cfg config.BudgetConfig) *Engine {
	return &Engine{Index: idx, Tokenizer: tokenizer, Config: cfg}
}

// Run executes the full pipeline and returns the rendered, budget-fitted
// result.
func (e *Engine) Run(ctx context.Context, opts Options) (*Result, error) {
	if len(opts.Queries) == 0 {
		return nil, errs.Invalid("at least one query is required")
	}

	var rawPieces []piece.Piece
	var matched []*symbols.Symbol
	matchTier := make(map[string]symbols.MatchTier)

	for _, q := range opts.Queries {
		hits, tiers := e.Index.LookupTiered(q, opts.Limit)
		if len(opts.Kinds) > 0 {
			hits = filterKinds(hits, opts.Kinds)
		}
		for _, s := range hits {
			matchTier[s.ID] = tiers[s.ID]
		}
		matched = append(matched, hits...)
	}

	if len(matched) == 0 {
		return &Result{Tier: opts.Tier}, nil
	}

	seedIDs := make([]string, 0, len(matched))
	for _, s := range matched {
		seedIDs = append(seedIDs, s.ID)
	}

	expandedIDs, hopDist := callgraph.ExpandWithHops(e.Index, seedIDs, callgraph.Options{Depth: 2, PerHopCap: 25, GlobalEdgeCap: 300})
	for _, id := range expandedIDs {
		if s, ok := e.Index.ByID[id]; ok {
			matched = append(matched, s)
		}
	}

	for _, s := range matched {
		rawPieces = append(rawPieces, pieceFromSymbol(s))
	}

	merged := MergeOverlaps(rawPieces)

	var failSignals map[string]failsignal.Signal
	if opts.FailLog != "" {
		failSignals = failsignal.ByLocation(failsignal.Parse(opts.FailLog))
	}

	items := e.rankAndBuildItems(merged, matched, matchTier, hopDist, opts, failSignals)

	items = piece.WithConfig(piece.DefaultDedupeConfig()).DedupeItems(items)

	budgeter := piece.NewBudgeter(e.Tokenizer)

	tokens, budgetTotal := resolveBudget(e.Config, opts.Tier)
	_ = tokens

	var noveltyScorer func([]piece.Item) map[string]float64
	if e.Config.NoveltyMin > 0 {
		noveltyScorer = func(its []piece.Item) map[string]float64 {
			ids := make([]string, len(its))
			docs := make([]string, len(its))
			for i, it := range its {
				ids[i] = it.ID
				docs[i] = it.Content
			}
			return novelty.ScoreAll(ids, docs)
		}
	}

	var fit piece.BucketFit
	if caps := parseBucketSpec(opts.BucketSpec); caps != (piece.BucketCaps{}) {
		tolerance := e.Config.OverflowPercent
		if tolerance == 0 {
			tolerance = 0.05
		}
		fit = budgeter.FitWithBuckets(items, caps, noveltyScorer, e.Config.NoveltyMin, tolerance)
	} else {
		filtered, refusals := piece.ApplyNoveltyFloor(items, noveltyScorer, e.Config.NoveltyMin)
		fit = piece.BucketFit{Fitted: budgeter.Fit(filtered, budgetTotal), Refusals: refusals}
	}

	return &Result{
		Tier:        opts.Tier,
		BudgetTotal: budgetTotal,
		TotalTokens: fit.Fitted.TotalTokens,
		Items:       render(fit.Fitted),
		Refusals:    fit.Refusals,
	}, nil
}

func resolveBudget(cfg config.BudgetConfig, tier string) (int, int) {
	if tier == "" {
		tier = cfg.Tier
	}
	if tier == "" {
		tier = "B"
	}
	total := cfg.TierTokens[tier]
	if total == 0 {
		total = 6000
	}
	return total, total
}

func parseBucketSpec(spec string) piece.BucketCaps {
	var caps piece.BucketCaps
	if spec == "" {
		return caps
	}
	for _, part := range strings.Split(spec, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(kv) != 2 {
			continue
		}
		name, valStr := strings.ToLower(strings.TrimSpace(kv[0])), strings.TrimSpace(kv[1])
		val := atoiSafe(valStr)
		switch name {
		case "code":
			caps.Code = val
		case "interface", "interfaces":
			caps.Interfaces = val
		case "test", "tests":
			caps.Tests = val
		}
	}
	return caps
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func filterKinds(syms []*symbols.Symbol, kinds []string) []*symbols.Symbol {
	allowed := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}
	var out []*symbols.Symbol
	for _, s := range syms {
		if allowed[s.Kind] {
			out = append(out, s)
		}
	}
	return out
}

// pieceFromSymbol extracts a Piece for a symbol, slicing by line range
// from the file on disk (a byte-span slice is preferred when available,
// falling back to a line-based read — spec.md §4.3.4).
func pieceFromSymbol(s *symbols.Symbol) piece.Piece {
	body := ""
	if data, err := os.ReadFile(s.File); err == nil {
		if s.StartByte > 0 || s.EndByte > 0 {
			if s.EndByte <= len(data) && s.StartByte <= s.EndByte {
				body = string(data[s.StartByte:s.EndByte])
			}
		}
		if body == "" {
			lines := strings.Split(string(data), "\n")
			start := s.StartLine - 1
			end := s.EndLine
			if start < 0 {
				start = 0
			}
			if end > len(lines) {
				end = len(lines)
			}
			if start < end {
				body = strings.Join(lines[start:end], "\n")
			}
		}
	}
	return piece.Piece{File: s.File, StartLine: s.StartLine, EndLine: s.EndLine, Body: body}
}

// rankAndBuildItems scores each merged piece against spec.md §4.3.5's
// seven ranking signals: scope/importance, anchor proximity, call
// distance, fail-signal boost, lexical/semantic match quality, and
// history downrank (the seventh, novelty floor, is applied uniformly
// across both budget-fitting paths back in Run).
func (e *Engine) rankAndBuildItems(pieces []piece.Piece, symsByOrder []*symbols.Symbol, matchTier map[string]symbols.MatchTier, hopDist map[string]int, opts Options, failSignals map[string]failsignal.Signal) []piece.Item {
	historyRank := make(map[string]int, len(opts.History))
	for i, f := range opts.History {
		historyRank[f] = i
	}

	symsByFile := make(map[string][]*symbols.Symbol, len(symsByOrder))
	for _, s := range symsByOrder {
		symsByFile[s.File] = append(symsByFile[s.File], s)
	}

	items := make([]piece.Item, 0, len(pieces))
	for _, p := range pieces {
		overlaps := overlappingSymbols(symsByFile, p)

		isAnchor := opts.AnchorFile != "" && sameFile(p.File, opts.AnchorFile)
		anchorProx := anchorProximity(p, opts.AnchorFile, opts.AnchorLine)

		var bestScope, bestMatch, bestCallDecay float64
		for _, s := range overlaps {
			if w := scopeWeight(s); w > bestScope {
				bestScope = w
			}
			if t, ok := matchTier[s.ID]; ok {
				if w := matchQualityWeight(t); w > bestMatch {
					bestMatch = w
				}
			}
			decay := 1.0
			if hop, ok := hopDist[s.ID]; ok {
				decay = callgraph.Decay(hop)
			}
			if decay > bestCallDecay {
				bestCallDecay = decay
			}
		}

		// Level is the coarse bucket: anchor-file pieces always sort above
		// everything else, then highly public/important symbols, then the
		// rest — spec.md §4.3.5 items 1 (scope/importance) and 2 (anchor
		// proximity).
		level := uint8(100)
		switch {
		case isAnchor:
			level = 200
		case bestScope >= 0.9:
			level = 150
		}

		// Relevance blends match quality, scope/importance, and a
		// call-distance contribution capped at 0.15 of the total
		// (spec.md §4.3.5 item 3).
		relevance := 0.3*bestMatch + 0.3*bestScope + 0.15*bestCallDecay

		key := p.File + ":" + itoa(p.StartLine)
		if sig, ok := failSignals[key]; ok {
			boost := failsignal.BoostFor(sig.Severity)
			relevance *= 1 + boost*0.3
		}

		if _, seen := historyRank[p.File]; seen {
			relevance *= 0.9
		}

		pr := piece.Custom(level, relevance, anchorProx)

		id := p.File + "#" + itoa(p.StartLine) + "-" + itoa(p.EndLine)
		items = append(items, piece.Item{
			ID:       id,
			Content:  renderPiece(p),
			Priority: pr,
			Tags:     map[piece.SpanTag]bool{piece.TagCode: true},
		})
	}
	return items
}

// overlappingSymbols returns every symbol on file p.File whose span
// overlaps p's line range, used to pull ranking signals (scope, match
// tier, call distance) back onto a piece that may have merged several
// symbols' spans together.
func overlappingSymbols(byFile map[string][]*symbols.Symbol, p piece.Piece) []*symbols.Symbol {
	var out []*symbols.Symbol
	for _, s := range byFile[p.File] {
		if s.StartLine <= p.EndLine && s.EndLine >= p.StartLine {
			out = append(out, s)
		}
	}
	return out
}

// scopeWeight scores a symbol's scope/importance (spec.md §4.3.5 item 1):
// more visible symbols and callable bodies outrank private helpers and
// bare declarations.
func scopeWeight(s *symbols.Symbol) float64 {
	vis := 0.5
	switch s.Visibility {
	case symbols.VisPublic:
		vis = 1.0
	case symbols.VisCrate:
		vis = 0.7
	case symbols.VisPrivate:
		vis = 0.4
	}

	kind := 0.6
	switch s.Kind {
	case "func", "method", "function":
		kind = 1.0
	case "type", "struct", "interface", "class":
		kind = 0.8
	}

	return (vis + kind) / 2
}

// matchQualityWeight scores a lexical/semantic match tier (spec.md
// §4.3.5 item 5): exact beats prefix beats substring beats fuzzy.
func matchQualityWeight(t symbols.MatchTier) float64 {
	switch t {
	case symbols.TierExact:
		return 1.0
	case symbols.TierPrefix:
		return 0.75
	case symbols.TierSubstr:
		return 0.5
	case symbols.TierFuzzy:
		return 0.25
	default:
		return 0
	}
}

// anchorProximity scores a piece's closeness to the anchor location
// (spec.md §4.3.5 item 2): same file and near the anchor line scores
// highest, same directory next, then decaying by path distance. Both
// paths are canonicalized (symlinks and ".." resolved) before
// comparison, falling back to the raw path when that fails.
func anchorProximity(p piece.Piece, anchorFile string, anchorLine int) float64 {
	if anchorFile == "" {
		return 0
	}
	af := canonicalPath(anchorFile)
	pf := canonicalPath(p.File)

	if af == pf {
		if anchorLine <= 0 {
			return 1.0
		}
		dist := lineDistance(anchorLine, p.StartLine, p.EndLine)
		return 1.0 / (1.0 + float64(dist)/20.0)
	}
	if filepath.Dir(af) == filepath.Dir(pf) {
		return 0.5
	}
	segDist := pathSegmentDistance(af, pf)
	return 0.3 / float64(1+segDist)
}

// canonicalPath resolves symlinks and ".." segments for a stable
// proximity comparison, falling back to an absolute path and then the
// raw input when resolution fails (e.g. the path doesn't exist yet).
func canonicalPath(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// lineDistance is 0 when line falls within [start,end], otherwise the
// distance to the nearer edge.
func lineDistance(line, start, end int) int {
	if line >= start && line <= end {
		return 0
	}
	if line < start {
		return start - line
	}
	return line - end
}

// pathSegmentDistance counts path components that differ once the
// common prefix is removed, a coarse measure of directory distance.
func pathSegmentDistance(a, b string) int {
	as := strings.Split(filepath.ToSlash(a), "/")
	bs := strings.Split(filepath.ToSlash(b), "/")
	i := 0
	for i < len(as) && i < len(bs) && as[i] == bs[i] {
		i++
	}
	return (len(as) - i) + (len(bs) - i)
}

func sameFile(a, b string) bool {
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func renderPiece(p piece.Piece) string {
	return "// File: " + p.File + " (lines " + itoa(p.StartLine) + "-" + itoa(p.EndLine) + ")\n" + p.Body
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// render produces the final, deterministic rendering order: path asc,
// then start line asc — regardless of the priority order items were
// fitted in (spec.md §4.3.9).
func render(fit piece.FitResult) []RenderedItem {
	out := make([]RenderedItem, 0, len(fit.Items))
	for _, fi := range fit.Items {
		file, start := splitItemID(fi.ID)
		out = append(out, RenderedItem{ID: fi.ID, File: file, Tokens: fi.Tokens, Content: fi.Content})
		_ = start
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func splitItemID(id string) (file string, start string) {
	idx := strings.LastIndex(id, "#")
	if idx < 0 {
		return id, ""
	}
	return id[:idx], id[idx+1:]
}
