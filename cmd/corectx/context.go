package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"corectx/internal/contract"
	"corectx/internal/ctxengine"
	"corectx/internal/envelope"
	"corectx/internal/errs"
	"corectx/internal/symbols"
	"corectx/internal/symidx"
)

var (
	ctxQueries    []string
	ctxAnchor     string
	ctxAnchorLine int
	ctxHistory    []string
	ctxLimit      int
	ctxKinds      []string
	ctxFailLog    string
	ctxBuckets    string
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "assemble a budget-fitted context payload from the symbol index",
	Run:   runContext,
}

func init() {
	contextCmd.Flags().StringSliceVar(&ctxQueries, "query", nil, "symbol name/prefix to look up (repeatable)")
	contextCmd.Flags().StringVar(&ctxAnchor, "anchor-file", "", "file path to boost as the anchor")
	contextCmd.Flags().IntVar(&ctxAnchorLine, "anchor-line", 0, "line within the anchor file")
	contextCmd.Flags().StringSliceVar(&ctxHistory, "history", nil, "MRU-ordered file paths from prior sessions")
	contextCmd.Flags().IntVar(&ctxLimit, "limit", 10, "per-query match cap before merge/rank")
	contextCmd.Flags().StringSliceVar(&ctxKinds, "kind", nil, "restrict to these symbol kinds (repeatable)")
	contextCmd.Flags().StringVar(&ctxFailLog, "fail-log", "", "raw compiler/test log text to extract failure signals from")
	contextCmd.Flags().StringVar(&ctxBuckets, "buckets", "", "bucket caps, e.g. \"code:700,interfaces:200,tests:100\"")
	rootCmd.AddCommand(contextCmd)
}

func runContext(cmd *cobra.Command, args []string) {
	if len(ctxQueries) == 0 && len(args) > 0 {
		ctxQueries = args
	}

	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)
	lf := newLoggerFactory(repoRoot, cfg)
	defer lf.Close()
	log := lf.Subsystem("context")

	extractor := symbols.NewExtractor()
	loader := symidx.NewLoader(repoRoot, cfg.Index, func(ctx context.Context) (*symbols.Index, error) {
		if extractor == nil {
			return nil, errs.RepoErr("symbol extraction unavailable in this build (cgo disabled) and no index exists at %s", cfg.Index.Path)
		}
		idx := symbols.NewIndex()
		syms, err := extractor.ExtractDirectory(ctx, repoRoot, defaultSourceFilter)
		if err != nil {
			return nil, errs.InternalErr(err, "extracting symbols")
		}
		for i := range syms {
			s := syms[i]
			idx.Add(&symbols.Symbol{
				ID: s.ID, Name: s.Name, FQN: s.FQN, Kind: s.Kind,
				Language: s.Language, Visibility: symbols.Visibility(s.Visibility),
				Doc: s.Doc, File: s.File,
				StartLine: s.StartLine, EndLine: s.EndLine,
				StartByte: s.StartByte, EndByte: s.EndByte,
			})
		}
		return idx, nil
	})

	idx, err := loader.Load(cmd.Context())
	if err != nil {
		log.Error("loading symbol index", "error", err)
		emit(envelope.SchemaContext, nil, err)
		return
	}

	tier := resolveTier(cfg)
	eng := ctxengine.New(idx, contract.ByteEstimator{}, cfg.Budget)
	result, err := eng.Run(cmd.Context(), ctxengine.Options{
		Queries:    ctxQueries,
		AnchorFile: ctxAnchor,
		AnchorLine: ctxAnchorLine,
		History:    ctxHistory,
		Limit:      ctxLimit,
		Kinds:      ctxKinds,
		FailLog:    ctxFailLog,
		Tier:       tier,
		BucketSpec: ctxBuckets,
	})
	if err != nil {
		log.Error("running context engine", "error", err)
		emit(envelope.SchemaContext, nil, err)
		return
	}

	log.Info("context assembled", "tier", tier, "items", len(result.Items), "tokens", result.TotalTokens)
	emit(envelope.SchemaContext, result, nil)
}

// defaultSourceFilter skips the directories corectx itself manages plus
// version control metadata; everything else is a candidate source file.
func defaultSourceFilter(path string) bool {
	for _, skip := range []string{"/.git/", "/.corectx/", "/.backup-root/", "/node_modules/", "/vendor/"} {
		if strings.Contains(path, skip) {
			return false
		}
	}
	return true
}
