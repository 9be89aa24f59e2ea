// Package pipeline runs a complete split: read inputs, check that they
// correspond, decompose, write the subset files, then record the run.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yumyai/treesplit/logger"
	"github.com/yumyai/treesplit/pkg/alignment"
	"github.com/yumyai/treesplit/pkg/config"
	"github.com/yumyai/treesplit/pkg/decompose"
	"github.com/yumyai/treesplit/pkg/errs"
	"github.com/yumyai/treesplit/pkg/manifest"
	"github.com/yumyai/treesplit/pkg/metrics"
	"github.com/yumyai/treesplit/pkg/tree"
	"github.com/yumyai/treesplit/pkg/writer"
)

// Result describes a finished split.
type Result struct {
	RunID   string // empty without a manifest
	Leaves  int
	Subsets []decompose.Subset
	Written []writer.Written
	Summary decompose.Summary
}

// Split executes the run described by cfg.
func Split(ctx context.Context, cfg *config.Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := metrics.New()
	stage := func(name string, start time.Time) {
		d := time.Since(start)
		m.Stage(name, d)
		logger.Debug("Stage done", zap.String("stage", name), zap.Duration("duration", d))
	}

	start := time.Now()
	t, err := tree.ReadFile(cfg.TreePath)
	if err != nil {
		return nil, err
	}
	idx, err := tree.NewIndex(t)
	if err != nil {
		return nil, errs.WithSource(err, cfg.TreePath)
	}
	stage("read_tree", start)
	logger.Info("Tree loaded", zap.String("path", cfg.TreePath), zap.Int("leaves", idx.LeafCount()))

	start = time.Now()
	aln, err := alignment.ReadFile(cfg.AlignmentPath)
	if err != nil {
		return nil, err
	}
	stage("read_alignment", start)
	logger.Info("Alignment loaded",
		zap.String("path", cfg.AlignmentPath),
		zap.Int("sequences", aln.Len()),
		zap.Int("columns", aln.Columns()),
	)

	leaves := t.LeafLabels()
	if err := alignment.CheckCorrespondence(leaves, aln, cfg.AllowExtraSequences); err != nil {
		return nil, err
	}
	if extra := aln.Len() - len(leaves); extra > 0 {
		logger.Warn("Sequences without tree leaf are ignored", zap.Int("sequences", extra))
	}

	start = time.Now()
	subsets, err := decompose.DecomposeIndex(idx, cfg.DecomposeOptions())
	if err != nil {
		return nil, err
	}
	stage("decompose", start)
	m.ObserveSubsets(len(leaves), cfg.MaxSize, subsets)

	summary := decompose.Summarize(subsets)
	logger.Info("Decomposed",
		zap.String("strategy", string(cfg.Strategy)),
		zap.Int("max_size", cfg.MaxSize),
		zap.Int("subsets", summary.Count),
		zap.Int("min", summary.Min),
		zap.Int("max", summary.Max),
		zap.Float64("mean", summary.Mean),
		zap.Float64("stddev", summary.StdDev),
	)

	start = time.Now()
	w := &writer.Writer{Dir: cfg.OutputDir, LineWidth: cfg.LineWidth, Overwrite: cfg.Overwrite}
	written, err := w.WriteIndexed(idx, aln, subsets)
	if err != nil {
		return nil, err
	}
	stage("write", start)
	logger.Info("Subsets written", zap.String("dir", cfg.OutputDir), zap.Int("files", 2*len(written)))

	res := &Result{
		Leaves:  len(leaves),
		Subsets: subsets,
		Written: written,
		Summary: summary,
	}

	if cfg.ManifestPath != "" {
		start = time.Now()
		id, err := record(ctx, cfg, res)
		if err != nil {
			return nil, err
		}
		res.RunID = id
		stage("manifest", start)
		logger.Info("Run recorded", zap.String("manifest", cfg.ManifestPath), zap.String("run_id", id))
	}

	if cfg.MetricsFile != "" {
		m.Succeeded(time.Now())
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func record(ctx context.Context, cfg *config.Config, res *Result) (string, error) {
	man, err := manifest.Open(ctx, cfg.ManifestPath)
	if err != nil {
		return "", &errs.IOError{Op: "create", Path: cfg.ManifestPath, Err: err}
	}
	defer man.Close()

	records := make([]manifest.SubsetRecord, len(res.Written))
	for i, w := range res.Written {
		records[i] = manifest.SubsetRecord{
			Index:         w.Index,
			Leaves:        w.Leaves,
			TreeFile:      w.TreeFile,
			AlignmentFile: w.AlignmentFile,
			Labels:        res.Subsets[i].Labels,
		}
	}
	id, err := man.RecordRun(ctx, manifest.Run{
		TreePath:      cfg.TreePath,
		AlignmentPath: cfg.AlignmentPath,
		OutputDir:     cfg.OutputDir,
		MaxSize:       cfg.MaxSize,
		Strategy:      string(cfg.Strategy),
		Leaves:        res.Leaves,
	}, records)
	if err != nil {
		return "", &errs.IOError{Op: "write", Path: cfg.ManifestPath, Err: fmt.Errorf("record run: %w", err)}
	}
	return id, nil
}
