// Package config holds the tuning thresholds for the detection
// pipeline. A Config is an immutable value: retry passes derive relaxed
// copies through Relaxed rather than editing thresholds in place, so a
// pass is always reproducible from the original config and the pass
// number.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Panel contains panel segmentation thresholds.
type Panel struct {
	Canny1            float64 `toml:"canny1"`
	Canny2            float64 `toml:"canny2"`
	DilateIter        int     `toml:"dilate_iter"`
	MinArea           int     `toml:"min_area"`
	MinRectangularity float64 `toml:"min_rectangularity"`
	MaxAspect         float64 `toml:"max_aspect"`
	RowBucketPx       int     `toml:"row_bucket_px"`
}

// Bubble contains balloon detection thresholds.
type Bubble struct {
	TextGroupMergePx int     `toml:"text_group_merge_px"`
	ExpandPx         int     `toml:"expand_px"`
	VarWindow        int     `toml:"var_window"`
	WhitePercentile  float64 `toml:"white_percentile"`
	VarPercentile    float64 `toml:"var_percentile"`
	MinWhiteRatio    float64 `toml:"min_white_ratio"`
	GrowIters        int     `toml:"grow_iters"`
	MinArea          int     `toml:"min_area"`
	MaxArea          int     `toml:"max_area"`
	MaxAspect        float64 `toml:"max_aspect"`
	MinSolidity      float64 `toml:"min_solidity"`
	MSERMinArea      int     `toml:"mser_min_area"`
	MSERMaxArea      int     `toml:"mser_max_area"`
	MSERDelta        int     `toml:"mser_delta"`
	NMSIoU           float64 `toml:"nms_iou"`
}

// Reconcile contains coverage reconciliation settings, including the
// per-pass relaxation deltas applied by Config.Relaxed.
type Reconcile struct {
	Enable            bool    `toml:"enable"`
	CoverageThresh    float64 `toml:"coverage_thresh"`
	MaxPasses         int     `toml:"max_passes"`
	FallbackFromWords bool    `toml:"fallback_from_words"`
	RerunMergePxAdd   int     `toml:"rerun_merge_px_add"`
	RerunWhiteDelta   float64 `toml:"rerun_white_delta"`
	RerunMinWhite     float64 `toml:"rerun_min_white_ratio"`
	RerunGrowAdd      int     `toml:"rerun_grow_iters_add"`
	CountOrphanWords  bool    `toml:"count_orphan_words"`
}

// Ensemble contains multi-engine word merge settings.
type Ensemble struct {
	MergeIoU         float64 `toml:"merge_iou"`
	PreferLongerText bool    `toml:"prefer_longer_text"`
	ConfWeightedAvg  bool    `toml:"conf_weighted_avg"`
}

// OCR contains recognizer engine settings.
type OCR struct {
	Languages      []string `toml:"languages"`
	Backends       []string `toml:"backends"`
	EngineTimeoutS int      `toml:"engine_timeout_seconds"`
}

// Config is the full threshold set for one analysis run.
type Config struct {
	Panel     Panel     `toml:"panel"`
	Bubble    Bubble    `toml:"bubble"`
	Reconcile Reconcile `toml:"reconcile"`
	Ensemble  Ensemble  `toml:"ensemble"`
	OCR       OCR       `toml:"ocr"`
}

// Default returns the tuned defaults for scanned manga/comic pages.
func Default() Config {
	return Config{
		Panel: Panel{
			Canny1:            50,
			Canny2:            150,
			DilateIter:        2,
			MinArea:           5000,
			MinRectangularity: 0.6,
			MaxAspect:         15,
			RowBucketPx:       50,
		},
		Bubble: Bubble{
			TextGroupMergePx: 58,
			ExpandPx:         20,
			VarWindow:        9,
			WhitePercentile:  83,
			VarPercentile:    42,
			MinWhiteRatio:    0.52,
			GrowIters:        24,
			MinArea:          220,
			MaxArea:          500000,
			MaxAspect:        4.6,
			MinSolidity:      0.50,
			MSERMinArea:      18,
			MSERMaxArea:      20000,
			MSERDelta:        5,
			NMSIoU:           0.30,
		},
		Reconcile: Reconcile{
			Enable:            true,
			CoverageThresh:    0.70,
			MaxPasses:         2,
			FallbackFromWords: true,
			RerunMergePxAdd:   20,
			RerunWhiteDelta:   -6,
			RerunMinWhite:     0.30,
			RerunGrowAdd:      8,
			CountOrphanWords:  false,
		},
		Ensemble: Ensemble{
			MergeIoU:         0.5,
			PreferLongerText: true,
			ConfWeightedAvg:  true,
		},
		OCR: OCR{
			Languages:      []string{"eng"},
			Backends:       []string{"tesseract"},
			EngineTimeoutS: 30,
		},
	}
}

// Load reads a TOML config file layered over the defaults. A missing
// file is not an error: the defaults are returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Relaxed returns a copy with more permissive bubble thresholds for a
// reconciliation retry pass: wider seed merging, a lower brightness
// percentile, a lower white-ratio floor, and more growth iterations.
// Each delta comes from the Reconcile section. Applying Relaxed to an
// already-relaxed config loosens it further, which is how successive
// retry passes escalate.
func (c Config) Relaxed() Config {
	c.Bubble.TextGroupMergePx += c.Reconcile.RerunMergePxAdd
	c.Bubble.WhitePercentile += c.Reconcile.RerunWhiteDelta
	if c.Bubble.WhitePercentile < 0 {
		c.Bubble.WhitePercentile = 0
	}
	c.Bubble.MinWhiteRatio = c.Reconcile.RerunMinWhite
	c.Bubble.GrowIters += c.Reconcile.RerunGrowAdd
	return c
}
