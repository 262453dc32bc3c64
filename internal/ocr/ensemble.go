package ocr

import (
	"math"
	"sort"
	"unicode/utf8"

	"comicscan/internal/config"
	"comicscan/pkg/geometry"

	"gonum.org/v1/gonum/stat"
)

// Merge deduplicates words detected by multiple engines over the same
// page. Words are clustered greedily: the highest-confidence unassigned
// word seeds a cluster and absorbs every unassigned word overlapping it
// at IoU >= the configured threshold. Once assigned, a word is never
// reconsidered. Quadratic, but word counts per page stay small.
//
// The sort is stable on input order so merging is deterministic across
// runs with equal confidences.
func Merge(words []Word, cfg config.Ensemble) []Word {
	if len(words) == 0 {
		return nil
	}
	sorted := make([]Word, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Conf > sorted[j].Conf
	})

	assigned := make([]bool, len(sorted))
	var merged []Word
	for i := range sorted {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		cluster := []Word{sorted[i]}
		for j := i + 1; j < len(sorted); j++ {
			if assigned[j] {
				continue
			}
			if sorted[i].Box.IoU(sorted[j].Box) >= cfg.MergeIoU {
				assigned[j] = true
				cluster = append(cluster, sorted[j])
			}
		}
		merged = append(merged, mergeCluster(cluster, cfg))
	}
	return merged
}

// mergeCluster collapses one cluster into a single word: the output box
// is either the seed's or a confidence-weighted average of the members'
// x, y, width, and height; confidence is the cluster maximum; text is
// the member with the most runes (longer recognitions tend to be more
// complete) or the seed's; the source tag set is the union of the
// members'.
func mergeCluster(cluster []Word, cfg config.Ensemble) Word {
	seed := cluster[0]

	box := seed.Box
	conf := seed.Conf
	if cfg.ConfWeightedAvg {
		weights := make([]float64, len(cluster))
		xs := make([]float64, len(cluster))
		ys := make([]float64, len(cluster))
		ws := make([]float64, len(cluster))
		hs := make([]float64, len(cluster))
		for i, w := range cluster {
			weights[i] = math.Max(w.Conf, 1e-6)
			xs[i] = float64(w.Box.X)
			ys[i] = float64(w.Box.Y)
			ws[i] = float64(w.Box.Width)
			hs[i] = float64(w.Box.Height)
			if w.Conf > conf {
				conf = w.Conf
			}
		}
		box = geometry.Rect{
			X:      int(math.Round(stat.Mean(xs, weights))),
			Y:      int(math.Round(stat.Mean(ys, weights))),
			Width:  int(math.Round(stat.Mean(ws, weights))),
			Height: int(math.Round(stat.Mean(hs, weights))),
		}
	}

	text := seed.Text
	if cfg.PreferLongerText {
		// Rune count, not byte length: a short CJK recognition must not
		// outrank a longer ASCII one.
		for _, w := range cluster {
			if utf8.RuneCountInString(w.Text) > utf8.RuneCountInString(text) {
				text = w.Text
			}
		}
	} else if text == "" {
		for _, w := range cluster {
			if w.Text != "" {
				text = w.Text
				break
			}
		}
	}

	return Word{Box: box, Text: text, Conf: conf, Sources: unionSources(cluster)}
}

func unionSources(cluster []Word) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range cluster {
		for _, s := range w.Sources {
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
