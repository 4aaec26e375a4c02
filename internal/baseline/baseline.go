// Package baseline derives per-channel operating envelopes (padded p05/p95)
// from recordings curated as known-good.
package baseline

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dwsmith1983/enginehealth/internal/recording"
)

// MinValues is the fewest samples a channel needs before it gets a baseline.
const MinValues = 10

// DefaultApplication is used for files whose metadata names no application.
const DefaultApplication = "Power Systems"

const metadataSuffix = "_metadata.json"

// Tolerance controls how far the p05/p95 band is widened.
type Tolerance struct {
	Strategy          string             `json:"strategy"`
	MinPadding        map[string]float64 `json:"min_padding"`
	DefaultMinPadding float64            `json:"default_min_padding"`
	RangePaddingPct   float64            `json:"range_padding_pct"`
	RangePaddingCap   float64            `json:"range_padding_cap_pct"`
}

// DefaultTolerance pads by 10% of the observed range, at least the channel's
// minimum padding, and at most 25% of the range.
func DefaultTolerance() Tolerance {
	return Tolerance{
		Strategy: "pad p05/p95 by 10% of observed range with min padding by channel, cap at 25% of observed range",
		MinPadding: map[string]float64{
			"rpm": 50, "RPM": 50, "ECT": 5, "IAT": 5, "OILT": 5, "FT": 5,
			"MAP": 0.5, "BP": 0.5, "TIP": 0.5, "OILP_press": 1, "Vbat": 0.2, "Vsw": 0.2,
			"TPS_pct": 2, "eng_load": 2,
		},
		DefaultMinPadding: 0.5,
		RangePaddingPct:   0.10,
		RangePaddingCap:   0.25,
	}
}

// Padding returns the amount added on each side of [p05, p95] for channel.
func (t Tolerance) Padding(p05, p95 float64, channel string) float64 {
	rng := p95 - p05
	minPad, ok := t.MinPadding[channel]
	if !ok {
		minPad = t.DefaultMinPadding
	}
	pad := math.Max(minPad, rng*t.RangePaddingPct)
	return math.Min(pad, rng*t.RangePaddingCap)
}

// Percentile returns the p-th percentile (0-100) of sorted using linear
// interpolation between closest ranks. sorted must be non-empty and ascending.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// ChannelBaseline is the envelope of one channel.
type ChannelBaseline struct {
	P05       float64 `json:"p05_mean"`
	P95       float64 `json:"p95_mean"`
	P05Padded float64 `json:"p05_padded"`
	P95Padded float64 `json:"p95_padded"`
	Files     int     `json:"files"`
}

// Baseline is keyed group → size → application → channel.
type Baseline struct {
	Source    string                                                      `json:"source"`
	Tolerance Tolerance                                                   `json:"tolerance"`
	Groups    map[string]map[string]map[string]map[string]ChannelBaseline `json:"groups"`
}

// Lookup returns the envelope for one channel.
func (b *Baseline) Lookup(group, size, app, channel string) (ChannelBaseline, bool) {
	cb, ok := b.Groups[group][size][app][channel]
	return cb, ok
}

// Metadata is the *_metadata.json file describing one directory of recordings.
type Metadata struct {
	Files []FileInfo `json:"files"`
}

// FileInfo describes one recording in a metadata file.
type FileInfo struct {
	Filename    string `json:"filename"`
	Quality     string `json:"quality"`
	Application string `json:"application,omitempty"`
}

type groupKey struct {
	group, size, app string
}

type loaded struct {
	key groupKey
	rec *recording.Recording
}

// Generator scans a directory tree of curated recordings.
type Generator struct {
	tolerance   Tolerance
	concurrency int
	logger      *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithTolerance overrides the padding tolerance.
func WithTolerance(t Tolerance) Option {
	return func(g *Generator) { g.tolerance = t }
}

// WithConcurrency bounds how many recordings are read at once.
func WithConcurrency(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.concurrency = n
		}
	}
}

// NewGenerator creates a Generator.
func NewGenerator(logger *slog.Logger, opts ...Option) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Generator{tolerance: DefaultTolerance(), concurrency: 4, logger: logger}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate walks root for *_metadata.json files. Each metadata file's parent
// directory is named "<group> <size>"; only files marked quality "good" are
// read, from the same directory. Files listed but missing are logged and skipped.
func (g *Generator) Generate(ctx context.Context, root string) (*Baseline, error) {
	var metas []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), metadataSuffix) {
			metas = append(metas, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	sort.Strings(metas)

	type job struct {
		key  groupKey
		path string
	}
	var jobs []job
	for _, mp := range metas {
		meta, err := readMetadata(mp)
		if err != nil {
			return nil, err
		}
		dir := filepath.Dir(mp)
		group, size := splitGroup(filepath.Base(dir))
		for _, fi := range meta.Files {
			if fi.Quality != "good" {
				continue
			}
			app := fi.Application
			if app == "" {
				app = DefaultApplication
			}
			jobs = append(jobs, job{key: groupKey{group, size, app}, path: filepath.Join(dir, fi.Filename)})
		}
	}

	results := make([]*loaded, len(jobs))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for i, j := range jobs {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := os.Stat(j.path); err != nil {
				g.logger.Warn("baseline recording not found", "path", j.path)
				return nil
			}
			rec, err := recording.ReadFile(j.path)
			if err != nil {
				return err
			}
			results[i] = &loaded{key: j.key, rec: rec}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return g.build(root, results), nil
}

func (g *Generator) build(source string, results []*loaded) *Baseline {
	values := make(map[groupKey]map[string][]float64)
	files := make(map[groupKey]int)
	for _, l := range results {
		if l == nil {
			continue
		}
		files[l.key]++
		byChannel := values[l.key]
		if byChannel == nil {
			byChannel = make(map[string][]float64)
			values[l.key] = byChannel
		}
		for _, s := range l.rec.Samples {
			for ch, v := range s.Values {
				byChannel[ch] = append(byChannel[ch], v)
			}
		}
	}

	b := &Baseline{
		Source:    source,
		Tolerance: g.tolerance,
		Groups:    make(map[string]map[string]map[string]map[string]ChannelBaseline),
	}
	for key, byChannel := range values {
		stats := make(map[string]ChannelBaseline)
		for ch, vals := range byChannel {
			if len(vals) < MinValues {
				continue
			}
			sort.Float64s(vals)
			p05 := Percentile(vals, 5)
			p95 := Percentile(vals, 95)
			pad := g.tolerance.Padding(p05, p95, ch)
			stats[ch] = ChannelBaseline{
				P05:       p05,
				P95:       p95,
				P05Padded: p05 - pad,
				P95Padded: p95 + pad,
				Files:     files[key],
			}
		}
		if b.Groups[key.group] == nil {
			b.Groups[key.group] = make(map[string]map[string]map[string]ChannelBaseline)
		}
		if b.Groups[key.group][key.size] == nil {
			b.Groups[key.group][key.size] = make(map[string]map[string]ChannelBaseline)
		}
		b.Groups[key.group][key.size][key.app] = stats
	}
	g.logger.Info("baseline generated", "groups", len(b.Groups), "recordings", sumFiles(files))
	return b
}

func readMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &m, nil
}

// splitGroup splits a directory name at its last space: "PSI HD 22L" is
// group "PSI HD", size "22L". A name without a space is all group.
func splitGroup(name string) (group, size string) {
	i := strings.LastIndex(name, " ")
	if i < 0 {
		return name, ""
	}
	return name[:i], name[i+1:]
}

func sumFiles(files map[groupKey]int) int {
	n := 0
	for _, c := range files {
		n += c
	}
	return n
}

// WriteFile writes the baseline as indented JSON.
func WriteFile(path string, b *Baseline) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling baseline: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing baseline: %w", err)
	}
	return nil
}
