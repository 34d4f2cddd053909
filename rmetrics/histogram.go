// Package rmetrics implements the histogram and monotonic timer
// primitives feeding eloop's load tracking, raw-bucket-array shaped so they can be sampled cheaply on
// the hot path and exported to prometheus off it.
package rmetrics

import "sort"

// Histogram is a fixed-bucket-boundary histogram: bounds are
// caller-supplied (not log-scaled automatically), events[i] counts
// values <= bounds[i] and > bounds[i-1].
type Histogram struct {
	bounds []uint64
	events []uint64
	nevents uint64
	min, max, sum uint64
}

// NewHistogram opens a histogram over the given (ascending) bucket
// bounds.
func NewHistogram(bounds []uint64) *Histogram {
	return &Histogram{
		bounds: bounds,
		events: make([]uint64, len(bounds)+1),
	}
}

// Clear resets all counters.
func (h *Histogram) Clear() {
	for i := range h.events {
		h.events[i] = 0
	}
	h.nevents, h.min, h.max, h.sum = 0, 0, 0, 0
}

// Add records one observation.
func (h *Histogram) Add(value uint64) {
	idx := sort.Search(len(h.bounds), func(i int) bool { return h.bounds[i] >= value })
	h.events[idx]++
	if h.nevents == 0 || value < h.min {
		h.min = value
	}
	if value > h.max {
		h.max = value
	}
	h.sum += value
	h.nevents++
}

// Average is the running mean of all observations.
func (h *Histogram) Average() float64 {
	if h.nevents == 0 {
		return 0
	}
	return float64(h.sum) / float64(h.nevents)
}

// Percentile returns the bucket bound at or above p percent of the
// observations; p in [0, 100].
func (h *Histogram) Percentile(p float64) float64 {
	if h.nevents == 0 {
		return 0
	}
	target := uint64(p / 100.0 * float64(h.nevents))
	var cum uint64
	for i, n := range h.events {
		cum += n
		if cum >= target {
			if i < len(h.bounds) {
				return float64(h.bounds[i])
			}
			return float64(h.max)
		}
	}
	return float64(h.max)
}

// Median is the 50th percentile.
func (h *Histogram) Median() float64 { return h.Percentile(50.0) }

func (h *Histogram) Count() uint64 { return h.nevents }
func (h *Histogram) Min() uint64   { return h.min }
func (h *Histogram) Max() uint64   { return h.max }
func (h *Histogram) Sum() uint64   { return h.sum }
