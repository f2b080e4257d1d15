// Package postprocess - Selection of the strongest detections produced by a model.
package postprocess

import (
	"container/heap"
	"math"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
)

var (
	// ErrNegativeDetections is returned when the declared detection count is below zero.
	ErrNegativeDetections = errors.New("number of detections must not be negative")
	// ErrNegativeResults is returned when the result cap is below zero.
	ErrNegativeResults = errors.New("number of results must not be negative")
	// ErrShortInput is returned when a score or class slice holds fewer entries than the
	// declared detection count.
	ErrShortInput = errors.New("input shorter than number of detections")
)

// ClassID is the set of element types a model may use for its class output tensor. Values
// that are not finite or fall outside the int32 range are reported as InvalidClass.
type ClassID interface {
	~float32 | ~float64 | ~int | ~int32 | ~int64 | ~uint8
}

// InvalidClass is the class reported for a slot whose class identifier cannot be represented.
const InvalidClass = -1

// ClassIndex converts a class identifier from a model output to an int. Fractional values are
// truncated.
func ClassIndex[C ClassID](c C) int {
	f := float64(c)
	if math.IsNaN(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return InvalidClass
	}
	return int(f)
}

// Candidate is a single detection slot that survived top-N selection.
type Candidate struct {
	// Score is the confidence reported by the model.
	Score float32 `json:"score"`
	// Class is the class identifier as the model reported it, or InvalidClass. Mapping to
	// label text, including any background offset, is left to the caller.
	Class int `json:"class"`
	// Index is the position of the detection in the model output arrays. It addresses the
	// matching entry in the locations tensor.
	Index int `json:"index"`
}

// weaker reports whether a ranks below b. Lower scores are weaker and, on equal scores, the
// later index is weaker so the first-seen candidate is kept.
func weaker(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Index > b.Index
}

// candidateHeap is a min-heap whose head is the weakest retained candidate.
type candidateHeap []Candidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return weaker(h[i], h[j]) }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) { *h = append(*h, x.(Candidate)) }

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

// SelectTopN returns up to numResults candidates with the highest scores among the first
// numDetections entries of scores and classes.
//
// Candidates scoring below threshold are skipped (the threshold is inclusive), as are NaN and
// infinite scores. A bounded min-heap keeps the best numResults candidates seen so far, so a
// candidate that does not beat the weakest retained one is rejected without touching the heap.
// Equal scores are resolved in favour of the lower index.
//
// Arguments:
//   - scores: Confidence per detection slot.
//   - classes: Class identifier per detection slot, one-to-one with scores.
//   - numDetections: Number of populated slots. Entries past it are never read.
//   - numResults: Maximum number of candidates to return.
//   - threshold: Minimum score for a candidate to be eligible.
//
// Returns:
//   - []Candidate: Selected candidates ordered by descending score, ties by ascending index.
//   - error: An error if a count is negative or the inputs are shorter than numDetections.
func SelectTopN[C ClassID](
	scores []float32,
	classes []C,
	numDetections int,
	numResults int,
	threshold float32,
) ([]Candidate, error) {
	if numDetections < 0 {
		return nil, errors.Wrapf(ErrNegativeDetections, "got %d", numDetections)
	}
	if numResults < 0 {
		return nil, errors.Wrapf(ErrNegativeResults, "got %d", numResults)
	}
	if len(scores) < numDetections || len(classes) < numDetections {
		return nil, errors.Wrapf(
			ErrShortInput,
			"%d detections, %d scores, %d classes",
			numDetections, len(scores), len(classes),
		)
	}
	if numResults == 0 || numDetections == 0 {
		return []Candidate{}, nil
	}

	top := make(candidateHeap, 0, min(numResults, numDetections))
	for i := 0; i < numDetections; i++ {
		score := scores[i]
		if math32.IsNaN(score) || math32.IsInf(score, 0) || score < threshold {
			continue
		}

		if top.Len() < numResults {
			heap.Push(&top, Candidate{Score: score, Class: ClassIndex(classes[i]), Index: i})
			continue
		}
		// Every retained candidate has a lower index, so only a strictly higher score wins.
		if score > top[0].Score {
			top[0] = Candidate{Score: score, Class: ClassIndex(classes[i]), Index: i}
			heap.Fix(&top, 0)
		}
	}

	result := make([]Candidate, top.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&top).(Candidate)
	}

	return result, nil
}
