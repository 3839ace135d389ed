// Package analytics measures how often human reviewers agree with the
// automatic classifier. It is a read-only fold over a snapshot of leads
// and holds no state between runs.
package analytics

import (
	"math"
	"sort"

	"github.com/leadgate-ai/leadgate/internal/leads"
)

// ComparisonKind separates the two ways a human call can relate to the
// bot's. A blind comparison is worth more: the human never saw the bot's
// answer, so agreement is independent evidence.
type ComparisonKind string

const (
	// KindBlind means the human classified without seeing the bot's call.
	KindBlind ComparisonKind = "blind"
	// KindOverride means the human saw the bot's call and could confirm
	// or overturn it.
	KindOverride ComparisonKind = "override"
)

// Bucket labels a confidence range. Boundaries are a reporting choice;
// assignment always uses the confidence the bot recorded at
// classification time.
type Bucket string

const (
	BucketLow      Bucket = "<60%"
	BucketMid      Bucket = "60-80%"
	BucketHigh     Bucket = "80-95%"
	BucketVeryHigh Bucket = ">=95%"
)

// BucketFor maps a bot confidence to its reporting bucket.
func BucketFor(confidence float64) Bucket {
	switch {
	case confidence < 0.60:
		return BucketLow
	case confidence < 0.80:
		return BucketMid
	case confidence < 0.95:
		return BucketHigh
	default:
		return BucketVeryHigh
	}
}

// Tally is an agreements-over-total counter for one slice of the data.
type Tally struct {
	Total      int `json:"total"`
	Agreements int `json:"agreements"`
}

func (t *Tally) add(agrees bool) {
	t.Total++
	if agrees {
		t.Agreements++
	}
}

// Rate returns the exact agreement fraction, zero when the slice holds
// no comparisons. Callers report the total alongside the rate so zero
// data is distinguishable from total disagreement.
func (t Tally) Rate() float64 {
	if t.Total == 0 {
		return 0
	}
	return float64(t.Agreements) / float64(t.Total)
}

// Percent is the display form of Rate, rounded to the nearest integer.
func (t Tally) Percent() int {
	return int(math.Round(t.Rate() * 100))
}

// ConfusionCell counts one disagreeing (bot, human) pair.
type ConfusionCell struct {
	Bot   leads.Classification `json:"bot"`
	Human leads.Classification `json:"human"`
	Count int                  `json:"count"`
}

// Stats is the aggregate agreement report for one snapshot of leads.
// Overall, the blind/override lanes, the buckets, and the
// per-classification slices each count the same comparisons, so their
// totals reconcile.
type Stats struct {
	Overall          Tally                          `json:"overall"`
	ByKind           map[ComparisonKind]Tally       `json:"by_kind"`
	ByBucket         map[Bucket]Tally               `json:"by_bucket"`
	ByClassification map[leads.Classification]Tally `json:"by_classification"`
	confusion        map[[2]leads.Classification]int
}

// AgreementRate is the exact overall fraction; see Tally.Rate.
func (s *Stats) AgreementRate() float64 { return s.Overall.Rate() }

// AgreementPercent is the overall rate rounded for display.
func (s *Stats) AgreementPercent() int { return s.Overall.Percent() }

// Disagreements returns the total number of disagreeing comparisons.
func (s *Stats) Disagreements() int {
	return s.Overall.Total - s.Overall.Agreements
}

// ConfusionCount returns how often the bot said bot while the human said
// human. Agreeing pairs are never in the matrix.
func (s *Stats) ConfusionCount(bot, human leads.Classification) int {
	return s.confusion[[2]leads.Classification{bot, human}]
}

// ConfusionMatrix returns the disagreement cells in a stable order for
// reporting, bot classification first.
func (s *Stats) ConfusionMatrix() []ConfusionCell {
	cells := make([]ConfusionCell, 0, len(s.confusion))
	for pair, n := range s.confusion {
		cells = append(cells, ConfusionCell{Bot: pair[0], Human: pair[1], Count: n})
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Bot != cells[j].Bot {
			return cells[i].Bot < cells[j].Bot
		}
		return cells[i].Human < cells[j].Human
	})
	return cells
}

// comparison is one bot-versus-human data point extracted from a lead.
type comparison struct {
	bot   leads.ClassificationEntry
	human leads.Classification
	kind  ComparisonKind
}

// extract pulls the comparison out of a lead, if it holds one. A lead
// qualifies when a human judgment exists alongside a bot entry: either an
// explicit human entry in the log, or an approval, where the reviewer
// confirmed the bot's call without writing a new entry.
func extract(l *leads.Lead) (comparison, bool) {
	bot, ok := l.Classifications.LatestBy(leads.AuthorBot)
	if !ok {
		return comparison{}, false
	}
	if human, ok := l.Classifications.LatestBy(leads.AuthorHuman); ok {
		kind := KindOverride
		if human.Blind {
			kind = KindBlind
		}
		return comparison{bot: bot, human: human.Classification, kind: kind}, true
	}
	// Approval path: the lead is done, sent by a named reviewer, and the
	// bot's entry is still the head. Counts as an override-lane agreement.
	if l.Status.Status == leads.StatusDone &&
		l.Status.SentBy != "" &&
		l.Status.SentBy != leads.SentByBot &&
		l.Status.SentBy != leads.SentBySystem {
		return comparison{bot: bot, human: bot.Classification, kind: KindOverride}, true
	}
	return comparison{}, false
}

// Compute folds a snapshot of leads into agreement statistics. Leads
// without a human judgment against a bot call are skipped; they carry no
// agreement signal.
func Compute(snapshot []*leads.Lead) *Stats {
	s := &Stats{
		ByKind:           make(map[ComparisonKind]Tally),
		ByBucket:         make(map[Bucket]Tally),
		ByClassification: make(map[leads.Classification]Tally),
		confusion:        make(map[[2]leads.Classification]int),
	}
	for _, l := range snapshot {
		c, ok := extract(l)
		if !ok {
			continue
		}
		agrees := c.bot.Classification == c.human

		s.Overall.add(agrees)

		kind := s.ByKind[c.kind]
		kind.add(agrees)
		s.ByKind[c.kind] = kind

		bucket := s.ByBucket[BucketFor(c.bot.Confidence)]
		bucket.add(agrees)
		s.ByBucket[BucketFor(c.bot.Confidence)] = bucket

		class := s.ByClassification[c.bot.Classification]
		class.add(agrees)
		s.ByClassification[c.bot.Classification] = class

		if !agrees {
			s.confusion[[2]leads.Classification{c.bot.Classification, c.human}]++
		}
	}
	return s
}
