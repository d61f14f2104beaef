// Package classify is the pure-function scoring/archetype/tier engine
// (spec §4.J). Grounded on the teacher's GetAMMState-style "read a bundle
// of raw inputs, derive a single struct" shape (blackhole.go), generalized
// from on-chain state reads to a behavioral-signal fold. Classification
// is deliberately side-effect-free (spec §4.J: "a pure function of the
// inputs, testable as such") — callers own persistence.
package classify

import "sort"

// Archetype is the dominant behavioral dimension (spec §4.J).
type Archetype string

const (
	ArchetypeProgression Archetype = "progression"
	ArchetypeGrowth      Archetype = "growth-investor"
	ArchetypeExtraction  Archetype = "extraction"
	ArchetypeSocial      Archetype = "social"
	ArchetypeExploration Archetype = "exploration"
)

// archetypeTieBreak is the preference order spec §4.J names for breaking
// ties among equally-scored dimensions.
var archetypeTieBreak = []Archetype{
	ArchetypeProgression, ArchetypeGrowth, ArchetypeExtraction, ArchetypeSocial, ArchetypeExploration,
}

// State is a player's engagement-depth bucket (spec §4.J).
type State string

const (
	StateVisitor    State = "visitor"
	StateExplorer   State = "explorer"
	StateParticipant State = "participant"
	StatePlayer     State = "player"
	StateActive     State = "active"
	StateCommitted  State = "committed"
)

// extractorLadder is the threshold ladder over netExtractedUsd spec §4.J
// calls for ("explicit ladder is in §8"); §8 supplies only the
// single worked example ($900 net extracted -> flagged), so the ladder's
// granularity beyond the flag/no-flag boundary is this engine's own
// decision (see DESIGN.md open question). The $500 floor is set below the
// worked example's $900 so that example classifies as flagged, and well
// above typical noise from a single small bridge round-trip.
var extractorLadder = []struct {
	thresholdUsd float64
	tag          string
}{
	{500, "extractor-mild"},
	{2000, "extractor-moderate"},
	{10000, "extractor-severe"},
}

// Signals is the raw input bundle the engine folds into a classification.
type Signals struct {
	// On-chain / economic.
	BridgedInUsd    float64
	BridgedOutUsd   float64
	NetExtractedUsd float64
	HeroesIn        int
	HeroesOut       int
	StakedUsd       float64
	SwapVolumeUsd   float64
	DaysActive      int

	// Conversational / social.
	MessagesSent   int
	DistinctTopics int

	// Progression-adjacent.
	QuestsCompleted int
	TournamentPlays int
}

// Scores is the additive, clamped-[0,100] dimension score set.
type Scores struct {
	Progression          float64
	InvestmentGrowth      float64
	InvestmentExtraction  float64
	Social                float64
	Exploration           float64
}

// Flags are boolean behavioral markers independent of the dominant
// archetype.
type Flags struct {
	Extractor     bool
	Whale         bool
	HighPotential bool
}

// Result is the engine's full output (spec §4.J).
type Result struct {
	Archetype       Archetype
	IntentArchetype Archetype
	Scores          Scores
	Tier            int
	State           State
	Flags           Flags
	BehaviorTags    []string
}

// maxTier bounds the tier∈{0..N} output range.
const maxTier = 5

// Classify folds s into a deterministic Result: same Signals always
// produce the same Result (spec §8 determinism law).
func Classify(s Signals) Result {
	scores := score(s)
	archetype := argmax(scores)
	flags := computeFlags(s)
	tags := behaviorTags(s, flags)

	return Result{
		Archetype:       archetype,
		IntentArchetype: archetype,
		Scores:          scores,
		Tier:            tier(s),
		State:           state(s),
		Flags:           flags,
		BehaviorTags:    tags,
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func score(s Signals) Scores {
	progression := float64(s.QuestsCompleted)*4 + float64(s.TournamentPlays)*3 + float64(s.DaysActive)*0.5
	growth := s.StakedUsd/100 + s.SwapVolumeUsd/500
	extraction := s.NetExtractedUsd / 20
	social := float64(s.MessagesSent)*0.2 + float64(s.DistinctTopics)*5
	exploration := float64(s.DaysActive)*0.3 + float64(s.DistinctTopics)*2

	return Scores{
		Progression:         clamp(progression),
		InvestmentGrowth:    clamp(growth),
		InvestmentExtraction: clamp(extraction),
		Social:              clamp(social),
		Exploration:         clamp(exploration),
	}
}

func argmax(s Scores) Archetype {
	byArchetype := map[Archetype]float64{
		ArchetypeProgression: s.Progression,
		ArchetypeGrowth:      s.InvestmentGrowth,
		ArchetypeExtraction:  s.InvestmentExtraction,
		ArchetypeSocial:      s.Social,
		ArchetypeExploration: s.Exploration,
	}

	best := archetypeTieBreak[0]
	bestScore := byArchetype[best]
	for _, a := range archetypeTieBreak[1:] {
		if byArchetype[a] > bestScore {
			best = a
			bestScore = byArchetype[a]
		}
	}
	return best
}

func computeFlags(s Signals) Flags {
	flags := Flags{
		Extractor: s.NetExtractedUsd >= extractorLadder[0].thresholdUsd,
		Whale:     s.StakedUsd >= 50000 || s.BridgedInUsd >= 50000,
	}
	flags.HighPotential = !flags.Extractor && s.DaysActive >= 3 && (s.QuestsCompleted > 0 || s.TournamentPlays > 0)
	return flags
}

func behaviorTags(s Signals, f Flags) []string {
	var tags []string
	if f.Extractor {
		tag := extractorLadder[0].tag
		for _, rung := range extractorLadder {
			if s.NetExtractedUsd >= rung.thresholdUsd {
				tag = rung.tag
			}
		}
		tags = append(tags, tag)
	}
	if f.Whale {
		tags = append(tags, "whale")
	}
	if f.HighPotential {
		tags = append(tags, "high-potential")
	}
	sort.Strings(tags)
	return tags
}

func tier(s Signals) int {
	t := 0
	switch {
	case s.StakedUsd >= 50000:
		t = 5
	case s.StakedUsd >= 10000:
		t = 4
	case s.StakedUsd >= 2000:
		t = 3
	case s.StakedUsd >= 200:
		t = 2
	case s.StakedUsd > 0:
		t = 1
	}
	if t > maxTier {
		t = maxTier
	}
	return t
}

func state(s Signals) State {
	switch {
	case s.DaysActive >= 30 && s.QuestsCompleted >= 20:
		return StateCommitted
	case s.DaysActive >= 14:
		return StateActive
	case s.DaysActive >= 7:
		return StatePlayer
	case s.DaysActive >= 3:
		return StateParticipant
	case s.DaysActive >= 1:
		return StateExplorer
	default:
		return StateVisitor
	}
}
