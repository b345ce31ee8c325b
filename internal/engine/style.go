package engine

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pavelanni/mentor/internal/model"
)

// DefaultExplorationRate is the probability of picking the least-tried
// modality instead of sampling the posterior.
const DefaultExplorationRate = 0.2

// StyleEngine picks teaching modalities for a learner with a Bernoulli
// Thompson Sampling bandit and folds session outcomes back into the
// learner's profile. All methods are pure given the rand source; nothing
// here touches storage.
type StyleEngine struct {
	rng             *rand.Rand
	src             rand.Source
	explorationRate float64
}

// NewStyleEngine returns a style engine. A nil src seeds from the system
// source; explorationRate outside (0,1) falls back to the default.
func NewStyleEngine(src rand.Source, explorationRate float64) *StyleEngine {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	if explorationRate <= 0 || explorationRate >= 1 {
		explorationRate = DefaultExplorationRate
	}
	return &StyleEngine{rng: rand.New(src), src: src, explorationRate: explorationRate}
}

// SelectModality picks the modality for the learner's next session and
// returns a human-readable reason for the choice.
//
// A brand-new learner (no recorded sessions in any modality) gets a uniform
// random pick. With probability explorationRate the least-tried modality is
// chosen, ties broken by the canonical modality order. Otherwise each
// modality's posterior Beta(successes+1, failures+1) is sampled once and the
// highest draw wins, where successes = round(sessions × effectiveness).
func (e *StyleEngine) SelectModality(p *model.LearnerProfile) (model.Modality, string) {
	mods := model.Modalities()

	if p == nil || p.TotalSessions() == 0 {
		m := mods[e.rng.IntN(len(mods))]
		return m, "Initial exploration - discovering your learning style"
	}

	if e.rng.Float64() < e.explorationRate {
		least := mods[0]
		leastCount := math.MaxInt
		for _, m := range mods {
			if c := p.Stat(m).SessionsCount; c < leastCount {
				leastCount = c
				least = m
			}
		}
		return least, "Exploring - trying different teaching methods to optimize your learning"
	}

	best := mods[0]
	bestSample := math.Inf(-1)
	for _, m := range mods {
		st := p.Stat(m)
		successes := math.Round(float64(st.SessionsCount) * st.EffectivenessScore)
		failures := float64(st.SessionsCount) - successes
		beta := distuv.Beta{Alpha: successes + 1, Beta: failures + 1, Src: e.src}
		if sample := beta.Rand(); sample > bestSample {
			bestSample = sample
			best = m
		}
	}
	eff := p.Stat(best).EffectivenessScore
	return best, fmt.Sprintf("Using %s teaching (%d%% effective for you)", best, int(eff*100))
}

// UpdateProfile folds one completed session's outcome into the profile.
// The caller must call it exactly once per completed session; the running
// averages have no way to detect a double fold.
//
// Effectiveness for the session blends retention, comprehension, and
// engagement as 0.5/0.3/0.2 when a retention score is available, and
// comprehension/engagement as 0.6/0.4 when it is not.
func (e *StyleEngine) UpdateProfile(p *model.LearnerProfile, sess *model.LearningSession, engagement, comprehension float64, retention *float64, now time.Time) {
	if p.Stats == nil {
		p.Stats = make(map[model.Modality]model.ModalityStats, len(model.Modalities()))
	}

	var effectiveness float64
	if retention != nil {
		effectiveness = 0.5*(*retention) + 0.3*comprehension + 0.2*engagement
	} else {
		effectiveness = 0.6*comprehension + 0.4*engagement
	}

	st := p.Stat(sess.ModalityUsed)
	n := float64(st.SessionsCount)
	st.EffectivenessScore = (st.EffectivenessScore*n + effectiveness) / (n + 1)
	st.AvgEngagement = (st.AvgEngagement*n + engagement) / (n + 1)
	if retention != nil {
		st.AvgRetention = (st.AvgRetention*n + *retention) / (n + 1)
	}
	st.SessionsCount++
	st.LastUpdated = &now
	p.Stats[sess.ModalityUsed] = st
	p.UpdatedAt = now

	updatePatterns(&p.Patterns, sess, engagement)
}

// updatePatterns adjusts the advisory cognitive pattern observations from one
// session. Only high-engagement sessions count as signal.
func updatePatterns(pat *model.CognitivePatterns, sess *model.LearningSession, engagement float64) {
	if engagement > 0.7 && sess.Duration > 0 {
		if pat.OptimalSessionMinutes == 0 {
			pat.OptimalSessionMinutes = sess.Duration
		} else {
			pat.OptimalSessionMinutes = (pat.OptimalSessionMinutes + sess.Duration) / 2
		}
	}

	if engagement > 0.7 {
		period := timePeriod(sess.CreatedAt.Hour())
		if pat.TimeOfDayVotes == nil {
			pat.TimeOfDayVotes = make(map[string]int)
		}
		pat.TimeOfDayVotes[period]++
		best, bestVotes := "", 0
		for _, pd := range []string{"morning", "afternoon", "evening", "night"} {
			if v := pat.TimeOfDayVotes[pd]; v > bestVotes {
				best, bestVotes = pd, v
			}
		}
		pat.BestTimeOfDay = best
	}

	if sess.QuestionsAsked > 0 {
		pat.AsksQuestions = true
		if sess.QuestionsAsked > 3 {
			pat.HighlyCurious = true
		}
	}

	if engagement > 0.8 {
		switch sess.ModalityUsed {
		case model.ModalityInteractive:
			pat.LearnsByDoing = true
		case model.ModalityNarrative:
			pat.PrefersStories = true
		case model.ModalityVisual:
			pat.VisualLearner = true
		case model.ModalitySocratic:
			pat.ConceptualThinker = true
		}
	}
}

func timePeriod(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 17:
		return "afternoon"
	case hour >= 17 && hour < 21:
		return "evening"
	default:
		return "night"
	}
}
