package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/pavelanni/mentor/internal/model"
)

const (
	strongMasteryThreshold = 0.8
	weakMasteryThreshold   = 0.6
	reviewConceptLimit     = 3
)

// ModalityInsight is one modality's track record for a learner.
type ModalityInsight struct {
	Modality      model.Modality `json:"modality"`
	Effectiveness float64        `json:"effectiveness"`
	Sessions      int            `json:"sessions"`
}

// Insights summarizes what the system has learned about a learner.
type Insights struct {
	TotalSessions   int                     `json:"total_sessions"`
	BestModalities  []ModalityInsight       `json:"best_modalities"`
	Struggling      []ModalityInsight       `json:"struggling_modalities"`
	Patterns        model.CognitivePatterns `json:"patterns"`
	Recommendations []string                `json:"recommendations"`
}

// LearningInsights derives modality rankings and advisory recommendations
// from a profile. Modalities with fewer than two sessions are treated as
// unmeasured.
func LearningInsights(p *model.LearnerProfile) *Insights {
	in := &Insights{Patterns: p.Patterns, TotalSessions: p.TotalSessions()}

	var measured []ModalityInsight
	for _, m := range model.Modalities() {
		st := p.Stat(m)
		if st.SessionsCount < 2 {
			continue
		}
		measured = append(measured, ModalityInsight{
			Modality:      m,
			Effectiveness: st.EffectivenessScore,
			Sessions:      st.SessionsCount,
		})
	}
	sort.SliceStable(measured, func(i, j int) bool {
		return measured[i].Effectiveness > measured[j].Effectiveness
	})
	for _, mi := range measured {
		if mi.Effectiveness >= 0.6 {
			in.BestModalities = append(in.BestModalities, mi)
		} else if mi.Effectiveness < 0.4 {
			in.Struggling = append(in.Struggling, mi)
		}
	}

	pat := p.Patterns
	if pat.OptimalSessionMinutes > 0 {
		in.Recommendations = append(in.Recommendations,
			fmt.Sprintf("Sessions around %d minutes work best for you", pat.OptimalSessionMinutes))
	}
	if pat.BestTimeOfDay != "" {
		in.Recommendations = append(in.Recommendations,
			fmt.Sprintf("You tend to learn best in the %s", pat.BestTimeOfDay))
	}
	if pat.HighlyCurious {
		in.Recommendations = append(in.Recommendations,
			"You ask great questions - keep exploring topics in depth")
	}
	if pat.LearnsByDoing {
		in.Recommendations = append(in.Recommendations,
			"Hands-on practice suits you - try the interactive exercises")
	}
	return in
}

// Insights loads a learner's profile and derives insights from it. A learner
// with no profile yet gets empty insights.
func (t *Tutor) Insights(userID int64) (*Insights, error) {
	profile, err := t.store.GetLearnerProfile(userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		profile = &model.LearnerProfile{UserID: userID}
	}
	return LearningInsights(profile), nil
}

// ConceptBreakdown splits a learner's concepts by mastery.
type ConceptBreakdown struct {
	Strong []model.ConceptMastery `json:"strong"`
	Weak   []model.ConceptMastery `json:"weak"`
}

// Concepts returns the learner's strong and weak concepts.
func (t *Tutor) Concepts(userID int64) (*ConceptBreakdown, error) {
	records, err := t.store.ListConceptMastery(userID)
	if err != nil {
		return nil, err
	}
	bd := &ConceptBreakdown{}
	for _, m := range records {
		switch {
		case m.MasteryLevel >= strongMasteryThreshold:
			bd.Strong = append(bd.Strong, m)
		case m.MasteryLevel < weakMasteryThreshold:
			bd.Weak = append(bd.Weak, m)
		}
	}
	return bd, nil
}

// Review is a quick refresher over the learner's weakest concepts.
type Review struct {
	Concepts []model.ConceptMastery `json:"concepts"`
	Content  string                 `json:"content"`
}

// ReviewSession picks the learner's weakest concepts and generates review
// content for them. Returns an empty review when nothing needs attention.
func (t *Tutor) ReviewSession(ctx context.Context, userID int64) (*Review, error) {
	records, err := t.store.ListConceptMastery(userID)
	if err != nil {
		return nil, err
	}
	var weak []model.ConceptMastery
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].MasteryLevel < weakMasteryThreshold {
			weak = append(weak, records[i])
			if len(weak) == reviewConceptLimit {
				break
			}
		}
	}
	if len(weak) == 0 {
		return &Review{Content: "Everything looks solid. Nothing needs review right now."}, nil
	}
	content, err := t.gen.ReviewContent(ctx, weak)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return &Review{Concepts: weak, Content: content}, nil
}
