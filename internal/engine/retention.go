package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/mentor/internal/model"
	"github.com/pavelanni/mentor/internal/store"
)

// spacedIntervals are the review offsets scheduled for every concept taught
// in a session, all measured from the same base time.
var spacedIntervals = []time.Duration{
	24 * time.Hour,
	3 * 24 * time.Hour,
	7 * 24 * time.Hour,
	14 * 24 * time.Hour,
	30 * 24 * time.Hour,
}

const (
	recallPassThreshold   = 0.7
	applicationThreshold  = 0.8
	masteryCarryWeight    = 0.6
	masteryEvidenceWeight = 0.4
)

// Repetition schedules spaced retention tests and evaluates learner answers
// against the judge boundary.
type Repetition struct {
	store *store.Store
	gen   Generator
	judge Judge
	now   func() time.Time
}

func NewRepetition(st *store.Store, gen Generator, judge Judge) *Repetition {
	return &Repetition{store: st, gen: gen, judge: judge, now: time.Now}
}

// ScheduleTests creates the full spaced-repetition series for every concept
// taught in the session. All tests share one base time so the series is
// deterministic. An empty concept list schedules nothing.
//
// On a storage failure the tests already created are kept; the error reports
// which concept failed.
func (r *Repetition) ScheduleTests(sess *model.LearningSession, concepts []string) ([]model.RetentionTest, error) {
	base := r.now()
	var created []model.RetentionTest
	for _, concept := range concepts {
		for _, interval := range spacedIntervals {
			t := model.RetentionTest{
				ID:            uuid.NewString(),
				SessionID:     sess.ID,
				UserID:        sess.UserID,
				ConceptID:     concept,
				IntervalHours: int(interval.Hours()),
				ScheduledAt:   base.Add(interval),
			}
			if err := r.store.CreateRetentionTest(&t); err != nil {
				return created, fmt.Errorf("schedule test for concept %q: %w", concept, err)
			}
			created = append(created, t)
		}
	}
	return created, nil
}

// DueTest is a due retention test paired with a generated recall question.
type DueTest struct {
	model.RetentionTest
	Question string `json:"question"`
}

// DueTests returns the learner's due tests, soonest first, each with a
// recall question. Question generation failures degrade to a canned question
// rather than hiding the test.
func (r *Repetition) DueTests(ctx context.Context, userID int64) ([]DueTest, error) {
	tests, err := r.store.ListDueRetentionTests(userID, r.now())
	if err != nil {
		return nil, err
	}
	due := make([]DueTest, 0, len(tests))
	for _, t := range tests {
		question, err := r.gen.RetentionQuestion(ctx, t.ConceptID)
		if err != nil {
			slog.Warn("retention question generation failed", "test", t.ID, "concept", t.ConceptID, "error", err)
			question = fmt.Sprintf("Can you explain %s in your own words?", t.ConceptID)
		}
		due = append(due, DueTest{RetentionTest: t, Question: question})
	}
	return due, nil
}

// EvaluationResult is the outcome of scoring one retention test answer.
type EvaluationResult struct {
	RecallAccuracy     float64    `json:"recall_accuracy"`
	ConfidenceLevel    float64    `json:"confidence_level"`
	ApplicationAbility float64    `json:"application_ability"`
	Feedback           string     `json:"feedback"`
	Passed             bool       `json:"passed"`
	MasteryLevel       float64    `json:"mastery_level"`
	NextReview         *time.Time `json:"next_review,omitempty"`
}

// Evaluate judges a learner's answer to a due retention test, records the
// scores, folds the result into concept mastery, backfills the originating
// session's retention score, and reschedules a failed test at half the
// failed interval (floor 24h).
//
// A test that was already completed returns ErrAlreadyCompleted and changes
// nothing.
func (r *Repetition) Evaluate(ctx context.Context, testID, response string) (*EvaluationResult, error) {
	t, err := r.store.GetRetentionTest(testID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("retention test %s: %w", testID, ErrNotFound)
	}
	if t.Completed() {
		return nil, fmt.Errorf("retention test %s: %w", testID, ErrAlreadyCompleted)
	}

	scores, err := r.judge.EvaluateRecall(ctx, t.ConceptID, response)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	recall := clamp01(scores.Recall)
	confidence := clamp01(scores.Confidence)
	application := clamp01(scores.Application)

	now := r.now()
	t.CompletedAt = &now
	t.RecallAccuracy = &recall
	t.ConfidenceLevel = &confidence
	t.ApplicationAbility = &application
	t.Response = response
	ok, err := r.store.CompleteRetentionTest(t)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("retention test %s: %w", testID, ErrAlreadyCompleted)
	}

	mastery, err := r.updateMastery(t, recall, application, now)
	if err != nil {
		return nil, err
	}

	// The most recently completed test wins the session's retention score.
	if err := r.store.SetSessionRetentionScore(t.SessionID, recall); err != nil {
		return nil, err
	}

	result := &EvaluationResult{
		RecallAccuracy:     recall,
		ConfidenceLevel:    confidence,
		ApplicationAbility: application,
		Feedback:           scores.Feedback,
		Passed:             recall >= recallPassThreshold,
		MasteryLevel:       mastery,
	}

	if !result.Passed {
		hours := t.IntervalHours / 2
		if hours < 24 {
			hours = 24
		}
		retry := model.RetentionTest{
			ID:            uuid.NewString(),
			SessionID:     t.SessionID,
			UserID:        t.UserID,
			ConceptID:     t.ConceptID,
			IntervalHours: hours,
			ScheduledAt:   now.Add(time.Duration(hours) * time.Hour),
		}
		if err := r.store.CreateRetentionTest(&retry); err != nil {
			return nil, fmt.Errorf("reschedule concept %q: %w", t.ConceptID, err)
		}
		result.NextReview = &retry.ScheduledAt
	}

	return result, nil
}

func (r *Repetition) updateMastery(t *model.RetentionTest, recall, application float64, now time.Time) (float64, error) {
	m, err := r.store.GetConceptMastery(t.UserID, t.ConceptID)
	if err != nil {
		return 0, err
	}
	if m == nil {
		m = &model.ConceptMastery{UserID: t.UserID, ConceptID: t.ConceptID, FirstLearned: now}
	}
	evidence := (recall + application) / 2
	m.MasteryLevel = m.MasteryLevel*masteryCarryWeight + evidence*masteryEvidenceWeight
	m.TimesPracticed++
	if recall >= applicationThreshold {
		m.SuccessfulApplications++
	}
	m.LastReviewed = &now
	if err := r.store.UpsertConceptMastery(m); err != nil {
		return 0, err
	}
	return m.MasteryLevel, nil
}

// IntervalStats aggregates completed tests that shared one spaced interval.
type IntervalStats struct {
	IntervalHours int     `json:"interval_hours"`
	Tests         int     `json:"tests"`
	AvgRecall     float64 `json:"avg_recall"`
}

// RetentionStats summarizes a learner's completed retention tests.
type RetentionStats struct {
	TotalCompleted int             `json:"total_completed"`
	AvgRecall      float64         `json:"avg_recall"`
	ByInterval     []IntervalStats `json:"by_interval"`
}

// Stats computes recall statistics over the learner's completed tests,
// grouped by spaced interval.
func (r *Repetition) Stats(userID int64) (*RetentionStats, error) {
	tests, err := r.store.ListCompletedRetentionTests(userID)
	if err != nil {
		return nil, err
	}
	stats := &RetentionStats{}
	sums := make(map[int]*IntervalStats)
	var total float64
	for _, t := range tests {
		if t.RecallAccuracy == nil {
			continue
		}
		stats.TotalCompleted++
		total += *t.RecallAccuracy
		is, ok := sums[t.IntervalHours]
		if !ok {
			is = &IntervalStats{IntervalHours: t.IntervalHours}
			sums[t.IntervalHours] = is
		}
		is.Tests++
		is.AvgRecall += *t.RecallAccuracy
	}
	if stats.TotalCompleted > 0 {
		stats.AvgRecall = total / float64(stats.TotalCompleted)
	}
	for _, is := range sums {
		is.AvgRecall /= float64(is.Tests)
		stats.ByInterval = append(stats.ByInterval, *is)
	}
	sort.Slice(stats.ByInterval, func(i, j int) bool {
		return stats.ByInterval[i].IntervalHours < stats.ByInterval[j].IntervalHours
	})
	return stats, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
