package engine

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/mentor/internal/model"
	"github.com/pavelanni/mentor/internal/store"
)

// Generator produces tutoring content. Implemented by the LLM client; tests
// substitute fakes.
type Generator interface {
	GenerateLesson(ctx context.Context, modality model.Modality, module *model.Module, profile *model.LearnerProfile) (string, error)
	TutorReply(ctx context.Context, module *model.Module, modality model.Modality, history []model.ChatMessage, message string) (string, error)
	ComprehensionQuestion(ctx context.Context, module *model.Module) (string, error)
	RetentionQuestion(ctx context.Context, concept string) (string, error)
	ReviewContent(ctx context.Context, concepts []model.ConceptMastery) (string, error)
}

// RecallScores is the judge's verdict on a retention test answer.
type RecallScores struct {
	Recall      float64
	Confidence  float64
	Application float64
	Feedback    string
}

// CheckScores is the judge's verdict on a comprehension check answer.
type CheckScores struct {
	Score    float64
	Feedback string
}

// Judge scores free-text learner answers.
type Judge interface {
	EvaluateRecall(ctx context.Context, concept, answer string) (RecallScores, error)
	EvaluateComprehension(ctx context.Context, module *model.Module, answer string) (CheckScores, error)
}

const comprehensionPassThreshold = 0.6

// Tutor orchestrates lessons: modality selection, content generation,
// session lifecycle, chat, comprehension checks, and module progress.
// Profile read-modify-write cycles are serialized per user; different users
// never contend.
type Tutor struct {
	store      *store.Store
	gen        Generator
	judge      Judge
	style      *StyleEngine
	repetition *Repetition
	now        func() time.Time

	mu        sync.Mutex
	userLocks map[int64]*sync.Mutex
}

// NewTutor wires the engine. A nil src seeds the bandit from the system
// source.
func NewTutor(st *store.Store, gen Generator, judge Judge, src rand.Source, explorationRate float64) *Tutor {
	return &Tutor{
		store:      st,
		gen:        gen,
		judge:      judge,
		style:      NewStyleEngine(src, explorationRate),
		repetition: NewRepetition(st, gen, judge),
		now:        time.Now,
		userLocks:  make(map[int64]*sync.Mutex),
	}
}

// Repetition exposes the spaced-repetition component for handlers.
func (t *Tutor) Repetition() *Repetition {
	return t.repetition
}

func (t *Tutor) userLock(userID int64) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		t.userLocks[userID] = l
	}
	return l
}

// Lesson is a started learning session with its generated content.
type Lesson struct {
	Session *model.LearningSession `json:"session"`
	Module  *model.Module          `json:"module"`
	Content string                 `json:"content"`
}

// StartLesson selects a modality for the learner (or honors a forced
// override), generates lesson content, and persists the new session. Nothing
// is persisted when generation fails, so a failed start leaves no trace.
func (t *Tutor) StartLesson(ctx context.Context, userID int64, moduleID string, force string) (*Lesson, error) {
	lock := t.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	module, err := t.store.GetModule(moduleID)
	if err != nil {
		return nil, err
	}
	if module == nil {
		return nil, fmt.Errorf("module %s: %w", moduleID, ErrNotFound)
	}

	profile, err := t.store.GetLearnerProfile(userID)
	if err != nil {
		return nil, err
	}
	newProfile := profile == nil
	if newProfile {
		profile = &model.LearnerProfile{UserID: userID, Stats: make(map[model.Modality]model.ModalityStats)}
	}

	var modality model.Modality
	var reason string
	if force != "" {
		modality, err = ParseModality(force)
		if err != nil {
			return nil, err
		}
		reason = "Requested modality override"
	} else {
		modality, reason = t.style.SelectModality(profile)
	}

	content, err := t.gen.GenerateLesson(ctx, modality, module, profile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	now := t.now()
	sess := &model.LearningSession{
		ID:              uuid.NewString(),
		UserID:          userID,
		ModuleID:        moduleID,
		ModalityUsed:    modality,
		SelectionReason: reason,
		CreatedAt:       now,
	}
	if err := t.store.CreateSession(sess); err != nil {
		return nil, err
	}
	if newProfile {
		profile.UpdatedAt = now
		if err := t.store.SaveLearnerProfile(profile); err != nil {
			return nil, err
		}
	}
	if _, err := t.store.AddChatMessage(model.ChatMessage{SessionID: sess.ID, Role: model.RoleTutor, Content: content}); err != nil {
		return nil, err
	}

	progress, err := t.store.GetModuleProgress(userID, moduleID)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		progress = &model.ModuleProgress{
			UserID:    userID,
			ModuleID:  moduleID,
			Status:    model.ProgressInProgress,
			StartedAt: now,
		}
		if err := t.store.UpsertModuleProgress(progress); err != nil {
			return nil, err
		}
	}

	return &Lesson{Session: sess, Module: module, Content: content}, nil
}

// SessionOutcome reports the effects of completing a session.
type SessionOutcome struct {
	Session        *model.LearningSession `json:"session"`
	TestsScheduled int                    `json:"tests_scheduled"`
	Progress       *model.ModuleProgress  `json:"progress"`
}

// CompleteSession records the session's outcome scores, folds them into the
// learner's profile, schedules retention tests for the taught concepts, and
// updates module progress. Engagement and comprehension must be in [0, 1].
//
// Retention tests persisted before a scheduling failure are kept; the error
// is still reported.
func (t *Tutor) CompleteSession(ctx context.Context, sessionID string, engagement, comprehension float64, concepts []string) (*SessionOutcome, error) {
	if engagement < 0 || engagement > 1 || comprehension < 0 || comprehension > 1 {
		return nil, fmt.Errorf("%w: engagement %.2f, comprehension %.2f", ErrInvalidScore, engagement, comprehension)
	}

	sess, err := t.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}

	lock := t.userLock(sess.UserID)
	lock.Lock()
	defer lock.Unlock()

	now := t.now()
	duration := int(now.Sub(sess.CreatedAt).Minutes())
	ok, err := t.store.CompleteSession(sessionID, engagement, comprehension, duration, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrAlreadyCompleted)
	}
	sess.EngagementScore = &engagement
	sess.ComprehensionScore = &comprehension
	sess.Duration = duration
	sess.CompletedAt = &now

	profile, err := t.store.GetLearnerProfile(sess.UserID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		profile = &model.LearnerProfile{UserID: sess.UserID}
	}
	t.style.UpdateProfile(profile, sess, engagement, comprehension, nil, now)
	if err := t.store.SaveLearnerProfile(profile); err != nil {
		return nil, err
	}

	progress, err := t.updateModuleProgress(sess, comprehension, now)
	if err != nil {
		return nil, err
	}

	tests, err := t.repetition.ScheduleTests(sess, concepts)
	outcome := &SessionOutcome{Session: sess, TestsScheduled: len(tests), Progress: progress}
	if err != nil {
		return outcome, err
	}
	return outcome, nil
}

func (t *Tutor) updateModuleProgress(sess *model.LearningSession, comprehension float64, now time.Time) (*model.ModuleProgress, error) {
	progress, err := t.store.GetModuleProgress(sess.UserID, sess.ModuleID)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		progress = &model.ModuleProgress{
			UserID:    sess.UserID,
			ModuleID:  sess.ModuleID,
			Status:    model.ProgressInProgress,
			StartedAt: now,
		}
	}

	progress.MasteryScore = progress.MasteryScore*0.7 + comprehension*0.3
	switch {
	case progress.MasteryScore >= 0.9:
		progress.Status = model.ProgressMastered
	case progress.MasteryScore >= 0.7:
		progress.Status = model.ProgressCompleted
	default:
		progress.Status = model.ProgressInProgress
	}
	progress.CompletionPercentage = progress.MasteryScore + 0.1
	if progress.CompletionPercentage > 1 {
		progress.CompletionPercentage = 1
	}
	if progress.Status != model.ProgressInProgress && progress.CompletedAt == nil {
		progress.CompletedAt = &now
	}

	if err := t.store.UpsertModuleProgress(progress); err != nil {
		return nil, err
	}
	return progress, nil
}

// chatHistoryLimit bounds how much conversation is replayed to the tutor.
const chatHistoryLimit = 10

// Chat sends a learner message to the session's tutor and returns the reply.
// Both sides of the exchange are persisted and the session's question
// counter is bumped.
func (t *Tutor) Chat(ctx context.Context, sessionID, message string) (string, error) {
	sess, err := t.store.GetSession(sessionID)
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	module, err := t.store.GetModule(sess.ModuleID)
	if err != nil {
		return "", err
	}
	history, err := t.store.GetChatMessages(sessionID, chatHistoryLimit)
	if err != nil {
		return "", err
	}

	reply, err := t.gen.TutorReply(ctx, module, sess.ModalityUsed, history, message)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	if _, err := t.store.AddChatMessage(model.ChatMessage{SessionID: sessionID, Role: model.RoleLearner, Content: message}); err != nil {
		return "", err
	}
	if err := t.store.IncrementQuestionsAsked(sessionID); err != nil {
		return "", err
	}
	if _, err := t.store.AddChatMessage(model.ChatMessage{SessionID: sessionID, Role: model.RoleTutor, Content: reply}); err != nil {
		return "", err
	}
	return reply, nil
}

// ComprehensionQuestion generates a conversational check question for the
// session's module.
func (t *Tutor) ComprehensionQuestion(ctx context.Context, sessionID string) (string, error) {
	sess, err := t.store.GetSession(sessionID)
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	module, err := t.store.GetModule(sess.ModuleID)
	if err != nil {
		return "", err
	}
	question, err := t.gen.ComprehensionQuestion(ctx, module)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return question, nil
}

// CheckResult is a scored comprehension check answer.
type CheckResult struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
	Passed   bool    `json:"passed"`
}

// EvaluateComprehension judges a learner's answer to a comprehension check.
func (t *Tutor) EvaluateComprehension(ctx context.Context, sessionID, answer string) (*CheckResult, error) {
	sess, err := t.store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	module, err := t.store.GetModule(sess.ModuleID)
	if err != nil {
		return nil, err
	}
	scores, err := t.judge.EvaluateComprehension(ctx, module, answer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	score := clamp01(scores.Score)
	return &CheckResult{
		Score:    score,
		Feedback: scores.Feedback,
		Passed:   score >= comprehensionPassThreshold,
	}, nil
}
