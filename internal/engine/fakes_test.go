package engine

import (
	"context"
	"testing"
	"time"

	"github.com/pavelanni/mentor/internal/model"
	"github.com/pavelanni/mentor/internal/store"
)

// fakeGen is a canned Generator for engine tests.
type fakeGen struct {
	lesson   string
	reply    string
	question string
	review   string
	err      error

	lessonCalls int
}

func (g *fakeGen) GenerateLesson(_ context.Context, _ model.Modality, _ *model.Module, _ *model.LearnerProfile) (string, error) {
	g.lessonCalls++
	return g.lesson, g.err
}

func (g *fakeGen) TutorReply(_ context.Context, _ *model.Module, _ model.Modality, _ []model.ChatMessage, _ string) (string, error) {
	return g.reply, g.err
}

func (g *fakeGen) ComprehensionQuestion(_ context.Context, _ *model.Module) (string, error) {
	return g.question, g.err
}

func (g *fakeGen) RetentionQuestion(_ context.Context, _ string) (string, error) {
	return g.question, g.err
}

func (g *fakeGen) ReviewContent(_ context.Context, _ []model.ConceptMastery) (string, error) {
	return g.review, g.err
}

// fakeJudge is a canned Judge for engine tests.
type fakeJudge struct {
	recall RecallScores
	check  CheckScores
	err    error
}

func (j *fakeJudge) EvaluateRecall(_ context.Context, _, _ string) (RecallScores, error) {
	return j.recall, j.err
}

func (j *fakeJudge) EvaluateComprehension(_ context.Context, _ *model.Module, _ string) (CheckScores, error) {
	return j.check, j.err
}

func newEngineStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedLearner(t *testing.T, s *store.Store, username string) int64 {
	t.Helper()
	id, err := s.CreateUser(model.User{
		Username:     username,
		DisplayName:  username,
		PasswordHash: "x",
		Role:         model.UserRoleLearner,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("seed learner: %v", err)
	}
	return id
}

func seedModule(t *testing.T, s *store.Store, id string) {
	t.Helper()
	err := s.InsertModule(model.Module{
		ID:                 id,
		Title:              "Module " + id,
		Topic:              "testing",
		LearningObjectives: []string{"objective one"},
		DifficultyLevel:    1,
		EstimatedTime:      15,
	})
	if err != nil {
		t.Fatalf("seed module: %v", err)
	}
}

func seedSession(t *testing.T, s *store.Store, userID int64, moduleID string, createdAt time.Time) *model.LearningSession {
	t.Helper()
	sess := &model.LearningSession{
		ID:           "sess-" + moduleID,
		UserID:       userID,
		ModuleID:     moduleID,
		ModalityUsed: model.ModalityNarrative,
		CreatedAt:    createdAt,
	}
	if err := s.CreateSession(sess); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return sess
}
