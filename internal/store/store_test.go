package store

import (
	"testing"
	"time"

	"github.com/pavelanni/mentor/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestModule(t *testing.T, s *Store, id, title string) {
	t.Helper()
	err := s.InsertModule(model.Module{
		ID:                 id,
		Title:              title,
		Description:        "description for " + title,
		Topic:              "testing",
		LearningObjectives: []string{"understand " + title, "apply " + title},
		DifficultyLevel:    2,
		EstimatedTime:      20,
	})
	if err != nil {
		t.Fatalf("insertTestModule: %v", err)
	}
}

func insertTestUser(t *testing.T, s *Store, username string) int64 {
	t.Helper()
	id, err := s.CreateUser(model.User{
		Username:     username,
		DisplayName:  "Test " + username,
		PasswordHash: "x",
		Role:         model.UserRoleLearner,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("insertTestUser: %v", err)
	}
	return id
}

func insertTestSession(t *testing.T, s *Store, userID int64, moduleID string) *model.LearningSession {
	t.Helper()
	sess := &model.LearningSession{
		ID:              "sess-" + moduleID,
		UserID:          userID,
		ModuleID:        moduleID,
		ModalityUsed:    model.ModalityNarrative,
		SelectionReason: "test",
		CreatedAt:       time.Now(),
	}
	if err := s.CreateSession(sess); err != nil {
		t.Fatalf("insertTestSession: %v", err)
	}
	return sess
}

func TestModuleCRUD(t *testing.T) {
	s := newTestStore(t)

	count, err := s.ModuleCount()
	if err != nil {
		t.Fatalf("ModuleCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 modules, got %d", count)
	}

	insertTestModule(t, s, "pointers", "Pointers")
	insertTestModule(t, s, "slices", "Slices")

	m, err := s.GetModule("pointers")
	if err != nil {
		t.Fatalf("GetModule: %v", err)
	}
	if m == nil {
		t.Fatal("expected module, got nil")
	}
	if m.Title != "Pointers" {
		t.Errorf("expected title Pointers, got %q", m.Title)
	}
	if len(m.LearningObjectives) != 2 {
		t.Errorf("expected 2 objectives, got %d", len(m.LearningObjectives))
	}

	missing, err := s.GetModule("nope")
	if err != nil {
		t.Fatalf("GetModule missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing module, got %+v", missing)
	}

	list, err := s.ListModules()
	if err != nil {
		t.Fatalf("ListModules: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 modules, got %d", len(list))
	}
}

func TestLearnerProfileRoundtrip(t *testing.T) {
	s := newTestStore(t)
	userID := insertTestUser(t, s, "alice")

	// No profile yet.
	p, err := s.GetLearnerProfile(userID)
	if err != nil {
		t.Fatalf("GetLearnerProfile: %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil profile, got %+v", p)
	}

	now := time.Now().UTC().Truncate(time.Second)
	profile := &model.LearnerProfile{
		UserID: userID,
		Stats: map[model.Modality]model.ModalityStats{
			model.ModalityNarrative: {EffectivenessScore: 0.8, SessionsCount: 3, AvgRetention: 0.7, AvgEngagement: 0.9, LastUpdated: &now},
			model.ModalityVisual:    {EffectivenessScore: 0.4, SessionsCount: 1, AvgRetention: 0.5, AvgEngagement: 0.5},
		},
		Patterns: model.CognitivePatterns{
			OptimalSessionMinutes: 25,
			BestTimeOfDay:         "morning",
			TimeOfDayVotes:        map[string]int{"morning": 2},
			AsksQuestions:         true,
		},
		UpdatedAt: now,
	}
	if err := s.SaveLearnerProfile(profile); err != nil {
		t.Fatalf("SaveLearnerProfile: %v", err)
	}

	got, err := s.GetLearnerProfile(userID)
	if err != nil {
		t.Fatalf("GetLearnerProfile: %v", err)
	}
	if got == nil {
		t.Fatal("expected profile, got nil")
	}
	if len(got.Stats) != 2 {
		t.Fatalf("expected 2 modality records, got %d", len(got.Stats))
	}
	narrative := got.Stats[model.ModalityNarrative]
	if narrative.EffectivenessScore != 0.8 || narrative.SessionsCount != 3 {
		t.Errorf("narrative stats mismatch: %+v", narrative)
	}
	if got.Patterns.BestTimeOfDay != "morning" || !got.Patterns.AsksQuestions {
		t.Errorf("patterns mismatch: %+v", got.Patterns)
	}
	if got.Patterns.TimeOfDayVotes["morning"] != 2 {
		t.Errorf("expected 2 morning votes, got %d", got.Patterns.TimeOfDayVotes["morning"])
	}

	// Upsert overwrites.
	profile.Stats[model.ModalityNarrative] = model.ModalityStats{EffectivenessScore: 0.85, SessionsCount: 4, AvgRetention: 0.7, AvgEngagement: 0.9}
	if err := s.SaveLearnerProfile(profile); err != nil {
		t.Fatalf("SaveLearnerProfile update: %v", err)
	}
	got, err = s.GetLearnerProfile(userID)
	if err != nil {
		t.Fatalf("GetLearnerProfile: %v", err)
	}
	if got.Stats[model.ModalityNarrative].SessionsCount != 4 {
		t.Errorf("expected updated count 4, got %d", got.Stats[model.ModalityNarrative].SessionsCount)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	userID := insertTestUser(t, s, "bob")
	insertTestModule(t, s, "maps", "Maps")
	sess := insertTestSession(t, s, userID, "maps")

	got, err := s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got == nil {
		t.Fatal("expected session, got nil")
	}
	if got.Completed() {
		t.Error("new session should not be completed")
	}
	if got.EngagementScore != nil {
		t.Error("new session should have no engagement score")
	}

	missing, err := s.GetSession("nope")
	if err != nil {
		t.Fatalf("GetSession missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing session, got %+v", missing)
	}

	if err := s.IncrementQuestionsAsked(sess.ID); err != nil {
		t.Fatalf("IncrementQuestionsAsked: %v", err)
	}

	completedAt := time.Now()
	ok, err := s.CompleteSession(sess.ID, 0.8, 0.9, 25, completedAt)
	if err != nil {
		t.Fatalf("CompleteSession: %v", err)
	}
	if !ok {
		t.Fatal("expected first completion to succeed")
	}

	// Second completion is a no-op.
	ok, err = s.CompleteSession(sess.ID, 0.1, 0.1, 99, completedAt)
	if err != nil {
		t.Fatalf("CompleteSession repeat: %v", err)
	}
	if ok {
		t.Error("expected repeat completion to be rejected")
	}
	if err := s.SetSessionRetentionScore(sess.ID, 0.75); err != nil {
		t.Fatalf("SetSessionRetentionScore: %v", err)
	}

	got, err = s.GetSession(sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if !got.Completed() {
		t.Error("session should be completed")
	}
	if got.EngagementScore == nil || *got.EngagementScore != 0.8 {
		t.Errorf("engagement score mismatch: %v", got.EngagementScore)
	}
	if got.RetentionScore == nil || *got.RetentionScore != 0.75 {
		t.Errorf("retention score mismatch: %v", got.RetentionScore)
	}
	if got.QuestionsAsked != 1 {
		t.Errorf("expected 1 question asked, got %d", got.QuestionsAsked)
	}
	if got.Duration != 25 {
		t.Errorf("expected duration 25, got %d", got.Duration)
	}
}

func TestChatMessages(t *testing.T) {
	s := newTestStore(t)
	userID := insertTestUser(t, s, "carol")
	insertTestModule(t, s, "structs", "Structs")
	sess := insertTestSession(t, s, userID, "structs")

	for i, content := range []string{"lesson", "question one", "answer one", "question two"} {
		role := model.RoleTutor
		if i%2 == 1 {
			role = model.RoleLearner
		}
		if _, err := s.AddChatMessage(model.ChatMessage{SessionID: sess.ID, Role: role, Content: content}); err != nil {
			t.Fatalf("AddChatMessage: %v", err)
		}
	}

	all, err := s.GetChatMessages(sess.ID, 0)
	if err != nil {
		t.Fatalf("GetChatMessages: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(all))
	}
	if all[0].Content != "lesson" || all[3].Content != "question two" {
		t.Errorf("messages out of order: %q ... %q", all[0].Content, all[3].Content)
	}

	// Limit returns the most recent messages, still in order.
	recent, err := s.GetChatMessages(sess.ID, 2)
	if err != nil {
		t.Fatalf("GetChatMessages limited: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(recent))
	}
	if recent[0].Content != "answer one" || recent[1].Content != "question two" {
		t.Errorf("limited messages wrong: %q, %q", recent[0].Content, recent[1].Content)
	}
}

func TestRetentionTestQueries(t *testing.T) {
	s := newTestStore(t)
	userID := insertTestUser(t, s, "dave")
	insertTestModule(t, s, "errors", "Errors")
	sess := insertTestSession(t, s, userID, "errors")

	base := time.Now().UTC().Truncate(time.Second)
	mk := func(id string, offset time.Duration) *model.RetentionTest {
		rt := &model.RetentionTest{
			ID:            id,
			SessionID:     sess.ID,
			UserID:        userID,
			ConceptID:     "error-wrapping",
			IntervalHours: int(offset.Hours()),
			ScheduledAt:   base.Add(offset),
		}
		if err := s.CreateRetentionTest(rt); err != nil {
			t.Fatalf("CreateRetentionTest: %v", err)
		}
		return rt
	}
	past := mk("t-past", -2*time.Hour)
	mk("t-future", 48*time.Hour)

	due, err := s.ListDueRetentionTests(userID, base)
	if err != nil {
		t.Fatalf("ListDueRetentionTests: %v", err)
	}
	if len(due) != 1 || due[0].ID != "t-past" {
		t.Fatalf("expected only t-past due, got %+v", due)
	}

	// Complete the due test.
	now := base
	recall := 0.9
	past.CompletedAt = &now
	past.RecallAccuracy = &recall
	past.Response = "it wraps the cause"
	ok, err := s.CompleteRetentionTest(past)
	if err != nil {
		t.Fatalf("CompleteRetentionTest: %v", err)
	}
	if !ok {
		t.Fatal("expected first completion to succeed")
	}

	// Second completion is a no-op.
	ok, err = s.CompleteRetentionTest(past)
	if err != nil {
		t.Fatalf("CompleteRetentionTest repeat: %v", err)
	}
	if ok {
		t.Error("expected repeat completion to be rejected")
	}

	due, err = s.ListDueRetentionTests(userID, base)
	if err != nil {
		t.Fatalf("ListDueRetentionTests: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected no due tests after completion, got %d", len(due))
	}

	completed, err := s.ListCompletedRetentionTests(userID)
	if err != nil {
		t.Fatalf("ListCompletedRetentionTests: %v", err)
	}
	if len(completed) != 1 {
		t.Fatalf("expected 1 completed test, got %d", len(completed))
	}
	if completed[0].RecallAccuracy == nil || *completed[0].RecallAccuracy != 0.9 {
		t.Errorf("recall accuracy mismatch: %v", completed[0].RecallAccuracy)
	}
}

func TestConceptMasteryUpsert(t *testing.T) {
	s := newTestStore(t)
	userID := insertTestUser(t, s, "erin")

	m, err := s.GetConceptMastery(userID, "recursion")
	if err != nil {
		t.Fatalf("GetConceptMastery: %v", err)
	}
	if m != nil {
		t.Fatalf("expected nil mastery, got %+v", m)
	}

	now := time.Now()
	record := &model.ConceptMastery{
		UserID:         userID,
		ConceptID:      "recursion",
		MasteryLevel:   0.3,
		TimesPracticed: 1,
		FirstLearned:   now,
		LastReviewed:   &now,
	}
	if err := s.UpsertConceptMastery(record); err != nil {
		t.Fatalf("UpsertConceptMastery: %v", err)
	}

	record.MasteryLevel = 0.52
	record.TimesPracticed = 2
	record.SuccessfulApplications = 1
	if err := s.UpsertConceptMastery(record); err != nil {
		t.Fatalf("UpsertConceptMastery update: %v", err)
	}

	m, err = s.GetConceptMastery(userID, "recursion")
	if err != nil {
		t.Fatalf("GetConceptMastery: %v", err)
	}
	if m.MasteryLevel != 0.52 || m.TimesPracticed != 2 || m.SuccessfulApplications != 1 {
		t.Errorf("mastery mismatch: %+v", m)
	}

	list, err := s.ListConceptMastery(userID)
	if err != nil {
		t.Fatalf("ListConceptMastery: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 record, got %d", len(list))
	}
}

func TestModuleProgressUpsert(t *testing.T) {
	s := newTestStore(t)
	userID := insertTestUser(t, s, "frank")
	insertTestModule(t, s, "channels", "Channels")

	p, err := s.GetModuleProgress(userID, "channels")
	if err != nil {
		t.Fatalf("GetModuleProgress: %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil progress, got %+v", p)
	}

	now := time.Now()
	record := &model.ModuleProgress{
		UserID:               userID,
		ModuleID:             "channels",
		Status:               model.ProgressInProgress,
		MasteryScore:         0.3,
		CompletionPercentage: 0.4,
		StartedAt:            now,
	}
	if err := s.UpsertModuleProgress(record); err != nil {
		t.Fatalf("UpsertModuleProgress: %v", err)
	}

	record.Status = model.ProgressCompleted
	record.MasteryScore = 0.75
	record.CompletedAt = &now
	if err := s.UpsertModuleProgress(record); err != nil {
		t.Fatalf("UpsertModuleProgress update: %v", err)
	}

	p, err = s.GetModuleProgress(userID, "channels")
	if err != nil {
		t.Fatalf("GetModuleProgress: %v", err)
	}
	if p.Status != model.ProgressCompleted || p.MasteryScore != 0.75 {
		t.Errorf("progress mismatch: %+v", p)
	}
	if p.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}
}

func TestAuthSessions(t *testing.T) {
	s := newTestStore(t)
	userID := insertTestUser(t, s, "grace")

	token, err := s.CreateAuthSession(userID)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	sess, err := s.GetAuthSession(token)
	if err != nil {
		t.Fatalf("GetAuthSession: %v", err)
	}
	if sess == nil || sess.UserID != userID {
		t.Fatalf("auth session mismatch: %+v", sess)
	}

	if err := s.DeleteAuthSession(token); err != nil {
		t.Fatalf("DeleteAuthSession: %v", err)
	}
	sess, err = s.GetAuthSession(token)
	if err != nil {
		t.Fatalf("GetAuthSession after delete: %v", err)
	}
	if sess != nil {
		t.Errorf("expected nil after delete, got %+v", sess)
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)

	h, err := s.GetImportedFileHash("modules/a.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if h != "" {
		t.Fatalf("expected empty hash, got %q", h)
	}

	if err := s.SetImportedFileHash("modules/a.json", "abc123"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	h, err = s.GetImportedFileHash("modules/a.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if h != "abc123" {
		t.Errorf("expected abc123, got %q", h)
	}
}
