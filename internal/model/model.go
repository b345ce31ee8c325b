package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleLearner is a regular learner account.
	UserRoleLearner UserRole = "learner"
	// UserRoleAdmin is an admin account.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// Modality is a teaching style content can be delivered in.
// The set is closed: exactly four modalities exist.
type Modality string

const (
	ModalityNarrative   Modality = "narrative"
	ModalityInteractive Modality = "interactive"
	ModalitySocratic    Modality = "socratic"
	ModalityVisual      Modality = "visual"
)

// Modalities returns all modalities in their fixed canonical order.
// The order is also the tie-break order for exploration.
func Modalities() []Modality {
	return []Modality{ModalityNarrative, ModalityInteractive, ModalitySocratic, ModalityVisual}
}

// Valid reports whether m is one of the four known modalities.
func (m Modality) Valid() bool {
	switch m {
	case ModalityNarrative, ModalityInteractive, ModalitySocratic, ModalityVisual:
		return true
	}
	return false
}

// ModalityStats holds per-modality running statistics for a learner.
// EffectivenessScore is maintained exclusively as a running average; it is
// never assigned directly.
type ModalityStats struct {
	EffectivenessScore float64    `json:"effectiveness_score"`
	SessionsCount      int        `json:"sessions_count"`
	AvgRetention       float64    `json:"avg_retention"`
	AvgEngagement      float64    `json:"avg_engagement"`
	LastUpdated        *time.Time `json:"last_updated,omitempty"`
}

// DefaultModalityStats returns the uninitialized record used for modalities
// with no recorded sessions.
func DefaultModalityStats() ModalityStats {
	return ModalityStats{
		EffectivenessScore: 0.5,
		SessionsCount:      0,
		AvgRetention:       0.5,
		AvgEngagement:      0.5,
	}
}

// CognitivePatterns holds advisory observations about how a learner works.
// Nothing here gates correctness; it only flavors prompts and insights.
type CognitivePatterns struct {
	OptimalSessionMinutes int            `json:"optimal_session_minutes,omitempty"`
	BestTimeOfDay         string         `json:"best_time_of_day,omitempty"`
	TimeOfDayVotes        map[string]int `json:"time_of_day_votes,omitempty"`
	AsksQuestions         bool           `json:"asks_questions,omitempty"`
	HighlyCurious         bool           `json:"highly_curious,omitempty"`
	LearnsByDoing         bool           `json:"learns_by_doing,omitempty"`
	PrefersStories        bool           `json:"prefers_stories,omitempty"`
	VisualLearner         bool           `json:"visual_learner,omitempty"`
	ConceptualThinker     bool           `json:"conceptual_thinker,omitempty"`
}

// LearnerProfile holds a learner's per-modality statistics and cognitive
// patterns. Created lazily on first session.
type LearnerProfile struct {
	UserID    int64
	Stats     map[Modality]ModalityStats
	Patterns  CognitivePatterns
	UpdatedAt time.Time
}

// Stat returns the stats for a modality, falling back to the default record
// when the modality has never been recorded.
func (p *LearnerProfile) Stat(m Modality) ModalityStats {
	if p.Stats != nil {
		if s, ok := p.Stats[m]; ok {
			return s
		}
	}
	return DefaultModalityStats()
}

// TotalSessions returns the number of recorded sessions across all modalities.
func (p *LearnerProfile) TotalSessions() int {
	total := 0
	for _, s := range p.Stats {
		total += s.SessionsCount
	}
	return total
}

// Module represents a learnable unit of content.
type Module struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Topic              string   `json:"topic"`
	LearningObjectives []string `json:"learning_objectives"`
	DifficultyLevel    int      `json:"difficulty_level"`
	EstimatedTime      int      `json:"estimated_time"`
}

// ProgressStatus represents a learner's status on a module.
type ProgressStatus string

const (
	ProgressNotStarted ProgressStatus = "not_started"
	ProgressInProgress ProgressStatus = "in_progress"
	ProgressCompleted  ProgressStatus = "completed"
	ProgressMastered   ProgressStatus = "mastered"
)

// ModuleProgress tracks a learner's progress through a module.
type ModuleProgress struct {
	UserID               int64          `json:"user_id"`
	ModuleID             string         `json:"module_id"`
	Status               ProgressStatus `json:"status"`
	MasteryScore         float64        `json:"mastery_score"`
	CompletionPercentage float64        `json:"completion_percentage"`
	StartedAt            time.Time      `json:"started_at"`
	CompletedAt          *time.Time     `json:"completed_at,omitempty"`
}

// LearningSession represents one tutoring interaction. The modality is fixed
// at creation; outcome scores are set once on completion, and the retention
// score is backfilled later by retention tests.
type LearningSession struct {
	ID                 string     `json:"id"`
	UserID             int64      `json:"user_id"`
	ModuleID           string     `json:"module_id"`
	ModalityUsed       Modality   `json:"modality_used"`
	SelectionReason    string     `json:"selection_reason"`
	Duration           int        `json:"duration"` // minutes
	QuestionsAsked     int        `json:"questions_asked"`
	EngagementScore    *float64   `json:"engagement_score,omitempty"`
	ComprehensionScore *float64   `json:"comprehension_score,omitempty"`
	RetentionScore     *float64   `json:"retention_score,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// Completed reports whether the session has been completed.
func (s *LearningSession) Completed() bool {
	return s.CompletedAt != nil
}

// Role represents a chat message role.
type Role string

const (
	RoleLearner Role = "user"
	RoleTutor   Role = "assistant"
)

// ChatMessage represents one message in a session's tutor conversation.
type ChatMessage struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// RetentionTest is a scheduled recall check for one concept taught in one
// session. A test is due when scheduled_at has passed and it has not been
// completed. Once completed it is immutable.
type RetentionTest struct {
	ID                 string     `json:"id"`
	SessionID          string     `json:"session_id"`
	UserID             int64      `json:"user_id"`
	ConceptID          string     `json:"concept_id"`
	IntervalHours      int        `json:"interval_hours"`
	ScheduledAt        time.Time  `json:"scheduled_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	RecallAccuracy     *float64   `json:"recall_accuracy,omitempty"`
	ConfidenceLevel    *float64   `json:"confidence_level,omitempty"`
	ApplicationAbility *float64   `json:"application_ability,omitempty"`
	Response           string     `json:"response,omitempty"`
}

// Completed reports whether the test has been answered and scored.
func (t *RetentionTest) Completed() bool {
	return t.CompletedAt != nil
}

// Due reports whether the test is due at the given time.
func (t *RetentionTest) Due(now time.Time) bool {
	return !t.Completed() && !t.ScheduledAt.After(now)
}

// ConceptMastery is the long-term mastery estimate for one (user, concept)
// pair. MasteryLevel is a running weighted average over retention-test
// outcomes and is never reset.
type ConceptMastery struct {
	UserID                 int64      `json:"user_id"`
	ConceptID              string     `json:"concept_id"`
	MasteryLevel           float64    `json:"mastery_level"`
	TimesPracticed         int        `json:"times_practiced"`
	SuccessfulApplications int        `json:"successful_applications"`
	FirstLearned           time.Time  `json:"first_learned"`
	LastReviewed           *time.Time `json:"last_reviewed,omitempty"`
}

// TutorConfig holds runtime parameters set via CLI flags.
type TutorConfig struct {
	ExplorationRate float64 // bandit exploration probability
	MaxTokens       int     // token budget for generated lessons
	SecureCookies   bool    // Set Secure flag on session cookies (disable for local dev)
}

// ModuleImport is used for loading modules from JSON seed files.
type ModuleImport struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Topic              string   `json:"topic"`
	LearningObjectives []string `json:"learning_objectives"`
	DifficultyLevel    int      `json:"difficulty_level"`
	EstimatedTime      int      `json:"estimated_time"`
}
