package models

import (
	"strconv"
	"time"
)

// MaxPreviewExercises is how many exercises a workout card lists.
const MaxPreviewExercises = 3

// Difficulty is the backend's workout difficulty rating.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known ratings.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Color returns the marker colour used for exercises of this difficulty.
func (d Difficulty) Color() string {
	switch d {
	case DifficultyEasy:
		return "green"
	case DifficultyMedium:
		return "orange"
	case DifficultyHard:
		return "red"
	default:
		return "gray"
	}
}

// User is the profile of the signed-in account as returned by the backend.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Username    string    `json:"username,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	FitnessGoal string    `json:"fitness_goal,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Name returns the best available label for greeting the user.
func (u *User) Name() string {
	if u == nil {
		return ""
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

// ExerciseSet is one tracked set of an exercise.
type ExerciseSet struct {
	ID        string   `json:"id"`
	SetNumber int      `json:"set_number"`
	Reps      *int     `json:"reps,omitempty"`
	WeightKg  *float64 `json:"weight_kg,omitempty"`
	Completed bool     `json:"completed"`
}

// Exercise is a movement within a workout with its target and tracked sets.
type Exercise struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	TargetSets int           `json:"target_sets"`
	TargetReps string        `json:"target_reps"`
	Equipment  string        `json:"equipment,omitempty"`
	Sets       []ExerciseSet `json:"exercise_sets,omitempty"`
}

// Complete reports whether the exercise has sets and all of them are done.
func (e Exercise) Complete() bool {
	if len(e.Sets) == 0 {
		return false
	}
	for _, s := range e.Sets {
		if !s.Completed {
			return false
		}
	}
	return true
}

// CompletedSets counts the completed sets.
func (e Exercise) CompletedSets() int {
	n := 0
	for _, s := range e.Sets {
		if s.Completed {
			n++
		}
	}
	return n
}

// Target renders the "3x8-12" style target, falling back to zeros.
func (e Exercise) Target() string {
	reps := e.TargetReps
	if reps == "" {
		reps = "0"
	}
	return strconv.Itoa(e.TargetSets) + "x" + reps
}

// Workout is a planned or completed session of exercises.
type Workout struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Duration    string     `json:"duration"`
	Difficulty  Difficulty `json:"difficulty"`
	IsFavorite  bool       `json:"is_favorite"`
	PartnerName string     `json:"partner_name,omitempty"`
	ScheduledAt time.Time  `json:"scheduled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at,omitempty"`
	Exercises   []Exercise `json:"exercises"`
}

// Preview returns the exercises shown on a workout card.
func (w Workout) Preview() []Exercise {
	if len(w.Exercises) <= MaxPreviewExercises {
		return w.Exercises
	}
	return w.Exercises[:MaxPreviewExercises]
}

// HiddenExercises is the number of exercises the card preview truncates.
func (w Workout) HiddenExercises() int {
	if n := len(w.Exercises) - MaxPreviewExercises; n > 0 {
		return n
	}
	return 0
}

// MarkerColor is green for a finished exercise, otherwise the difficulty colour.
func (w Workout) MarkerColor(e Exercise) string {
	if e.Complete() {
		return "green"
	}
	return w.Difficulty.Color()
}

// CompletedSets counts completed sets across all exercises.
func (w Workout) CompletedSets() int {
	n := 0
	for _, e := range w.Exercises {
		n += e.CompletedSets()
	}
	return n
}

// FindSet locates a set by exercise and set ID.
func (w *Workout) FindSet(exerciseID, setID string) (*ExerciseSet, bool) {
	for i := range w.Exercises {
		if w.Exercises[i].ID != exerciseID {
			continue
		}
		for j := range w.Exercises[i].Sets {
			if w.Exercises[i].Sets[j].ID == setID {
				return &w.Exercises[i].Sets[j], true
			}
		}
	}
	return nil, false
}

// Partner is another user the current user trains with.
type Partner struct {
	ID             string `json:"id"`
	DisplayName    string `json:"display_name"`
	AvatarURL      string `json:"avatar_url,omitempty"`
	SharedWorkouts int    `json:"shared_workouts"`
}

// WeekStats summarises one user's training for the current week.
type WeekStats struct {
	WorkoutsCompleted int     `json:"workouts_completed"`
	SetsCompleted     int     `json:"sets_completed"`
	TotalVolumeKg     float64 `json:"total_volume_kg"`
}

// Comparison is the backend's side-by-side view of the user and a partner.
type Comparison struct {
	Partner Partner   `json:"partner"`
	You     WeekStats `json:"you"`
	Them    WeekStats `json:"them"`
}

// GenerateRequest parameters for the backend's workout generator.
type GenerateRequest struct {
	Focus       string     `json:"focus"`
	Difficulty  Difficulty `json:"difficulty"`
	DurationMin int        `json:"duration_min"`
	Equipment   []string   `json:"equipment,omitempty"`
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	DisplayName string `json:"display_name"`
	Username    string `json:"username"`
	FitnessGoal string `json:"fitness_goal"`
}

// SignUpRequest is the payload for account creation.
type SignUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}
