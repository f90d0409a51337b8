package models

import (
	"encoding/json"
	"testing"
)

// TestExerciseComplete verifies an exercise only counts as complete when it
// has sets and every one of them is done.
func TestExerciseComplete(t *testing.T) {
	tests := []struct {
		name string
		sets []ExerciseSet
		want bool
	}{
		{"no sets", nil, false},
		{"all done", []ExerciseSet{{Completed: true}, {Completed: true}}, true},
		{"one pending", []ExerciseSet{{Completed: true}, {Completed: false}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Exercise{Sets: tt.sets}
			if got := e.Complete(); got != tt.want {
				t.Errorf("Complete() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestWorkoutPreviewTruncates verifies cards show at most three exercises.
func TestWorkoutPreviewTruncates(t *testing.T) {
	w := Workout{Exercises: []Exercise{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}, {Name: "e"}}}
	if got := len(w.Preview()); got != 3 {
		t.Fatalf("len(Preview()) = %d, want 3", got)
	}
	if w.Preview()[2].Name != "c" {
		t.Errorf("Preview()[2] = %q, want c", w.Preview()[2].Name)
	}
	if got := w.HiddenExercises(); got != 2 {
		t.Errorf("HiddenExercises() = %d, want 2", got)
	}

	short := Workout{Exercises: []Exercise{{Name: "a"}}}
	if got := len(short.Preview()); got != 1 {
		t.Errorf("len(Preview()) = %d, want 1", got)
	}
	if got := short.HiddenExercises(); got != 0 {
		t.Errorf("HiddenExercises() = %d, want 0", got)
	}
}

// TestMarkerColor verifies finished exercises are green and the rest use the
// workout difficulty colour.
func TestMarkerColor(t *testing.T) {
	w := Workout{Difficulty: DifficultyHard}
	done := Exercise{Sets: []ExerciseSet{{Completed: true}}}
	pending := Exercise{Sets: []ExerciseSet{{Completed: false}}}

	if got := w.MarkerColor(done); got != "green" {
		t.Errorf("MarkerColor(done) = %q, want green", got)
	}
	if got := w.MarkerColor(pending); got != "red" {
		t.Errorf("MarkerColor(pending) = %q, want red", got)
	}
	if got := Difficulty("extreme").Color(); got != "gray" {
		t.Errorf("unknown difficulty colour = %q, want gray", got)
	}
}

// TestExerciseTarget verifies the sets x reps label and its zero fallbacks.
func TestExerciseTarget(t *testing.T) {
	if got := (Exercise{TargetSets: 3, TargetReps: "8-12"}).Target(); got != "3x8-12" {
		t.Errorf("Target() = %q, want 3x8-12", got)
	}
	if got := (Exercise{}).Target(); got != "0x0" {
		t.Errorf("Target() = %q, want 0x0", got)
	}
}

// TestWorkoutDecodeBackendShape verifies the backend's snake_case payload maps
// onto the workout, exercise and set fields.
func TestWorkoutDecodeBackendShape(t *testing.T) {
	payload := `{
		"id": "w1",
		"title": "Upper Body",
		"duration": "45 min",
		"difficulty": "medium",
		"is_favorite": true,
		"exercises": [{
			"id": "e1",
			"name": "Bench Press",
			"target_sets": 3,
			"target_reps": "8-10",
			"equipment": "Barbell",
			"exercise_sets": [{"id": "s1", "set_number": 1, "completed": true}]
		}]
	}`

	var w Workout
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !w.IsFavorite {
		t.Error("IsFavorite = false, want true")
	}
	if w.Difficulty != DifficultyMedium {
		t.Errorf("Difficulty = %q, want medium", w.Difficulty)
	}
	if len(w.Exercises) != 1 || w.Exercises[0].TargetSets != 3 {
		t.Fatalf("exercises = %+v", w.Exercises)
	}
	if !w.Exercises[0].Complete() {
		t.Error("exercise should be complete")
	}
	set, ok := w.FindSet("e1", "s1")
	if !ok || set.SetNumber != 1 {
		t.Errorf("FindSet = %+v, %v", set, ok)
	}
}

// TestUserName verifies the greeting label falls back from display name to
// username to email.
func TestUserName(t *testing.T) {
	var nilUser *User
	if got := nilUser.Name(); got != "" {
		t.Errorf("nil Name() = %q", got)
	}
	u := &User{Email: "a@example.com"}
	if got := u.Name(); got != "a@example.com" {
		t.Errorf("Name() = %q", got)
	}
	u.Username = "alice"
	if got := u.Name(); got != "alice" {
		t.Errorf("Name() = %q", got)
	}
	u.DisplayName = "Alice"
	if got := u.Name(); got != "Alice" {
		t.Errorf("Name() = %q", got)
	}
}
