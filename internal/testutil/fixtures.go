// Package testutil holds course fixtures and a fully wired service stack
// on an in-memory database for package tests.
package testutil

import (
	"github.com/mind-engage/coursetrack/internal/auth"
	"github.com/mind-engage/coursetrack/internal/course"
)

const (
	CourseID      = "course-1"
	OtherCourseID = "course-2"

	Lesson1        = "lesson-1"
	Lesson2        = "lesson-2"
	OptionalLesson = "lesson-3"
	OtherLesson    = "other-lesson"

	QuizID         = "quiz-1"
	InactiveQuizID = "quiz-off"
	OtherQuizID    = "other-quiz"

	QChoice = "q-choice"
	QBool   = "q-bool"
	QText   = "q-text"
)

var (
	Learner    = auth.Actor{ID: "learner-1", Role: auth.RoleLearner}
	Learner2   = auth.Actor{ID: "learner-2", Role: auth.RoleLearner}
	Instructor = auth.Actor{ID: "instructor-1", Role: auth.RoleInstructor}
	Admin      = auth.Actor{ID: "admin-1", Role: auth.RoleAdmin}
)

// SampleCourse has two required lessons, one optional preview lesson, an
// active three-question quiz on lesson 2 (pass mark 70) and an inactive
// course-level quiz. Requirements: 2 lessons + 1 quiz.
func SampleCourse() course.Course {
	return course.Course{
		ID:          CourseID,
		Title:       "Cell Biology",
		Description: "Intro course",
		Modules: []course.Module{
			{
				ID:    "mod-1",
				Title: "Basics",
				Lessons: []course.Lesson{
					{
						ID: Lesson1, Title: "What is a cell", ContentType: course.ContentVideo, IsRequired: true,
						Resources: []course.Resource{
							{ID: "res-link", Title: "Reading", Type: course.ResourceLink, URL: "https://example.org/cells"},
							{ID: "res-blob", Title: "Slides", Type: course.ResourceDocument, StorageKey: "slides/cells.pdf"},
						},
					},
					{
						ID: Lesson2, Title: "Organelles", IsRequired: true,
						Quizzes: []course.Quiz{Quiz()},
					},
				},
			},
			{
				ID:    "mod-2",
				Title: "Extras",
				Lessons: []course.Lesson{
					{ID: OptionalLesson, Title: "History of microscopy", IsPreview: true},
				},
			},
		},
		Quizzes: []course.Quiz{
			{
				ID: InactiveQuizID, Title: "Retired quiz", PassingScore: 50, IsActive: false,
				Questions: []course.Question{
					{ID: "q-off", Prompt: "Old?", AnswerType: "boolean", CorrectAnswer: "true"},
				},
			},
		},
	}
}

func Quiz() course.Quiz {
	limit := 10
	return course.Quiz{
		ID: QuizID, Title: "Organelles check", PassingScore: 70, TimeLimit: &limit, IsActive: true,
		Questions: []course.Question{
			{
				ID: QChoice, Prompt: "Which organelle makes proteins?", AnswerType: "single_choice",
				Options:       []course.Option{{ID: "a", Text: "Golgi"}, {ID: "b", Text: "Ribosome"}, {ID: "c", Text: "Vacuole"}},
				CorrectAnswer: "b",
			},
			{ID: QBool, Prompt: "Plant cells have walls.", AnswerType: "boolean", CorrectAnswer: "true"},
			{ID: QText, Prompt: "Powerhouse of the cell?", AnswerType: "free_text", CorrectAnswer: "Mitochondria"},
		},
	}
}

// OtherCourse is an unrelated course for cross-course checks.
func OtherCourse() course.Course {
	return course.Course{
		ID:    OtherCourseID,
		Title: "Chemistry",
		Modules: []course.Module{{
			ID: "other-mod", Title: "Atoms",
			Lessons: []course.Lesson{{
				ID: OtherLesson, Title: "Protons", IsRequired: true,
				Quizzes: []course.Quiz{{
					ID: OtherQuizID, Title: "Atoms quiz", PassingScore: 50, IsActive: true,
					Questions: []course.Question{{ID: "other-q", Prompt: "Protons are positive.", AnswerType: "boolean", CorrectAnswer: "true"}},
				}},
			}},
		}},
	}
}
