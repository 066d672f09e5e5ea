package course

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/mind-engage/coursetrack/internal/apperr"
	"github.com/mind-engage/coursetrack/internal/grading"
)

var contentTypes = map[string]bool{
	ContentText: true, ContentVideo: true, ContentAudio: true,
	ContentDocument: true, ContentInteractive: true,
}

var resourceTypes = map[string]bool{
	ResourceDocument: true, ResourceLink: true, ResourceVideo: true,
	ResourceAudio: true, ResourceImage: true,
}

// Prepare validates an imported tree in place. Blank ids are generated,
// parent ids are filled in and positions are renumbered from 1 in the
// order given (explicit positions are honored when sorting).
func Prepare(c *Course) error {
	c.normalize()
	c.Title = strings.TrimSpace(c.Title)
	if c.Title == "" {
		return apperr.Invalid("course title is required")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	seen := map[string]string{c.ID: "course"}
	claim := func(kind, id string) error {
		if prev, ok := seen[id]; ok {
			return apperr.Invalid("duplicate id %q (%s and %s)", id, prev, kind)
		}
		seen[id] = kind
		return nil
	}

	sort.SliceStable(c.Modules, func(i, j int) bool { return c.Modules[i].Position < c.Modules[j].Position })
	for mi := range c.Modules {
		m := &c.Modules[mi]
		if strings.TrimSpace(m.Title) == "" {
			return apperr.Invalid("module %d: title is required", mi+1)
		}
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if err := claim("module", m.ID); err != nil {
			return err
		}
		m.CourseID = c.ID
		m.Position = mi + 1

		sort.SliceStable(m.Lessons, func(i, j int) bool { return m.Lessons[i].Position < m.Lessons[j].Position })
		for li := range m.Lessons {
			l := &m.Lessons[li]
			if err := prepareLesson(c.ID, m.ID, li+1, l, claim); err != nil {
				return err
			}
		}
	}

	sort.SliceStable(c.Quizzes, func(i, j int) bool { return c.Quizzes[i].Position < c.Quizzes[j].Position })
	for qi := range c.Quizzes {
		q := &c.Quizzes[qi]
		q.LessonID = ""
		if err := prepareQuiz(c.ID, qi+1, q, claim); err != nil {
			return err
		}
	}
	return nil
}

func prepareLesson(courseID, moduleID string, pos int, l *Lesson, claim func(kind, id string) error) error {
	if strings.TrimSpace(l.Title) == "" {
		return apperr.Invalid("lesson %q: title is required", l.ID)
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if err := claim("lesson", l.ID); err != nil {
		return err
	}
	l.ModuleID = moduleID
	l.Position = pos
	l.ContentType = strings.ToUpper(strings.TrimSpace(l.ContentType))
	if l.ContentType == "" {
		l.ContentType = ContentText
	}
	if !contentTypes[l.ContentType] {
		return apperr.Invalid("lesson %q: unknown content type %q", l.ID, l.ContentType)
	}

	for ri := range l.Resources {
		r := &l.Resources[ri]
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if err := claim("resource", r.ID); err != nil {
			return err
		}
		r.LessonID = l.ID
		r.Position = ri + 1
		r.Type = strings.ToLower(strings.TrimSpace(r.Type))
		if !resourceTypes[r.Type] {
			return apperr.Invalid("resource %q: unknown type %q", r.ID, r.Type)
		}
		if strings.TrimSpace(r.Title) == "" {
			return apperr.Invalid("resource %q: title is required", r.ID)
		}
		if r.URL == "" && r.StorageKey == "" {
			return apperr.Invalid("resource %q: url or storage_key is required", r.ID)
		}
	}

	sort.SliceStable(l.Quizzes, func(i, j int) bool { return l.Quizzes[i].Position < l.Quizzes[j].Position })
	for qi := range l.Quizzes {
		q := &l.Quizzes[qi]
		q.LessonID = l.ID
		if err := prepareQuiz(courseID, qi+1, q, claim); err != nil {
			return err
		}
	}
	return nil
}

func prepareQuiz(courseID string, pos int, q *Quiz, claim func(kind, id string) error) error {
	if strings.TrimSpace(q.Title) == "" {
		return apperr.Invalid("quiz %q: title is required", q.ID)
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if err := claim("quiz", q.ID); err != nil {
		return err
	}
	q.CourseID = courseID
	q.Position = pos
	if q.PassingScore < 0 || q.PassingScore > 100 {
		return apperr.Invalid("quiz %q: passing score must be within 0..100", q.ID)
	}
	if q.TimeLimit != nil && *q.TimeLimit <= 0 {
		return apperr.Invalid("quiz %q: time limit must be positive", q.ID)
	}
	// an active quiz counts toward completion, so it must be passable
	if q.IsActive && len(q.Questions) == 0 {
		return apperr.Invalid("quiz %q: an active quiz needs at least one question", q.ID)
	}
	for i := range q.Questions {
		qs := &q.Questions[i]
		if qs.ID == "" {
			qs.ID = uuid.NewString()
		}
		if err := claim("question", qs.ID); err != nil {
			return err
		}
		qs.QuizID = q.ID
		qs.Position = i + 1
		if err := prepareQuestion(qs); err != nil {
			return err
		}
	}
	return nil
}

func prepareQuestion(q *Question) error {
	if strings.TrimSpace(q.Prompt) == "" {
		return apperr.Invalid("question %q: prompt is required", q.ID)
	}
	q.AnswerType = grading.NormalizeType(q.AnswerType)
	switch q.AnswerType {
	case grading.TypeSingleChoice:
		if len(q.Options) < 2 {
			return apperr.Invalid("question %q: single choice needs at least two options", q.ID)
		}
		ids := map[string]bool{}
		for _, o := range q.Options {
			if o.ID == "" {
				return apperr.Invalid("question %q: option id is required", q.ID)
			}
			if ids[o.ID] {
				return apperr.Invalid("question %q: duplicate option %q", q.ID, o.ID)
			}
			ids[o.ID] = true
		}
		if !ids[q.CorrectAnswer] {
			return apperr.Invalid("question %q: correct answer must be one of the option ids", q.ID)
		}
	case grading.TypeBoolean:
		b, ok := grading.ParseBool(q.CorrectAnswer)
		if !ok {
			return apperr.Invalid("question %q: boolean correct answer must be true or false", q.ID)
		}
		q.CorrectAnswer = grading.CanonicalBool(b)
		q.Options = []Option{}
	case grading.TypeFreeText:
		if strings.TrimSpace(q.CorrectAnswer) == "" {
			return apperr.Invalid("question %q: free text correct answer is required", q.ID)
		}
		q.Options = []Option{}
	default:
		return apperr.Invalid("question %q: unsupported answer type %q", q.ID, q.AnswerType)
	}
	return nil
}
