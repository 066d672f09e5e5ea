package course

import "encoding/json"

// Lesson content types.
const (
	ContentText        = "TEXT"
	ContentVideo       = "VIDEO"
	ContentAudio       = "AUDIO"
	ContentDocument    = "DOCUMENT"
	ContentInteractive = "INTERACTIVE"
)

// Resource types.
const (
	ResourceDocument = "document"
	ResourceLink     = "link"
	ResourceVideo    = "video"
	ResourceAudio    = "audio"
	ResourceImage    = "image"
)

type Course struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Modules     []Module `json:"modules"`
	Quizzes     []Quiz   `json:"quizzes"` // course-bound quizzes
}

type Module struct {
	ID       string   `json:"id"`
	CourseID string   `json:"course_id"`
	Title    string   `json:"title"`
	Position int      `json:"position"`
	Lessons  []Lesson `json:"lessons"`
}

type Lesson struct {
	ID          string     `json:"id"`
	ModuleID    string     `json:"module_id"`
	Title       string     `json:"title"`
	ContentType string     `json:"content_type"`
	Position    int        `json:"position"`
	IsRequired  bool       `json:"is_required"`
	IsPreview   bool       `json:"is_preview"`
	Resources   []Resource `json:"resources"`
	Quizzes     []Quiz     `json:"quizzes"`
}

// UnmarshalJSON treats an absent is_required as true.
func (l *Lesson) UnmarshalJSON(b []byte) error {
	type plain Lesson
	p := plain{IsRequired: true}
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*l = Lesson(p)
	return nil
}

type Resource struct {
	ID         string `json:"id"`
	LessonID   string `json:"lesson_id"`
	Title      string `json:"title"`
	Type       string `json:"type"`
	URL        string `json:"url"`
	StorageKey string `json:"storage_key,omitempty"`
	Position   int    `json:"position"`
}

type Quiz struct {
	ID                 string     `json:"id"`
	CourseID           string     `json:"course_id"`
	LessonID           string     `json:"lesson_id,omitempty"`
	Title              string     `json:"title"`
	PassingScore       int        `json:"passing_score"`
	TimeLimit          *int       `json:"time_limit"` // minutes, advisory
	ShowCorrectAnswers bool       `json:"show_correct_answers"`
	IsActive           bool       `json:"is_active"`
	Position           int        `json:"position"`
	Questions          []Question `json:"questions"`
}

// UnmarshalJSON treats an absent is_active as true.
func (q *Quiz) UnmarshalJSON(b []byte) error {
	type plain Quiz
	p := plain{IsActive: true}
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*q = Quiz(p)
	return nil
}

type Question struct {
	ID            string   `json:"id"`
	QuizID        string   `json:"quiz_id"`
	Prompt        string   `json:"prompt"`
	AnswerType    string   `json:"answer_type"`
	Options       []Option `json:"options"`
	CorrectAnswer string   `json:"correct_answer,omitempty"`
	Position      int      `json:"position"`
}

type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// AllQuizzes returns course-bound quizzes followed by lesson-bound ones in
// module and lesson order.
func (c *Course) AllQuizzes() []*Quiz {
	out := make([]*Quiz, 0, len(c.Quizzes))
	for i := range c.Quizzes {
		out = append(out, &c.Quizzes[i])
	}
	for mi := range c.Modules {
		for li := range c.Modules[mi].Lessons {
			l := &c.Modules[mi].Lessons[li]
			for qi := range l.Quizzes {
				out = append(out, &l.Quizzes[qi])
			}
		}
	}
	return out
}

// FindLesson returns the lesson with id, or nil.
func (c *Course) FindLesson(id string) *Lesson {
	for mi := range c.Modules {
		for li := range c.Modules[mi].Lessons {
			if c.Modules[mi].Lessons[li].ID == id {
				return &c.Modules[mi].Lessons[li]
			}
		}
	}
	return nil
}

// RedactAnswers strips correct answers from every question in the tree.
func (c *Course) RedactAnswers() {
	for _, q := range c.AllQuizzes() {
		q.RedactAnswers()
	}
}

func (q *Quiz) RedactAnswers() {
	for i := range q.Questions {
		q.Questions[i].CorrectAnswer = ""
	}
}

// normalize replaces nil slices so the tree always renders arrays.
func (c *Course) normalize() {
	if c.Modules == nil {
		c.Modules = []Module{}
	}
	if c.Quizzes == nil {
		c.Quizzes = []Quiz{}
	}
	for i := range c.Quizzes {
		c.Quizzes[i].normalize()
	}
	for mi := range c.Modules {
		m := &c.Modules[mi]
		if m.Lessons == nil {
			m.Lessons = []Lesson{}
		}
		for li := range m.Lessons {
			l := &m.Lessons[li]
			if l.Resources == nil {
				l.Resources = []Resource{}
			}
			if l.Quizzes == nil {
				l.Quizzes = []Quiz{}
			}
			for qi := range l.Quizzes {
				l.Quizzes[qi].normalize()
			}
		}
	}
}

func (q *Quiz) normalize() {
	if q.Questions == nil {
		q.Questions = []Question{}
	}
	for i := range q.Questions {
		if q.Questions[i].Options == nil {
			q.Questions[i].Options = []Option{}
		}
	}
}
