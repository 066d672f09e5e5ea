package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	api "github.com/mind-engage/coursetrack/internal/api/http"
	"github.com/mind-engage/coursetrack/internal/auth"
	authmw "github.com/mind-engage/coursetrack/internal/auth/middleware"
	"github.com/mind-engage/coursetrack/internal/eventlog"
	"github.com/mind-engage/coursetrack/internal/testutil"
)

const secret = "test-secret"

type client struct {
	t   *testing.T
	srv *httptest.Server
}

func newClient(t *testing.T) *client {
	t.Helper()
	s := testutil.NewStack(t)
	r := chi.NewRouter()
	api.Mount(r, api.Services{
		DB:       s.DB,
		Loader:   s.Loader,
		Catalog:  s.Catalog,
		Tracker:  s.Tracker,
		Engine:   s.Engine,
		Events:   eventlog.NewRepo(s.DB),
		Verifier: authmw.NewVerifier(secret),
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &client{t: t, srv: srv}
}

func token(t *testing.T, a auth.Actor) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, &authmw.Claims{
		Role: string(a.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

// do sends a request as actor (zero actor means no token) and decodes the
// JSON response into out when out is non-nil.
func (c *client) do(actor auth.Actor, method, path string, body any, out any) int {
	c.t.Helper()
	var rdr *bytes.Reader
	switch b := body.(type) {
	case nil:
		rdr = bytes.NewReader(nil)
	case string:
		rdr = bytes.NewReader([]byte(b))
	default:
		buf, _ := json.Marshal(b)
		rdr = bytes.NewReader(buf)
	}
	req, _ := http.NewRequest(method, c.srv.URL+path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if actor.ID != "" {
		req.Header.Set("Authorization", "Bearer "+token(c.t, actor))
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		c.t.Fatal(err)
	}
	defer res.Body.Close()
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			c.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return res.StatusCode
}

type errEnvelope struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
	Enrollment struct {
		ID string `json:"id"`
	} `json:"enrollment"`
}

func TestHealth(t *testing.T) {
	c := newClient(t)
	if code := c.do(auth.Actor{}, "GET", "/healthz", nil, nil); code != 200 {
		t.Fatalf("healthz %d", code)
	}
	if code := c.do(auth.Actor{}, "GET", "/readyz", nil, nil); code != 200 {
		t.Fatalf("readyz %d", code)
	}
}

func TestAuthAndRBAC(t *testing.T) {
	c := newClient(t)
	if code := c.do(auth.Actor{}, "GET", "/courses/"+testutil.CourseID, nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", code)
	}
	if code := c.do(testutil.Learner, "PUT", "/courses", testutil.SampleCourse(), nil); code != http.StatusForbidden {
		t.Fatalf("learner import: %d", code)
	}
	if code := c.do(testutil.Learner, "GET", "/events", nil, nil); code != http.StatusForbidden {
		t.Fatalf("learner events: %d", code)
	}
	if code := c.do(testutil.Instructor, "POST", "/quizzes/"+testutil.QuizID+"/attempts", map[string]any{}, nil); code != http.StatusForbidden {
		t.Fatalf("instructor submit: %d", code)
	}
}

func TestCourseEndpoints(t *testing.T) {
	c := newClient(t)

	var raw map[string]any
	if code := c.do(testutil.Learner, "GET", "/courses/"+testutil.CourseID, nil, &raw); code != 200 {
		t.Fatalf("get course: %d", code)
	}
	b, _ := json.Marshal(raw)
	if strings.Contains(string(b), `"correct_answer":`) {
		t.Fatalf("learner tree leaked answers: %s", b)
	}
	raw = nil
	if code := c.do(testutil.Instructor, "GET", "/courses/"+testutil.CourseID, nil, &raw); code != 200 {
		t.Fatalf("instructor get course: %d", code)
	}
	if b, _ = json.Marshal(raw); !strings.Contains(string(b), `"correct_answer":"Mitochondria"`) {
		t.Fatalf("instructor tree lacks answers: %s", b)
	}

	var env errEnvelope
	if code := c.do(testutil.Learner, "GET", "/courses/missing", nil, &env); code != 404 || env.Error.Kind != "not_found" {
		t.Fatalf("missing course: %d %+v", code, env)
	}

	bad := testutil.SampleCourse()
	bad.Modules[0].Lessons[1].Quizzes[0].PassingScore = 150
	env = errEnvelope{}
	if code := c.do(testutil.Instructor, "PUT", "/courses", bad, &env); code != 400 || env.Error.Kind != "invalid_input" {
		t.Fatalf("bad import: %d %+v", code, env)
	}
	if code := c.do(testutil.Instructor, "PUT", "/courses", testutil.SampleCourse(), nil); code != 200 {
		t.Fatalf("reimport: %d", code)
	}
}

func TestLearnerFlow(t *testing.T) {
	c := newClient(t)

	var e struct {
		ID       string `json:"id"`
		Progress int    `json:"progress"`
	}
	if code := c.do(testutil.Learner, "POST", "/enrollments", map[string]string{"course_id": testutil.CourseID}, &e); code != 201 {
		t.Fatalf("enroll: %d", code)
	}
	var env errEnvelope
	if code := c.do(testutil.Learner, "POST", "/enrollments", map[string]string{"course_id": testutil.CourseID}, &env); code != 409 {
		t.Fatalf("re-enroll: %d", code)
	}
	if env.Error.Kind != "conflict" || env.Enrollment.ID != e.ID {
		t.Fatalf("re-enroll body %+v", env)
	}

	env = errEnvelope{}
	if code := c.do(testutil.Learner, "POST", "/enrollments", map[string]string{}, &env); code != 400 || !strings.Contains(env.Error.Message, "course_id") {
		t.Fatalf("missing course_id: %d %+v", code, env)
	}

	var done struct {
		Progress int `json:"progress"`
	}
	path := "/enrollments/" + e.ID + "/lessons/" + testutil.Lesson1
	if code := c.do(testutil.Learner, "POST", path+"/visit", nil, nil); code != 200 {
		t.Fatalf("visit: %d", code)
	}
	if code := c.do(testutil.Learner, "POST", path+"/complete", nil, &done); code != 200 || done.Progress != 33 {
		t.Fatalf("complete: %d %+v", code, done)
	}
	if code := c.do(testutil.Learner2, "POST", path+"/complete", nil, nil); code != http.StatusForbidden {
		t.Fatalf("other learner complete: %d", code)
	}

	sub := `{"enrollment_id":"` + e.ID + `","time_spent":90,"answers":[
		{"question_id":"q-choice","value":"b"},
		{"question_id":"q-bool","value":true},
		{"question_id":"q-text","value":"nucleus"}]}`
	var att struct {
		ID      string `json:"id"`
		Score   int    `json:"score"`
		Passed  bool   `json:"passed"`
		Answers []map[string]any
	}
	if code := c.do(testutil.Learner, "POST", "/quizzes/"+testutil.QuizID+"/attempts", sub, &att); code != 201 {
		t.Fatalf("submit: %d", code)
	}
	if att.Score != 67 || att.Passed || len(att.Answers) != 3 {
		t.Fatalf("attempt %+v", att)
	}
	if _, leaked := att.Answers[0]["correct_answer"]; leaked {
		t.Fatal("learner submit response leaked answers")
	}

	env = errEnvelope{}
	neg := `{"enrollment_id":"` + e.ID + `","time_spent":-5,"answers":[]}`
	if code := c.do(testutil.Learner, "POST", "/quizzes/"+testutil.QuizID+"/attempts", neg, &env); code != 400 || env.Error.Kind != "invalid_input" {
		t.Fatalf("negative time: %d %+v", code, env)
	}

	var rep struct {
		Progress int    `json:"progress"`
		Status   string `json:"status"`
		Modules  []any  `json:"modules"`
	}
	if code := c.do(testutil.Learner, "GET", "/enrollments/"+e.ID+"/progress", nil, &rep); code != 200 || rep.Progress != 33 || len(rep.Modules) != 2 {
		t.Fatalf("progress: %+v", rep)
	}

	var list []map[string]any
	if code := c.do(testutil.Learner, "GET", "/enrollments/"+e.ID+"/attempts", nil, &list); code != 200 || len(list) != 1 {
		t.Fatalf("attempts: %d %v", len(list), list)
	}
	var one map[string]any
	if code := c.do(testutil.Instructor, "GET", "/attempts/"+att.ID, nil, &one); code != 200 {
		t.Fatalf("instructor attempt: %d", code)
	}
	answers, _ := one["answers"].([]any)
	first, _ := answers[0].(map[string]any)
	if first["correct_answer"] != "b" {
		t.Fatalf("instructor view lacks answers: %v", one)
	}

	var views []map[string]any
	if code := c.do(testutil.Learner, "GET", "/enrollments", nil, &views); code != 200 || len(views) != 1 {
		t.Fatalf("list enrollments: %d", len(views))
	}

	env = errEnvelope{}
	if code := c.do(testutil.Admin, "DELETE", "/courses/"+testutil.CourseID, nil, &env); code != 409 {
		t.Fatalf("delete enrolled course: %d %+v", code, env)
	}

	var events []eventlog.Event
	if code := c.do(testutil.Admin, "GET", "/events?limit=500", nil, &events); code != 200 || len(events) == 0 {
		t.Fatalf("events: %d", len(events))
	}
	seen := map[string]bool{}
	for _, ev := range events {
		seen[ev.Type] = true
	}
	for _, typ := range []string{eventlog.TypeCourseImported, eventlog.TypeEnrollmentCreated, eventlog.TypeLessonCompleted, eventlog.TypeAttemptSubmitted} {
		if !seen[typ] {
			t.Errorf("missing %s event", typ)
		}
	}
	if code := c.do(testutil.Admin, "GET", "/events?after=-1", nil, nil); code != 400 {
		t.Fatalf("bad after: %d", code)
	}
}

func TestCourseETag(t *testing.T) {
	c := newClient(t)
	get := func(actor auth.Actor, etag string) *http.Response {
		req, _ := http.NewRequest("GET", c.srv.URL+"/courses/"+testutil.CourseID, nil)
		req.Header.Set("Authorization", "Bearer "+token(t, actor))
		if etag != "" {
			req.Header.Set("If-None-Match", etag)
		}
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		res.Body.Close()
		return res
	}
	first := get(testutil.Learner, "")
	etag := first.Header.Get("ETag")
	if first.StatusCode != 200 || etag == "" {
		t.Fatalf("first: %d etag=%q", first.StatusCode, etag)
	}
	if res := get(testutil.Learner, etag); res.StatusCode != http.StatusNotModified {
		t.Fatalf("revalidate: %d", res.StatusCode)
	}
	if res := get(testutil.Instructor, etag); res.StatusCode != 200 || res.Header.Get("ETag") == etag {
		t.Fatalf("instructor view shares learner etag: %d", res.StatusCode)
	}
}
