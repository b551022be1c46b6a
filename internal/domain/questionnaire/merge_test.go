package questionnaire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func mustParse(t *testing.T, raw string) Answers {
	t.Helper()
	doc, err := ParseAnswers([]byte(raw))
	require.NoError(t, err)
	return doc
}

func mustEncode(t *testing.T, doc Answers) map[string]any {
	t.Helper()
	b, err := doc.Encode()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func TestParseAnswersDetectsShape(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want Shape
	}{
		{"empty", ``, ShapeLegacy},
		{"null", `null`, ShapeLegacy},
		{"empty object", `{}`, ShapeLegacy},
		{"flat map", `{"q1":"yes"}`, ShapeLegacy},
		{"questions not an array", `{"questions":"free text"}`, ShapeLegacy},
		{"structured", `{"questions":[]}`, ShapeStructured},
		{"structured with entries", `{"questions":[{"question_id":"q1","turns":[]}]}`, ShapeStructured},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := mustParse(t, tc.raw)
			require.Equal(t, tc.want, doc.Shape())
		})
	}
}

func TestParseAnswersRejectsNonObjects(t *testing.T) {
	for _, raw := range []string{`[]`, `"x"`, `42`, `{"questions":[1]}`} {
		_, err := ParseAnswers([]byte(raw))
		require.Error(t, err, raw)
	}
}

func TestMergeLegacySetAndDelete(t *testing.T) {
	doc := mustParse(t, `{"q1":"yes"}`)

	added, err := Merge(doc, AnswerChange{QuestionID: "q2", Answer: strPtr("maybe")})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"q1": "yes", "q2": "maybe"}, mustEncode(t, added))

	overwritten, err := Merge(added, AnswerChange{QuestionID: "q1", Answer: strPtr("no")})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"q1": "no", "q2": "maybe"}, mustEncode(t, overwritten))

	deleted, err := Merge(overwritten, AnswerChange{QuestionID: "q2", Answer: strPtr("")})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"q1": "no"}, mustEncode(t, deleted))

	// the input document is untouched
	require.Equal(t, map[string]any{"q1": "yes"}, mustEncode(t, doc))
}

func TestMergeLegacyDeleteMissingIsNoop(t *testing.T) {
	doc := mustParse(t, `{"q1":"yes"}`)
	for i := 0; i < 2; i++ {
		next, err := Merge(doc, AnswerChange{QuestionID: "absent"})
		require.NoError(t, err)
		require.Equal(t, map[string]any{"q1": "yes"}, mustEncode(t, next))
		doc = next
	}
}

func TestMergeLegacyNeverBecomesStructured(t *testing.T) {
	doc := mustParse(t, `{}`)
	var err error
	for _, id := range []string{"q1", "questions", "q2"} {
		doc, err = Merge(doc, AnswerChange{QuestionID: id, Answer: strPtr("v")})
		require.NoError(t, err)
		b, err := doc.Encode()
		require.NoError(t, err)
		reparsed := mustParse(t, string(b))
		require.Equal(t, ShapeLegacy, reparsed.Shape())
	}
}

func TestMergeStructuredCreatesEntry(t *testing.T) {
	doc := mustParse(t, `{"questions":[],"version_tag":"v2"}`)

	next, err := Merge(doc, AnswerChange{QuestionID: "q1", Answer: strPtr("Because of cost"), ContentType: "survey"})
	require.NoError(t, err)
	require.Equal(t, ShapeStructured, next.Shape())

	got := mustEncode(t, next)
	require.Equal(t, "v2", got["version_tag"])
	questions := got["questions"].([]any)
	require.Len(t, questions, 1)
	entry := questions[0].(map[string]any)
	require.Equal(t, "q1", entry["question_id"])
	require.Nil(t, entry["axis_id"])
	require.Nil(t, entry["lang"])
	require.Equal(t, "survey", entry["content_type"])
	turns := entry["turns"].([]any)
	require.Len(t, turns, 1)
	turn := turns[0].(map[string]any)
	require.EqualValues(t, 0, turn["turn_index"])
	require.Equal(t, "Because of cost", turn["answer_text"])
	require.Nil(t, turn["question_text"])
	require.Equal(t, map[string]any{}, turn["metadata"])
}

func TestMergeStructuredReplacesFirstTurnOnly(t *testing.T) {
	doc := mustParse(t, `{"questions":[
		{"question_id":"q1","axis_id":"a1","content_type":"survey","lang":"en","rank":3,
		 "turns":[
			{"turn_index":0,"question_text":"Why?","answer_text":"old","metadata":{"src":"web"}},
			{"turn_index":1,"question_text":"Tell me more","answer_text":"follow-up","metadata":{}}
		 ]},
		{"question_id":"q2","turns":[]}
	]}`)

	next, err := Merge(doc, AnswerChange{QuestionID: "q1", Answer: strPtr("new")})
	require.NoError(t, err)

	s := next.(*StructuredAnswers)
	require.Len(t, s.Questions, 2)
	q1 := s.Questions[0]
	require.Equal(t, "a1", *q1.AxisID)
	require.Equal(t, "en", *q1.Lang)
	require.JSONEq(t, `3`, string(q1.Extra["rank"]))
	require.Len(t, q1.Turns, 2)
	require.Equal(t, "new", q1.Turns[0].AnswerText)
	require.Equal(t, "Why?", *q1.Turns[0].QuestionText)
	require.JSONEq(t, `{"src":"web"}`, string(q1.Turns[0].Metadata))
	require.Equal(t, "follow-up", q1.Turns[1].AnswerText)

	orig := doc.(*StructuredAnswers)
	require.Equal(t, "old", orig.Questions[0].Turns[0].AnswerText)
}

func TestMergeStructuredAppendsMissingFirstTurn(t *testing.T) {
	doc := mustParse(t, `{"questions":[{"question_id":"q1","turns":[{"turn_index":1,"answer_text":"later"}]}]}`)

	next, err := Merge(doc, AnswerChange{QuestionID: "q1", Answer: strPtr("first")})
	require.NoError(t, err)

	q1 := next.(*StructuredAnswers).Questions[0]
	require.Len(t, q1.Turns, 2)
	idx, ok := q1.TurnIndex(0)
	require.True(t, ok)
	require.Equal(t, "first", q1.Turns[idx].AnswerText)
}

func TestMergeStructuredCollapsesDuplicates(t *testing.T) {
	doc := mustParse(t, `{"questions":[
		{"question_id":"q1","turns":[{"turn_index":0,"answer_text":"a"},{"turn_index":0,"answer_text":"b"}]},
		{"question_id":"q1","turns":[{"turn_index":0,"answer_text":"c"}]}
	]}`)

	next, err := Merge(doc, AnswerChange{QuestionID: "q1", Answer: strPtr("z")})
	require.NoError(t, err)

	s := next.(*StructuredAnswers)
	require.Len(t, s.Questions, 1)
	require.Len(t, s.Questions[0].Turns, 1)
	require.Equal(t, "z", s.Questions[0].Turns[0].AnswerText)
}

func TestMergeStructuredDeleteRemovesEntry(t *testing.T) {
	doc := mustParse(t, `{"questions":[
		{"question_id":"q1","turns":[{"turn_index":0,"answer_text":"a"},{"turn_index":1,"answer_text":"b"}]},
		{"question_id":"q2","turns":[{"turn_index":0,"answer_text":"c"}]}
	]}`)

	for _, answer := range []*string{nil, strPtr("")} {
		next, err := Merge(doc, AnswerChange{QuestionID: "q1", Answer: answer})
		require.NoError(t, err)
		s := next.(*StructuredAnswers)
		require.Len(t, s.Questions, 1)
		require.Equal(t, "q2", s.Questions[0].QuestionID)
	}

	empty, err := Merge(mustParse(t, `{"questions":[]}`), AnswerChange{QuestionID: "q9"})
	require.NoError(t, err)
	require.Equal(t, ShapeStructured, empty.Shape())
	require.Equal(t, []any{}, mustEncode(t, empty)["questions"])
}

func TestMergeRequiresQuestionID(t *testing.T) {
	_, err := Merge(LegacyAnswers{}, AnswerChange{QuestionID: "  ", Answer: strPtr("x")})
	require.Error(t, err)
}
