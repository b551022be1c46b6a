package questionnaire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type Shape string

const (
	ShapeLegacy     Shape = "legacy"
	ShapeStructured Shape = "structured"
)

// Answers is a session's answer document. It is one of LegacyAnswers or
// *StructuredAnswers; ParseAnswers picks the variant and Merge keeps it.
type Answers interface {
	Shape() Shape
	Encode() ([]byte, error)
	sealed()
}

// LegacyAnswers maps a question id to a single scalar answer.
type LegacyAnswers map[string]json.RawMessage

func (LegacyAnswers) Shape() Shape { return ShapeLegacy }
func (LegacyAnswers) sealed()      {}

func (a LegacyAnswers) Encode() ([]byte, error) {
	if a == nil {
		return []byte(`{}`), nil
	}
	return json.Marshal(map[string]json.RawMessage(a))
}

// StructuredAnswers holds one entry per question, each with ordered turns.
// Top-level keys other than "questions" are carried through untouched.
type StructuredAnswers struct {
	Questions []QuestionEntry
	Extra     map[string]json.RawMessage
}

func (*StructuredAnswers) Shape() Shape { return ShapeStructured }
func (*StructuredAnswers) sealed()      {}

func (a *StructuredAnswers) Encode() ([]byte, error) {
	if a == nil {
		return []byte(`{"questions":[]}`), nil
	}
	questions := a.Questions
	if questions == nil {
		questions = []QuestionEntry{}
	}
	return encodeObject(a.Extra, map[string]any{"questions": questions})
}

func (a *StructuredAnswers) Find(questionID string) (int, bool) {
	if a == nil {
		return -1, false
	}
	for i := range a.Questions {
		if a.Questions[i].QuestionID == questionID {
			return i, true
		}
	}
	return -1, false
}

type QuestionEntry struct {
	QuestionID  string
	AxisID      *string
	ContentType *string
	Lang        *string
	Turns       []Turn
	Extra       map[string]json.RawMessage
}

func (q *QuestionEntry) UnmarshalJSON(data []byte) error {
	fields, err := objectFields(data)
	if err != nil {
		return fmt.Errorf("question entry: %w", err)
	}
	var out QuestionEntry
	if err := takeField(fields, "question_id", &out.QuestionID); err != nil {
		return err
	}
	if err := takeField(fields, "axis_id", &out.AxisID); err != nil {
		return err
	}
	if err := takeField(fields, "content_type", &out.ContentType); err != nil {
		return err
	}
	if err := takeField(fields, "lang", &out.Lang); err != nil {
		return err
	}
	if err := takeField(fields, "turns", &out.Turns); err != nil {
		return err
	}
	out.Extra = remaining(fields)
	*q = out
	return nil
}

func (q QuestionEntry) MarshalJSON() ([]byte, error) {
	turns := q.Turns
	if turns == nil {
		turns = []Turn{}
	}
	return encodeObject(q.Extra, map[string]any{
		"question_id":  q.QuestionID,
		"axis_id":      q.AxisID,
		"content_type": q.ContentType,
		"lang":         q.Lang,
		"turns":        turns,
	})
}

// TurnIndex returns the position of the turn with the given index.
func (q *QuestionEntry) TurnIndex(index int) (int, bool) {
	for i := range q.Turns {
		if q.Turns[i].TurnIndex == index {
			return i, true
		}
	}
	return -1, false
}

type Turn struct {
	TurnIndex    int
	QuestionText *string
	AnswerText   string
	Metadata     json.RawMessage
	Extra        map[string]json.RawMessage
}

func (t *Turn) UnmarshalJSON(data []byte) error {
	fields, err := objectFields(data)
	if err != nil {
		return fmt.Errorf("turn: %w", err)
	}
	var out Turn
	if err := takeField(fields, "turn_index", &out.TurnIndex); err != nil {
		return err
	}
	if err := takeField(fields, "question_text", &out.QuestionText); err != nil {
		return err
	}
	if err := takeField(fields, "answer_text", &out.AnswerText); err != nil {
		return err
	}
	if raw, ok := fields["metadata"]; ok {
		out.Metadata = append(json.RawMessage(nil), raw...)
		delete(fields, "metadata")
	}
	out.Extra = remaining(fields)
	*t = out
	return nil
}

func (t Turn) MarshalJSON() ([]byte, error) {
	meta := t.Metadata
	if len(bytes.TrimSpace(meta)) == 0 {
		meta = json.RawMessage(`{}`)
	}
	return encodeObject(t.Extra, map[string]any{
		"turn_index":    t.TurnIndex,
		"question_text": t.QuestionText,
		"answer_text":   t.AnswerText,
		"metadata":      meta,
	})
}

// ParseAnswers decodes a stored answer document. A document whose
// "questions" field is an array is structured; anything else that is an
// object (including empty or null) is legacy.
func ParseAnswers(raw []byte) (Answers, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return LegacyAnswers{}, nil
	}
	fields, err := objectFields(trimmed)
	if err != nil {
		return nil, fmt.Errorf("answers document: %w", err)
	}
	if q, ok := fields["questions"]; ok && isArray(q) {
		var out StructuredAnswers
		if err := takeField(fields, "questions", &out.Questions); err != nil {
			return nil, fmt.Errorf("answers document: %w", err)
		}
		out.Extra = remaining(fields)
		return &out, nil
	}
	return LegacyAnswers(fields), nil
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func objectFields(data []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("expected a JSON object")
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func takeField(fields map[string]json.RawMessage, key string, dst any) error {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	delete(fields, key)
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("field %q: %w", key, err)
	}
	return nil
}

func remaining(fields map[string]json.RawMessage) map[string]json.RawMessage {
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func encodeObject(extra map[string]json.RawMessage, known map[string]any) ([]byte, error) {
	out := make(map[string]json.RawMessage, len(extra)+len(known))
	for k, v := range extra {
		out[k] = v
	}
	for k, v := range known {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", k, err)
		}
		out[k] = b
	}
	return json.Marshal(out)
}
