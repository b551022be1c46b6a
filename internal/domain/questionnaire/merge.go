package questionnaire

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AnswerChange is a single-question edit. A nil or empty Answer deletes.
type AnswerChange struct {
	QuestionID  string
	Answer      *string
	ContentType string
}

func (c AnswerChange) IsDelete() bool {
	return c.Answer == nil || *c.Answer == ""
}

// Merge applies change to doc and returns a new document of the same shape.
// doc is not modified.
func Merge(doc Answers, change AnswerChange) (Answers, error) {
	if strings.TrimSpace(change.QuestionID) == "" {
		return nil, fmt.Errorf("question id is required")
	}
	switch d := doc.(type) {
	case nil:
		return mergeLegacy(nil, change)
	case LegacyAnswers:
		return mergeLegacy(d, change)
	case *StructuredAnswers:
		return mergeStructured(d, change), nil
	default:
		return nil, fmt.Errorf("unsupported answers document %T", doc)
	}
}

func mergeLegacy(doc LegacyAnswers, change AnswerChange) (Answers, error) {
	out := make(LegacyAnswers, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	if change.IsDelete() {
		delete(out, change.QuestionID)
		return out, nil
	}
	raw, err := json.Marshal(*change.Answer)
	if err != nil {
		return nil, err
	}
	out[change.QuestionID] = raw
	return out, nil
}

func mergeStructured(doc *StructuredAnswers, change AnswerChange) Answers {
	out := &StructuredAnswers{Extra: doc.Extra}
	if change.IsDelete() {
		out.Questions = make([]QuestionEntry, 0, len(doc.Questions))
		for _, q := range doc.Questions {
			if q.QuestionID != change.QuestionID {
				out.Questions = append(out.Questions, q)
			}
		}
		return out
	}

	answer := *change.Answer
	out.Questions = make([]QuestionEntry, 0, len(doc.Questions)+1)
	found := false
	for _, q := range doc.Questions {
		if q.QuestionID != change.QuestionID {
			out.Questions = append(out.Questions, q)
			continue
		}
		if found {
			// one entry per question
			continue
		}
		found = true
		out.Questions = append(out.Questions, setFirstTurn(q, answer))
	}
	if !found {
		entry := QuestionEntry{
			QuestionID: change.QuestionID,
			Turns:      []Turn{{TurnIndex: 0, AnswerText: answer}},
		}
		if ct := strings.TrimSpace(change.ContentType); ct != "" {
			entry.ContentType = &ct
		}
		out.Questions = append(out.Questions, entry)
	}
	return out
}

func setFirstTurn(q QuestionEntry, answer string) QuestionEntry {
	turns := make([]Turn, 0, len(q.Turns)+1)
	seen := false
	for _, t := range q.Turns {
		if t.TurnIndex != 0 {
			turns = append(turns, t)
			continue
		}
		if seen {
			continue
		}
		seen = true
		t.AnswerText = answer
		turns = append(turns, t)
	}
	if !seen {
		turns = append(turns, Turn{TurnIndex: 0, AnswerText: answer})
	}
	q.Turns = turns
	return q
}
