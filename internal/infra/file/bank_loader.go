// Package file reads question banks from JSON files and keeps the device's
// local state on disk.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"trivia-match/internal/domain"
)

// DefaultBankID names a bank file that is a bare question array.
const DefaultBankID = "default"

// BankLoader reads banks from path. A directory serves {bankID}.json; a
// single file serves the bank it contains.
type BankLoader struct {
	path string
}

func NewBankLoader(path string) *BankLoader {
	return &BankLoader{path: path}
}

func (l *BankLoader) LoadBank(_ context.Context, bankID string) (domain.Bank, error) {
	info, err := os.Stat(l.path)
	if err != nil {
		return domain.Bank{}, fmt.Errorf("%w: %v", domain.ErrQuestionBankNotFound, err)
	}

	name := l.path
	if info.IsDir() {
		name = filepath.Join(l.path, bankID+".json")
	}
	bank, err := ReadBank(name)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Bank{}, fmt.Errorf("%w: %s", domain.ErrQuestionBankNotFound, bankID)
	}
	if err != nil {
		return domain.Bank{}, err
	}
	if !info.IsDir() && bank.ID != bankID {
		return domain.Bank{}, fmt.Errorf("%w: %s (file holds %s)", domain.ErrQuestionBankNotFound, bankID, bank.ID)
	}
	if bank.ID == "" {
		bank.ID = bankID
	}
	return bank, nil
}

// ReadBank decodes either {"id": ..., "questions": [...]} or a bare array
// of questions, which becomes the default bank.
func ReadBank(name string) (domain.Bank, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return domain.Bank{}, err
	}
	trimmed := bytes.TrimSpace(data)
	var doc bankFile
	if len(trimmed) > 0 && trimmed[0] == '[' {
		doc.ID = DefaultBankID
		err = json.Unmarshal(trimmed, &doc.Questions)
	} else {
		err = json.Unmarshal(trimmed, &doc)
	}
	if err != nil {
		return domain.Bank{}, fmt.Errorf("decode %s: %w", name, err)
	}
	bank := domain.Bank{ID: doc.ID, Questions: make([]domain.Question, len(doc.Questions))}
	for i, q := range doc.Questions {
		bank.Questions[i] = q.question()
	}
	return bank, nil
}

type bankFile struct {
	ID        string         `json:"id"`
	Questions []fileQuestion `json:"questions"`
}

// fileQuestion also accepts the Portuguese field names used by older
// question files (pergunta, alternativas, correta, explicacao).
type fileQuestion struct {
	ID            questionID               `json:"id"`
	Prompt        string                   `json:"prompt"`
	Options       map[domain.Choice]string `json:"options"`
	CorrectOption domain.Choice            `json:"correctOption"`
	Explanation   string                   `json:"explanation"`

	Pergunta     string                   `json:"pergunta"`
	Alternativas map[domain.Choice]string `json:"alternativas"`
	Correta      domain.Choice            `json:"correta"`
	Explicacao   string                   `json:"explicacao"`
}

func (f fileQuestion) question() domain.Question {
	q := domain.Question{
		ID:            string(f.ID),
		Prompt:        f.Prompt,
		Options:       f.Options,
		CorrectOption: f.CorrectOption,
		Explanation:   f.Explanation,
	}
	if q.Prompt == "" {
		q.Prompt = f.Pergunta
	}
	if q.Options == nil {
		q.Options = f.Alternativas
	}
	if q.CorrectOption == domain.ChoiceNone {
		q.CorrectOption = f.Correta
	}
	if q.Explanation == "" {
		q.Explanation = f.Explicacao
	}
	return q
}

// questionID accepts numeric ids as well as strings.
type questionID string

func (id *questionID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = questionID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = questionID(n.String())
	return nil
}
