// Package chatbot answers chemistry questions from canned knowledge. It
// matches substrings in a fixed order and never calls a model unless a
// remote assistant is configured as the last resort before the fallback.
package chatbot

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"chemlab/internal/knowledge"
	"chemlab/internal/model"
)

var ErrEmptyMessage = errors.New("message is empty")

type Source string

const (
	SourceTopic     Source = "topic"
	SourcePattern   Source = "pattern"
	SourceTraining  Source = "training"
	SourceAssistant Source = "assistant"
	SourceFallback  Source = "fallback"
)

const (
	maxTopicHeaderLen  = 50
	maxTrainingMatches = 3
)

type Reply struct {
	Text   string `json:"text"`
	Source Source `json:"source"`
	Topic  string `json:"topic,omitempty"`
}

// Assistant is a remote question answerer, such as llm.Client.
type Assistant interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Document is an uploaded text a user trains the responder with. Documents
// with an Owner answer only that owner; an empty Owner answers everyone.
type Document struct {
	ID      string
	Owner   string
	Name    string
	Content string
}

type trainingDoc struct {
	Document
	topics []model.KnowledgeTopic
}

func (d trainingDoc) visibleTo(owner string) bool {
	return d.Owner == "" || d.Owner == owner
}

type Responder struct {
	logger    *zap.Logger
	assistant Assistant

	mu      sync.Mutex
	rng     *rand.Rand
	catalog knowledge.Catalog
	docs    []trainingDoc
}

type Option func(*Responder)

// WithRand fixes the source of the uniform pick among canned replies.
func WithRand(rng *rand.Rand) Option {
	return func(r *Responder) {
		r.rng = rng
	}
}

func WithAssistant(a Assistant) Option {
	return func(r *Responder) {
		r.assistant = a
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Responder) {
		r.logger = logger
	}
}

func New(catalog knowledge.Catalog, opts ...Option) *Responder {
	r := &Responder{
		logger:  zap.NewNop(),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		catalog: catalog,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reply answers message using the catalog and shared documents only.
func (r *Responder) Reply(ctx context.Context, message string) (Reply, error) {
	return r.ReplyFor(ctx, "", message)
}

// ReplyFor answers message for owner. Matching order: topics and their
// related terms, question patterns, trained documents, the remote assistant,
// the fallback.
func (r *Responder) ReplyFor(ctx context.Context, owner, message string) (Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Reply{}, ErrEmptyMessage
	}
	lower := strings.ToLower(message)

	r.mu.Lock()
	reply, ok := r.matchLocked(owner, lower)
	r.mu.Unlock()
	if ok {
		return reply, nil
	}

	if r.assistant != nil {
		answer, err := r.assistant.Ask(ctx, message)
		switch {
		case err != nil:
			r.logger.Warn("remote assistant failed", zap.Error(err))
		case strings.TrimSpace(answer) != "":
			return Reply{Text: strings.TrimSpace(answer), Source: SourceAssistant}, nil
		}
	}
	return Reply{Text: r.catalog.Fallback, Source: SourceFallback}, nil
}

func (r *Responder) matchLocked(owner, lower string) (Reply, bool) {
	for _, topics := range [][]model.KnowledgeTopic{r.catalog.Topics, r.learnedLocked(owner)} {
		for _, topic := range topics {
			if matchesTopic(lower, topic) {
				return Reply{Text: r.pickLocked(topic.Responses), Source: SourceTopic, Topic: topic.Topic}, true
			}
		}
	}
	for _, pattern := range r.catalog.Patterns {
		for _, keyword := range pattern.Keywords {
			if keyword != "" && strings.Contains(lower, strings.ToLower(keyword)) {
				return Reply{Text: r.pickLocked(pattern.Responses), Source: SourcePattern}, true
			}
		}
	}
	if text, ok := r.searchDocsLocked(owner, lower); ok {
		return Reply{Text: text, Source: SourceTraining}, true
	}
	return Reply{}, false
}

func matchesTopic(lower string, topic model.KnowledgeTopic) bool {
	if strings.Contains(lower, strings.ToLower(topic.Topic)) {
		return true
	}
	for _, term := range topic.RelatedTerms {
		if term != "" && strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

func (r *Responder) pickLocked(options []string) string {
	if len(options) == 0 {
		return r.catalog.Fallback
	}
	return options[r.rng.Intn(len(options))]
}

func (r *Responder) searchDocsLocked(owner, lower string) (string, bool) {
	var terms []string
	for _, term := range strings.Fields(lower) {
		if utf8.RuneCountInString(term) >= 2 {
			terms = append(terms, term)
		}
	}
	if len(terms) == 0 {
		return "", false
	}

	for _, doc := range r.docs {
		if !doc.visibleTo(owner) {
			continue
		}
		var hits []string
		for _, sentence := range strings.Split(doc.Content, ".") {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" {
				continue
			}
			if containsAny(strings.ToLower(sentence), terms) {
				hits = append(hits, sentence)
				if len(hits) == maxTrainingMatches {
					break
				}
			}
		}
		if len(hits) > 0 {
			return fmt.Sprintf("بناءً على الملف %q:\n\n%s.", doc.Name, strings.Join(hits, ". ")), true
		}
	}
	return "", false
}

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}

// Train keeps content for sentence search and learns topics from short
// "header:" lines; the non-empty lines that follow a header become its
// replies. A document with a known ID replaces the earlier one. It returns
// the number of topics learned.
func (r *Responder) Train(doc Document) int {
	td := trainingDoc{Document: doc, topics: parseTopics(doc.Content)}

	r.mu.Lock()
	defer r.mu.Unlock()
	if idx := r.docIndexLocked(doc.ID); doc.ID != "" && idx >= 0 {
		r.docs[idx] = td
	} else {
		r.docs = append(r.docs, td)
	}
	return len(td.topics)
}

// Forget drops the document with id and everything learned from it.
func (r *Responder) Forget(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.docIndexLocked(id)
	if id == "" || idx < 0 {
		return false
	}
	r.docs = append(r.docs[:idx], r.docs[idx+1:]...)
	return true
}

// ForgetOwner drops every document of owner and returns how many it removed.
func (r *Responder) ForgetOwner(owner string) int {
	if owner == "" {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.docs[:0]
	for _, doc := range r.docs {
		if doc.Owner != owner {
			kept = append(kept, doc)
		}
	}
	removed := len(r.docs) - len(kept)
	clear(r.docs[len(kept):])
	r.docs = kept
	return removed
}

func (r *Responder) docIndexLocked(id string) int {
	for i, doc := range r.docs {
		if doc.ID == id {
			return i
		}
	}
	return -1
}

// learnedLocked merges the topics of the documents owner can see, in
// training order; replies of a repeated header are concatenated.
func (r *Responder) learnedLocked(owner string) []model.KnowledgeTopic {
	var out []model.KnowledgeTopic
	index := map[string]int{}
	for _, doc := range r.docs {
		if !doc.visibleTo(owner) {
			continue
		}
		for _, topic := range doc.topics {
			if i, ok := index[topic.Topic]; ok {
				out[i].Responses = append(out[i].Responses, topic.Responses...)
				continue
			}
			index[topic.Topic] = len(out)
			out = append(out, model.KnowledgeTopic{
				Topic:     topic.Topic,
				Responses: append([]string(nil), topic.Responses...),
			})
		}
	}
	return out
}

func parseTopics(content string) []model.KnowledgeTopic {
	var (
		out     []model.KnowledgeTopic
		current string
		lines   []string
	)
	flush := func() {
		if current != "" && len(lines) > 0 {
			out = append(out, model.KnowledgeTopic{Topic: current, Responses: lines})
		}
		lines = nil
	}
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.Contains(line, ":") && utf8.RuneCountInString(line) < maxTopicHeaderLen {
			flush()
			current = strings.TrimSpace(strings.Replace(trimmed, ":", "", 1))
			continue
		}
		if trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	flush()
	return out
}

// Topics lists catalog topics in match order followed by those learned from
// shared documents.
func (r *Responder) Topics() []string {
	return r.TopicsFor("")
}

func (r *Responder) TopicsFor(owner string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	learned := r.learnedLocked(owner)
	names := make([]string, 0, len(r.catalog.Topics)+len(learned))
	for _, topic := range r.catalog.Topics {
		names = append(names, topic.Topic)
	}
	for _, topic := range learned {
		names = append(names, topic.Topic)
	}
	return names
}

// TrainingFiles lists the names of the documents owner can see.
func (r *Responder) TrainingFiles(owner string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.docs))
	for _, doc := range r.docs {
		if doc.visibleTo(owner) {
			names = append(names, doc.Name)
		}
	}
	return names
}
