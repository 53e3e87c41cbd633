// Package chat runs one chat turn end to end: it stores the user turn,
// streams the provider's reply through the think-tag filter and persists the
// result once the stream completes.
package chat

import (
	"context"
	"errors"
	"iter"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/secretaria-app/secretaria/internal/constant"
	"github.com/secretaria-app/secretaria/internal/data/db"
	"github.com/secretaria-app/secretaria/internal/files"
	"github.com/secretaria-app/secretaria/internal/llmclient"
	"github.com/secretaria-app/secretaria/internal/obs"
	"github.com/secretaria-app/secretaria/internal/reasoning"
)

// ErrEmptyTurn is returned for a turn with neither text nor attached files.
var ErrEmptyTurn = errors.New("empty message")

// DefaultPersistTimeout bounds the end-of-stream unit of work.
const DefaultPersistTimeout = 30 * time.Second

// Streamer is a completion provider; *llmclient.Provider implements it.
type Streamer interface {
	Name() string
	Model() string
	SystemPrompt() string
	Configured() bool
	Stream(ctx context.Context, messages []llmclient.Message, model string) iter.Seq[string]
}

// DocumentGenerator renders a reply into a file inside dir and returns its
// path and name; *docgen.Generator implements it.
type DocumentGenerator interface {
	Generate(content, title, dir string) (string, string, error)
}

// Providers is the pair of providers a turn can be routed to.
type Providers struct {
	Primary Streamer
	Search  Streamer
}

// TurnRequest is one submitted user turn.
type TurnRequest struct {
	UserID           uint
	ConversationID   uint
	Content          string
	FileIDs          []uint
	Search           bool
	GenerateDocument bool
}

// EventKind distinguishes the events of an outward stream.
type EventKind int

const (
	EventContent EventKind = iota
	EventFile
	EventDone
)

// FileRef describes a generated document in a file event.
type FileRef struct {
	ID       uint   `json:"id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Event is one item of the outward stream: zero or more content events, at
// most one file event, then exactly one done event.
type Event struct {
	Kind EventKind
	Text string
	File *FileRef
}

// Service orchestrates chat turns.
type Service struct {
	store          *db.Store
	docs           DocumentGenerator
	providers      atomic.Pointer[Providers]
	generatedDir   string
	historyLimit   int
	persistTimeout time.Duration
}

// Option customises a Service.
type Option func(*Service)

// WithHistoryLimit caps the stored turns sent to the provider.
func WithHistoryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

// WithPersistTimeout bounds the end-of-stream unit of work.
func WithPersistTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.persistTimeout = d
		}
	}
}

// NewService creates the orchestrator. Generated documents are written to
// generatedDir.
func NewService(store *db.Store, docs DocumentGenerator, providers Providers, generatedDir string, opts ...Option) *Service {
	s := &Service{
		store:          store,
		docs:           docs,
		generatedDir:   generatedDir,
		historyLimit:   constant.DefaultHistoryLimit,
		persistTimeout: DefaultPersistTimeout,
	}
	s.providers.Store(&providers)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetProviders swaps the provider pair. Turns already streaming keep the
// pair they started with.
func (s *Service) SetProviders(p Providers) {
	s.providers.Store(&p)
}

// Providers returns the current provider pair.
func (s *Service) Providers() Providers {
	return *s.providers.Load()
}

// route picks the provider and system prompt for a mode.
func (s *Service) route(mode Mode) (Streamer, string) {
	p := s.providers.Load()
	switch mode {
	case ModeSearch:
		return p.Search, p.Search.SystemPrompt()
	case ModeDocument:
		return p.Primary, DocumentSystemPrompt
	default:
		return p.Primary, p.Primary.SystemPrompt()
	}
}

// Submit stores the user turn and returns the live outward stream for the
// reply. Errors are only returned before streaming starts: db.ErrNotFound for
// a conversation the user does not own, ErrEmptyTurn, or a storage failure.
func (s *Service) Submit(ctx context.Context, req TurnRequest) (iter.Seq[Event], error) {
	conv, err := s.store.GetConversation(ctx, req.UserID, req.ConversationID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Content) == "" && len(req.FileIDs) == 0 {
		return nil, ErrEmptyTurn
	}

	mode := ResolveMode(req.Search, req.GenerateDocument)
	provider, prompt := s.route(mode)
	log := logrus.WithFields(logrus.Fields{
		"conversation": conv.ID,
		"mode":         mode,
		"provider":     provider.Name(),
	})

	if !provider.Configured() {
		log.Warn("provider has no credential, replying with configuration error")
		return s.unconfigured(ctx, provider, mode), nil
	}

	attached, err := s.store.FilesInConversation(ctx, conv.ID, req.FileIDs)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Content) == "" && len(attached) == 0 {
		return nil, ErrEmptyTurn
	}

	userMsg := &db.Message{
		ConversationID: conv.ID,
		Role:           db.RoleUser,
		Content:        DisplayText(req.Content, len(attached) > 0),
	}
	if err := s.store.CreateMessage(ctx, userMsg); err != nil {
		return nil, err
	}
	if len(attached) > 0 {
		ids := make([]uint, 0, len(attached))
		for _, f := range attached {
			ids = append(ids, f.ID)
		}
		if err := s.store.LinkFilesToMessage(ctx, userMsg.ID, ids); err != nil {
			return nil, err
		}
	}

	title := conv.Title
	if newTitle := s.autoTitle(ctx, conv.ID, req.Content, attached); newTitle != "" {
		title = newTitle
	}

	turns, err := s.store.RecentMessages(ctx, conv.ID, s.historyLimit)
	if err != nil {
		return nil, err
	}
	history := BuildHistory(prompt, turns)
	log.Debugf("streaming reply with %d history messages", len(history))

	return func(yield func(Event) bool) {
		start := time.Now()
		var filter reasoning.ThinkFilter
		var full strings.Builder

		for delta := range provider.Stream(ctx, history, "") {
			clean := filter.Push(delta)
			if clean == "" {
				continue
			}
			full.WriteString(clean)
			if !yield(Event{Kind: EventContent, Text: clean}) {
				s.aborted(log, mode, "client stopped reading")
				return
			}
		}
		if ctx.Err() != nil {
			s.aborted(log, mode, ctx.Err().Error())
			return
		}
		if tail := filter.Flush(); tail != "" {
			full.WriteString(tail)
			if !yield(Event{Kind: EventContent, Text: tail}) {
				s.aborted(log, mode, "client stopped reading")
				return
			}
		}

		ref := s.persist(ctx, log, conv.ID, mode, provider.Model(), title, full.String())
		if ref != nil {
			if !yield(Event{Kind: EventFile, File: ref}) {
				return
			}
		}

		obs.ChatStreams.WithLabelValues(string(mode), "completed").Inc()
		obs.ChatStreamDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())
		yield(Event{Kind: EventDone})
	}, nil
}

// unconfigured relays the provider's configuration error and ends the
// stream without touching storage.
func (s *Service) unconfigured(ctx context.Context, provider Streamer, mode Mode) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		obs.ChatStreams.WithLabelValues(string(mode), "unconfigured").Inc()
		for text := range provider.Stream(ctx, nil, "") {
			if !yield(Event{Kind: EventContent, Text: text}) {
				return
			}
		}
		yield(Event{Kind: EventDone})
	}
}

func (s *Service) aborted(log *logrus.Entry, mode Mode, reason string) {
	obs.ChatStreams.WithLabelValues(string(mode), "aborted").Inc()
	log.Infof("stream aborted before completion, reply not saved: %s", reason)
}

// autoTitle names the conversation after its first user turn. Failures are
// logged and never block the reply.
func (s *Service) autoTitle(ctx context.Context, convID uint, content string, attached []db.File) string {
	n, err := s.store.CountMessages(ctx, convID, db.RoleUser)
	if err != nil {
		logrus.Warnf("auto-title: failed to count turns of conversation %d: %v", convID, err)
		return ""
	}
	if n != 1 {
		return ""
	}
	title := MakeTitle(content, attached)
	if title == "" {
		return ""
	}
	if err := s.store.SetTitle(ctx, convID, title); err != nil {
		logrus.Warnf("auto-title: failed to set title of conversation %d: %v", convID, err)
		return ""
	}
	return title
}

// persist writes the reply in one unit of work detached from the request
// context. In document mode it also generates the document and records it.
// It returns the generated file once the unit of work committed.
func (s *Service) persist(ctx context.Context, log *logrus.Entry, convID uint, mode Mode, model, title, content string) *FileRef {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()

	var (
		ref           *FileRef
		generatedPath string
	)
	err := s.store.UnitOfWork(pctx, func(tx *db.Store) error {
		reply := &db.Message{
			ConversationID: convID,
			Role:           db.RoleAssistant,
			Content:        content,
			ModelUsed:      model,
		}
		if err := tx.CreateMessage(pctx, reply); err != nil {
			obs.PersistenceFailures.WithLabelValues("assistant_message").Inc()
			return err
		}

		if mode == ModeDocument {
			ref, generatedPath = s.attachDocument(pctx, tx, log, convID, reply.ID, title, content)
		}

		if err := tx.TouchConversation(pctx, convID); err != nil {
			obs.PersistenceFailures.WithLabelValues("touch").Inc()
			log.Warnf("failed to touch conversation: %v", err)
		}
		return nil
	})
	if err != nil {
		log.Errorf("failed to persist reply: %v", err)
		if generatedPath != "" {
			_ = os.Remove(generatedPath)
		}
		return nil
	}
	return ref
}

// attachDocument generates the document for a reply and records it linked
// to the reply. Failures are logged and yield no file.
func (s *Service) attachDocument(ctx context.Context, tx *db.Store, log *logrus.Entry, convID, replyID uint, title, content string) (*FileRef, string) {
	if strings.TrimSpace(content) == "" {
		obs.DocumentsGenerated.WithLabelValues("skipped").Inc()
		return nil, ""
	}

	path, name, err := s.docs.Generate(content, title, s.generatedDir)
	if err != nil {
		obs.DocumentsGenerated.WithLabelValues("error").Inc()
		log.Errorf("document generation failed: %v", err)
		return nil, ""
	}

	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}
	record := &db.File{
		ConversationID: &convID,
		MessageID:      &replyID,
		Filename:       name,
		Filepath:       path,
		FileType:       files.KindDocument,
		MimeType:       files.MimeType(files.Ext(name)),
		SizeBytes:      size,
	}
	if err := tx.CreateFile(ctx, record); err != nil {
		obs.PersistenceFailures.WithLabelValues("file_record").Inc()
		obs.DocumentsGenerated.WithLabelValues("error").Inc()
		log.Errorf("failed to record generated document: %v", err)
		_ = os.Remove(path)
		return nil, ""
	}

	obs.DocumentsGenerated.WithLabelValues("success").Inc()
	log.Infof("generated document %s (%d bytes)", name, size)
	return &FileRef{ID: record.ID, Filename: name, Size: size}, path
}
