package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deckbot-ai/deckbot/pkg/domain"
	"github.com/deckbot-ai/deckbot/pkg/imagegen"
)

// stubChatter records messages and replays canned replies.
type stubChatter struct {
	mu       sync.Mutex
	received []string
	reply    string
	err      error
}

func (c *stubChatter) Chat(ctx context.Context, input string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, input)
	return c.reply, c.err
}

func (c *stubChatter) History() []domain.Turn { return nil }

func (c *stubChatter) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.received))
	copy(out, c.received)
	return out
}

// fileGenerator writes real candidate files so selection can copy them.
type fileGenerator struct {
	dir  string
	slug string
}

func (g *fileGenerator) GenerateCandidates(ctx context.Context, req imagegen.Request, progress imagegen.ProgressFunc) (*domain.Batch, error) {
	batch := &domain.Batch{Slug: g.slug, Prompt: req.Prompt}
	for i := 1; i <= imagegen.BatchSize; i++ {
		path := filepath.Join(g.dir, fmt.Sprintf("%s_candidate_%d.png", g.slug, i))
		if err := os.WriteFile(path, []byte(fmt.Sprintf("img-%d", i)), 0644); err != nil {
			return nil, err
		}
		batch.Candidates = append(batch.Candidates, path)
		if progress != nil {
			progress(i, imagegen.BatchSize, fmt.Sprintf("Generated image %d/%d", i, imagegen.BatchSize), batch.Candidates)
		}
	}
	return batch, nil
}

// recordingGenerator captures the request it is handed.
type recordingGenerator struct {
	mu  sync.Mutex
	req imagegen.Request
}

func (g *recordingGenerator) GenerateCandidates(ctx context.Context, req imagegen.Request, progress imagegen.ProgressFunc) (*domain.Batch, error) {
	g.mu.Lock()
	g.req = req
	g.mu.Unlock()
	return &domain.Batch{Slug: "recorded", Prompt: req.Prompt, Candidates: make([]string, imagegen.BatchSize)}, nil
}

func (g *recordingGenerator) request() imagegen.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.req
}

type failGenerator struct{}

func (failGenerator) GenerateCandidates(ctx context.Context, req imagegen.Request, progress imagegen.ProgressFunc) (*domain.Batch, error) {
	return nil, fmt.Errorf("provider unavailable")
}

// collector records broker events thread-safely.
type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) handle(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, len(c.events))
	for i, ev := range c.events {
		names[i] = ev.Name
	}
	return names
}

func (c *collector) count(name string) int {
	n := 0
	for _, got := range c.names() {
		if got == name {
			n++
		}
	}
	return n
}

func (c *collector) last(name string) (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Name == name {
			return c.events[i], true
		}
	}
	return Event{}, false
}

func newTestService(t *testing.T, agent Chatter, gen imagegen.Generator) (*Service, *collector, string) {
	t.Helper()
	imagesDir := filepath.Join(t.TempDir(), "images")
	broker := NewBroker(nil)
	col := &collector{}
	broker.Subscribe(col.handle)

	svc := NewService(ServiceConfig{
		Name:      "test-deck",
		Broker:    broker,
		Agent:     agent,
		Generator: gen,
		ImagesDir: imagesDir,
	})
	svc.UpdateDelay = 0
	return svc, col, imagesDir
}

func TestSendMessageBracketsWithThinking(t *testing.T) {
	svc, col, _ := newTestService(t, &stubChatter{reply: "sure thing"}, nil)

	reply, err := svc.SendMessage(context.Background(), "add a slide")
	require.NoError(t, err)
	require.Equal(t, "sure thing", reply)

	require.Equal(t, []string{
		domain.EventThinkingStart,
		domain.EventMessage,
		domain.EventThinkingEnd,
	}, col.names())

	ev, ok := col.last(domain.EventMessage)
	require.True(t, ok)
	payload := ev.Payload.(domain.MessagePayload)
	require.Equal(t, domain.RoleModel, payload.Role)
	require.Equal(t, "sure thing", payload.Content)
}

func TestSendMessageErrorStillEndsThinking(t *testing.T) {
	svc, col, _ := newTestService(t, &stubChatter{err: fmt.Errorf("model unavailable")}, nil)

	_, err := svc.SendMessage(context.Background(), "hello")
	require.Error(t, err)

	require.Equal(t, []string{
		domain.EventThinkingStart,
		domain.EventError,
		domain.EventThinkingEnd,
	}, col.names())

	ev, _ := col.last(domain.EventError)
	require.Equal(t, "model unavailable", ev.Payload.(domain.ErrorPayload).Message)
}

func TestGenerateImagesEmitsProgressAndReady(t *testing.T) {
	gen := &fileGenerator{dir: t.TempDir(), slug: "batch-a"}
	svc, col, _ := newTestService(t, &stubChatter{}, gen)

	svc.GenerateImages(context.Background(), "a red rocket", "1:1", "2K")

	require.Eventually(t, func() bool {
		return col.count(domain.EventImagesReady) == 1
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, 1, col.count(domain.EventGeneratingImagesStart))
	require.Equal(t, imagegen.BatchSize, col.count(domain.EventImageProgress))

	ev, _ := col.last(domain.EventImagesReady)
	ready := ev.Payload.(domain.ImagesReadyPayload)
	require.Len(t, ready.Candidates, imagegen.BatchSize)
	require.Equal(t, "a red rocket", ready.Prompt)
	require.Equal(t, "batch-a", ready.BatchSlug)

	require.NotNil(t, svc.PendingBatch())
}

func TestGenerateImagesAppliesStylePrompt(t *testing.T) {
	gen := &recordingGenerator{}
	imagesDir := filepath.Join(t.TempDir(), "images")
	svc := NewService(ServiceConfig{
		Name:        "test-deck",
		Broker:      NewBroker(nil),
		Agent:       &stubChatter{},
		Generator:   gen,
		ImagesDir:   imagesDir,
		StylePrompt: func() string { return "flat corporate illustration, blue palette" },
	})
	svc.UpdateDelay = 0

	svc.GenerateImages(context.Background(), "a rocket", "1:1", "2K")

	require.Eventually(t, func() bool {
		return svc.PendingBatch() != nil
	}, time.Second, 5*time.Millisecond)
	req := gen.request()
	require.Equal(t, "a rocket", req.Prompt)
	require.Equal(t, "flat corporate illustration, blue palette", req.StylePrompt)
}

func TestGenerateImagesFailureEmitsError(t *testing.T) {
	svc, col, _ := newTestService(t, &stubChatter{}, failGenerator{})

	svc.GenerateImages(context.Background(), "doomed", "1:1", "2K")

	require.Eventually(t, func() bool {
		return col.count(domain.EventError) == 1
	}, time.Second, 5*time.Millisecond)
	require.Nil(t, svc.PendingBatch())
}

func TestSelectImageCopiesAndNotifiesAgent(t *testing.T) {
	agent := &stubChatter{reply: "incorporated"}
	gen := &fileGenerator{dir: t.TempDir(), slug: "batch-b"}
	svc, col, imagesDir := newTestService(t, agent, gen)

	svc.GenerateImages(context.Background(), "A Red Rocket over the launch pad!", "1:1", "2K")
	require.Eventually(t, func() bool {
		return svc.PendingBatch() != nil
	}, time.Second, 5*time.Millisecond)
	candidates := svc.PendingBatch().Candidates

	saved, err := svc.SelectImage(context.Background(), 1, "")
	require.NoError(t, err)

	// Copied, not moved: the draft candidate survives.
	require.FileExists(t, candidates[1])
	data, err := os.ReadFile(saved)
	require.NoError(t, err)
	require.Equal(t, "img-2", string(data))
	require.Equal(t, imagesDir, filepath.Dir(saved))

	ev, ok := col.last(domain.EventImageSelected)
	require.True(t, ok)
	selected := ev.Payload.(domain.ImageSelectedPayload)
	require.Equal(t, saved, selected.Path)
	require.Contains(t, selected.Filename, "a_red_rocket")
	require.Contains(t, selected.Filename, ".png")

	// The agent hears about the selection through the normal chat path.
	require.Eventually(t, func() bool {
		msgs := agent.messages()
		return len(msgs) == 1
	}, time.Second, 5*time.Millisecond)
	msg := agent.messages()[0]
	require.Contains(t, msg, "[SYSTEM] User selected an image.")
	require.Contains(t, msg, "images/"+selected.Filename)

	require.Eventually(t, func() bool {
		return col.count(domain.EventPresentationUpdated) == 1
	}, time.Second, 5*time.Millisecond)

	// The batch is consumed; a second selection fails.
	require.Nil(t, svc.PendingBatch())
	_, err = svc.SelectImage(context.Background(), 0, "")
	require.Error(t, err)
}

func TestSelectImageExplicitFilename(t *testing.T) {
	gen := &fileGenerator{dir: t.TempDir(), slug: "batch-f"}
	svc, _, imagesDir := newTestService(t, &stubChatter{}, gen)

	svc.GenerateImages(context.Background(), "hero shot", "1:1", "2K")
	require.Eventually(t, func() bool {
		return svc.PendingBatch() != nil
	}, time.Second, 5*time.Millisecond)

	saved, err := svc.SelectImage(context.Background(), 0, "cover.png")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(imagesDir, "cover.png"), saved)
}

func TestSelectImageInvalidIndexKeepsBatch(t *testing.T) {
	gen := &fileGenerator{dir: t.TempDir(), slug: "batch-c"}
	svc, col, _ := newTestService(t, &stubChatter{}, gen)

	svc.GenerateImages(context.Background(), "prompt", "1:1", "2K")
	require.Eventually(t, func() bool {
		return svc.PendingBatch() != nil
	}, time.Second, 5*time.Millisecond)

	before := len(col.names())
	_, err := svc.SelectImage(context.Background(), imagegen.BatchSize, "")
	require.Error(t, err)
	_, err = svc.SelectImage(context.Background(), -1, "")
	require.Error(t, err)

	// Invalid selections emit nothing and leave the batch pending.
	require.Len(t, col.names(), before)
	require.NotNil(t, svc.PendingBatch())
}

func TestSelectImageNoBatch(t *testing.T) {
	svc, _, _ := newTestService(t, &stubChatter{}, nil)
	_, err := svc.SelectImage(context.Background(), 0, "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no image batch pending")
}

func TestSecondBatchReplacesPending(t *testing.T) {
	gen := &fileGenerator{dir: t.TempDir(), slug: "batch-d"}
	svc, col, _ := newTestService(t, &stubChatter{}, gen)

	svc.GenerateImages(context.Background(), "first", "1:1", "2K")
	require.Eventually(t, func() bool {
		return col.count(domain.EventImagesReady) == 1
	}, time.Second, 5*time.Millisecond)

	gen.slug = "batch-e"
	svc.GenerateImages(context.Background(), "second", "1:1", "2K")
	require.Eventually(t, func() bool {
		return col.count(domain.EventImagesReady) == 2
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, "second", svc.PendingBatch().Prompt)
}

func TestSelectionFilenameSuffixIncrements(t *testing.T) {
	svc, _, imagesDir := newTestService(t, &stubChatter{}, nil)
	require.NoError(t, os.MkdirAll(imagesDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(imagesDir, "rocket_1.png"), []byte("x"), 0644))

	name := svc.selectionFilename("Rocket")
	require.Equal(t, "rocket_2.png", name)
}
