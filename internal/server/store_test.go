package server

import (
	"context"
	"sort"
	"sync"
	"time"

	"hoisting/internal/events"
	"hoisting/internal/models"
	"hoisting/internal/storage"
)

// memStore mirrors the ordering and uniqueness rules of storage.Storage.
type memStore struct {
	mu      sync.Mutex
	images  []*models.Image
	votes   []*models.Vote
	nextID  int64
	now     time.Time
	pingErr error
	voteErr error // returned by SaveVote when set
}

func newMemStore() *memStore {
	return &memStore{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (m *memStore) SaveImage(_ context.Context, img *models.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	m.now = m.now.Add(time.Second)
	img.ID = m.nextID
	img.UploadedAt = m.now
	cp := *img
	m.images = append(m.images, &cp)
	return nil
}

func (m *memStore) GetImage(_ context.Context, id int64) (*models.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, img := range m.images {
		if img.ID == id {
			cp := *img
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) FindExact(_ context.Context, width, length int) (*models.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matches []*models.Image
	for _, img := range m.images {
		if img.Width == width && img.Length == length {
			matches = append(matches, img)
		}
	}
	if len(matches) == 0 {
		return nil, storage.ErrNotFound
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].UploadedAt.Equal(matches[j].UploadedAt) {
			return matches[i].UploadedAt.Before(matches[j].UploadedAt)
		}
		return matches[i].ID < matches[j].ID
	})
	cp := *matches[0]
	return &cp, nil
}

func (m *memStore) FindNearest(_ context.Context, width, length int) (*models.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var best *models.Image
	var bestScore int64
	for _, img := range m.images {
		score := abs64(int64(img.Width)-int64(width)) * abs64(int64(img.Length)-int64(length))
		if best == nil || score < bestScore || (score == bestScore && img.ID < best.ID) {
			best, bestScore = img, score
		}
	}
	if best == nil {
		return nil, storage.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *memStore) SaveVote(_ context.Context, v *models.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.voteErr != nil {
		return m.voteErr
	}
	for _, existing := range m.votes {
		if existing.IP == v.IP && existing.ImageID == v.ImageID {
			return storage.ErrAlreadyVoted
		}
	}
	v.ID = int64(len(m.votes) + 1)
	cp := *v
	m.votes = append(m.votes, &cp)
	return nil
}

func (m *memStore) CountVotes(_ context.Context, imageID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, v := range m.votes {
		if v.ImageID == imageID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) Ping(context.Context) error {
	return m.pingErr
}

func (m *memStore) imageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.images)
}

func (m *memStore) voteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.votes)
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// blockingPublisher waits for its context to end, like a writer stuck on an
// unreachable broker.
type blockingPublisher struct {
	mu  sync.Mutex
	err error
}

func (p *blockingPublisher) Publish(ctx context.Context, _ events.Event) error {
	<-ctx.Done()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = ctx.Err()
	return p.err
}

func (p *blockingPublisher) lastErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}
