package mocks

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/SergeiKhy/shuffle/internal/models"
	"github.com/SergeiKhy/shuffle/internal/repository"
)

// MockLinkRepository implements repository.LinkRepository for testing
type MockLinkRepository struct {
	mu    sync.RWMutex
	links map[string]*models.Link

	// ListErr is returned by List when set
	ListErr error
	// GetErr is returned by Get when set
	GetErr error
	// GetCalls counts Get invocations
	GetCalls int
}

func NewMockLinkRepository() *MockLinkRepository {
	return &MockLinkRepository{
		links: make(map[string]*models.Link),
	}
}

func (m *MockLinkRepository) Get(ctx context.Context, id string) (*models.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCalls++
	if m.GetErr != nil {
		return nil, m.GetErr
	}

	link, exists := m.links[id]
	if !exists {
		return nil, repository.ErrLinkNotFound
	}
	copied := *link
	return &copied, nil
}

func (m *MockLinkRepository) List(ctx context.Context, opts models.LinkListOptions) ([]models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}

	links := make([]models.Link, 0, len(m.links))
	for _, link := range m.links {
		links = append(links, *link)
	}

	slices.SortFunc(links, func(a, b models.Link) int {
		var c int
		switch opts.SortField {
		case models.SortByID:
			c = strings.Compare(a.ID, b.ID)
		case models.SortByAffiliateURL:
			c = strings.Compare(a.AffiliateURL, b.AffiliateURL)
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if !opts.Ascending {
			c = -c
		}
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		return c
	})

	return links, nil
}

func (m *MockLinkRepository) Upsert(ctx context.Context, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if existing, exists := m.links[link.ID]; exists {
		link.CreatedAt = existing.CreatedAt
	} else if link.CreatedAt.IsZero() {
		link.CreatedAt = now
	}
	link.UpdatedAt = now

	copied := *link
	m.links[link.ID] = &copied
	return nil
}

func (m *MockLinkRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.links[id]; !exists {
		return repository.ErrLinkNotFound
	}
	delete(m.links, id)
	return nil
}

// Add stores links as is, keeping their timestamps
func (m *MockLinkRepository) Add(links ...models.Link) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, link := range links {
		copied := link
		m.links[link.ID] = &copied
	}
}

func (m *MockLinkRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = make(map[string]*models.Link)
}

// MockCacheRepository implements repository.CacheRepository for testing
type MockCacheRepository struct {
	mu    sync.RWMutex
	cache map[string]*models.Link
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		cache: make(map[string]*models.Link),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, id string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, exists := m.cache[id]
	if !exists {
		return nil, repository.ErrCacheMiss
	}
	copied := *link
	return &copied, nil
}

func (m *MockCacheRepository) Set(ctx context.Context, link *models.Link, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *link
	m.cache[link.ID] = &copied
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, id)
	return nil
}

func (m *MockCacheRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]*models.Link)
}

// MockClickRepository implements repository.ClickRepository for testing.
// defaults holds the default source, partitions the per-partition contents.
type MockClickRepository struct {
	mu         sync.RWMutex
	defaults   []models.ClickEvent
	partitions map[string][]models.ClickEvent

	// ListAllErr is returned by ListAll when set
	ListAllErr error
	// ListPartitionsErr is returned by ListPartitions when set
	ListPartitionsErr error
	// PartitionErrs maps a partition id to the error ListPartition returns for it
	PartitionErrs map[string]error
	// PartitionDelay delays every ListPartition call, honouring ctx
	PartitionDelay time.Duration
	// RecordErrs are returned by successive RecordClick calls before succeeding
	RecordErrs []error
}

func NewMockClickRepository() *MockClickRepository {
	return &MockClickRepository{
		partitions:    make(map[string][]models.ClickEvent),
		PartitionErrs: make(map[string]error),
	}
}

func (m *MockClickRepository) RecordClick(ctx context.Context, click *models.ClickEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.RecordErrs) > 0 {
		err := m.RecordErrs[0]
		m.RecordErrs = m.RecordErrs[1:]
		return err
	}

	m.defaults = append(m.defaults, *click)
	return nil
}

func (m *MockClickRepository) ListAll(ctx context.Context) ([]models.ClickEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ListAllErr != nil {
		return nil, m.ListAllErr
	}
	return slices.Clone(m.defaults), nil
}

func (m *MockClickRepository) ListPartition(ctx context.Context, partitionID string) ([]models.ClickEvent, error) {
	if m.PartitionDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.PartitionDelay):
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.PartitionErrs[partitionID]; err != nil {
		return nil, err
	}
	events, exists := m.partitions[partitionID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", repository.ErrPartitionNotFound, partitionID)
	}
	return slices.Clone(events), nil
}

func (m *MockClickRepository) ListPartitions(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ListPartitionsErr != nil {
		return nil, m.ListPartitionsErr
	}

	ids := make([]string, 0, len(m.partitions))
	for id := range m.partitions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *MockClickRepository) EnsurePartition(ctx context.Context, month time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := repository.PartitionName(month)
	if _, exists := m.partitions[id]; !exists {
		m.partitions[id] = nil
	}
	return id, nil
}

// AddDefault appends events to the default source
func (m *MockClickRepository) AddDefault(events ...models.ClickEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaults = append(m.defaults, events...)
}

// AddPartition appends events to the given partition, creating it if needed
func (m *MockClickRepository) AddPartition(id string, events ...models.ClickEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.partitions[id] = append(m.partitions[id], events...)
}

// Recorded returns events stored through RecordClick and AddDefault
func (m *MockClickRepository) Recorded() []models.ClickEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.defaults)
}

func (m *MockClickRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaults = nil
	m.partitions = make(map[string][]models.ClickEvent)
	m.PartitionErrs = make(map[string]error)
}
