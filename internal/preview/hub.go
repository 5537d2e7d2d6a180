// Package preview fans the current document set of each project out to live
// preview clients and renders it to a single HTML page.
package preview

import (
	"sync"
	"time"

	"github.com/bep/debounce"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/petervdpas/cipherstudio/internal/content"
)

var log = logging.Logger("preview")

// Snapshot is the full non-folder record set of a project at one point in time.
type Snapshot struct {
	ProjectID string               `json:"project_id"`
	Version   uint64               `json:"version"`
	Files     []content.FileRecord `json:"files"`
	At        time.Time            `json:"at"`
}

type channel struct {
	version  uint64
	latest   *Snapshot
	digest   [blake2b.Size256]byte // of latest.Files
	pending  []content.FileRecord
	hasNext  bool
	debounce func(func())
	subs     map[chan Snapshot]struct{}
}

// Hub keeps the latest snapshot per project and pushes new ones to subscribers.
// Bursts of Publish calls within the delay collapse into one snapshot, and a
// document set equal to the latest one is not sent again.
type Hub struct {
	delay time.Duration

	mu       sync.Mutex
	projects map[string]*channel
}

// NewHub creates a hub. delay <= 0 publishes every call immediately.
func NewHub(delay time.Duration) *Hub {
	return &Hub{
		delay:    delay,
		projects: make(map[string]*channel),
	}
}

func (h *Hub) channelLocked(projectID string) *channel {
	c, ok := h.projects[projectID]
	if !ok {
		c = &channel{subs: make(map[chan Snapshot]struct{})}
		if h.delay > 0 {
			c.debounce = debounce.New(h.delay)
		}
		h.projects[projectID] = c
	}
	return c
}

// Publish hands the hub a project's current records. Folders are dropped.
func (h *Hub) Publish(projectID string, files []content.FileRecord) {
	docs := content.Documents(files)

	h.mu.Lock()
	c := h.channelLocked(projectID)
	c.pending = docs
	c.hasNext = true
	deb := c.debounce
	h.mu.Unlock()

	if deb == nil {
		h.flush(projectID)
		return
	}
	deb(func() { h.flush(projectID) })
}

func (h *Hub) flush(projectID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.projects[projectID]
	if !ok || !c.hasNext {
		return
	}
	sum := digest(c.pending)
	if c.latest != nil && sum == c.digest {
		c.pending = nil
		c.hasNext = false
		return
	}
	c.version++
	snap := Snapshot{
		ProjectID: projectID,
		Version:   c.version,
		Files:     c.pending,
		At:        time.Now().UTC(),
	}
	c.latest = &snap
	c.digest = sum
	c.pending = nil
	c.hasNext = false

	for ch := range c.subs {
		select {
		case ch <- snap:
		default:
			// drop on slow subscriber; Latest still has it
		}
	}
	log.Debugf("project %s snapshot v%d (%d files, %d subscribers)", projectID, snap.Version, len(snap.Files), len(c.subs))
}

// digest identifies a document set by paths and contents.
func digest(docs []content.FileRecord) [blake2b.Size256]byte {
	h, _ := blake2b.New256(nil)
	for _, d := range docs {
		h.Write([]byte(d.Path))
		h.Write([]byte{0})
		h.Write([]byte(d.Content))
		h.Write([]byte{0})
	}
	var out [blake2b.Size256]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Latest returns the most recent snapshot of a project.
func (h *Hub) Latest(projectID string) (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.projects[projectID]
	if !ok || c.latest == nil {
		return Snapshot{}, false
	}
	return *c.latest, true
}

// Subscribe returns a channel of snapshots for projectID. The latest
// snapshot, if any, is delivered first.
func (h *Hub) Subscribe(projectID string) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 16)

	h.mu.Lock()
	c := h.channelLocked(projectID)
	c.subs[ch] = struct{}{}
	if c.latest != nil {
		ch <- *c.latest
	}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// Forget drops a project and closes its subscriptions.
func (h *Hub) Forget(projectID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.projects[projectID]
	if !ok {
		return
	}
	for ch := range c.subs {
		close(ch)
	}
	c.subs = make(map[chan Snapshot]struct{})
	c.hasNext = false
	delete(h.projects, projectID)
}
