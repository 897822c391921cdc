// Package index implements the spatiotemporal and hierarchical index:
// a three-level nesting of domain -> task_type -> time-bucket tree that
// stores sorted (timestamp, episode_id) references for fast, bounded
// lookup without ever owning episode contents.
package index

import (
	"sort"
	"sync"
	"time"

	"github.com/memexlabs/memex/internal/timebucket"
)

// Ref is a sortable reference into an episode, the only thing the index owns.
type Ref struct {
	Timestamp time.Time
	EpisodeID string
}

// temporalTree holds sorted refs per bucket key, at every granularity.
type temporalTree struct {
	mu      sync.RWMutex
	buckets map[string][]Ref // bucket key -> sorted refs
}

func newTemporalTree() *temporalTree {
	return &temporalTree{buckets: map[string][]Ref{}}
}

func (t *temporalTree) insert(ts time.Time, episodeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, b := range timebucket.From(ts) {
		key := b.Key()
		refs := t.buckets[key]
		i := sort.Search(len(refs), func(i int) bool { return !refs[i].Timestamp.Before(ts) })
		refs = append(refs, Ref{})
		copy(refs[i+1:], refs[i:])
		refs[i] = Ref{Timestamp: ts, EpisodeID: episodeID}
		t.buckets[key] = refs
	}
}

func (t *temporalTree) remove(ts time.Time, episodeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, b := range timebucket.From(ts) {
		key := b.Key()
		refs := t.buckets[key]
		for i, r := range refs {
			if r.EpisodeID == episodeID {
				refs = append(refs[:i], refs[i+1:]...)
				break
			}
		}
		if len(refs) == 0 {
			delete(t.buckets, key)
		} else {
			t.buckets[key] = refs
		}
	}
}

// queryBucket returns ids in a specific bucket, newest first, capped at limit.
func (t *temporalTree) queryBucket(key string, limit int) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	refs := t.buckets[key]
	var out []string
	for i := len(refs) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, refs[i].EpisodeID)
	}
	return out
}

// queryRange returns ids whose timestamp falls in [from, to], newest first.
func (t *temporalTree) queryRange(from, to time.Time, limit int) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var all []Ref
	for _, refs := range t.buckets {
		for _, r := range refs {
			if !r.Timestamp.Before(from) && !r.Timestamp.After(to) {
				all = append(all, r)
			}
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Timestamp.After(all[j].Timestamp) })
	var out []string
	seen := map[string]struct{}{}
	for _, r := range all {
		if _, ok := seen[r.EpisodeID]; ok {
			continue
		}
		seen[r.EpisodeID] = struct{}{}
		out = append(out, r.EpisodeID)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func (t *temporalTree) empty() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.buckets) == 0
}

// dayKeys returns the Day-granularity bucket keys present (format
// YYYY-MM-DD, 10 characters, distinguishing them from the Year/Month/Hour
// keys sharing the same map), sorted most-recent first.
func (t *temporalTree) dayKeys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var keys []string
	for k := range t.buckets {
		if len(k) == 10 {
			keys = append(keys, k)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys
}

// taskTypeNode is the innermost of the three levels.
type taskTypeNode struct {
	temporal *temporalTree
}

// domainNode holds the domain-wide temporal tree plus per-task-type nodes.
type domainNode struct {
	mu        sync.RWMutex
	temporal  *temporalTree
	taskTypes map[string]*taskTypeNode
}

// Index is the three-level domain -> task_type -> spatiotemporal index.
type Index struct {
	mu       sync.RWMutex
	global   *temporalTree
	domains  map[string]*domainNode
}

// New creates an empty Index.
func New() *Index {
	return &Index{global: newTemporalTree(), domains: map[string]*domainNode{}}
}

// Entry is the minimal episode projection the index needs to insert/remove.
type Entry struct {
	EpisodeID string
	Domain    string
	TaskType  string
	Timestamp time.Time
}

// Insert places the episode in the global tree, the domain's tree, and
// the (domain, task_type) tree.
func (idx *Index) Insert(e Entry) {
	idx.global.insert(e.Timestamp, e.EpisodeID)

	idx.mu.Lock()
	dn, ok := idx.domains[e.Domain]
	if !ok {
		dn = &domainNode{temporal: newTemporalTree(), taskTypes: map[string]*taskTypeNode{}}
		idx.domains[e.Domain] = dn
	}
	idx.mu.Unlock()

	dn.temporal.insert(e.Timestamp, e.EpisodeID)

	dn.mu.Lock()
	tn, ok := dn.taskTypes[e.TaskType]
	if !ok {
		tn = &taskTypeNode{temporal: newTemporalTree()}
		dn.taskTypes[e.TaskType] = tn
	}
	dn.mu.Unlock()

	tn.temporal.insert(e.Timestamp, e.EpisodeID)
}

// Remove reverses Insert, garbage-collecting any sub-tree left empty.
func (idx *Index) Remove(e Entry) {
	idx.global.remove(e.Timestamp, e.EpisodeID)

	idx.mu.Lock()
	dn, ok := idx.domains[e.Domain]
	idx.mu.Unlock()
	if !ok {
		return
	}
	dn.temporal.remove(e.Timestamp, e.EpisodeID)

	dn.mu.Lock()
	tn, ok := dn.taskTypes[e.TaskType]
	dn.mu.Unlock()
	if ok {
		tn.temporal.remove(e.Timestamp, e.EpisodeID)
		if tn.temporal.empty() {
			dn.mu.Lock()
			delete(dn.taskTypes, e.TaskType)
			dn.mu.Unlock()
		}
	}

	if dn.temporal.empty() {
		dn.mu.RLock()
		noTaskTypes := len(dn.taskTypes) == 0
		dn.mu.RUnlock()
		if noTaskTypes {
			idx.mu.Lock()
			delete(idx.domains, e.Domain)
			idx.mu.Unlock()
		}
	}
}

// Query selects the most specific sub-tree matching the given filters
// and returns ids, newest first, capped at Limit: a Limit of 0 returns
// no ids, and a negative Limit applies no cap.
type Query struct {
	Domain   string // optional, "" means unset
	TaskType string // optional, "" means unset
	Bucket   *string
	From, To *time.Time
	Limit    int
}

// Run executes q against the index.
func (idx *Index) Run(q Query) []string {
	if q.Limit == 0 {
		return nil
	}
	tree := idx.selectTree(q.Domain, q.TaskType)
	if tree == nil {
		return nil
	}
	if q.Bucket != nil {
		return tree.queryBucket(*q.Bucket, q.Limit)
	}
	if q.From != nil && q.To != nil {
		return tree.queryRange(*q.From, *q.To, q.Limit)
	}
	return tree.queryRange(time.Time{}, time.Now().Add(365*24*time.Hour), q.Limit)
}

// Clusters returns up to max day-bucket keys for the most specific
// sub-tree matching domain/taskType, most-recent first. Each key
// identifies a temporal cluster the retrieval engine can score as a
// unit, bounded by its max_clusters_to_search knob.
func (idx *Index) Clusters(domain, taskType string, max int) []string {
	tree := idx.selectTree(domain, taskType)
	if tree == nil {
		return nil
	}
	keys := tree.dayKeys()
	if max > 0 && len(keys) > max {
		keys = keys[:max]
	}
	return keys
}

func (idx *Index) selectTree(domain, taskType string) *temporalTree {
	if domain == "" {
		return idx.global
	}
	idx.mu.RLock()
	dn, ok := idx.domains[domain]
	idx.mu.RUnlock()
	if !ok {
		return nil
	}
	if taskType == "" {
		return dn.temporal
	}
	dn.mu.RLock()
	tn, ok := dn.taskTypes[taskType]
	dn.mu.RUnlock()
	if !ok {
		return nil
	}
	return tn.temporal
}
