package chat

import (
	"sort"
	"time"
)

// Message is one chat line as the server stores it.
type Message struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// view is the ordered, id-unique local log.
type view struct {
	msgs []Message
	ids  map[string]struct{}
}

func newView() *view { return &view{ids: make(map[string]struct{})} }

// replace resets the view to records, ordered by CreatedAt and de-duplicated by id
// (first occurrence wins).
func (v *view) replace(records []Message) {
	sorted := append([]Message(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	v.msgs = v.msgs[:0]
	v.ids = make(map[string]struct{}, len(sorted))
	for _, m := range sorted {
		if _, dup := v.ids[m.ID]; dup || m.ID == "" {
			continue
		}
		v.ids[m.ID] = struct{}{}
		v.msgs = append(v.msgs, m)
	}
}

// insert places m after every entry created at or before it. It reports false when the
// id is already present.
func (v *view) insert(m Message) bool {
	if m.ID == "" {
		return false
	}
	if _, ok := v.ids[m.ID]; ok {
		return false
	}
	i := sort.Search(len(v.msgs), func(i int) bool { return v.msgs[i].CreatedAt.After(m.CreatedAt) })
	v.msgs = append(v.msgs, Message{})
	copy(v.msgs[i+1:], v.msgs[i:])
	v.msgs[i] = m
	v.ids[m.ID] = struct{}{}
	return true
}

// remove drops the entry with id. It reports false when absent.
func (v *view) remove(id string) bool {
	if _, ok := v.ids[id]; !ok {
		return false
	}
	delete(v.ids, id)
	for i := range v.msgs {
		if v.msgs[i].ID == id {
			v.msgs = append(v.msgs[:i], v.msgs[i+1:]...)
			break
		}
	}
	return true
}

func (v *view) snapshot() []Message { return append([]Message(nil), v.msgs...) }
