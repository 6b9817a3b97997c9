package client

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/SamuelRobart/church-chat-service/internal/model"
)

// ComposerEmojis populates the emoji picker under the composer.
var ComposerEmojis = []string{
	"😀", "😂", "😍", "🥰", "😎", "🤔", "👍", "👏",
	"🙏", "❤️", "🔥", "✨", "🎉", "💯", "👋", "😊",
}

// ReactionEmojis populates the per-message reaction menu.
var ReactionEmojis = []string{"👍", "❤️", "😂", "😮", "😢", "🔥"}

// Placement is where the reaction menu renders relative to its message,
// flipped when the message sits too close to the top of the viewport.
type Placement string

const (
	PlacementTop    Placement = "top"
	PlacementBottom Placement = "bottom"
)

// ViewModel is the presentation state of the chat screen: status, message
// list, composer and picker state. All reads return snapshots; mutation goes
// through methods, so it is safe to render from one goroutine while the
// session feeds frames from another.
//
// Reactions mutate entries here and nowhere else. They are never sent to the
// server and are gone once the entry leaves the local list.
type ViewModel struct {
	mu          sync.RWMutex
	displayName string
	selfIDs     map[string]struct{}
	status      State
	online      int

	msgs []model.ChatMessage
	seen map[int64]struct{}

	composer          string
	emojiPickerOpen   bool
	reactionMenuSeq   int64 // seq of the message whose menu is open, 0 for none
	reactionPlacement Placement

	scrollSeq int64 // newest entry auto-scrolled into view
}

func NewViewModel(displayName string) *ViewModel {
	return &ViewModel{
		displayName:       displayName,
		selfIDs:           make(map[string]struct{}),
		seen:              make(map[int64]struct{}),
		reactionPlacement: PlacementTop,
	}
}

// Apply feeds one server frame into the view. Frames with an unknown type
// discriminator are ignored; a frame without a type is a chat message.
func (v *ViewModel) Apply(frame []byte) error {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(frame, &probe); err != nil {
		return err
	}
	switch probe.Type {
	case model.TypeUserCount:
		var p model.Presence
		if err := json.Unmarshal(frame, &p); err != nil {
			return err
		}
		v.mu.Lock()
		v.online = p.Count
		v.mu.Unlock()
	case model.TypeWelcome:
		var w model.Welcome
		if err := json.Unmarshal(frame, &w); err != nil {
			return err
		}
		if w.ID != "" {
			v.mu.Lock()
			// ids accumulate: a reconnect issues a fresh one, and messages
			// sent under the previous connection must stay classified as ours
			v.selfIDs[w.ID] = struct{}{}
			v.mu.Unlock()
		}
	case "":
		var m model.ChatMessage
		if err := json.Unmarshal(frame, &m); err != nil {
			return err
		}
		v.mu.Lock()
		v.insert(m)
		v.mu.Unlock()
	}
	return nil
}

// MergeHistory folds a scrollback or gap-fill fetch into the list. Entries
// already delivered live are skipped, so fetching and receiving the same
// message never duplicates it.
func (v *ViewModel) MergeHistory(msgs []model.ChatMessage) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, m := range msgs {
		v.insert(m)
	}
}

// insert keeps the list ordered by sequence and deduplicated; callers hold
// the lock. Every mutation moves the auto-scroll anchor to the newest entry.
func (v *ViewModel) insert(m model.ChatMessage) {
	if _, dup := v.seen[m.Seq]; dup {
		return
	}
	v.seen[m.Seq] = struct{}{}
	v.msgs = append(v.msgs, m)
	if n := len(v.msgs); n > 1 && v.msgs[n-2].Seq > m.Seq {
		sort.Slice(v.msgs, func(i, j int) bool { return v.msgs[i].Seq < v.msgs[j].Seq })
	}
	if last := v.msgs[len(v.msgs)-1].Seq; last > v.scrollSeq {
		v.scrollSeq = last
	}
}

// Messages returns an ordered snapshot of the list.
func (v *ViewModel) Messages() []model.ChatMessage {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]model.ChatMessage, len(v.msgs))
	copy(out, v.msgs)
	return out
}

// IsMine reports whether a message came from this session. It compares the
// stable connection ids the server issued to us, not the display name, so
// neither renaming mid-session nor reconnecting under a fresh id
// reclassifies earlier messages.
func (v *ViewModel) IsMine(m model.ChatMessage) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.selfIDs[m.SenderID]
	return ok
}

// React sets the reaction on one entry, overwriting any previous one. Any
// viewer may react to any message. Returns false when the entry is unknown.
func (v *ViewModel) React(seq int64, emoji string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.msgs {
		if v.msgs[i].Seq == seq {
			v.msgs[i].Reaction = emoji
			v.reactionMenuSeq = 0
			return true
		}
	}
	return false
}

// OpenReactionMenu opens the menu for one message; nearTop flips it below
// the message when there is no room above. Opening the menu for the message
// that already has it open closes it instead.
func (v *ViewModel) OpenReactionMenu(seq int64, nearTop bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.reactionMenuSeq == seq {
		v.reactionMenuSeq = 0
		return
	}
	v.reactionMenuSeq = seq
	if nearTop {
		v.reactionPlacement = PlacementBottom
	} else {
		v.reactionPlacement = PlacementTop
	}
}

func (v *ViewModel) CloseReactionMenu() {
	v.mu.Lock()
	v.reactionMenuSeq = 0
	v.mu.Unlock()
}

// ReactionMenu returns which message's menu is open (0 for none) and its
// placement.
func (v *ViewModel) ReactionMenu() (int64, Placement) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.reactionMenuSeq, v.reactionPlacement
}

func (v *ViewModel) ToggleEmojiPicker() {
	v.mu.Lock()
	v.emojiPickerOpen = !v.emojiPickerOpen
	v.mu.Unlock()
}

func (v *ViewModel) EmojiPickerOpen() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.emojiPickerOpen
}

func (v *ViewModel) SetComposer(text string) {
	v.mu.Lock()
	v.composer = text
	v.mu.Unlock()
}

// AppendEmoji appends a picked emoji to the composer text.
func (v *ViewModel) AppendEmoji(emoji string) {
	v.mu.Lock()
	v.composer += emoji
	v.mu.Unlock()
}

func (v *ViewModel) Composer() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.composer
}

// SetDisplayName renames the participant for subsequent sends only.
func (v *ViewModel) SetDisplayName(name string) {
	v.mu.Lock()
	v.displayName = name
	v.mu.Unlock()
}

func (v *ViewModel) DisplayName() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.displayName
}

func (v *ViewModel) Online() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.online
}

func (v *ViewModel) Status() State {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.status
}

func (v *ViewModel) setStatus(s State) {
	v.mu.Lock()
	v.status = s
	v.mu.Unlock()
}

// LastSeq is the newest sequence seen, the resume cursor for gap-fill.
func (v *ViewModel) LastSeq() int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if len(v.msgs) == 0 {
		return 0
	}
	return v.msgs[len(v.msgs)-1].Seq
}

// ScrollSeq is the entry the view keeps scrolled into sight; it tracks the
// newest message on every mutation.
func (v *ViewModel) ScrollSeq() int64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.scrollSeq
}
