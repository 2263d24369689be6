package admin

import (
	"context"
	"errors"
	"testing"

	tele "gopkg.in/telebot.v3"

	"smarttest/internal/models"
)

type memStore struct {
	channels map[int64]models.Channel
	users    []int64
	blocked  map[int64]bool
}

func newMemStore() *memStore {
	return &memStore{channels: make(map[int64]models.Channel), blocked: make(map[int64]bool)}
}

func (m *memStore) AddChannel(_ context.Context, ch *models.Channel) (bool, error) {
	_, exists := m.channels[ch.ID]
	m.channels[ch.ID] = *ch
	return !exists, nil
}

func (m *memStore) GetChannels(context.Context) ([]models.Channel, error) {
	var out []models.Channel
	for _, ch := range m.channels {
		out = append(out, ch)
	}
	return out, nil
}

func (m *memStore) DeleteChannel(_ context.Context, id int64) (bool, error) {
	_, ok := m.channels[id]
	delete(m.channels, id)
	return ok, nil
}

func (m *memStore) ActiveUserIDs(context.Context) ([]int64, error) {
	var out []int64
	for _, id := range m.users {
		if !m.blocked[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *memStore) ActiveCount(ctx context.Context) (int64, error) {
	ids, _ := m.ActiveUserIDs(ctx)
	return int64(len(ids)), nil
}

func (m *memStore) MarkBlocked(_ context.Context, id int64) error {
	m.blocked[id] = true
	return nil
}

type fakeChats struct {
	byName map[string]*tele.Chat
	byID   map[int64]*tele.Chat
	links  int
}

func (f *fakeChats) ChatByUsername(name string) (*tele.Chat, error) {
	if chat, ok := f.byName[name]; ok {
		return chat, nil
	}
	return nil, errors.New("telegram: Bad Request: chat not found (400)")
}

func (f *fakeChats) ChatByID(id int64) (*tele.Chat, error) {
	if chat, ok := f.byID[id]; ok {
		return chat, nil
	}
	return nil, errors.New("telegram: Forbidden: bot is not a member of the channel chat (403)")
}

func (f *fakeChats) CreateInviteLink(tele.Recipient, *tele.ChatInviteLink) (*tele.ChatInviteLink, error) {
	f.links++
	return &tele.ChatInviteLink{InviteLink: "https://t.me/+private"}, nil
}

type fakeCopier struct {
	copied []string
	fail   map[string]error
}

func (f *fakeCopier) Copy(to tele.Recipient, _ tele.Editable, _ ...interface{}) (*tele.Message, error) {
	if err := f.fail[to.Recipient()]; err != nil {
		return nil, err
	}
	f.copied = append(f.copied, to.Recipient())
	return &tele.Message{}, nil
}

func newFakeChats() *fakeChats {
	public := &tele.Chat{ID: -100, Title: "News", Username: "news"}
	private := &tele.Chat{ID: -200, Title: "Club"}
	return &fakeChats{
		byName: map[string]*tele.Chat{"@news": public, "@club": private},
		byID:   map[int64]*tele.Chat{-100: public},
	}
}

func TestAddChannel(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	chats := newFakeChats()
	svc := NewService(store, chats, &fakeCopier{}, 0)

	if _, err := svc.AddChannel(ctx, "news"); !errors.Is(err, ErrBadChannelRef) {
		t.Fatalf("expected ErrBadChannelRef, got %v", err)
	}

	added, err := svc.AddChannel(ctx, "@news")
	if err != nil {
		t.Fatalf("add public: %v", err)
	}
	if !added.Public || !added.Created || store.channels[-100].Username != "news" {
		t.Fatalf("unexpected public channel: %+v %+v", added, store.channels[-100])
	}

	added, err = svc.AddChannel(ctx, "@club")
	if err != nil {
		t.Fatalf("add private: %v", err)
	}
	if added.Public || store.channels[-200].InviteLink != "https://t.me/+private" || chats.links != 1 {
		t.Fatalf("private channel must get an invite link: %+v", store.channels[-200])
	}

	added, _ = svc.AddChannel(ctx, "@news")
	if added.Created {
		t.Fatalf("re-adding must report an update")
	}

	if _, err := svc.AddChannel(ctx, "@missing"); err == nil {
		t.Fatalf("expected resolution error")
	}
}

func TestRemoveChannel(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store, newFakeChats(), &fakeCopier{}, 0)
	store.channels[-100] = models.Channel{ID: -100, Username: "news"}
	store.channels[-200] = models.Channel{ID: -200}

	if err := svc.RemoveChannel(ctx, "@news"); err != nil {
		t.Fatalf("remove by handle: %v", err)
	}
	if err := svc.RemoveChannel(ctx, "-200"); err != nil {
		t.Fatalf("remove by id: %v", err)
	}
	if err := svc.RemoveChannel(ctx, "-200"); !errors.Is(err, ErrChannelNotListed) {
		t.Fatalf("expected ErrChannelNotListed, got %v", err)
	}
	if err := svc.RemoveChannel(ctx, "news"); !errors.Is(err, ErrBadChannelRef) {
		t.Fatalf("expected ErrBadChannelRef, got %v", err)
	}
}

func TestListChannelsMarksUnreachable(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	svc := NewService(store, newFakeChats(), &fakeCopier{}, 0)
	store.channels[-100] = models.Channel{ID: -100, Username: "news"}
	store.channels[-300] = models.Channel{ID: -300, InviteLink: "https://t.me/+gone"}

	infos, err := svc.ListChannels(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	seen := map[int64]ChannelInfo{}
	for _, info := range infos {
		seen[info.ID] = info
	}
	if !seen[-100].Reachable || seen[-100].Title != "News" {
		t.Fatalf("expected reachable channel, got %+v", seen[-100])
	}
	if seen[-300].Reachable {
		t.Fatalf("expected unreachable channel, got %+v", seen[-300])
	}
}

func TestBroadcast(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.users = []int64{1, 2, 3, 4}
	copier := &fakeCopier{fail: map[string]error{
		"2": errors.New("telegram: Forbidden: bot was blocked by the user (403)"),
		"3": errors.New("telegram: Too Many Requests: retry after 1 (429)"),
	}}
	svc := NewService(store, newFakeChats(), copier, 0)

	var progress []int
	result, err := svc.Broadcast(ctx, 99, 7, func(done, _ int) { progress = append(progress, done) })
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if result.Sent != 2 || result.Failed != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(progress) != 1 || progress[0] != 4 {
		t.Fatalf("expected a single final progress report, got %v", progress)
	}
	if !store.blocked[2] || store.blocked[3] {
		t.Fatalf("only unreachable users must be blocked, got %v", store.blocked)
	}
	if count, _ := svc.AudienceSize(ctx); count != 3 {
		t.Fatalf("expected 3 remaining active users, got %d", count)
	}

	if _, err := svc.Broadcast(ctx, 99, 0, nil); !errors.Is(err, ErrNothingToSend) {
		t.Fatalf("expected ErrNothingToSend, got %v", err)
	}
}
