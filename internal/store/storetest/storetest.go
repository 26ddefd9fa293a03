// Package storetest holds a behavioural test suite that every store.Store
// implementation must pass.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/smartcart/internal/model"
	"github.com/dukerupert/smartcart/internal/store"
)

// Clock is a manually advanced time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(t time.Time) *Clock {
	return &Clock{t: t}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// Factory builds an empty store stamped by now.
type Factory func(t *testing.T, now func() time.Time) store.Store

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store, clock *Clock)
	}{
		{"UserCreateAndLookup", testUserCreateAndLookup},
		{"UserDuplicateEmail", testUserDuplicateEmail},
		{"HouseholdCreateAddsOwner", testHouseholdCreateAddsOwner},
		{"HouseholdDuplicateInviteCode", testHouseholdDuplicateInviteCode},
		{"HouseholdUpdatePatch", testHouseholdUpdatePatch},
		{"SetInviteCode", testSetInviteCode},
		{"MemberDuplicate", testMemberDuplicate},
		{"ListMembers", testListMembers},
		{"UpdateMemberRole", testUpdateMemberRole},
		{"TransferOwnership", testTransferOwnership},
		{"RemoveMember", testRemoveMember},
		{"ListHouseholdsForUser", testListHouseholdsForUser},
		{"DeleteHouseholdCascades", testDeleteHouseholdCascades},
		{"ItemLifecycle", testItemLifecycle},
		{"ItemListOrder", testItemListOrder},
		{"CompleteShopping", testCompleteShopping},
		{"HistoryByItemName", testHistoryByItemName},
		{"PushSubscriptions", testPushSubscriptions},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := NewClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
			s := newStore(t, clock.Now)
			t.Cleanup(func() { s.Close() })
			tt.fn(t, s, clock)
		})
	}
}

func mustUser(t *testing.T, s store.Store, name, email string) *model.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), name, email, "hash")
	if err != nil {
		t.Fatalf("CreateUser(%q): %v", email, err)
	}
	return u
}

func mustHousehold(t *testing.T, s store.Store, ownerID int64, code string) *model.Household {
	t.Helper()
	h, _, err := s.CreateHousehold(context.Background(), "Home", "", ownerID, code)
	if err != nil {
		t.Fatalf("CreateHousehold: %v", err)
	}
	return h
}

func mustMember(t *testing.T, s store.Store, householdID, userID int64, role model.Role) {
	t.Helper()
	if _, err := s.AddMember(context.Background(), householdID, userID, role); err != nil {
		t.Fatalf("AddMember(%d): %v", userID, err)
	}
}

func ownerCount(t *testing.T, s store.Store, householdID int64) int {
	t.Helper()
	members, err := s.ListMembers(context.Background(), householdID)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	n := 0
	for _, m := range members {
		if m.Role == model.RoleOwner {
			n++
		}
	}
	return n
}

func testUserCreateAndLookup(t *testing.T, s store.Store, _ *Clock) {
	ctx := context.Background()
	u := mustUser(t, s, "Alice", "  Alice@Example.com ")
	if u.ID == 0 {
		t.Fatal("expected non-zero ID")
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", u.Email, "alice@example.com")
	}
	if u.PasswordHash != "hash" {
		t.Errorf("password hash = %q, want %q", u.PasswordHash, "hash")
	}

	got, err := s.GetUserByEmail(ctx, "ALICE@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got == nil || got.ID != u.ID {
		t.Fatalf("GetUserByEmail = %+v, want id %d", got, u.ID)
	}

	byID, err := s.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if byID == nil || byID.Name != "Alice" {
		t.Errorf("GetUserByID = %+v, want Alice", byID)
	}

	missing, err := s.GetUserByID(ctx, 9999)
	if err != nil {
		t.Fatalf("GetUserByID missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing user, got %+v", missing)
	}
}

func testUserDuplicateEmail(t *testing.T, s store.Store, _ *Clock) {
	mustUser(t, s, "Alice", "alice@example.com")
	_, err := s.CreateUser(context.Background(), "Other", "ALICE@example.com", "hash")
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func testHouseholdCreateAddsOwner(t *testing.T, s store.Store, _ *Clock) {
	ctx := context.Background()
	u := mustUser(t, s, "Alice", "alice@example.com")

	h, m, err := s.CreateHousehold(ctx, "Home", "Our flat", u.ID, "ABC123")
	if err != nil {
		t.Fatalf("CreateHousehold: %v", err)
	}
	if h.Name != "Home" || h.Description != "Our flat" {
		t.Errorf("household = %+v", h)
	}
	if h.OwnerID != u.ID {
		t.Errorf("owner id = %d, want %d", h.OwnerID, u.ID)
	}
	if h.UpdatedAt != nil {
		t.Errorf("updatedAt = %v, want nil", h.UpdatedAt)
	}
	if m.Role != model.RoleOwner || m.UserID != u.ID || m.HouseholdID != h.ID {
		t.Errorf("member = %+v", m)
	}

	byCode, err := s.GetHouseholdByInviteCode(ctx, "ABC123")
	if err != nil {
		t.Fatalf("GetHouseholdByInviteCode: %v", err)
	}
	if byCode == nil || byCode.ID != h.ID {
		t.Errorf("by code = %+v, want id %d", byCode, h.ID)
	}
	unknown, err := s.GetHouseholdByInviteCode(ctx, "ZZZZZZ")
	if err != nil {
		t.Fatalf("GetHouseholdByInviteCode unknown: %v", err)
	}
	if unknown != nil {
		t.Errorf("expected nil for unknown code, got %+v", unknown)
	}
}

func testHouseholdDuplicateInviteCode(t *testing.T, s store.Store, _ *Clock) {
	a := mustUser(t, s, "Alice", "alice@example.com")
	b := mustUser(t, s, "Bob", "bob@example.com")
	mustHousehold(t, s, a.ID, "ABC123")

	_, _, err := s.CreateHousehold(context.Background(), "Other", "", b.ID, "ABC123")
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
	households, err := s.ListHouseholdsForUser(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("ListHouseholdsForUser: %v", err)
	}
	if len(households) != 0 {
		t.Errorf("failed create left %d households behind", len(households))
	}
}

func testHouseholdUpdatePatch(t *testing.T, s store.Store, clock *Clock) {
	ctx := context.Background()
	u := mustUser(t, s, "Alice", "alice@example.com")
	h := mustHousehold(t, s, u.ID, "ABC123")

	clock.Advance(time.Hour)
	name := "Cottage"
	updated, err := s.UpdateHousehold(ctx, h.ID, model.HouseholdPatch{Name: &name})
	if err != nil {
		t.Fatalf("UpdateHousehold: %v", err)
	}
	if updated.Name != "Cottage" {
		t.Errorf("name = %q, want %q", updated.Name, "Cottage")
	}
	if updated.Description != "" {
		t.Errorf("description = %q, want unchanged empty", updated.Description)
	}
	if updated.UpdatedAt == nil || !updated.UpdatedAt.Equal(clock.Now()) {
		t.Errorf("updatedAt = %v, want %v", updated.UpdatedAt, clock.Now())
	}

	desc := "By the lake"
	updated, err = s.UpdateHousehold(ctx, h.ID, model.HouseholdPatch{Description: &desc})
	if err != nil {
		t.Fatalf("UpdateHousehold: %v", err)
	}
	if updated.Name != "Cottage" || updated.Description != "By the lake" {
		t.Errorf("household = %+v", updated)
	}

	missing, err := s.UpdateHousehold(ctx, 9999, model.HouseholdPatch{Name: &name})
	if err != nil {
		t.Fatalf("UpdateHousehold missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing household, got %+v", missing)
	}
}

func testSetInviteCode(t *testing.T, s store.Store, _ *Clock) {
	ctx := context.Background()
	a := mustUser(t, s, "Alice", "alice@example.com")
	b := mustUser(t, s, "Bob", "bob@example.com")
	h1 := mustHousehold(t, s, a.ID, "AAAAAA")
	mustHousehold(t, s, b.ID, "BBBBBB")

	if _, err := s.SetInviteCode(ctx, h1.ID, "BBBBBB"); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}

	h, err := s.SetInviteCode(ctx, h1.ID, "CCCCCC")
	if err != nil {
		t.Fatalf("SetInviteCode: %v", err)
	}
	if h.InviteCode != "CCCCCC" {
		t.Errorf("invite code = %q, want %q", h.InviteCode, "CCCCCC")
	}
	old, err := s.GetHouseholdByInviteCode(ctx, "AAAAAA")
	if err != nil {
		t.Fatalf("GetHouseholdByInviteCode: %v", err)
	}
	if old != nil {
		t.Errorf("old code still resolves to %+v", old)
	}
}

func testMemberDuplicate(t *testing.T, s store.Store, _ *Clock) {
	a := mustUser(t, s, "Alice", "alice@example.com")
	b := mustUser(t, s, "Bob", "bob@example.com")
	h := mustHousehold(t, s, a.ID, "ABC123")
	mustMember(t, s, h.ID, b.ID, model.RoleMember)

	if _, err := s.AddMember(context.Background(), h.ID, b.ID, model.RoleMember); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
	if _, err := s.AddMember(context.Background(), h.ID, a.ID, model.RoleMember); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("owner re-add err = %v, want ErrDuplicate", err)
	}
	n, err := s.CountMembers(context.Background(), h.ID)
	if err != nil {
		t.Fatalf("CountMembers: %v", err)
	}
	if n != 2 {
		t.Errorf("member count = %d, want 2", n)
	}
}

func testListMembers(t *testing.T, s store.Store, clock *Clock) {
	a := mustUser(t, s, "Alice", "alice@example.com")
	b := mustUser(t, s, "Bob", "bob@example.com")
	h := mustHousehold(t, s, a.ID, "ABC123")
	clock.Advance(time.Minute)
	mustMember(t, s, h.ID, b.ID, model.RoleMember)

	members, err := s.ListMembers(context.Background(), h.ID)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("got %d members, want 2", len(members))
	}
	if members[0].User.Name != "Alice" || members[0].Role != model.RoleOwner {
		t.Errorf("members[0] = %+v", members[0])
	}
	if members[1].User.Email != "bob@example.com" || members[1].Role != model.RoleMember {
		t.Errorf("members[1] = %+v", members[1])
	}
}

func testUpdateMemberRole(t *testing.T, s store.Store, _ *Clock) {
	ctx := context.Background()
	a := mustUser(t, s, "Alice", "alice@example.com")
	b := mustUser(t, s, "Bob", "bob@example.com")
	h := mustHousehold(t, s, a.ID, "ABC123")
	mustMember(t, s, h.ID, b.ID, model.RoleMember)

	m, err := s.UpdateMemberRole(ctx, h.ID, b.ID, model.RoleAdmin)
	if err != nil {
		t.Fatalf("UpdateMemberRole: %v", err)
	}
	if m.Role != model.RoleAdmin {
		t.Errorf("role = %q, want admin", m.Role)
	}
	if m.UpdatedAt == nil {
		t.Error("expected updatedAt to be set")
	}

	// The owner row is never touched by a plain role update.
	m, err = s.UpdateMemberRole(ctx, h.ID, a.ID, model.RoleMember)
	if err != nil {
		t.Fatalf("UpdateMemberRole owner: %v", err)
	}
	if m != nil {
		t.Errorf("expected nil when demoting the owner, got %+v", m)
	}
	if _, err := s.UpdateMemberRole(ctx, h.ID, b.ID, model.RoleOwner); err == nil {
		t.Error("expected error assigning owner through UpdateMemberRole")
	}
	if got := ownerCount(t, s, h.ID); got != 1 {
		t.Errorf("owner count = %d, want 1", got)
	}
}

func testTransferOwnership(t *testing.T, s store.Store, _ *Clock) {
	ctx := context.Background()
	a := mustUser(t, s, "Alice", "alice@example.com")
	b := mustUser(t, s, "Bob", "bob@example.com")
	h := mustHousehold(t, s, a.ID, "ABC123")
	mustMember(t, s, h.ID, b.ID, model.RoleMember)

	m, err := s.TransferOwnership(ctx, h.ID, a.ID, b.ID)
	if err != nil {
		t.Fatalf("TransferOwnership: %v", err)
	}
	if m.UserID != b.ID || m.Role != model.RoleOwner {
		t.Errorf("new owner = %+v", m)
	}
	prev, _ := s.GetMember(ctx, h.ID, a.ID)
	if prev == nil || prev.Role != model.RoleAdmin {
		t.Errorf("previous owner = %+v, want admin", prev)
	}
	got, _ := s.GetHousehold(ctx, h.ID)
	if got.OwnerID != b.ID {
		t.Errorf("owner id = %d, want %d", got.OwnerID, b.ID)
	}
	if n := ownerCount(t, s, h.ID); n != 1 {
		t.Errorf("owner count = %d, want 1", n)
	}

	if _, err := s.TransferOwnership(ctx, h.ID, a.ID, b.ID); err == nil {
		t.Error("expected error when a non-owner transfers ownership")
	}
	missing, err := s.TransferOwnership(ctx, h.ID, b.ID, 9999)
	if err != nil {
		t.Fatalf("TransferOwnership to non-member: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for non-member target, got %+v", missing)
	}
	if n := ownerCount(t, s, h.ID); n != 1 {
		t.Errorf("owner count after failed transfers = %d, want 1", n)
	}
}

func testRemoveMember(t *testing.T, s store.Store, _ *Clock) {
	ctx := context.Background()
	a := mustUser(t, s, "Alice", "alice@example.com")
	b := mustUser(t, s, "Bob", "bob@example.com")
	h := mustHousehold(t, s, a.ID, "ABC123")
	mustMember(t, s, h.ID, b.ID, model.RoleMember)

	removed, err := s.RemoveMember(ctx, h.ID, b.ID)
	if err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if removed == nil || removed.UserID != b.ID {
		t.Fatalf("removed = %+v", removed)
	}
	if m, _ := s.GetMember(ctx, h.ID, b.ID); m != nil {
		t.Errorf("member still present: %+v", m)
	}
	again, err := s.RemoveMember(ctx, h.ID, b.ID)
	if err != nil {
		t.Fatalf("RemoveMember again: %v", err)
	}
	if again != nil {
		t.Errorf("expected nil removing absent member, got %+v", again)
	}
}

func testListHouseholdsForUser(t *testing.T, s store.Store, clock *Clock) {
	ctx := context.Background()
	a := mustUser(t, s, "Alice", "alice@example.com")
	b := mustUser(t, s, "Bob", "bob@example.com")
	home := mustHousehold(t, s, a.ID, "AAAAAA")
	clock.Advance(time.Minute)
	cabin := mustHousehold(t, s, b.ID, "BBBBBB")
	clock.Advance(time.Minute)
	mustMember(t, s, home.ID, b.ID, model.RoleAdmin)

	details, err := s.ListHouseholdsForUser(ctx, b.ID)
	if err != nil {
		t.Fatalf("ListHouseholdsForUser: %v", err)
	}
	if len(details) != 2 {
		t.Fatalf("got %d households, want 2", len(details))
	}
	if details[0].ID != cabin.ID || details[0].Role != model.RoleOwner || details[0].MemberCount != 1 {
		t.Errorf("details[0] = %+v", details[0])
	}
	if details[1].ID != home.ID || details[1].Role != model.RoleAdmin || details[1].MemberCount != 2 {
		t.Errorf("details[1] = %+v", details[1])
	}
	if len(details[1].Members) != 2 || details[1].Members[0].User.Name != "Alice" {
		t.Errorf("details[1].Members = %+v", details[1].Members)
	}

	none, err := s.ListHouseholdsForUser(ctx, 9999)
	if err != nil {
		t.Fatalf("ListHouseholdsForUser unknown: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", none)
	}
}

func testDeleteHouseholdCascades(t *testing.T, s store.Store, _ *Clock) {
	ctx := context.Background()
	a := mustUser(t, s, "Alice", "alice@example.com")
	b := mustUser(t, s, "Bob", "bob@example.com")
	h := mustHousehold(t, s, a.ID, "ABC123")
	other := mustHousehold(t, s, b.ID, "XYZ789")
	mustMember(t, s, h.ID, b.ID, model.RoleMember)

	item, err := s.CreateItem(ctx, h.ID, a.ID, "Milk", "Dairy")
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if _, err := s.AddPurchase(ctx, model.PurchaseRecord{HouseholdID: h.ID, ItemName: "Milk", Category: "Dairy", PurchasedBy: a.ID, PurchasedAt: time.Now()}); err != nil {
		t.Fatalf("AddPurchase: %v", err)
	}
	if _, err := s.AddPurchase(ctx, model.PurchaseRecord{HouseholdID: other.ID, ItemName: "Bread", Category: "Pantry", PurchasedBy: b.ID, PurchasedAt: time.Now()}); err != nil {
		t.Fatalf("AddPurchase other: %v", err)
	}

	if err := s.DeleteHousehold(ctx, h.ID); err != nil {
		t.Fatalf("DeleteHousehold: %v", err)
	}
	if got, _ := s.GetHousehold(ctx, h.ID); got != nil {
		t.Errorf("household still present: %+v", got)
	}
	if got, _ := s.GetHouseholdByInviteCode(ctx, "ABC123"); got != nil {
		t.Errorf("invite code still resolves: %+v", got)
	}
	if m, _ := s.GetMember(ctx, h.ID, b.ID); m != nil {
		t.Errorf("membership still present: %+v", m)
	}
	if got, _ := s.GetItem(ctx, item.ID); got != nil {
		t.Errorf("item still present: %+v", got)
	}
	if hist, _ := s.ListHistory(ctx, h.ID); len(hist) != 0 {
		t.Errorf("history still has %d rows", len(hist))
	}
	if hist, _ := s.ListHistory(ctx, other.ID); len(hist) != 1 {
		t.Errorf("other household history = %d rows, want 1", len(hist))
	}
}

func testItemLifecycle(t *testing.T, s store.Store, clock *Clock) {
	ctx := context.Background()
	a := mustUser(t, s, "Alice", "alice@example.com")
	h := mustHousehold(t, s, a.ID, "ABC123")

	item, err := s.CreateItem(ctx, h.ID, a.ID, "Whole Milk", "Dairy")
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if item.Name != "Whole Milk" || item.Category != "Dairy" || item.IsChecked {
		t.Errorf("item = %+v", item)
	}
	if item.AddedByName != "Alice" {
		t.Errorf("addedByName = %q, want %q", item.AddedByName, "Alice")
	}

	got, err := s.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Name != item.Name || got.Category != item.Category {
		t.Errorf("GetItem = %+v, want %+v", got, item)
	}

	clock.Advance(time.Minute)
	checked := true
	updated, err := s.UpdateItem(ctx, item.ID, model.ItemPatch{IsChecked: &checked, CheckedBy: &a.ID})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if !updated.IsChecked || updated.CheckedBy == nil || *updated.CheckedBy != a.ID {
		t.Errorf("checked item = %+v", updated)
	}
	if updated.Name != "Whole Milk" {
		t.Errorf("name changed to %q", updated.Name)
	}
	if updated.UpdatedAt == nil || !updated.UpdatedAt.Equal(clock.Now()) {
		t.Errorf("updatedAt = %v, want %v", updated.UpdatedAt, clock.Now())
	}

	unchecked := false
	updated, err = s.UpdateItem(ctx, item.ID, model.ItemPatch{IsChecked: &unchecked})
	if err != nil {
		t.Fatalf("UpdateItem uncheck: %v", err)
	}
	if updated.IsChecked || updated.CheckedBy != nil {
		t.Errorf("unchecked item = %+v", updated)
	}

	missing, err := s.UpdateItem(ctx, 9999, model.ItemPatch{IsChecked: &checked})
	if err != nil {
		t.Fatalf("UpdateItem missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil updating missing item, got %+v", missing)
	}

	ok, err := s.DeleteItem(ctx, item.ID)
	if err != nil || !ok {
		t.Fatalf("DeleteItem = %v, %v", ok, err)
	}
	ok, err = s.DeleteItem(ctx, item.ID)
	if err != nil || ok {
		t.Errorf("second DeleteItem = %v, %v, want false", ok, err)
	}
}

func testItemListOrder(t *testing.T, s store.Store, clock *Clock) {
	ctx := context.Background()
	a := mustUser(t, s, "Alice", "alice@example.com")
	h := mustHousehold(t, s, a.ID, "ABC123")
	for _, name := range []string{"Eggs", "Bread", "Tea"} {
		if _, err := s.CreateItem(ctx, h.ID, a.ID, name, "Other"); err != nil {
			t.Fatalf("CreateItem: %v", err)
		}
		clock.Advance(time.Second)
	}

	items, err := s.ListItems(ctx, h.ID)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	want := []string{"Tea", "Bread", "Eggs"}
	if len(items) != len(want) {
		t.Fatalf("got %d items, want %d", len(items), len(want))
	}
	for i, name := range want {
		if items[i].Name != name {
			t.Errorf("items[%d] = %q, want %q", i, items[i].Name, name)
		}
	}
}

func testCompleteShopping(t *testing.T, s store.Store, clock *Clock) {
	ctx := context.Background()
	a := mustUser(t, s, "Alice", "alice@example.com")
	h := mustHousehold(t, s, a.ID, "ABC123")

	milk, _ := s.CreateItem(ctx, h.ID, a.ID, "Milk", "Dairy")
	bread, _ := s.CreateItem(ctx, h.ID, a.ID, "Bread", "Pantry")
	checked := true
	if _, err := s.UpdateItem(ctx, milk.ID, model.ItemPatch{IsChecked: &checked, CheckedBy: &a.ID}); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}

	at := clock.Now().Add(time.Hour)
	records, err := s.CompleteShopping(ctx, h.ID, a.ID, at)
	if err != nil {
		t.Fatalf("CompleteShopping: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].ItemName != "Milk" || records[0].Category != "Dairy" || records[0].PurchasedBy != a.ID {
		t.Errorf("record = %+v", records[0])
	}
	if !records[0].PurchasedAt.Equal(at) {
		t.Errorf("purchasedAt = %v, want %v", records[0].PurchasedAt, at)
	}

	if got, _ := s.GetItem(ctx, milk.ID); got != nil {
		t.Errorf("checked item not removed: %+v", got)
	}
	if got, _ := s.GetItem(ctx, bread.ID); got == nil {
		t.Error("unchecked item was removed")
	}
	hist, err := s.ListHistory(ctx, h.ID)
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(hist) != 1 || hist[0].ItemName != "Milk" {
		t.Errorf("history = %+v", hist)
	}

	records, err = s.CompleteShopping(ctx, h.ID, a.ID, at)
	if err != nil {
		t.Fatalf("CompleteShopping again: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("second completion moved %d items, want 0", len(records))
	}
}

func testHistoryByItemName(t *testing.T, s store.Store, _ *Clock) {
	ctx := context.Background()
	a := mustUser(t, s, "Alice", "alice@example.com")
	h := mustHousehold(t, s, a.ID, "ABC123")
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, name := range []string{"Milk", "milk ", "Bread", "MILK"} {
		_, err := s.AddPurchase(ctx, model.PurchaseRecord{
			HouseholdID: h.ID,
			ItemName:    name,
			Category:    "Dairy",
			PurchasedBy: a.ID,
			PurchasedAt: base.AddDate(0, 0, 7*i),
		})
		if err != nil {
			t.Fatalf("AddPurchase: %v", err)
		}
	}

	hist, err := s.ListHistoryByItemName(ctx, h.ID, "mIlK")
	if err != nil {
		t.Fatalf("ListHistoryByItemName: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("got %d records, want 3", len(hist))
	}
	for i := 1; i < len(hist); i++ {
		if hist[i].PurchasedAt.After(hist[i-1].PurchasedAt) {
			t.Errorf("history not newest first: %v before %v", hist[i-1].PurchasedAt, hist[i].PurchasedAt)
		}
	}
	if !hist[0].PurchasedAt.Equal(base.AddDate(0, 0, 21)) {
		t.Errorf("newest = %v, want %v", hist[0].PurchasedAt, base.AddDate(0, 0, 21))
	}

	all, err := s.ListHistory(ctx, h.ID)
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("got %d records, want 4", len(all))
	}
}

func testPushSubscriptions(t *testing.T, s store.Store, _ *Clock) {
	ctx := context.Background()
	a := mustUser(t, s, "Alice", "alice@example.com")
	b := mustUser(t, s, "Bob", "bob@example.com")
	c := mustUser(t, s, "Carol", "carol@example.com")
	h := mustHousehold(t, s, a.ID, "ABC123")
	mustMember(t, s, h.ID, b.ID, model.RoleMember)

	subA, err := s.SaveSubscription(ctx, a.ID, "https://push.example/a", "p1", "a1")
	if err != nil {
		t.Fatalf("SaveSubscription: %v", err)
	}
	again, err := s.SaveSubscription(ctx, a.ID, "https://push.example/a", "p2", "a2")
	if err != nil {
		t.Fatalf("SaveSubscription upsert: %v", err)
	}
	if again.ID != subA.ID || again.P256dhKey != "p2" || again.AuthKey != "a2" {
		t.Errorf("upsert = %+v, want id %d with fresh keys", again, subA.ID)
	}
	if _, err := s.SaveSubscription(ctx, b.ID, "https://push.example/b", "p", "a"); err != nil {
		t.Fatalf("SaveSubscription b: %v", err)
	}
	if _, err := s.SaveSubscription(ctx, c.ID, "https://push.example/c", "p", "a"); err != nil {
		t.Fatalf("SaveSubscription c: %v", err)
	}

	subs, err := s.ListSubscriptionsForHousehold(ctx, h.ID)
	if err != nil {
		t.Fatalf("ListSubscriptionsForHousehold: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("got %d subscriptions, want 2", len(subs))
	}

	if ok, _ := s.DeleteSubscription(ctx, b.ID, subA.ID); ok {
		t.Error("deleted another user's subscription")
	}
	if ok, err := s.DeleteSubscription(ctx, a.ID, subA.ID); err != nil || !ok {
		t.Errorf("DeleteSubscription = %v, %v", ok, err)
	}
	if err := s.DeleteSubscriptionByEndpoint(ctx, "https://push.example/b"); err != nil {
		t.Fatalf("DeleteSubscriptionByEndpoint: %v", err)
	}
	subs, _ = s.ListSubscriptionsForHousehold(ctx, h.ID)
	if len(subs) != 0 {
		t.Errorf("got %d subscriptions after delete, want 0", len(subs))
	}
}
