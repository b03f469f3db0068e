package resume

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"resumeBuilder/internal/database"
	"resumeBuilder/internal/database/dbtest"
	"resumeBuilder/internal/errcode"
)

type fixture struct {
	db    *gorm.DB
	store *Store
	ctx   context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t)
	return &fixture{db: db, store: NewStore(db, nil), ctx: context.Background()}
}

func (f *fixture) user(t *testing.T, name string) uint {
	t.Helper()
	u := database.User{Username: name, Email: name + "@example.com", PasswordHash: "x"}
	if err := f.db.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u.ID
}

func (f *fixture) resume(t *testing.T, userID uint, title string) *View {
	t.Helper()
	v, err := f.store.CreateResume(f.ctx, userID, ResumeInput{Title: title})
	if err != nil {
		t.Fatalf("create resume: %v", err)
	}
	return v
}

func (f *fixture) section(t *testing.T, userID, resumeID uint, title string) *SectionView {
	t.Helper()
	v, err := f.store.CreateSection(f.ctx, userID, resumeID, SectionInput{Title: title})
	if err != nil {
		t.Fatalf("create section: %v", err)
	}
	return v
}

func (f *fixture) entry(t *testing.T, userID, resumeID, sectionID uint, in EntryInput) *EntryView {
	t.Helper()
	v, err := f.store.CreateEntry(f.ctx, userID, resumeID, sectionID, in)
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	return v
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

// seedTree 创建两个分组，每个分组两个条目。
func (f *fixture) seedTree(t *testing.T, userID uint, title string) *View {
	t.Helper()
	r := f.resume(t, userID, title)
	start := time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC)
	for _, name := range []string{"Experience", "Education"} {
		s := f.section(t, userID, r.ID, name)
		f.entry(t, userID, r.ID, s.ID, EntryInput{Title: name + " A", Subtitle: "Acme", StartDate: DateOf(start), Current: true})
		f.entry(t, userID, r.ID, s.ID, EntryInput{Title: name + " B", Description: "details"})
	}
	got, err := f.store.GetResume(f.ctx, userID, r.ID)
	if err != nil {
		t.Fatalf("get resume: %v", err)
	}
	return got
}

func TestCreateResumeDefaultsAndSlugs(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	first := f.resume(t, alice, "Senior Engineer @ Acme!")
	if first.Slug != "senior-engineer-acme" {
		t.Fatalf("unexpected slug %q", first.Slug)
	}
	if first.Theme != DefaultTheme {
		t.Fatalf("expected default theme got %q", first.Theme)
	}
	if first.Sections == nil || len(first.Sections) != 0 {
		t.Fatalf("expected empty section list got %#v", first.Sections)
	}

	same := f.resume(t, alice, "Senior Engineer @ Acme!")
	other := f.resume(t, bob, "Senior Engineer @ Acme!")
	if same.Slug != "senior-engineer-acme-1" || other.Slug != "senior-engineer-acme-2" {
		t.Fatalf("expected suffixed slugs got %q and %q", same.Slug, other.Slug)
	}

	theme := "modern"
	themed, err := f.store.CreateResume(f.ctx, alice, ResumeInput{Title: "!!!", Theme: &theme})
	if err != nil {
		t.Fatalf("create resume: %v", err)
	}
	if themed.Slug != "resume" || themed.Theme != "modern" {
		t.Fatalf("unexpected slug/theme %q/%q", themed.Slug, themed.Theme)
	}

	if _, err := f.store.CreateResume(f.ctx, alice, ResumeInput{Title: "   "}); !errors.Is(err, errcode.ErrValidation) {
		t.Fatalf("expected validation error got %v", err)
	}
}

func TestListResumesOnlyOwned(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	f.resume(t, alice, "One")
	f.resume(t, alice, "Two")
	f.resume(t, bob, "Three")

	list, err := f.store.ListResumes(f.ctx, alice)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Title != "One" || list[1].Title != "Two" {
		t.Fatalf("unexpected list %#v", list)
	}
}

func TestUpdateResumeRegeneratesSlug(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	r := f.resume(t, alice, "Draft")
	f.resume(t, alice, "Final Version")

	title := "Final Version"
	updated, err := f.store.UpdateResume(f.ctx, alice, r.ID, ResumePatch{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != title || updated.Slug != "final-version-1" {
		t.Fatalf("unexpected title/slug %q/%q", updated.Title, updated.Slug)
	}
	if updated.Theme != DefaultTheme {
		t.Fatalf("theme must be untouched got %q", updated.Theme)
	}

	// 标题不变时，slug 不应因为自身占用而递增。
	again, err := f.store.UpdateResume(f.ctx, alice, r.ID, ResumePatch{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if again.Slug != "final-version-1" {
		t.Fatalf("slug drifted to %q", again.Slug)
	}

	theme := "minimal"
	themed, err := f.store.UpdateResume(f.ctx, alice, r.ID, ResumePatch{Theme: &theme})
	if err != nil {
		t.Fatalf("update theme: %v", err)
	}
	if themed.Theme != "minimal" || themed.Slug != "final-version-1" {
		t.Fatalf("unexpected theme/slug %q/%q", themed.Theme, themed.Slug)
	}
	if themed.UpdatedAt.Before(updated.UpdatedAt) {
		t.Fatalf("updated_at went backwards")
	}
}

func TestCrossTenantAccessIsNotFound(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	mallory := f.user(t, "mallory")

	tree := f.seedTree(t, alice, "Private")
	section := tree.Sections[0]
	entry := section.Entries[0]
	title := "hijacked"

	checks := map[string]error{}
	_, checks["get resume"] = f.store.GetResume(f.ctx, mallory, tree.ID)
	_, checks["update resume"] = f.store.UpdateResume(f.ctx, mallory, tree.ID, ResumePatch{Title: &title})
	checks["delete resume"] = f.store.DeleteResume(f.ctx, mallory, tree.ID)
	_, checks["duplicate resume"] = f.store.DuplicateResume(f.ctx, mallory, tree.ID)
	_, checks["list sections"] = f.store.ListSections(f.ctx, mallory, tree.ID)
	_, checks["create section"] = f.store.CreateSection(f.ctx, mallory, tree.ID, SectionInput{Title: "x"})
	_, checks["update section"] = f.store.UpdateSection(f.ctx, mallory, tree.ID, section.ID, SectionPatch{Title: &title})
	checks["delete section"] = f.store.DeleteSection(f.ctx, mallory, tree.ID, section.ID)
	_, checks["list entries"] = f.store.ListEntries(f.ctx, mallory, tree.ID, section.ID)
	_, checks["update entry"] = f.store.UpdateEntry(f.ctx, mallory, tree.ID, section.ID, entry.ID, EntryPatch{Title: &title})
	checks["delete entry"] = f.store.DeleteEntry(f.ctx, mallory, tree.ID, section.ID, entry.ID)

	for name, err := range checks {
		if !errors.Is(err, errcode.ErrNotFound) {
			t.Errorf("%s: expected not found got %v", name, err)
		}
	}

	after, err := f.store.GetResume(f.ctx, alice, tree.ID)
	if err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if after.Title != "Private" || len(after.Sections) != 2 || len(after.Sections[0].Entries) != 2 {
		t.Fatalf("owner data changed: %#v", after)
	}
}

func TestMismatchedParentIsNotFound(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")

	a := f.seedTree(t, alice, "A")
	b := f.seedTree(t, alice, "B")
	title := "moved"

	_, err := f.store.UpdateSection(f.ctx, alice, b.ID, a.Sections[0].ID, SectionPatch{Title: &title})
	if !errors.Is(err, errcode.ErrNotFound) || errcode.Message(err) != "section not found" {
		t.Fatalf("expected section not found got %v", err)
	}

	_, err = f.store.UpdateEntry(f.ctx, alice, a.ID, a.Sections[1].ID, a.Sections[0].Entries[0].ID, EntryPatch{Title: &title})
	if !errors.Is(err, errcode.ErrNotFound) || errcode.Message(err) != "entry not found" {
		t.Fatalf("expected entry not found got %v", err)
	}
}

func TestSectionOrderingAndUpdate(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	r := f.resume(t, alice, "Ordered")

	first := f.section(t, alice, r.ID, "First")
	second := f.section(t, alice, r.ID, "Second")
	if first.Order != 1 || second.Order != 2 {
		t.Fatalf("expected orders 1,2 got %d,%d", first.Order, second.Order)
	}

	order := 10
	updated, err := f.store.UpdateSection(f.ctx, alice, r.ID, first.ID, SectionPatch{Order: &order})
	if err != nil {
		t.Fatalf("update section: %v", err)
	}
	if updated.Title != "First" || updated.Order != 10 {
		t.Fatalf("unexpected section %#v", updated)
	}

	third := f.section(t, alice, r.ID, "Third")
	if third.Order != 11 {
		t.Fatalf("expected max+1 = 11 got %d", third.Order)
	}

	list, err := f.store.ListSections(f.ctx, alice, r.ID)
	if err != nil {
		t.Fatalf("list sections: %v", err)
	}
	got := []string{}
	for _, s := range list {
		got = append(got, s.Title)
	}
	if fmt.Sprint(got) != "[Second First Third]" {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestReorderSectionsSkipsUnknownIDs(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	r := f.resume(t, alice, "Reorder")
	a := f.section(t, alice, r.ID, "A")
	b := f.section(t, alice, r.ID, "B")
	c := f.section(t, alice, r.ID, "C")

	// 另一份简历的分组也应被跳过。
	other := f.resume(t, alice, "Other")
	foreign := f.section(t, alice, other.ID, "Foreign")

	three, one, two, nine := 3, 1, 2, 9
	list, err := f.store.ReorderSections(f.ctx, alice, r.ID, []OrderUpdate{
		{ID: a.ID, Order: &three},
		{ID: c.ID, Order: &one},
		{ID: 99999, Order: &two},
		{ID: foreign.ID, Order: &nine},
	})
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}

	want := []struct {
		id    uint
		order int
	}{{c.ID, 1}, {b.ID, 2}, {a.ID, 3}}
	if len(list) != len(want) {
		t.Fatalf("expected %d sections got %d", len(want), len(list))
	}
	for i, w := range want {
		if list[i].ID != w.id || list[i].Order != w.order {
			t.Fatalf("position %d: got id=%d order=%d want id=%d order=%d", i, list[i].ID, list[i].Order, w.id, w.order)
		}
	}

	untouched, err := f.store.ListSections(f.ctx, alice, other.ID)
	if err != nil {
		t.Fatalf("list other: %v", err)
	}
	if untouched[0].Order != foreign.Order {
		t.Fatalf("foreign section order changed to %d", untouched[0].Order)
	}

	if _, err := f.store.ReorderSections(f.ctx, alice, r.ID, []OrderUpdate{{ID: a.ID}}); !errors.Is(err, errcode.ErrValidation) {
		t.Fatalf("expected validation error got %v", err)
	}
}

func TestEntriesLifecycle(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	r := f.resume(t, alice, "Entries")
	s := f.section(t, alice, r.ID, "Work")

	start := time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC)
	first := f.entry(t, alice, r.ID, s.ID, EntryInput{Title: "Engineer", StartDate: DateOf(start), Current: true})
	second := f.entry(t, alice, r.ID, s.ID, EntryInput{Title: "Intern"})
	if first.Order != 1 || second.Order != 2 {
		t.Fatalf("expected orders 1,2 got %d,%d", first.Order, second.Order)
	}
	if first.StartDate == nil || *first.StartDate != "2019-03-01" || first.EndDate != nil {
		t.Fatalf("unexpected dates %v %v", first.StartDate, first.EndDate)
	}

	var patch EntryPatch
	if err := json.Unmarshal([]byte(`{"start_date": null, "end_date": "2021-06-30", "current": false}`), &patch); err != nil {
		t.Fatalf("decode patch: %v", err)
	}
	updated, err := f.store.UpdateEntry(f.ctx, alice, r.ID, s.ID, first.ID, patch)
	if err != nil {
		t.Fatalf("update entry: %v", err)
	}
	if updated.StartDate != nil || updated.EndDate == nil || *updated.EndDate != "2021-06-30" || updated.Current {
		t.Fatalf("unexpected entry %#v", updated)
	}
	if updated.Title != "Engineer" {
		t.Fatalf("title must be untouched got %q", updated.Title)
	}

	one, two := 1, 2
	list, err := f.store.ReorderEntries(f.ctx, alice, r.ID, s.ID, []OrderUpdate{
		{ID: first.ID, Order: &two},
		{ID: second.ID, Order: &one},
		{ID: 424242, Order: &one},
	})
	if err != nil {
		t.Fatalf("reorder entries: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("unexpected entry order %#v", list)
	}

	if err := f.store.DeleteEntry(f.ctx, alice, r.ID, s.ID, second.ID); err != nil {
		t.Fatalf("delete entry: %v", err)
	}
	remaining, err := f.store.ListEntries(f.ctx, alice, r.ID, s.ID)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != first.ID {
		t.Fatalf("unexpected remaining entries %#v", remaining)
	}
}

func TestDeleteSectionRemovesEntries(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	tree := f.seedTree(t, alice, "Sections")

	if err := f.store.DeleteSection(f.ctx, alice, tree.ID, tree.Sections[0].ID); err != nil {
		t.Fatalf("delete section: %v", err)
	}
	if n := f.count(t, &database.Section{}); n != 1 {
		t.Fatalf("expected 1 section got %d", n)
	}
	if n := f.count(t, &database.Entry{}); n != 2 {
		t.Fatalf("expected 2 entries got %d", n)
	}
}

func TestDeleteResumeCascades(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	doomed := f.seedTree(t, alice, "Doomed")
	kept := f.seedTree(t, alice, "Kept")

	if err := f.store.DeleteResume(f.ctx, alice, doomed.ID); err != nil {
		t.Fatalf("delete resume: %v", err)
	}
	if _, err := f.store.GetResume(f.ctx, alice, doomed.ID); !errors.Is(err, errcode.ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}

	var orphans int64
	f.db.Model(&database.Section{}).Where("resume_id = ?", doomed.ID).Count(&orphans)
	if orphans != 0 {
		t.Fatalf("orphaned sections: %d", orphans)
	}
	if n := f.count(t, &database.Entry{}); n != 4 {
		t.Fatalf("expected only the kept resume's 4 entries got %d", n)
	}

	still, err := f.store.GetResume(f.ctx, alice, kept.ID)
	if err != nil || len(still.Sections) != 2 {
		t.Fatalf("kept resume damaged: %v %#v", err, still)
	}
}

func TestDuplicateResumeDeepCopy(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	source := f.seedTree(t, alice, "Original")

	dup, err := f.store.DuplicateResume(f.ctx, alice, source.ID)
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if dup.Title != "Copy of Original" || dup.Slug != "copy-of-original" || dup.Theme != source.Theme {
		t.Fatalf("unexpected duplicate header %q %q %q", dup.Title, dup.Slug, dup.Theme)
	}
	if dup.ID == source.ID {
		t.Fatalf("duplicate reused the source id")
	}

	if len(dup.Sections) != len(source.Sections) {
		t.Fatalf("expected %d sections got %d", len(source.Sections), len(dup.Sections))
	}
	sourceSections := map[uint]bool{}
	sourceEntries := map[uint]bool{}
	for _, s := range source.Sections {
		sourceSections[s.ID] = true
		for _, e := range s.Entries {
			sourceEntries[e.ID] = true
		}
	}
	for i, s := range dup.Sections {
		orig := source.Sections[i]
		if sourceSections[s.ID] || s.ResumeID != dup.ID {
			t.Fatalf("section %d not freshly created: %#v", i, s)
		}
		if s.Title != orig.Title || s.Order != orig.Order || len(s.Entries) != len(orig.Entries) {
			t.Fatalf("section %d differs: %#v vs %#v", i, s, orig)
		}
		for j, e := range s.Entries {
			oe := orig.Entries[j]
			if sourceEntries[e.ID] || e.SectionID != s.ID {
				t.Fatalf("entry %d/%d shared with source", i, j)
			}
			if e.Title != oe.Title || e.Subtitle != oe.Subtitle || e.Description != oe.Description ||
				e.Current != oe.Current || e.Order != oe.Order ||
				deref(e.StartDate) != deref(oe.StartDate) || deref(e.EndDate) != deref(oe.EndDate) {
				t.Fatalf("entry %d/%d differs: %#v vs %#v", i, j, e, oe)
			}
		}
	}

	again, err := f.store.DuplicateResume(f.ctx, alice, source.ID)
	if err != nil {
		t.Fatalf("duplicate again: %v", err)
	}
	if again.Slug != "copy-of-original-1" {
		t.Fatalf("expected copy-of-original-1 got %q", again.Slug)
	}

	if err := f.store.DeleteResume(f.ctx, alice, dup.ID); err != nil {
		t.Fatalf("delete duplicate: %v", err)
	}
	after, err := f.store.GetResume(f.ctx, alice, source.ID)
	if err != nil {
		t.Fatalf("get source: %v", err)
	}
	if len(after.Sections) != 2 || len(after.Sections[0].Entries) != 2 || len(after.Sections[1].Entries) != 2 {
		t.Fatalf("source damaged by deleting the duplicate: %#v", after)
	}
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

func TestDuplicateResumeRollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	source := f.seedTree(t, alice, "Atomic")

	resumes := f.count(t, &database.Resume{})
	sections := f.count(t, &database.Section{})
	entries := f.count(t, &database.Entry{})

	err := f.db.Callback().Create().Before("gorm:create").Register("test:fail_entries", func(tx *gorm.DB) {
		if tx.Statement.Table == "entries" {
			_ = tx.AddError(errors.New("disk full"))
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	_, err = f.store.DuplicateResume(f.ctx, alice, source.ID)
	if err == nil {
		t.Fatalf("expected duplicate to fail")
	}
	if errcode.HTTPStatus(err) != 500 || errcode.Message(err) != "internal error" {
		t.Fatalf("storage failure leaked as %d %q", errcode.HTTPStatus(err), errcode.Message(err))
	}

	if got := f.count(t, &database.Resume{}); got != resumes {
		t.Fatalf("resumes: got %d want %d", got, resumes)
	}
	if got := f.count(t, &database.Section{}); got != sections {
		t.Fatalf("sections: got %d want %d", got, sections)
	}
	if got := f.count(t, &database.Entry{}); got != entries {
		t.Fatalf("entries: got %d want %d", got, entries)
	}
}

func TestRetryOnSlugConflict(t *testing.T) {
	calls := 0
	err := retryOnSlugConflict(func() error {
		calls++
		if calls == 1 {
			return fmt.Errorf("create resume: %w", gorm.ErrDuplicatedKey)
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("expected one retry, got calls=%d err=%v", calls, err)
	}

	calls = 0
	err = retryOnSlugConflict(func() error {
		calls++
		return gorm.ErrDuplicatedKey
	})
	if !errors.Is(err, gorm.ErrDuplicatedKey) || calls != 2 {
		t.Fatalf("expected to give up after one retry, got calls=%d err=%v", calls, err)
	}
}

func TestOptionalDateUnmarshal(t *testing.T) {
	cases := []struct {
		body    string
		set     bool
		value   string
		wantErr bool
	}{
		{`{}`, false, "", false},
		{`{"start_date": null}`, true, "", false},
		{`{"start_date": ""}`, true, "", false},
		{`{"start_date": "2022-02-28"}`, true, "2022-02-28", false},
		{`{"start_date": "28/02/2022"}`, false, "", true},
		{`{"start_date": 20220228}`, false, "", true},
	}

	for _, tc := range cases {
		var patch EntryPatch
		err := json.Unmarshal([]byte(tc.body), &patch)
		if tc.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tc.body)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %v", tc.body, err)
			continue
		}
		if patch.StartDate.Set != tc.set {
			t.Errorf("%s: set=%v want %v", tc.body, patch.StartDate.Set, tc.set)
		}
		got := ""
		if patch.StartDate.Value != nil {
			got = patch.StartDate.Value.Format(dateLayout)
		}
		if got != tc.value {
			t.Errorf("%s: value=%q want %q", tc.body, got, tc.value)
		}
	}
}
