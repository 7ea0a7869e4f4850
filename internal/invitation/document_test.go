package invitation

import (
	"reflect"
	"testing"
)

func orderSequence(t *testing.T, d *Document) []int {
	t.Helper()
	blocks := d.Blocks()
	out := make([]int, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, b.Order)
	}
	return out
}

func assertInvariants(t *testing.T, d *Document) {
	t.Helper()
	seen := make(map[string]struct{})
	for _, b := range d.Blocks() {
		if _, dup := seen[b.ID]; dup {
			t.Fatalf("duplicate block id %q", b.ID)
		}
		seen[b.ID] = struct{}{}
	}
	seq := orderSequence(t, d)
	for i := 1; i < len(seq); i++ {
		if seq[i] <= seq[i-1] {
			t.Fatalf("order sequence not strictly increasing: %v", seq)
		}
	}
}

func seedDocument(t *testing.T, kinds ...Kind) *Document {
	t.Helper()
	d := NewDocument()
	for _, k := range kinds {
		if _, err := d.Add(k); err != nil {
			t.Fatalf("add %s: %v", k, err)
		}
	}
	return d
}

func TestAddAssignsIncreasingOrder(t *testing.T) {
	d := seedDocument(t, KindHeader, KindContent, KindLocation)
	assertInvariants(t, d)

	if got := orderSequence(t, d); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Fatalf("unexpected order sequence: %v", got)
	}
}

func TestAddUnknownKindRejected(t *testing.T) {
	d := NewDocument()
	if _, err := d.Add(Kind("video")); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if d.Len() != 0 {
		t.Fatalf("document mutated on rejected add: len=%d", d.Len())
	}
}

func TestRemoveLeavesGaps(t *testing.T) {
	d := seedDocument(t, KindHeader, KindContent, KindLocation)
	middle := d.Blocks()[1]

	if err := d.Remove(middle.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	assertInvariants(t, d)
	if got := orderSequence(t, d); !reflect.DeepEqual(got, []int{1, 3}) {
		t.Fatalf("expected gap preserved, got %v", got)
	}
	if err := d.Remove("missing"); err == nil {
		t.Fatal("expected error for unknown id")
	}
}

func TestDuplicateInsertsAdjacent(t *testing.T) {
	d := seedDocument(t, KindHeader, KindContent, KindLocation)
	src := d.Blocks()[0]
	if err := d.Update(src.ID, Patch{Header: &HeaderPatch{GroomName: strPtr("김철수"), BrideName: strPtr("이영희")}}); err != nil {
		t.Fatalf("update: %v", err)
	}

	before := d.Len()
	clone, err := d.Duplicate(src.ID)
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	assertInvariants(t, d)

	if d.Len() != before+1 {
		t.Fatalf("expected len %d, got %d", before+1, d.Len())
	}
	if clone.ID == src.ID {
		t.Fatal("clone shares id with source")
	}

	srcNow, _ := d.ByID(src.ID)
	if !reflect.DeepEqual(clone.Header, srcNow.Header) || clone.Header == srcNow.Header {
		t.Fatalf("clone payload must deep-equal source without sharing memory")
	}

	// 克隆件必须紧跟在源区块之后。
	sorted := d.Blocks()
	if sorted[0].ID != src.ID || sorted[1].ID != clone.ID {
		t.Fatalf("clone not adjacent to source: %v then %v", sorted[0].ID, sorted[1].ID)
	}
}

func TestDuplicateCloneIsIndependent(t *testing.T) {
	d := seedDocument(t, KindContact)
	src := d.Blocks()[0]
	if err := d.Update(src.ID, Patch{Contact: &ContactPatch{
		Contacts: []Contact{{Name: "김철수", Relation: "groom", Phone: "010-1234-5678"}},
	}}); err != nil {
		t.Fatalf("update: %v", err)
	}

	clone, err := d.Duplicate(src.ID)
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}

	if err := d.Update(clone.ID, Patch{Contact: &ContactPatch{
		Contacts: []Contact{{Name: "박영수", Relation: "bride", Phone: "010-0000-0000"}},
	}}); err != nil {
		t.Fatalf("update clone: %v", err)
	}

	srcNow, _ := d.ByID(src.ID)
	if srcNow.Contact.Contacts[0].Name != "김철수" {
		t.Fatalf("editing clone leaked into source: %+v", srcNow.Contact.Contacts)
	}
}

func TestMoveUpThenDownIsIdentity(t *testing.T) {
	d := seedDocument(t, KindHeader, KindContent, KindLocation, KindRSVP)
	target := d.Blocks()[2]
	before := orderSequence(t, d)

	if err := d.MoveUp(target.ID); err != nil {
		t.Fatalf("move up: %v", err)
	}
	assertInvariants(t, d)
	if err := d.MoveDown(target.ID); err != nil {
		t.Fatalf("move down: %v", err)
	}
	assertInvariants(t, d)

	if got := orderSequence(t, d); !reflect.DeepEqual(got, before) {
		t.Fatalf("moveUp+moveDown changed order sequence: %v -> %v", before, got)
	}
}

func TestMoveIsNoopAtBoundaries(t *testing.T) {
	d := seedDocument(t, KindHeader, KindContent)
	sorted := d.Blocks()

	if err := d.MoveUp(sorted[0].ID); err != nil {
		t.Fatalf("move up at top: %v", err)
	}
	if err := d.MoveDown(sorted[1].ID); err != nil {
		t.Fatalf("move down at bottom: %v", err)
	}
	if got := orderSequence(t, d); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Fatalf("boundary move mutated order: %v", got)
	}
}

func TestMoveSwapsWithSortedNeighbor(t *testing.T) {
	d := seedDocument(t, KindHeader, KindContent, KindLocation)
	sorted := d.Blocks()

	if err := d.MoveDown(sorted[0].ID); err != nil {
		t.Fatalf("move down: %v", err)
	}
	after := d.Blocks()
	if after[0].ID != sorted[1].ID || after[1].ID != sorted[0].ID {
		t.Fatalf("expected head two blocks swapped, got %v %v", after[0].ID, after[1].ID)
	}
	assertInvariants(t, d)
}

func TestSetVisibleKeepsOrder(t *testing.T) {
	d := seedDocument(t, KindHeader, KindContent, KindImage)
	target := d.Blocks()[1]

	if err := d.SetVisible(target.ID, false); err != nil {
		t.Fatalf("set visible: %v", err)
	}

	if got := len(d.VisibleBlocks()); got != 2 {
		t.Fatalf("expected 2 visible blocks, got %d", got)
	}
	if got := orderSequence(t, d); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Fatalf("visibility toggle changed order: %v", got)
	}
}

func TestValidateReportsIncompleteVisibleBlocks(t *testing.T) {
	d := seedDocument(t, KindHeader, KindContent, KindLocation)
	header := d.Blocks()[0]
	location := d.Blocks()[2]

	got := d.Validate()
	if len(got) != 2 {
		t.Fatalf("expected header and location incomplete, got %v", got)
	}

	// 不可见区块不参与校验。
	if err := d.SetVisible(location.ID, false); err != nil {
		t.Fatalf("set visible: %v", err)
	}
	got = d.Validate()
	if len(got) != 1 || got[0] != header.ID {
		t.Fatalf("expected only header incomplete, got %v", got)
	}

	if err := d.Update(header.ID, Patch{Header: &HeaderPatch{
		GroomName: strPtr("김철수"),
		BrideName: strPtr("이영희"),
	}}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := d.Validate(); len(got) != 0 {
		t.Fatalf("expected save-eligible document, got %v", got)
	}
}

func TestUpdateMergesPayload(t *testing.T) {
	d := seedDocument(t, KindHeader)
	id := d.Blocks()[0].ID

	if err := d.Update(id, Patch{Header: &HeaderPatch{GroomName: strPtr("김철수")}}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := d.Update(id, Patch{Header: &HeaderPatch{Date: strPtr("2026-10-24")}}); err != nil {
		t.Fatalf("update: %v", err)
	}

	b, _ := d.ByID(id)
	if b.Header.GroomName != "김철수" || b.Header.Date != "2026-10-24" {
		t.Fatalf("partial update replaced payload: %+v", b.Header)
	}
}

func TestUpdateRejectsMismatchedPatch(t *testing.T) {
	d := seedDocument(t, KindHeader)
	id := d.Blocks()[0].ID

	err := d.Update(id, Patch{Image: &ImagePatch{URL: strPtr("https://example.com/a.jpg")}})
	if err == nil {
		t.Fatal("expected payload mismatch error")
	}
	b, _ := d.ByID(id)
	if b.Image != nil {
		t.Fatal("mismatched patch mutated block")
	}
}

func TestNormalizeRemovesTies(t *testing.T) {
	a, _ := NewBlock(KindHeader)
	b, _ := NewBlock(KindContent)
	c, _ := NewBlock(KindLocation)
	a.Order, b.Order, c.Order = 3, 3, 7

	d, err := FromBlocks([]Block{a, b, c})
	if err != nil {
		t.Fatalf("from blocks: %v", err)
	}

	d.Normalize()
	if got := orderSequence(t, d); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Fatalf("normalize did not produce 1..n: %v", got)
	}
	assertInvariants(t, d)
}

func TestFromBlocksRejectsDuplicateIDs(t *testing.T) {
	a, _ := NewBlock(KindHeader)
	b := a
	if _, err := FromBlocks([]Block{a, b}); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func strPtr(s string) *string { return &s }
