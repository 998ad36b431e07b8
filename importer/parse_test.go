package importer

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/config"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/store"
)

var headerRow = []string{"Machine", "order", "Manufactured Item", "Item Desc", "datum", "Week", "code", "Plan"}

func testParser() *Parser {
	return NewParser(DefaultColumns(), 14)
}

func TestParseHappyPath(t *testing.T) {
	rows := [][]string{
		headerRow,
		{"4010", "N123", "Elbow", "Elbow 90", "2024-06-15", "24", "EL90", "5"},
	}
	drafts, err := testParser().Parse(rows, NewSnapshot(nil, time.Now()))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(drafts) != 1 {
		t.Fatalf("drafts = %d, want 1", len(drafts))
	}
	d := drafts[0]
	if d.Machine != "10" {
		t.Errorf("Machine = %q, want 10", d.Machine)
	}
	if d.MachineLabel != "4010" {
		t.Errorf("MachineLabel = %q, want 4010", d.MachineLabel)
	}
	if d.ID != "N123_Elbow" {
		t.Errorf("ID = %q, want N123_Elbow", d.ID)
	}
	if d.PlannedDate == nil || d.PlannedDate.Format("2006-01-02") != "2024-06-01" {
		t.Errorf("PlannedDate = %v, want 2024-06-01", d.PlannedDate)
	}
	if d.IsExisting {
		t.Error("IsExisting should be false")
	}
	if d.Plan != 5 {
		t.Errorf("Plan = %d, want 5", d.Plan)
	}
	if d.WeekNumber == nil || *d.WeekNumber != 24 {
		t.Errorf("WeekNumber = %v, want 24", d.WeekNumber)
	}
	if d.Row != 2 {
		t.Errorf("Row = %d, want 2", d.Row)
	}
}

func TestParseHeaderNotFirstRow(t *testing.T) {
	rows := [][]string{
		{"Planning export week 24"},
		{},
		headerRow,
		{"4011", "N124", "Tee", "", "", "", "", ""},
	}
	drafts, err := testParser().Parse(rows, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(drafts) != 1 {
		t.Fatalf("drafts = %d, want 1", len(drafts))
	}
	d := drafts[0]
	if d.Plan != 1 {
		t.Errorf("Plan = %d, want default 1", d.Plan)
	}
	if d.WeekNumber != nil {
		t.Errorf("WeekNumber = %v, want nil", *d.WeekNumber)
	}
	if d.DeliveryDate != nil || d.PlannedDate != nil {
		t.Error("empty date cell should give nil dates")
	}
}

func TestParseMissingHeader(t *testing.T) {
	rows := [][]string{
		{"machine", "Order", "Plan"},
		{"4010", "N1", "3"},
	}
	_, err := testParser().Parse(rows, nil)
	var hnf *HeaderNotFoundError
	if !errors.As(err, &hnf) {
		t.Fatalf("err = %v, want HeaderNotFoundError", err)
	}
	if hnf.RowsScanned != 2 {
		t.Errorf("RowsScanned = %d, want 2", hnf.RowsScanned)
	}

	if _, err := testParser().Parse(nil, nil); !errors.As(err, &hnf) {
		t.Errorf("empty input err = %v, want HeaderNotFoundError", err)
	}
}

func TestParseSkipsIncompleteRows(t *testing.T) {
	rows := [][]string{
		headerRow,
		{"", "N1", "A"},
		{"4010", "", "A"},
		{"4010", "N2", "B"},
		{"4012"},
	}
	drafts, err := testParser().Parse(rows, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(drafts) != 1 || drafts[0].OrderID != "N2" {
		t.Errorf("drafts = %+v, want only N2", drafts)
	}
}

func TestParseEmptyAndDuplicateColumns(t *testing.T) {
	rows := [][]string{
		{"", "Machine", " ", "order", "Manufactured Item", "order", "Plan", ""},
		{"junk", "4013", "junk", "N9", "Reducer", "N-other", "2", "junk"},
	}
	drafts, err := testParser().Parse(rows, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(drafts) != 1 {
		t.Fatalf("drafts = %d, want 1", len(drafts))
	}
	if drafts[0].OrderID != "N9" {
		t.Errorf("OrderID = %q, want first order column N9", drafts[0].OrderID)
	}
	for k := range drafts[0].Fields() {
		if k == "" {
			t.Error("document must not contain an empty key")
		}
	}
}

func TestParseValidationErrorsBlockImport(t *testing.T) {
	rows := [][]string{
		headerRow,
		{"4010", "N1", "A", "", "2024-06-15"},
		{"4010", "N2", "B", "", "31-31-2024"},
		{"4010", "N3", "C", "", "next friday"},
	}
	drafts, err := testParser().Parse(rows, nil)
	if drafts != nil {
		t.Errorf("drafts = %v, want nil on validation failure", drafts)
	}
	var verr ValidationErrors
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationErrors", err)
	}
	if len(verr) != 2 {
		t.Fatalf("issues = %d, want 2: %v", len(verr), verr)
	}
	if verr[0].Row != 3 || verr[1].Row != 4 {
		t.Errorf("issue rows = %d, %d, want 3, 4", verr[0].Row, verr[1].Row)
	}
	if verr[0].Column != "datum" || verr[1].Column != "datum" {
		t.Errorf("issue columns = %q, %q, want datum", verr[0].Column, verr[1].Column)
	}
}

func TestParseEmptyItemStillDrafts(t *testing.T) {
	rows := [][]string{
		headerRow,
		{"4010", "N123", "Elbow", "", "2024-06-15"},
		{"4011", "N124", "", "", "2024-06-20"},
	}
	drafts, err := testParser().Parse(rows, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("drafts = %d, want 2", len(drafts))
	}
	if drafts[1].ID != "N124_" || drafts[1].ManufacturedItem != "" || drafts[1].Machine != "11" {
		t.Errorf("empty item draft = %+v", drafts[1])
	}
}

func TestParseSpreadsheetSerialDate(t *testing.T) {
	rows := [][]string{
		headerRow,
		{"4010", "N1", "A", "", "45458", "", "", "2,0"},
	}
	drafts, err := testParser().Parse(rows, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := drafts[0].DeliveryDate.Format("2006-01-02"); got != "2024-06-15" {
		t.Errorf("DeliveryDate = %s, want 2024-06-15", got)
	}
	if drafts[0].Plan != 2 {
		t.Errorf("Plan = %d, want 2", drafts[0].Plan)
	}
}

func TestParseMarksExisting(t *testing.T) {
	rows := [][]string{
		headerRow,
		{"4010", "N1", "A"},
		{"4010", "N2", "B"},
	}
	snap := NewSnapshot([]string{"N1_A"}, time.Now())
	drafts, err := testParser().Parse(rows, snap)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !drafts[0].IsExisting || drafts[1].IsExisting {
		t.Errorf("IsExisting = %v, %v, want true, false", drafts[0].IsExisting, drafts[1].IsExisting)
	}
}

func TestParseConfiguredColumns(t *testing.T) {
	cfg := config.Defaults().Import
	cfg.MachineColumn = "Station"
	cfg.OrderColumn = "Order No"
	p := NewParser(ColumnsFromConfig(cfg), cfg.LeadTimeDays)
	rows := [][]string{
		{"Station", "Order No", "Manufactured Item"},
		{"MAZAK", "N5", "Flange"},
	}
	drafts, err := p.Parse(rows, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(drafts) != 1 || drafts[0].Machine != "MAZAK" {
		t.Errorf("drafts = %+v", drafts)
	}
}

var idRe = regexp.MustCompile(`^[A-Za-z0-9_]*$`)

func TestSanitizeIDDeterministic(t *testing.T) {
	cases := []struct{ order, item, want string }{
		{"N123", "Elbow", "N123_Elbow"},
		{"N123", "EL-90/45 DN100", "N123_EL_90_45_DN100"},
		{"N 1", "Bögen.2", "N_1_B_gen_2"},
		{"", "", "_"},
	}
	for _, c := range cases {
		got := DraftID(c.order, c.item)
		if got != c.want {
			t.Errorf("DraftID(%q, %q) = %q, want %q", c.order, c.item, got, c.want)
		}
		if got != DraftID(c.order, c.item) {
			t.Errorf("DraftID(%q, %q) not deterministic", c.order, c.item)
		}
		if !idRe.MatchString(got) {
			t.Errorf("DraftID(%q, %q) = %q has characters outside [A-Za-z0-9_]", c.order, c.item, got)
		}
	}
}

func TestDraftFieldsStatusOnlyForNew(t *testing.T) {
	d := OrderDraft{ID: "N1_A", OrderID: "N1", ManufacturedItem: "A", Machine: "10", Plan: 3}
	if d.Fields()[store.KeyStatus] != store.OrderPending {
		t.Error("new draft should carry pending status")
	}
	d.IsExisting = true
	if _, ok := d.Fields()[store.KeyStatus]; ok {
		t.Error("existing draft must not touch status")
	}
	if _, ok := d.Fields()[store.KeyDeliveryDate]; ok {
		t.Error("absent delivery date should be omitted")
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]OrderDraft{
		{ID: "a"}, {ID: "b", IsExisting: true}, {ID: "a"}, {ID: "a"},
	})
	if s.Total != 4 || s.New != 3 || s.Existing != 1 {
		t.Errorf("summary = %+v", s)
	}
	if len(s.DuplicateIDs) != 1 || s.DuplicateIDs[0] != "a" {
		t.Errorf("DuplicateIDs = %v, want [a]", s.DuplicateIDs)
	}
}
