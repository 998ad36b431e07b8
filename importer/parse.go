package importer

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/config"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/planning"
	"github.com/richardvh18-dotcom/FPIFF-30-1-sub003/store"
)

// Columns names the header cells the parser maps to order fields.
// Matching is exact after trimming surrounding whitespace.
type Columns struct {
	Machine string
	Order   string
	Item    string
	Desc    string
	Date    string
	Week    string
	Code    string
	Plan    string
}

// DefaultColumns returns the header names of the planning export.
func DefaultColumns() Columns {
	return Columns{
		Machine: "Machine",
		Order:   "order",
		Item:    "Manufactured Item",
		Desc:    "Item Desc",
		Date:    "datum",
		Week:    "Week",
		Code:    "code",
		Plan:    "Plan",
	}
}

// ColumnsFromConfig overlays configured header names on the defaults.
func ColumnsFromConfig(cfg config.ImportConfig) Columns {
	c := DefaultColumns()
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&c.Machine, cfg.MachineColumn)
	set(&c.Order, cfg.OrderColumn)
	set(&c.Item, cfg.ItemColumn)
	set(&c.Desc, cfg.DescColumn)
	set(&c.Date, cfg.DateColumn)
	set(&c.Week, cfg.WeekColumn)
	set(&c.Code, cfg.CodeColumn)
	set(&c.Plan, cfg.PlanColumn)
	return c
}

// OrderDraft is one parsed spreadsheet row, ready to be written.
type OrderDraft struct {
	ID               string     `json:"id"`
	OrderID          string     `json:"orderId"`
	ManufacturedItem string     `json:"manufacturedItem"`
	ItemDesc         string     `json:"itemDesc"`
	Code             string     `json:"code"`
	Machine          string     `json:"machine"`
	MachineLabel     string     `json:"machineLabel"`
	DeliveryDate     *time.Time `json:"deliveryDate"`
	PlannedDate      *time.Time `json:"plannedDate"`
	WeekNumber       *int       `json:"weekNumber"`
	Plan             int        `json:"plan"`
	IsExisting       bool       `json:"isExisting"`
	Row              int        `json:"row"`
}

// Fields is the merge document for the draft. Absent values are left out so
// a merge never clears data already stored. Status is only set on new orders.
func (d OrderDraft) Fields() map[string]any {
	f := map[string]any{
		store.KeyOrderID:          d.OrderID,
		store.KeyManufacturedItem: d.ManufacturedItem,
		store.KeyItemCode:         d.ManufacturedItem,
		store.KeyMachine:          d.Machine,
		store.KeyMachineLabel:     d.MachineLabel,
		store.KeyPlan:             d.Plan,
	}
	if d.ItemDesc != "" {
		f[store.KeyItemDesc] = d.ItemDesc
	}
	if d.Code != "" {
		f[store.KeyCode] = d.Code
	}
	if d.DeliveryDate != nil {
		f[store.KeyDeliveryDate] = d.DeliveryDate.Format(planning.DateLayout)
	}
	if d.PlannedDate != nil {
		f[store.KeyPlannedDate] = d.PlannedDate.Format(planning.DateLayout)
	}
	if d.WeekNumber != nil {
		f[store.KeyWeekNumber] = *d.WeekNumber
	}
	// Classification comes from the preview snapshot; a line created after it
	// is merged back to pending.
	if !d.IsExisting {
		f[store.KeyStatus] = store.OrderPending
	}
	return f
}

// SanitizeID replaces every character outside [A-Za-z0-9] with '_'.
func SanitizeID(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// DraftID derives the document ID of an order line.
func DraftID(orderID, item string) string {
	return SanitizeID(orderID + "_" + item)
}

// Parser turns spreadsheet rows into order drafts.
type Parser struct {
	Columns    Columns
	Calculator planning.Calculator
}

// NewParser returns a parser for the given header names and lead time.
func NewParser(cols Columns, leadTimeDays int) *Parser {
	return &Parser{Columns: cols, Calculator: planning.NewCalculator(leadTimeDays)}
}

// columnIndex maps a column name to its first cell index.
type columnIndex map[string]int

// FindHeader returns the index of the first row holding both the machine
// and the order column, with its column index map.
func (p *Parser) FindHeader(rows [][]string) (int, columnIndex, error) {
	for i, row := range rows {
		h := make(columnIndex, len(row))
		for j, cell := range row {
			name := strings.TrimSpace(cell)
			if name == "" {
				continue
			}
			if _, dup := h[name]; !dup {
				h[name] = j
			}
		}
		_, hasMachine := h[p.Columns.Machine]
		_, hasOrder := h[p.Columns.Order]
		if hasMachine && hasOrder {
			return i, h, nil
		}
	}
	return -1, nil, &HeaderNotFoundError{
		MachineColumn: p.Columns.Machine,
		OrderColumn:   p.Columns.Order,
		RowsScanned:   len(rows),
	}
}

func (h columnIndex) cell(row []string, name string) string {
	j, ok := h[name]
	if !ok || j >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[j])
}

// Parse builds drafts for every data row below the header that has both an
// order number and a machine. Rows that fail validation are collected and
// returned together as ValidationErrors; in that case no drafts are returned.
func (p *Parser) Parse(rows [][]string, existing *Snapshot) ([]OrderDraft, error) {
	start, h, err := p.FindHeader(rows)
	if err != nil {
		return nil, err
	}

	var drafts []OrderDraft
	var issues ValidationErrors
	for i := start + 1; i < len(rows); i++ {
		row := rows[i]
		orderID := h.cell(row, p.Columns.Order)
		machineRaw := h.cell(row, p.Columns.Machine)
		if orderID == "" || machineRaw == "" {
			continue
		}
		rowNum := i + 1

		// An empty item still keys the line as "<order>_".
		item := h.cell(row, p.Columns.Item)

		d := OrderDraft{
			ID:               DraftID(orderID, item),
			OrderID:          orderID,
			ManufacturedItem: item,
			ItemDesc:         h.cell(row, p.Columns.Desc),
			Code:             h.cell(row, p.Columns.Code),
			Machine:          planning.NormalizeMachine(machineRaw),
			MachineLabel:     machineRaw,
			WeekNumber:       parseWeek(h.cell(row, p.Columns.Week)),
			Plan:             parsePlan(h.cell(row, p.Columns.Plan)),
			IsExisting:       existing.Contains(DraftID(orderID, item)),
			Row:              rowNum,
		}
		if raw := h.cell(row, p.Columns.Date); raw != "" {
			w := p.Calculator.Window(raw)
			if w.Delivery == nil {
				issues = append(issues, ValidationIssue{Row: rowNum, Column: p.Columns.Date, Message: "unreadable date " + strconv.Quote(raw)})
				continue
			}
			d.DeliveryDate, d.PlannedDate = w.Delivery, w.Planned
		}
		drafts = append(drafts, d)
	}
	if len(issues) > 0 {
		return nil, issues
	}
	return drafts, nil
}

// parseNumber accepts integers and integral floats ("24", "24.0", "24,0").
func parseNumber(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func parseWeek(s string) *int {
	n, ok := parseNumber(s)
	if !ok || n < 1 || n > 53 {
		return nil
	}
	return &n
}

func parsePlan(s string) int {
	n, ok := parseNumber(s)
	if !ok || n < 1 {
		return 1
	}
	return n
}

// Summary counts a parsed import for the preview.
type Summary struct {
	Total        int      `json:"total"`
	New          int      `json:"new"`
	Existing     int      `json:"existing"`
	DuplicateIDs []string `json:"duplicate_ids,omitempty"`
}

// Summarize counts new and existing drafts and lists IDs that occur more than
// once in the same import. Duplicates are not blocking; the last row wins.
func Summarize(drafts []OrderDraft) Summary {
	s := Summary{Total: len(drafts)}
	seen := make(map[string]int, len(drafts))
	for _, d := range drafts {
		if d.IsExisting {
			s.Existing++
		} else {
			s.New++
		}
		seen[d.ID]++
		if seen[d.ID] == 2 {
			s.DuplicateIDs = append(s.DuplicateIDs, d.ID)
		}
	}
	return s
}
