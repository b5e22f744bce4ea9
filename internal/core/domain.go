package core

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// MaxFieldLength bounds the free-text row fields (entity, article, project).
const MaxFieldLength = 255

type (
	// Period is a named, ordered column of the table (one time bucket).
	Period struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Order int    `json:"order"`
	}

	// Row is a node of the budget forest as stored: a flat record with a
	// back-reference to its parent. Level is fixed at creation time.
	Row struct {
		ID       int64
		Order    int
		Level    int
		ParentID *int64
		Entity   string // legal entity
		Article  string // budget article
		Project  string
		Cells    []Cell
	}

	// Cell is the value at one row/period intersection. A nil Value is an
	// empty cell.
	Cell struct {
		ID       int64    `json:"id"`
		RowID    int64    `json:"row_id"`
		PeriodID int64    `json:"period_id"`
		Value    *float64 `json:"value"`
	}

	// RowNode is the presentation form of a Row with its subtree attached.
	RowNode struct {
		ID       int64     `json:"id"`
		Order    int       `json:"order"`
		Level    int       `json:"level"`
		ParentID *int64    `json:"parent_id"`
		Entity   string    `json:"entity"`
		Article  string    `json:"article"`
		Project  string    `json:"project"`
		Cells    []Cell    `json:"cells"`
		Children []RowNode `json:"children"`
	}

	// Table is the full read model returned to clients.
	Table struct {
		Periods []Period  `json:"periods"`
		Rows    []RowNode `json:"rows"`
	}

	// NewRow is the input for adding a row. A nil ParentID adds a root row.
	NewRow struct {
		ParentID *int64 `json:"parent_id"`
		Entity   string `json:"entity"`
		Article  string `json:"article"`
		Project  string `json:"project"`
	}

	// RowPatch is a partial update of the text fields; nil fields are left
	// untouched.
	RowPatch struct {
		Entity  *string
		Article *string
		Project *string
	}

	// RowFields holds the resulting text fields of a row.
	RowFields struct {
		Entity  string `json:"entity"`
		Article string `json:"article"`
		Project string `json:"project"`
	}
)

// Node converts a stored row into a leaf node (no children yet).
func (r Row) Node() RowNode {
	cells := r.Cells
	if cells == nil {
		cells = []Cell{}
	}
	return RowNode{
		ID:       r.ID,
		Order:    r.Order,
		Level:    r.Level,
		ParentID: r.ParentID,
		Entity:   r.Entity,
		Article:  r.Article,
		Project:  r.Project,
		Cells:    cells,
		Children: []RowNode{},
	}
}

// Fields returns the row's text fields.
func (r Row) Fields() RowFields {
	return RowFields{Entity: r.Entity, Article: r.Article, Project: r.Project}
}

// IsRoot reports whether the row has no parent.
func (r Row) IsRoot() bool {
	return r.ParentID == nil
}

// Validate checks the text fields of a new row.
func (n NewRow) Validate() error {
	if err := validateField("entity", n.Entity); err != nil {
		return err
	}
	if err := validateField("article", n.Article); err != nil {
		return err
	}
	return validateField("project", n.Project)
}

// Validate checks the provided fields of a patch.
func (p RowPatch) Validate() error {
	for _, f := range []struct {
		name  string
		value *string
	}{
		{"entity", p.Entity},
		{"article", p.Article},
		{"project", p.Project},
	} {
		if f.value == nil {
			continue
		}
		if err := validateField(f.name, *f.value); err != nil {
			return err
		}
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p RowPatch) IsEmpty() bool {
	return p.Entity == nil && p.Article == nil && p.Project == nil
}

// Apply writes the provided patch fields onto the row.
func (p RowPatch) Apply(r *Row) {
	if p.Entity != nil {
		r.Entity = *p.Entity
	}
	if p.Article != nil {
		r.Article = *p.Article
	}
	if p.Project != nil {
		r.Project = *p.Project
	}
}

// ValidateCellValue rejects values that cannot be stored as a number.
func ValidateCellValue(v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return &ValidationError{Field: "value", Reason: "must be a finite number"}
	}
	return nil
}

// DefaultPeriodName is the placeholder name of a period created without one.
func DefaultPeriodName(order int) string {
	return fmt.Sprintf("Период %d", order+1)
}

// NormalizePeriodName trims the name and falls back to the placeholder.
func NormalizePeriodName(name string, order int) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultPeriodName(order)
	}
	return name
}

func validateField(name, value string) error {
	if utf8.RuneCountInString(value) > MaxFieldLength {
		return &ValidationError{
			Field:  name,
			Reason: fmt.Sprintf("must be at most %d characters", MaxFieldLength),
		}
	}
	if !utf8.ValidString(value) {
		return &ValidationError{Field: name, Reason: "must be valid UTF-8"}
	}
	return nil
}
