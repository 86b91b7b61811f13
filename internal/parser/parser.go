package parser

import (
	"bytes"
	"encoding/json"

	sitter "github.com/smacker/go-tree-sitter"
)

// Language identifies the grammar used to parse a source file.
type Language string

const (
	LangSQL        Language = "sql"
	LangJava       Language = "java"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangPython     Language = "python"
	LangGo         Language = "go"
	LangCSharp     Language = "csharp"
)

// FileInput represents a file to be analysed.
type FileInput struct {
	Path     string
	Content  []byte
	Language Language
}

// ColumnRef is a column name attributed to an entity with a confidence in (0, 1].
type ColumnRef struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Invocation records one use of a database entity in a source file.
//
// ColumnRefs is nil when no column attribution was attempted and non-nil
// (possibly empty) when it was; the difference survives JSON encoding.
type Invocation struct {
	FilePath     string      `json:"file_path"`
	Entity       string      `json:"entity"`
	X1           int         `json:"x1"`
	Y1           int         `json:"y1"`
	X2           int         `json:"x2"`
	Y2           int         `json:"y2"`
	ColumnRefs   []ColumnRef `json:"column_refs"`
	IsAllColumns bool        `json:"is_all_columns"`
	Confidence   float64     `json:"confidence"`
	Join         bool        `json:"join"`
}

// SetSpan copies a span into the record's coordinates.
func (i *Invocation) SetSpan(s Span) {
	i.X1, i.Y1, i.X2, i.Y2 = s.X1, s.Y1, s.X2, s.Y2
}

// ChangeKind is the kind of schema change a migration applies to an entity.
type ChangeKind string

const (
	AlterTable ChangeKind = "alter_table"
	DropTable  ChangeKind = "drop_table"
	AlterView  ChangeKind = "alter_view"
	DropView   ChangeKind = "drop_view"
)

// Change is a single alteration or drop found in a migration.
type Change struct {
	Kind ChangeKind `json:"kind"`
	X1   int        `json:"x1"`
	Y1   int        `json:"y1"`
	X2   int        `json:"x2"`
	Y2   int        `json:"y2"`
}

// Changes maps entity names to the changes applied to them, keeping the
// order in which entities were first seen.
type Changes struct {
	keys []string
	byID map[string][]Change
}

func NewChanges() *Changes {
	return &Changes{byID: make(map[string][]Change)}
}

// Add appends a change for entity.
func (c *Changes) Add(entity string, ch Change) {
	if _, ok := c.byID[entity]; !ok {
		c.keys = append(c.keys, entity)
	}
	c.byID[entity] = append(c.byID[entity], ch)
}

// Entities returns entity names in first-seen order.
func (c *Changes) Entities() []string {
	return append([]string(nil), c.keys...)
}

// Get returns the changes recorded for entity.
func (c *Changes) Get(entity string) []Change {
	return c.byID[entity]
}

func (c *Changes) Len() int {
	return len(c.keys)
}

// MarshalJSON renders the changes as an object whose keys keep insertion order.
func (c *Changes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(c.byID[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MigrationResult maps migration file paths to the changes they contain.
type MigrationResult map[string]*Changes

// Span is a 1-based source range. X2 is exclusive of the last column in
// the same way tree-sitter end points are, shifted by one.
type Span struct {
	X1, Y1, X2, Y2 int
}

// Offset shifts node coordinates found in reconstructed text back onto the
// host file. Both fields are 0-based.
type Offset struct {
	Row    int
	Column int
}

// NodeSpan returns the 1-based span of n shifted by off.
func NodeSpan(n *sitter.Node, off Offset) Span {
	start, end := n.StartPoint(), n.EndPoint()
	return Span{
		X1: int(start.Column) + off.Column + 1,
		Y1: int(start.Row) + off.Row + 1,
		X2: int(end.Column) + off.Column + 1,
		Y2: int(end.Row) + off.Row + 1,
	}
}
