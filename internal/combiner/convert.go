package combiner

import (
	"github.com/hybridgraph/hybridgraph/internal/resultstream"
	"github.com/hybridgraph/hybridgraph/internal/sparqlclient"
)

// staticFrame converts a SPARQL 1.1 JSON Query Results payload into a
// frame, preserving each binding's IRI-vs-literal kind and coercing
// numeric/date literals to Go values so downstream expression evaluation
// and joins work against typed data (spec §4.4 step 1).
func staticFrame(results *sparqlclient.Results) *frame {
	cols := make([]resultstream.ColumnDef, len(results.Variables))
	for i, v := range results.Variables {
		cols[i] = resultstream.ColumnDef{Name: v, Kind: resultstream.ColumnLiteral}
	}

	rows := make([]resultstream.Row, len(results.Rows))
	for i, r := range results.Rows {
		row := resultstream.Row{}
		for name, binding := range r {
			row[name] = bindingValue(binding)
		}
		rows[i] = row
	}

	for i, v := range results.Variables {
		for _, r := range results.Rows {
			if b, ok := r[v]; ok && b.Type == "uri" {
				cols[i].Kind = resultstream.ColumnIRI
				break
			}
		}
	}

	return &frame{schema: &resultstream.ResultSchema{Columns: cols}, rows: rows}
}

func bindingValue(b sparqlclient.Binding) interface{} {
	if b.Value == "" && b.Type == "" {
		return nil
	}
	switch b.Type {
	case "uri":
		return b.Value
	case "literal", "typed-literal":
		if f, err := b.AsFloat64(); err == nil {
			return f
		}
		if t, err := b.AsTime(); err == nil {
			return t
		}
		return b.Value
	default:
		return b.Value
	}
}

// identifierValues reads the distinct, non-empty string values of column
// across a frame's rows (spec §4.4 step 2).
func identifierValues(f *frame, column string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range f.rows {
		v, ok := r[column]
		if !ok || v == nil {
			continue
		}
		s := renderValue(v)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
