package tui

import (
	"math"
	"sort"

	"github.com/fakeyudi/gazetrace/internal/trace"
)

// Count is one row of a frequency table.
type Count struct {
	Key string
	N   int
}

// Stats aggregates a trace for display.
type Stats struct {
	Total   int
	Hits    int
	First   float64
	Last    float64
	Types   []Count
	Words   []Count
	Remarks []Count
}

// HitRate is Hits/Total, or 0 for an empty trace.
func (s Stats) HitRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Total)
}

// Summarize counts hits, token types, words and failure remarks. Tables are
// ordered by descending count, then key.
func Summarize(doc *trace.Document) Stats {
	st := Stats{Total: len(doc.Entries), First: math.NaN(), Last: math.NaN()}
	types := map[string]int{}
	words := map[string]int{}
	remarks := map[string]int{}
	for _, e := range doc.Entries {
		if ts := float64(e.Timestamp); !math.IsNaN(ts) {
			if math.IsNaN(st.First) || ts < st.First {
				st.First = ts
			}
			if math.IsNaN(st.Last) || ts > st.Last {
				st.Last = ts
			}
		}
		if e.Failed() {
			remarks[e.Remark]++
			continue
		}
		st.Hits++
		if e.Location.Word != "" {
			words[e.Location.Word]++
		}
		if e.AST != nil && e.AST.Type != "" {
			types[e.AST.Type]++
		}
	}
	st.Types = ranked(types)
	st.Words = ranked(words)
	st.Remarks = ranked(remarks)
	return st
}

func ranked(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for k, n := range m {
		out = append(out, Count{Key: k, N: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N > out[j].N
		}
		return out[i].Key < out[j].Key
	})
	return out
}
