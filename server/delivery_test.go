package server

import (
	"testing"
)

func TestPlanRange(t *testing.T) {
	var table = []struct {
		from, until int64
		plan        rangePlan
	}{
		// the canonical worked example: 3 MB object, middle range
		{500000, 2000000, rangePlan{
			from: 500000, until: 2000000,
			offset: 0, firstCut: 500000, lastCut: 951425,
			partCount: 2, length: 1500001,
		}},
		// full object, size 3,000,000
		{0, 2999999, rangePlan{
			from: 0, until: 2999999,
			offset: 0, firstCut: 0, lastCut: 902849,
			partCount: 3, length: 3000000,
		}},
		// single byte
		{10, 10, rangePlan{
			from: 10, until: 10,
			offset: 0, firstCut: 10, lastCut: 11,
			partCount: 1, length: 1,
		}},
		// range ending exactly on a chunk boundary byte
		{0, chunkSize, rangePlan{
			from: 0, until: chunkSize,
			offset: 0, firstCut: 0, lastCut: 1,
			partCount: 2, length: chunkSize + 1,
		}},
		// aligned start in a later chunk
		{chunkSize, 2*chunkSize - 1, rangePlan{
			from: chunkSize, until: 2*chunkSize - 1,
			offset: chunkSize, firstCut: 0, lastCut: chunkSize,
			partCount: 1, length: chunkSize,
		}},
		// unaligned start in a later chunk
		{chunkSize + 5, 2*chunkSize + 7, rangePlan{
			from: chunkSize + 5, until: 2*chunkSize + 7,
			offset: chunkSize, firstCut: 5, lastCut: 8,
			partCount: 2, length: chunkSize + 3,
		}},
	}

	for _, row := range table {
		result := planRange(row.from, row.until)
		if result != row.plan {
			t.Errorf("planRange(%d, %d) = %+v, expected %+v",
				row.from, row.until, result, row.plan)
		}
	}
}

func TestParseRange(t *testing.T) {
	const size = 1000
	var table = []struct {
		header      string
		from, until int64
		ok          bool
	}{
		{"bytes=0-499", 0, 499, true},
		{"bytes=500-", 500, size - 1, true},
		{"bytes=0-0", 0, 0, true},
		{"bytes=999-2000", 999, 2000, true}, // bounds checked later
		{"bytes=-500", 0, 0, false},         // suffix ranges unsupported
		{"bytes=abc-499", 0, 0, false},
		{"bytes=0-1,5-6", 0, 0, false}, // multiple ranges unsupported
		{"bits=0-499", 0, 0, false},
		{"0-499", 0, 0, false},
		{"bytes=", 0, 0, false},
	}

	for _, row := range table {
		from, until, ok := parseRange(row.header, size)
		if ok != row.ok {
			t.Errorf("parseRange(%q) ok = %v, expected %v", row.header, ok, row.ok)
			continue
		}
		if ok && (from != row.from || until != row.until) {
			t.Errorf("parseRange(%q) = %d-%d, expected %d-%d",
				row.header, from, until, row.from, row.until)
		}
	}
}
