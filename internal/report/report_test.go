package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/shelfmark/linkward/internal/checker"
	"github.com/shelfmark/linkward/internal/domain/linkcheck"
	"github.com/shelfmark/linkward/internal/ratelimit"
)

func sampleSummary() *checker.Summary {
	return &checker.Summary{
		BatchID: uuid.MustParse("0f9a7f52-58ea-4fcd-b9f8-000000000001"),
		Total:   5,
		ByStatus: map[linkcheck.Status]int{
			linkcheck.StatusOK:      2,
			linkcheck.StatusBroken:  1,
			linkcheck.StatusTimeout: 1,
		},
		SoftNotFound: 1,
		Skipped: []checker.SkippedItem{
			{ItemID: "s1", URL: "https://twitter.com/x", Hostname: "twitter.com"},
		},
		Broken: []checker.BrokenItem{
			{ItemID: "b1", URL: "https://a.com/gone", Hostname: "a.com", Status: linkcheck.StatusBroken, HTTPCode: 404},
			{ItemID: "b2", URL: "https://a.com/soft", Hostname: "a.com", Status: linkcheck.StatusOK, Soft404: true},
			{ItemID: "b3", URL: "https://b.com/down", Hostname: "b.com", Status: linkcheck.StatusTimeout},
		},
		Domains: []ratelimit.DomainStats{
			{Hostname: "a.com", TotalChecked: 3, TotalBroken: 2},
			{Hostname: "b.com", TotalChecked: 1, TotalBroken: 1},
			{Hostname: "c.com", TotalChecked: 1, TotalBroken: 0},
		},
		Elapsed: 4200 * time.Millisecond,
	}
}

func TestWrite_ContainsSections(t *testing.T) {
	var buf bytes.Buffer
	Write(&buf, sampleSummary())
	out := buf.String()

	assert.Contains(t, out, "Targets: 5")
	assert.Contains(t, out, "skipped: 1")
	assert.Contains(t, out, "By status:")
	assert.Contains(t, out, "soft-404")
	assert.Contains(t, out, "Domains with broken links:")
	assert.Contains(t, out, "a.com")
	assert.Contains(t, out, "Broken links (3):")
	assert.Contains(t, out, "broken (404)")
	assert.Contains(t, out, "https://twitter.com/x")
	assert.NotContains(t, out, "c.com", "domains without broken links stay out of the breakdown")
}

func TestWrite_Deterministic(t *testing.T) {
	var a, b bytes.Buffer
	Write(&a, sampleSummary())
	Write(&b, sampleSummary())
	assert.Equal(t, a.String(), b.String())
}
