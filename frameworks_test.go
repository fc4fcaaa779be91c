package ouicomply

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupFrameworkBuiltins(t *testing.T) {
	gdpr := LookupFramework("gdpr")
	assert.Equal(t, "gdpr", gdpr.ID)
	assert.Contains(t, gdpr.RequiredClauses, "data retention period")
	assert.NotEmpty(t, gdpr.RiskIndicators)

	// Lookup is case and whitespace insensitive.
	assert.Equal(t, gdpr, LookupFramework("  GDPR "))
}

func TestLookupFrameworkUnknownFallsBack(t *testing.T) {
	f := LookupFramework("pci-dss")
	assert.Equal(t, "pci-dss", f.ID)
	assert.Equal(t, "PCI-DSS", f.Name)
	assert.NotEmpty(t, f.RequiredClauses)
	assert.NotEmpty(t, f.RiskIndicators)
}

func TestFrameworkIDsStableOrder(t *testing.T) {
	assert.Equal(t, []string{"ccpa", "gdpr", "hipaa", "sox"}, FrameworkIDs())
}
