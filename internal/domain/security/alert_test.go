package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyRisk(t *testing.T) {
	tests := []struct {
		score int
		want  RiskClass
	}{
		{0, RiskLow},
		{29, RiskLow},
		{30, RiskMedium},
		{59, RiskMedium},
		{60, RiskHigh},
		{80, RiskHigh},
		{81, RiskCritical},
		{100, RiskCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyRisk(tt.score), "score %d", tt.score)
	}
}

func TestHighRiskMessage(t *testing.T) {
	assert.Equal(t,
		"High risk detected for student Иванов Иван (ST-001)",
		HighRiskMessage("Иванов Иван", "ST-001"),
	)
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint(SourceAIMonitor, "msg")
	b := Fingerprint(SourceAIMonitor, "msg")
	c := Fingerprint(SourceAIMonitor, "msg2")
	d := Fingerprint("OTHER", "msg")

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
}

func TestNewHighRiskAlert(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	a := NewHighRiskAlert("a1", "s1", "Петров Пётр", "ST-7", at)

	assert.Equal(t, LevelCritical, a.Level)
	assert.Equal(t, SourceAIMonitor, a.Source)
	assert.Equal(t, "High risk detected for student Петров Пётр (ST-7)", a.Message)
	assert.Equal(t, Fingerprint(SourceAIMonitor, a.Message), a.Fingerprint)
	assert.False(t, a.Resolved)
	assert.Equal(t, at, a.CreatedAt)
}
