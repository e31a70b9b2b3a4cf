package infra

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRiskConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		watch   int
		block   int
		cutoff  int
		wantErr bool
	}{
		{"default_thresholds", 40, 60, 80, false},
		{"watch_zero", 0, 60, 80, true},
		{"block_below_watch", 40, 30, 80, true},
		{"cutoff_equals_block", 40, 60, 60, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := RiskConfig{
				WatchThreshold:   tt.watch,
				BlockThreshold:   tt.block,
				QuarantineCutoff: tt.cutoff,
			}
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
