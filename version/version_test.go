package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	i := Info{CommitHash: "0123456789abcdef", BuildTime: "2026-10-01", Version: "1.2.0"}
	assert.Equal(t, "0123456", i.Short())
	assert.Equal(t, "dirsvc 1.2.0 (commit 0123456, built 2026-10-01)", i.String())
	assert.Equal(t, "dev", Info{CommitHash: "dev"}.Short())
}

func TestCheck(t *testing.T) {
	tests := []struct {
		version    string
		constraint string
		wantErr    bool
	}{
		{version: "1.4.2", constraint: ">= 1.2, < 2", wantErr: false},
		{version: "2.0.0", constraint: ">= 1.2, < 2", wantErr: true},
		{version: "v1.0.0", constraint: "^1", wantErr: false},
		{version: "dev", constraint: ">= 9", wantErr: false},
		{version: "1.0.0", constraint: "", wantErr: false},
		{version: "not-a-version", constraint: ">= 1", wantErr: true},
		{version: "1.0.0", constraint: ">>> 1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.version+" "+tt.constraint, func(t *testing.T) {
			err := Check(tt.version, tt.constraint)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
