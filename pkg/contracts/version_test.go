package contracts

import (
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecomeda/pkg/contracts/domain"
)

func TestGetVersionInfo(t *testing.T) {
	info := GetVersionInfo()

	assert.Equal(t, Version, info.Version)
	assert.Equal(t, APIVersion, info.APIVersion)
	assert.Equal(t, ReportFormat, info.ReportFormat)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
	assert.NotEmpty(t, info.Commit)
	require.Len(t, info.Views, len(domain.AllViews)+1)
	assert.Equal(t, domain.ViewCorrelation, info.Views[len(info.Views)-1])
}

func TestGetVersionInfo_CommitOverride(t *testing.T) {
	prev := GitCommit
	GitCommit = "abc1234"
	t.Cleanup(func() { GitCommit = prev })

	data, err := json.Marshal(GetVersionInfo())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"commit":"abc1234"`)
	assert.Contains(t, string(data), `"views":["`)
}
