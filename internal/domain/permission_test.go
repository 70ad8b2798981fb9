package domain

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccessLevel_Max(t *testing.T) {
	assert.Equal(t, LevelFull, LevelDataView.Max(LevelFull))
	assert.Equal(t, LevelFull, LevelFull.Max(LevelDataView))
	assert.Equal(t, LevelDataAdd, LevelDataAdd.Max(LevelDataProcess))
	assert.Equal(t, LevelNoAccess, LevelNoAccess.Max(LevelNoAccess))

	// Unknown aliases weigh nothing.
	assert.Equal(t, LevelDataView, LevelDataView.Max(AccessLevel("bogus")))
}

func TestAccessLevel_IsValidProjectLevel(t *testing.T) {
	for _, l := range []AccessLevel{LevelNoAccess, LevelDataView, LevelDataProcess,
		LevelDataAdd, LevelDataFull, LevelFull} {
		assert.True(t, l.IsValidProjectLevel(), string(l))
	}
	assert.False(t, AccessLevel("bogus").IsValidProjectLevel())
	assert.False(t, AppLevelUsage.IsValidProjectLevel())
}

func TestMethodAllowed(t *testing.T) {
	tests := []struct {
		level  AccessLevel
		way    DataGatheringWay
		method string
		want   bool
	}{
		{LevelFull, GatheringUploading, http.MethodDelete, true},
		{LevelDataFull, GatheringUploading, http.MethodDelete, true},

		{LevelDataAdd, GatheringUploading, http.MethodGet, true},
		{LevelDataAdd, GatheringUploading, http.MethodPost, true},
		{LevelDataAdd, GatheringUploading, http.MethodDelete, false},

		{LevelDataProcess, GatheringUploading, http.MethodGet, true},
		{LevelDataProcess, GatheringUploading, http.MethodPost, false},
		{LevelDataProcess, GatheringProcessing, http.MethodPost, true},
		{LevelDataProcess, GatheringProcessing, http.MethodDelete, false},

		{LevelDataView, GatheringUploading, http.MethodGet, true},
		{LevelDataView, GatheringUploading, http.MethodHead, true},
		{LevelDataView, GatheringUploading, http.MethodPost, false},

		{LevelNoAccess, GatheringUploading, http.MethodGet, false},
		{AccessLevel("bogus"), GatheringUploading, http.MethodGet, false},
	}

	for _, tt := range tests {
		got := MethodAllowed(tt.level, tt.way, tt.method)
		assert.Equal(t, tt.want, got, "%s %s %s", tt.level, tt.way, tt.method)
	}
}

func TestUser_IsAnonymous(t *testing.T) {
	var nobody *User
	assert.True(t, nobody.IsAnonymous())
	assert.False(t, (&User{ID: 3}).IsAnonymous())
}
