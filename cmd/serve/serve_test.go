package serve

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/myconet/internal/conf"
	"github.com/tphakala/myconet/internal/errors"
	"github.com/tphakala/myconet/internal/model"
	"github.com/tphakala/myconet/internal/testutil"
)

func modelSettings(dir string) conf.ModelSettings {
	return conf.ModelSettings{
		Dir:     dir,
		Plant:   "plant.json.zst",
		Fungal:  "fungal.json.zst",
		Species: "species.json",
		Light:   "light.json",
		Microbe: "microbe.json",
	}
}

func TestRunMissingArtifacts(t *testing.T) {
	settings := &conf.Settings{}
	settings.Model = modelSettings(filepath.Join(t.TempDir(), "models"))

	err := Run(context.Background(), settings)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrArtifactsMissing)
	assert.True(t, errors.IsCategory(err, errors.CategoryModelLoad))
}

func TestRunStopsOnCancel(t *testing.T) {
	settings := &conf.Settings{}
	settings.Model = modelSettings(t.TempDir())
	settings.Data.Fungal.SurviveLabel = "1"
	settings.WebServer.Port = "0"
	require.NoError(t, model.SaveArtifacts(model.PathsFromSettings(&settings.Model), testutil.TrainedSet(t)))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Run(ctx, settings) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not stop after cancellation")
	}
}
