package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// viper is process-global, so these tests do not run in parallel.

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadEmbeddedDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	settings, err := Load(writeConfig(t, string(defaultConfig())))
	require.NoError(t, err)

	assert.Equal(t, "imageclassifier", settings.Main.Name)
	assert.Equal(t, DefaultMaxResults, settings.Classifier.MaxResults)
	assert.Equal(t, "nearest", settings.Classifier.ResizeMethod)
	assert.InDelta(t, 1.0, settings.Classifier.Normalization.ImageStd, 0)
	assert.InDelta(t, 0.0, settings.Classifier.Normalization.ProbabilityStd, 0)
	assert.Equal(t, ":8080", settings.WebServer.Listen)
	assert.Equal(t, "info", settings.Main.Log.DefaultLevel)
	require.NotNil(t, settings.Main.Log.Console)
	assert.True(t, settings.Main.Log.Console.Enabled)
	assert.Same(t, settings, GetSettings())
}

func TestLoadPartialConfigUsesDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	settings, err := Load(writeConfig(t, `
classifier:
  modelpath: /models/mobilenet_quant.tflite
  maxresults: 3
  normalization:
    probabilitystd: 255
`))
	require.NoError(t, err)

	assert.Equal(t, "/models/mobilenet_quant.tflite", settings.Classifier.ModelPath)
	assert.Equal(t, "model/labels.txt", settings.Classifier.LabelPath)
	assert.Equal(t, 3, settings.Classifier.MaxResults)
	assert.InDelta(t, 255.0, settings.Classifier.Normalization.ProbabilityStd, 0)
	assert.InDelta(t, 1.0, settings.Classifier.Normalization.ImageStd, 0)
	assert.Equal(t, DefaultQueueSize, settings.Classifier.QueueSize)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("IMAGECLASSIFIER_MAXRESULTS", "2")
	t.Setenv("IMAGECLASSIFIER_LABELPATH", "/tmp/labels.txt")

	settings, err := Load(writeConfig(t, "debug: true\n"))
	require.NoError(t, err)

	assert.True(t, settings.Debug)
	assert.Equal(t, 2, settings.Classifier.MaxResults)
	assert.Equal(t, "/tmp/labels.txt", settings.Classifier.LabelPath)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	_, err := Load(writeConfig(t, "classifier:\n  maxresults: 0\n"))
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.NotEmpty(t, ve.Errors)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestSaveYAMLConfigRoundTrip(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	settings, err := Load(writeConfig(t, string(defaultConfig())))
	require.NoError(t, err)
	settings.Classifier.MaxResults = 7

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, SaveYAMLConfig(path, settings))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded Settings
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, 7, decoded.Classifier.MaxResults)
	assert.Equal(t, settings.Classifier.ModelPath, decoded.Classifier.ModelPath)
}

func TestExpandPath(t *testing.T) {
	t.Setenv("MODEL_DIR", "/srv/models")
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, "/srv/models/a.tflite", ExpandPath("$MODEL_DIR/a.tflite"))
	assert.Equal(t, filepath.Join(home, "labels.txt"), ExpandPath("~/labels.txt"))
	assert.Equal(t, "relative/path", ExpandPath("relative/path"))
}
