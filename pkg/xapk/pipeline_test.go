package xapk

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "github.com/huanfeng/xapk-installer/internal/errors"
	"github.com/huanfeng/xapk-installer/internal/i18n"
)

const (
	gameID  = "com.example.game"
	mainOBB = "main.1.com.example.game.obb"
)

type fakeInstaller struct {
	calls []string
	err   error
}

func (f *fakeInstaller) Install(_ context.Context, apkPath string) error {
	f.calls = append(f.calls, apkPath)
	return f.err
}

type fakeInspector struct {
	name string
	err  error
}

func (f fakeInspector) PackageName(string) (string, error) {
	return f.name, f.err
}

type pipelineEnv struct {
	extractDir string
	obbRoot    string
	installer  *fakeInstaller
}

func newPipelineEnv(t *testing.T) *pipelineEnv {
	base := t.TempDir()
	return &pipelineEnv{
		extractDir: filepath.Join(base, "extract"),
		obbRoot:    filepath.Join(base, "obb"),
		installer:  &fakeInstaller{},
	}
}

func (e *pipelineEnv) pipeline(mod ...func(*Options)) *Pipeline {
	opts := Options{
		ExtractDir:    e.extractDir,
		AuxiliaryRoot: e.obbRoot,
		Installer:     e.installer,
	}
	for _, m := range mod {
		m(&opts)
	}
	return NewPipeline(opts)
}

func TestPipeline_SingleAPK(t *testing.T) {
	env := newPipelineEnv(t)
	data := buildZip(t, zipEntry{name: "com.example.app.apk", data: []byte("apk"), deflate: true})

	p := env.pipeline()
	assert.Equal(t, StateIdle, p.State())

	report, err := p.Run(context.Background(), streamOf(data), "com.example.app.xapk")
	require.NoError(t, err)

	assert.Equal(t, StatusDone, report.Status)
	assert.Equal(t, StateDone, p.State())
	assert.Equal(t, StateDone, report.State)
	assert.Empty(t, report.Placements)
	assert.Equal(t, []string{filepath.Join(env.extractDir, "com.example.app.apk")}, env.installer.calls)
	assert.True(t, report.HandedOff)
	assert.False(t, report.Visited(StatePlacing))
	assert.NoError(t, report.Err)
	assert.Equal(t, "status.done", report.MessageID())
	assert.Equal(t, "com.example.app.xapk: APK handed to the installer and OBB files are in place", report.Message())
}

func TestPipeline_NoInstaller(t *testing.T) {
	env := newPipelineEnv(t)
	data := buildZip(t, zipEntry{name: "com.example.app.apk", data: []byte("apk")})

	report, err := env.pipeline(func(o *Options) { o.Installer = nil }).
		Run(context.Background(), streamOf(data), "com.example.app.xapk")
	require.NoError(t, err)

	assert.Equal(t, StatusDone, report.Status)
	assert.False(t, report.HandedOff)
	assert.Equal(t, "status.done-not-installed", report.MessageID())
	assert.Contains(t, report.Message(), "not handed to an installer")
}

func TestPipeline_APKAndOBB(t *testing.T) {
	env := newPipelineEnv(t)
	obb := []byte("expansion data")
	data := buildZip(t,
		zipEntry{name: "manifest.json", data: []byte(`{"package_name":"` + gameID + `"}`)},
		zipEntry{name: gameID + ".apk", data: []byte("apk"), deflate: true},
		zipEntry{name: "Android/obb/" + gameID + "/" + mainOBB, data: obb},
	)

	report, err := env.pipeline().Run(context.Background(), streamOf(data), "game.xapk")
	require.NoError(t, err)

	assert.Equal(t, StatusDone, report.Status)
	assert.Equal(t, []State{StateExtracting, StateClassifying, StateResolvingIdentifier, StatePlacing, StateDone}, report.Transitions)
	require.NotNil(t, report.Resolution)
	assert.Equal(t, Identifier(gameID), report.Resolution.Identifier)
	assert.Equal(t, SourceMetadata, report.Resolution.Source)

	require.Len(t, report.Placements, 1)
	pl := report.Placements[0]
	require.NoError(t, pl.Err)
	assert.Equal(t, filepath.Join(env.obbRoot, gameID, mainOBB), pl.Destination)

	got, err := os.ReadFile(pl.Destination)
	require.NoError(t, err)
	assert.Equal(t, obb, got)

	// Extracted copy is kept.
	assert.FileExists(t, pl.Asset.ExtractedPath)
}

func TestPipeline_NoPackageFound(t *testing.T) {
	env := newPipelineEnv(t)
	data := buildZip(t,
		zipEntry{name: "manifest.json", data: []byte(`{"package_name":"` + gameID + `"}`)},
		zipEntry{name: "Android/obb/" + gameID + "/" + mainOBB, data: []byte("obb")},
	)

	report, err := env.pipeline().Run(context.Background(), streamOf(data), "game.xapk")
	require.NoError(t, err)

	assert.Equal(t, StatusNoPackageFound, report.Status)
	assert.Equal(t, StateDone, report.State)
	assert.False(t, report.Visited(StateResolvingIdentifier))
	assert.False(t, report.Visited(StatePlacing))
	assert.Empty(t, env.installer.calls)
	assert.Empty(t, report.Placements)
	assert.ErrorIs(t, report.Err, xerrors.ErrNoPackage)
	assert.False(t, report.Status.Success())
	assert.NoDirExists(t, env.obbRoot)
}

func TestPipeline_FirstAPKSelected(t *testing.T) {
	env := newPipelineEnv(t)
	data := buildZip(t,
		zipEntry{name: "base.apk", data: []byte("base")},
		zipEntry{name: "config.en.apk", data: []byte("split")},
	)

	report, err := env.pipeline().Run(context.Background(), streamOf(data), "com.example.app.xapk")
	require.NoError(t, err)

	base := filepath.Join(env.extractDir, "base.apk")
	split := filepath.Join(env.extractDir, "config.en.apk")
	assert.Equal(t, base, report.Result.PrimaryPackagePath)
	assert.Equal(t, []string{split}, report.Result.ExtraPackages)
	assert.Equal(t, []string{base}, env.installer.calls)
	assert.FileExists(t, split)
	assert.Len(t, report.Warnings, 1)
}

func TestPipeline_OBBNameResolution(t *testing.T) {
	env := newPipelineEnv(t)
	data := buildZip(t,
		zipEntry{name: "app.apk", data: []byte("apk")},
		zipEntry{name: "Android/obb/patch.12." + gameID + ".obb", data: []byte("patch")},
	)

	report, err := env.pipeline().Run(context.Background(), streamOf(data), "bundle.xapk")
	require.NoError(t, err)

	assert.Equal(t, StatusDone, report.Status)
	assert.Equal(t, Identifier(gameID), report.Resolution.Identifier)
	assert.Equal(t, SourceAssetName, report.Resolution.Source)
	assert.FileExists(t, filepath.Join(env.obbRoot, gameID, "patch.12."+gameID+".obb"))
}

func TestPipeline_IdentifierUnresolved(t *testing.T) {
	require.NoError(t, i18n.Init("en"))

	env := newPipelineEnv(t)
	data := buildZip(t,
		zipEntry{name: "app.apk", data: []byte("apk")},
		zipEntry{name: "Android/obb/bonus.obb", data: []byte("bonus")},
	)

	report, err := env.pipeline().Run(context.Background(), streamOf(data), "bundle.xapk")
	require.NoError(t, err)

	assert.Equal(t, StatusIdentifierUnresolved, report.Status)
	assert.True(t, report.Visited(StateResolvingIdentifier))
	assert.False(t, report.Visited(StatePlacing))
	assert.Nil(t, report.Resolution)
	assert.ErrorIs(t, report.Err, xerrors.ErrIdentifierUnresolved)
	assert.Len(t, env.installer.calls, 1)
	assert.True(t, report.Status.Success())
	assert.Contains(t, report.Message(), "could not determine the package name")
}

func TestPipeline_PlacementFailed(t *testing.T) {
	require.NoError(t, i18n.Init("en"))

	env := newPipelineEnv(t)
	data := buildZip(t,
		zipEntry{name: "manifest.json", data: []byte(`{"package_name":"` + gameID + `"}`)},
		zipEntry{name: "app.apk", data: []byte("apk")},
		zipEntry{name: "Android/obb/" + gameID + "/" + mainOBB, data: []byte("main")},
		zipEntry{name: "Android/obb/" + gameID + "/patch.1." + gameID + ".obb", data: []byte("patch")},
	)

	// A non-empty directory where the main OBB should go blocks the rename.
	blocked := filepath.Join(env.obbRoot, gameID, mainOBB)
	require.NoError(t, os.MkdirAll(filepath.Join(blocked, "keep"), 0755))

	report, err := env.pipeline().Run(context.Background(), streamOf(data), "game.xapk")
	require.NoError(t, err)

	assert.Equal(t, StatusPlacementFailed, report.Status)
	assert.Equal(t, StateDone, report.State)
	require.Len(t, report.Placements, 2)
	assert.ErrorIs(t, report.Placements[0].Err, xerrors.ErrPlacement)
	assert.NoError(t, report.Placements[1].Err)
	assert.FileExists(t, filepath.Join(env.obbRoot, gameID, "patch.1."+gameID+".obb"))
	assert.Equal(t, 1, report.FailedPlacements())
	assert.Equal(t, "game.xapk: 1 of 2 OBB files could not be placed for com.example.game", report.Message())
}

func TestPipeline_InstallerErrorRecorded(t *testing.T) {
	env := newPipelineEnv(t)
	env.installer.err = errors.New("no device")
	data := buildZip(t, zipEntry{name: "app.apk", data: []byte("apk")})

	report, err := env.pipeline().Run(context.Background(), streamOf(data), "com.example.app.xapk")
	require.NoError(t, err)

	assert.Equal(t, StatusDone, report.Status)
	assert.False(t, report.HandedOff)
	assert.ErrorIs(t, report.InstallErr, xerrors.ErrInstaller)
	assert.Contains(t, report.InstallErr.Error(), "no device")
}

func TestPipeline_InspectorMismatch(t *testing.T) {
	env := newPipelineEnv(t)
	data := buildZip(t, zipEntry{name: "app.apk", data: []byte("apk")})

	report, err := env.pipeline(func(o *Options) {
		o.Inspector = fakeInspector{name: "com.other.app"}
	}).Run(context.Background(), streamOf(data), "com.example.app.xapk")
	require.NoError(t, err)

	assert.Equal(t, "com.other.app", report.DeclaredPackage)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "com.other.app")

	report, err = env.pipeline(func(o *Options) {
		o.Inspector = fakeInspector{err: errors.New("not an apk")}
	}).Run(context.Background(), streamOf(data), "com.example.app.xapk")
	require.NoError(t, err)
	assert.Empty(t, report.Warnings)
	assert.Equal(t, StatusDone, report.Status)
}

func TestPipeline_DryRun(t *testing.T) {
	env := newPipelineEnv(t)
	data := buildZip(t,
		zipEntry{name: "app.apk", data: []byte("apk")},
		zipEntry{name: "Android/obb/" + gameID + "/" + mainOBB, data: []byte("main")},
	)

	report, err := env.pipeline(func(o *Options) { o.DryRun = true }).
		Run(context.Background(), streamOf(data), "game.xapk")
	require.NoError(t, err)

	assert.Equal(t, StatusDone, report.Status)
	assert.Empty(t, env.installer.calls)
	require.Len(t, report.Placements, 1)
	assert.True(t, report.Placements[0].Planned)
	assert.Equal(t, filepath.Join(env.obbRoot, gameID, mainOBB), report.Placements[0].Destination)
	assert.NoDirExists(t, env.obbRoot)

	assert.True(t, report.DryRun)
	assert.True(t, report.Summary().DryRun)
	assert.Equal(t, "status.done-dry-run", report.MessageID())
	assert.Contains(t, report.Message(), "nothing was installed or copied")
}

func TestPipeline_ExtractionFailure(t *testing.T) {
	env := newPipelineEnv(t)
	data := buildZip(t, zipEntry{name: "app.apk", data: []byte("apk")})

	p := env.pipeline()
	report, err := p.Run(context.Background(), streamOf(data[:20]), "game.xapk")
	require.Error(t, err)

	assert.ErrorIs(t, err, xerrors.ErrExtraction)
	assert.Equal(t, StatusFailed, report.Status)
	assert.Equal(t, StateFailed, p.State())
	assert.Equal(t, []State{StateExtracting, StateFailed}, report.Transitions)
	assert.Empty(t, env.installer.calls)
}

func TestPipeline_Reusable(t *testing.T) {
	env := newPipelineEnv(t)
	p := env.pipeline()

	_, err := p.Run(context.Background(), streamOf([]byte("junk")), "bad.xapk")
	require.Error(t, err)

	data := buildZip(t, zipEntry{name: "app.apk", data: []byte("apk")})
	report, err := p.Run(context.Background(), streamOf(data), "com.example.app.xapk")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, report.Status)
	assert.Equal(t, StateExtracting, report.Transitions[0])
}

func TestReport_Summary(t *testing.T) {
	require.NoError(t, i18n.Init("en"))

	env := newPipelineEnv(t)
	data := buildZip(t,
		zipEntry{name: "app.apk", data: []byte("apk")},
		zipEntry{name: "Android/obb/" + mainOBB, data: []byte("main")},
	)
	report, err := env.pipeline().Run(context.Background(), streamOf(data), "game.xapk")
	require.NoError(t, err)

	out, err := json.Marshal(report.Summary())
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "done", decoded["status"])
	assert.Equal(t, "done", decoded["state"])
	assert.Equal(t, "asset-filename", decoded["resolution"].(map[string]interface{})["source"])
	assert.Len(t, decoded["placements"], 1)
	assert.Len(t, decoded["entries"], 2)
}
