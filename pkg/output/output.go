// Package output writes the generated collector config and env file to disk.
package output

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/otelsynth/internal/constants"
)

const (
	dirPerm    os.FileMode = 0o755
	configPerm os.FileMode = 0o644
	// The env file is meant to be filled with secrets.
	envPerm os.FileMode = 0o600
)

// Writer places artifacts under Dir.
type Writer struct {
	Dir     string
	Name    string
	EnvFile string
}

// Artifacts are the paths of one written generation.
type Artifacts struct {
	Config string `json:"config"`
	Env    string `json:"env"`
}

// Paths returns the target paths, falling back to the defaults.
func (w Writer) Paths() Artifacts {
	dir := w.Dir
	if dir == "" {
		dir = constants.DefaultOutputDir
	}

	name := strings.TrimSuffix(w.Name, ".yaml")
	if name == "" {
		name = constants.DefaultConfigName
	}

	env := w.EnvFile
	if env == "" {
		env = constants.DefaultEnvFile
	}

	return Artifacts{
		Config: filepath.Join(dir, name+".yaml"),
		Env:    filepath.Join(dir, env),
	}
}

// Write atomically replaces both artifacts. Both files are staged before
// either is replaced, so a failure while preparing them leaves the previous
// generation untouched.
func (w Writer) Write(document, env []byte) (arts Artifacts, err error) {
	paths := w.Paths()

	for _, dir := range []string{filepath.Dir(paths.Config), filepath.Dir(paths.Env)} {
		err = os.MkdirAll(dir, dirPerm)
		if err != nil {
			return Artifacts{}, ewrap.Wrapf(err, "create output directory %s", dir)
		}
	}

	configFile, err := stage(paths.Config, document, configPerm)
	if err != nil {
		return Artifacts{}, ewrap.Wrapf(err, "write %s", paths.Config)
	}

	defer discard(configFile, &err)

	envFile, err := stage(paths.Env, env, envPerm)
	if err != nil {
		return Artifacts{}, ewrap.Wrapf(err, "write %s", paths.Env)
	}

	defer discard(envFile, &err)

	// The env file goes first: it only ever declares variables, so an old
	// config next to a new env file still sources cleanly.
	err = envFile.CloseAtomicallyReplace()
	if err != nil {
		return Artifacts{}, ewrap.Wrapf(err, "replace %s", paths.Env)
	}

	err = configFile.CloseAtomicallyReplace()
	if err != nil {
		return Artifacts{}, ewrap.Wrapf(err, "replace %s", paths.Config)
	}

	return paths, nil
}

func stage(path string, data []byte, perm os.FileMode) (*renameio.PendingFile, error) {
	pending, err := renameio.TempFile(filepath.Dir(path), path)
	if err != nil {
		return nil, ewrap.Wrap(err, "create temp file")
	}

	err = pending.Chmod(perm)
	if err == nil {
		_, err = pending.Write(data)
	}

	if err != nil {
		return nil, errors.Join(ewrap.Wrap(err, "fill temp file"), pending.Cleanup())
	}

	return pending, nil
}

// discard removes a staged file that was never renamed into place.
func discard(pending *renameio.PendingFile, err *error) {
	cleanupErr := pending.Cleanup()
	if *err == nil && cleanupErr != nil {
		*err = ewrap.Wrap(cleanupErr, "remove temp file")
	}
}
