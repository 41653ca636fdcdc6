//go:build linux

package worker

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio"
	"github.com/klauspost/pgzip"
	"golang.org/x/xerrors"
)

// DefaultBuildRunner shells out to "R CMD INSTALL --build", the standard
// way of turning an R source package into a binary archive. It is a
// reference implementation of the BuildRunner collaborator interface,
// swappable by callers of Execute.
type DefaultBuildRunner struct {
	// RBin is the R executable to invoke. Defaults to "R".
	RBin string
}

func (b *DefaultBuildRunner) rbin() string {
	if b.RBin != "" {
		return b.RBin
	}
	return "R"
}

func (b *DefaultBuildRunner) SpawnBuild(ctx context.Context, path, tmpDir, lib string, vignettes bool, needsCompilation *bool) (Process, error) {
	args := []string{"CMD", "INSTALL", "--build", "--no-docs", "--library=" + lib}
	if !vignettes {
		args = append(args, "--no-build-vignettes")
	}
	if needsCompilation != nil && !*needsCompilation {
		args = append(args, "--no-multiarch")
	}
	args = append(args, path)

	env := append(os.Environ(), "R_LIBS="+lib)
	p, err := spawn(ctx, b.rbin(), args, env, tmpDir)
	if err != nil {
		return nil, err
	}
	p.isBuild = true
	p.tmpDir = tmpDir
	p.builtFilePattern = "*.tar.gz"
	return p, nil
}

// reexecExtractFlag is the hidden subcommand the default install runner
// re-execs itself with, in the spirit of distri's DISTRI_REEXEC convention
// for out-of-process privileged or isolated steps: rather than extracting
// the archive in the scheduler's own goroutine (which would not produce a
// subprocess for the Worker Process Handle contract to supervise), the
// current binary is re-invoked as the child the handle wraps.
const reexecExtractFlag = "__rpkgexec_extract_install"

// DefaultInstallRunner installs a binary archive by re-exec'ing the current
// binary with a hidden flag that performs the extraction (see RunExtract),
// so that the install step is a real supervised subprocess rather than
// in-process work masquerading as one.
type DefaultInstallRunner struct {
	// Exe overrides the path to re-exec. Defaults to os.Args[0].
	Exe string
}

func (i *DefaultInstallRunner) exe() string {
	if i.Exe != "" {
		return i.Exe
	}
	return os.Args[0]
}

func (i *DefaultInstallRunner) SpawnInstall(ctx context.Context, archive, lib string, metadata map[string]string) (Process, error) {
	args := []string{reexecExtractFlag, archive, lib}
	p, err := spawn(ctx, i.exe(), args, os.Environ(), "")
	if err != nil {
		return nil, err
	}
	return p, nil
}

// RunExtract performs the archive extraction. main() dispatches to this
// when invoked with reexecExtractFlag as argv[1]; it is the body of the
// subprocess DefaultInstallRunner spawns.
func RunExtract(archive, lib string) error {
	f, err := os.Open(archive)
	if err != nil {
		return xerrors.Errorf("open %s: %w", archive, err)
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return xerrors.Errorf("gzip %s: %w", archive, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return xerrors.Errorf("tar %s: %w", archive, err)
		}
		dest := filepath.Join(lib, hdr.Name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0755); err != nil {
				return xerrors.Errorf("mkdir %s: %w", dest, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
				return xerrors.Errorf("mkdir %s: %w", filepath.Dir(dest), err)
			}
			tmp, err := renameio.TempFile("", dest)
			if err != nil {
				return xerrors.Errorf("tempfile for %s: %w", dest, err)
			}
			if _, err := io.Copy(tmp, tr); err != nil {
				tmp.Cleanup()
				return xerrors.Errorf("write %s: %w", dest, err)
			}
			if err := tmp.Chmod(os.FileMode(hdr.Mode & 0777)); err != nil {
				tmp.Cleanup()
				return xerrors.Errorf("chmod %s: %w", dest, err)
			}
			if err := tmp.CloseAtomicallyReplace(); err != nil {
				return xerrors.Errorf("install %s: %w", dest, err)
			}
		default:
			fmt.Fprintf(os.Stderr, "skipping %s: unsupported tar entry type %v\n", hdr.Name, hdr.Typeflag)
		}
	}
	return nil
}

// ReexecFlag reports whether args (typically os.Args[1:]) requests the
// hidden extraction subcommand, and if so, the archive/lib it was given.
func ReexecFlag(args []string) (archive, lib string, ok bool) {
	if len(args) != 3 || args[0] != reexecExtractFlag {
		return "", "", false
	}
	return args[1], args[2], true
}
