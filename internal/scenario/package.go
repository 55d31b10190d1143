package scenario

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// PackageScenarioFile is the scenario document inside an exported package.
	PackageScenarioFile = "scenario.json"
	// PackageMediaDir is the folder holding referenced assets inside a package.
	PackageMediaDir = "media/"
)

// Package is an exported scenario: the parsed document plus the names of the
// media assets shipped next to it. Media contents are not read.
type Package struct {
	Scenario *Scenario
	Media    []string
}

// ReadPackage opens a scenario package from disk.
func ReadPackage(path string) (*Package, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open package: %w", err)
	}
	defer zr.Close()
	return readPackage(&zr.Reader)
}

// ReadPackageFrom reads a scenario package from an in-memory or remote source.
func ReadPackageFrom(r io.ReaderAt, size int64) (*Package, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open package: %w", err)
	}
	return readPackage(zr)
}

func readPackage(zr *zip.Reader) (*Package, error) {
	pkg := &Package{}
	var doc []byte

	for _, f := range zr.File {
		name := path.Clean(f.Name)
		switch {
		case name == PackageScenarioFile:
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open %s: %w", PackageScenarioFile, err)
			}
			doc, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", PackageScenarioFile, err)
			}
		case strings.HasPrefix(name, PackageMediaDir) && !f.FileInfo().IsDir():
			pkg.Media = append(pkg.Media, strings.TrimPrefix(name, PackageMediaDir))
		}
	}

	if doc == nil {
		return nil, fmt.Errorf("package has no %s", PackageScenarioFile)
	}
	sc, err := Load(doc)
	if err != nil {
		return nil, err
	}
	sort.Strings(pkg.Media)
	pkg.Scenario = sc
	return pkg, nil
}

// MissingMedia lists media refs of video nodes that are not shipped in the
// package. A ref matches a shipped file either as-is or with the media/ prefix.
func (p *Package) MissingMedia() []string {
	have := make(map[string]bool, len(p.Media))
	for _, m := range p.Media {
		have[m] = true
	}

	var missing []string
	for _, n := range p.Scenario.Nodes {
		if !n.IsVideo() || n.MediaRef == "" {
			continue
		}
		ref := strings.TrimPrefix(n.MediaRef, PackageMediaDir)
		if !have[ref] {
			missing = append(missing, n.MediaRef)
		}
	}
	return missing
}

// WritePackage writes sc and every regular file under mediaDir into a zip
// package. mediaDir may be empty to export the document alone.
func WritePackage(w io.Writer, sc *Scenario, mediaDir string) error {
	zw := zip.NewWriter(w)

	doc, err := Marshal(sc)
	if err != nil {
		return fmt.Errorf("failed to encode scenario: %w", err)
	}
	fw, err := zw.Create(PackageScenarioFile)
	if err != nil {
		return err
	}
	if _, err := fw.Write(doc); err != nil {
		return err
	}

	if mediaDir != "" {
		err := filepath.WalkDir(mediaDir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(mediaDir, p)
			if err != nil {
				return err
			}
			return addFile(zw, PackageMediaDir+filepath.ToSlash(rel), p)
		})
		if err != nil {
			return fmt.Errorf("failed to add media: %w", err)
		}
	}

	return zw.Close()
}

func addFile(zw *zip.Writer, name, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	fw, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(fw, f)
	return err
}

// ExtractPackage unpacks the package at pkgPath into dir and returns it.
// Entry names are resolved inside dir; parent references cannot escape it.
func ExtractPackage(pkgPath, dir string) (*Package, error) {
	zr, err := zip.OpenReader(pkgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open package: %w", err)
	}
	defer zr.Close()

	pkg, err := readPackage(&zr.Reader)
	if err != nil {
		return nil, err
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	for _, f := range zr.File {
		dest := filepath.Join(root, filepath.FromSlash(path.Clean("/"+f.Name)))
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return nil, err
			}
			continue
		}
		if err := extractFile(f, dest); err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
	}
	return pkg, nil
}

func extractFile(f *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
