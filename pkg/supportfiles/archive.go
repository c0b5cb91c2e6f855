package supportfiles

import (
	"archive/tar"
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/tcsc-project/tcsc/pkg/errors"
)

// The files of a supportconfig the environment is detected from
const (
	BasicEnvironment = "basic-environment.txt"
	HA               = "ha.txt"
	RPM              = "rpm.txt"
	PluginHASAP      = "plugin-ha_sap.txt"
)

var requiredFiles = []string{BasicEnvironment, HA, RPM, PluginHASAP}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// bundle maps the required file names to their lines
type bundle map[string][]string

// readBundle reads the required files from a supportconfig archive or
// an unpacked supportconfig directory.
func readBundle(filename string) (bundle, error) {
	info, err := os.Stat(filename)
	if err != nil {
		return nil, errors.NewIOError(fmt.Sprintf("unsupported file type for %q", filename), err)
	}
	if info.IsDir() {
		return readDirectory(filename)
	}
	if !info.Mode().IsRegular() {
		return nil, errors.NewIOError(fmt.Sprintf("unsupported file type for %q", filename), nil)
	}
	return readArchive(filename)
}

func readDirectory(dir string) (bundle, error) {
	b := make(bundle, len(requiredFiles))
	for _, name := range requiredFiles {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return nil, errors.NewIOError(fmt.Sprintf("error reading \"%s/%s\"", dir, name), err)
		}
		lines, err := readLines(f)
		f.Close()
		if err != nil {
			return nil, errors.NewIOError(fmt.Sprintf("error reading \"%s/%s\"", dir, name), err)
		}
		b[name] = lines
	}
	return b, nil
}

func readArchive(filename string) (bundle, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.NewIOError(fmt.Sprintf("could not open %q", filename), err)
	}
	defer f.Close()

	buffered := bufio.NewReader(f)
	stream, closeStream, err := decompress(buffered)
	if err != nil {
		return nil, errors.NewIOError(fmt.Sprintf("could not read %q", filename), err)
	}
	defer closeStream()

	b := make(bundle, len(requiredFiles))
	archive := tar.NewReader(stream)
	for {
		header, err := archive.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewIOError(fmt.Sprintf("could not read %q", filename), err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		name := path.Base(header.Name)
		if !isRequired(name) || b[name] != nil {
			continue
		}
		lines, err := readLines(archive)
		if err != nil {
			return nil, errors.NewIOError(fmt.Sprintf("could not read %s in %q", header.Name, filename), err)
		}
		b[name] = lines
	}

	for _, name := range requiredFiles {
		if b[name] == nil {
			return nil, errors.NewIOError(fmt.Sprintf("%q does not contain a %q", filename, name), nil)
		}
	}
	return b, nil
}

// decompress picks the decoder from the magic bytes of the stream
func decompress(r *bufio.Reader) (io.Reader, func(), error) {
	magic, _ := r.Peek(6)
	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return gz, func() { gz.Close() }, nil
	case bytes.HasPrefix(magic, zstdMagic):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	case bytes.HasPrefix(magic, xzMagic):
		return nil, nil, fmt.Errorf("xz compressed archives are not supported, unpack it first")
	default:
		return r, func() {}, nil
	}
}

func isRequired(name string) bool {
	for _, required := range requiredFiles {
		if name == required {
			return true
		}
	}
	return false
}

func readLines(r io.Reader) ([]string, error) {
	lines := []string{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// section returns the lines after the first line starting with header up
// to the next "#==[" separator.
func section(lines []string, header string) []string {
	var out []string
	inside := false
	for _, line := range lines {
		if inside && strings.HasPrefix(line, "#==[") {
			break
		}
		if !inside && strings.HasPrefix(line, header) {
			inside = true
			continue
		}
		if inside {
			out = append(out, line)
		}
	}
	return out
}
