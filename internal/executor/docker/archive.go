package docker

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"time"
)

// buildJobArchive packs the runner, the generated snippet, and the dataset
// into a tar stream for ContainerCopyTo. Everything lands under a single
// job/ directory so one copy call stages the whole working set and the
// container's working directory can simply point at it.
//
// The directory is world-writable because the exec runs as an unprivileged
// user on a root-owned tmpfs — the snippet must be able to create
// output.png next to its inputs.
func buildJobArchive(code string, dataset []byte) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	now := time.Now()

	if err := tw.WriteHeader(&tar.Header{
		Name:     jobDir + "/",
		Typeflag: tar.TypeDir,
		Mode:     0o777,
		ModTime:  now,
	}); err != nil {
		return nil, fmt.Errorf("docker: writing job dir header: %w", err)
	}

	files := []struct {
		name string
		body []byte
	}{
		{runnerName, []byte(runnerScript)},
		{snippetName, []byte(code)},
		{datasetName, dataset},
	}

	for _, f := range files {
		hdr := &tar.Header{
			Name:    jobDir + "/" + f.name,
			Mode:    0o644,
			Size:    int64(len(f.body)),
			ModTime: now,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("docker: writing header for %s: %w", f.name, err)
		}
		if _, err := tw.Write(f.body); err != nil {
			return nil, fmt.Errorf("docker: writing %s: %w", f.name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("docker: closing job archive: %w", err)
	}

	return &buf, nil
}

// extractSingleFile reads the first regular file out of a tar stream, as
// returned by ContainerCopyFrom for a single-file path.
func extractSingleFile(r io.Reader) ([]byte, error) {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("docker: archive contains no regular file")
		}
		if err != nil {
			return nil, fmt.Errorf("docker: reading archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("docker: reading %s from archive: %w", hdr.Name, err)
		}
		return data, nil
	}
}
