package artifact

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"path"
	"path/filepath"

	"github.com/vk/frostline/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// DefaultRetentionDays is the retention window applied when a pipeline does
// not set one.
const DefaultRetentionDays = 90

// RunnerInput defines the arguments for the 'artifact_upload' runner.
type RunnerInput struct {
	Name          string `hcl:"name"`
	Path          string `hcl:"path"`
	RetentionDays int64  `hcl:"retention_days,optional"`
}

// RunnerDeps defines the injected resources from the 'uses' HCL block.
type RunnerDeps struct {
	Store *Store `hcl:"store"`
}

// onRunArtifactUpload is the handler for the 'artifact_upload' runner's
// on_run event. It walks the packaged directory and uploads every file under
// the artifact's name prefix, tagged with its retention window.
func onRunArtifactUpload(ctx context.Context, deps *RunnerDeps, input *RunnerInput) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("runner", "artifact_upload", "artifact", input.Name)

	if deps.Store == nil {
		return cty.NilVal, fmt.Errorf("artifact store dependency was not injected")
	}

	retention := int(input.RetentionDays)
	if retention == 0 {
		retention = DefaultRetentionDays
	}

	logger.Info("Publishing artifact", "path", input.Path, "retention_days", retention)

	var objects int64
	var totalBytes int64
	err := filepath.WalkDir(input.Path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(input.Path, p)
		if err != nil {
			return err
		}

		key := path.Join(input.Name, filepath.ToSlash(rel))
		contentType := mime.TypeByExtension(filepath.Ext(p))
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		size, err := deps.Store.Upload(ctx, key, p, contentType, retention)
		if err != nil {
			return fmt.Errorf("failed to upload %s: %w", key, err)
		}

		logger.Debug("Uploaded object.", "key", key, "size_bytes", size)
		objects++
		totalBytes += size
		return nil
	})
	if err != nil {
		return cty.NilVal, fmt.Errorf("artifact publish failed: %w", err)
	}
	if objects == 0 {
		return cty.NilVal, fmt.Errorf("artifact directory %s contains no files", input.Path)
	}

	logger.Info("Artifact published", "objects", objects, "total_bytes", totalBytes)
	return cty.ObjectVal(map[string]cty.Value{
		"name":        cty.StringVal(input.Name),
		"bucket":      cty.StringVal(deps.Store.Bucket()),
		"objects":     cty.NumberIntVal(objects),
		"total_bytes": cty.NumberIntVal(totalBytes),
	}), nil
}
