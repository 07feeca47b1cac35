// Package blob abstracts over the §6 filesystem layout. The default
// backend is the local filesystem the data root already lives on; an
// optional MinIO/S3-compatible backend lets the same relative path layout
// be served from object storage when /app/data is not a shared volume.
package blob

import "context"

// Store resolves the fixed relative paths of §6
// (uploads/, processed/, frames/, subs/) to a local filesystem location
// that the ffmpeg/ffprobe subprocesses and the vision/embedding HTTP
// clients can read and write directly, and durably persists whatever was
// written there.
type Store interface {
	// LocalPath returns a filesystem path backing relPath. For the
	// filesystem backend this is simply dataDir/relPath; for the MinIO
	// backend the object is downloaded into a local cache first if it
	// already exists remotely.
	LocalPath(ctx context.Context, relPath string) (string, error)
	// Persist uploads whatever now exists at LocalPath(relPath) to the
	// backing store. The filesystem backend is a no-op; the MinIO backend
	// pushes the object, grounded on the same upload step the teacher's
	// MinioStorage.UploadTranscodedFile performs.
	Persist(ctx context.Context, relPath string) error
	// Exists reports whether relPath has already been persisted, used by
	// the stage skip-clauses in §4.D.
	Exists(ctx context.Context, relPath string) (bool, error)
}
