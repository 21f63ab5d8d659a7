package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/mkrupp/promptbank/internal/domain"
	"github.com/mkrupp/promptbank/internal/infra/logging"
)

var ErrBytesWrittenMismatch = errors.New("bytes written mismatch")

const (
	dirPrefixLength = 2
	dirPrefixDepth  = 2
	idMinLength     = dirPrefixDepth * dirPrefixLength
	lockSuffix      = ".lock"
	tempPattern     = ".tmp-*"
)

// FileSystemBlobRepositoryConfig holds configuration for the filesystem-based blob repository.
type FileSystemBlobRepositoryConfig struct {
	// Basedir is the root directory for blob storage
	Basedir string `env:"BASEDIR" default:"var/storage/blob"`
}

// FileSystemBlobRepositoryFactory creates a factory function that returns a new FileSystemRepository.
// The factory function implements the RepositoryFactory type.
func FileSystemBlobRepositoryFactory(cfg FileSystemBlobRepositoryConfig) RepositoryFactory {
	return func(ctx context.Context, subdir, ext string) (Repository, error) {
		return NewFileSystemBlobRepository(ctx, subdir, ext, cfg)
	}
}

// NewFileSystemBlobRepository creates a FileSystemRepository storing blobs with extension ext
// below cfg.Basedir/subdir.
func NewFileSystemBlobRepository(
	ctx context.Context,
	subdir string,
	ext string,
	cfg FileSystemBlobRepositoryConfig,
) (*FileSystemRepository, error) {
	repo := &FileSystemRepository{
		root: filepath.Join(cfg.Basedir, subdir),
		ext:  ext,
		log: logging.GetLogger("repo.blob.filesystem_repository").With(
			logging.Group("repo", "basedir", cfg.Basedir, "subdir", subdir, "ext", ext),
		),
	}

	if err := repo.initStorage(ctx); err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}

	return repo, nil
}

// FileSystemRepository implements Repository using the local filesystem.
// Blobs are sharded into nested directories by the leading characters of their ID.
// Writes go to a temporary file that is renamed into place, so readers never
// observe a partially written blob.
type FileSystemRepository struct {
	root string
	ext  string
	log  logging.Logger
}

var _ Repository = (*FileSystemRepository)(nil)

func (fsRepo *FileSystemRepository) Lock(ctx context.Context, id domain.BlobID, exclusive bool) (func(), error) {
	mode := syscall.LOCK_SH
	if exclusive {
		mode = syscall.LOCK_EX
	}

	release, err := fsRepo.flock(ctx, fsRepo.GetFilename(id)+lockSuffix, mode)
	if err != nil {
		return nil, fmt.Errorf("flock: %w", err)
	}

	return release, nil
}

func (fsRepo *FileSystemRepository) Exists(_ context.Context, id domain.BlobID) bool {
	info, err := os.Stat(fsRepo.GetFilename(id))

	return err == nil && info.Mode().IsRegular()
}

func (fsRepo *FileSystemRepository) Store(ctx context.Context, blob *domain.Blob) (err error) {
	filename := fsRepo.GetFilename(blob.ID)

	defer func() {
		log := fsRepo.log.With(logging.Group("blob", "id", blob.ID, "filename", filename))
		if err != nil {
			log.ErrorContext(ctx, "blob store failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob stored", "size", blob.Size())
		}
	}()

	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("mkdir all: %w", err)
	}

	file, err := os.CreateTemp(filepath.Dir(filename), tempPattern)
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}

	tempName := file.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tempName)
		}
	}()

	written, err := blob.WriteTo(file)
	if err == nil && written != blob.Size() {
		err = fmt.Errorf("%w: expected %d, got %d", ErrBytesWrittenMismatch, blob.Size(), written)
	}

	if err == nil {
		err = file.Sync()
	}

	if closeErr := file.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return fmt.Errorf("write: %w", err)
	}

	if err := os.Chmod(tempName, 0o644); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}

	if err := os.Rename(tempName, filename); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}

func (fsRepo *FileSystemRepository) Fetch(ctx context.Context, id domain.BlobID) (blob *domain.Blob, err error) {
	filename := fsRepo.GetFilename(id)

	defer func() {
		log := fsRepo.log.With(logging.Group("blob", "id", id, "filename", filename))
		if errors.Is(err, domain.ErrNotFound) {
			log.DebugContext(ctx, "blob not found")
		} else if err != nil {
			log.ErrorContext(ctx, "blob fetch failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob fetched", "size", blob.Size())
		}
	}()

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open: %w", notFound(err))
	}
	defer file.Close()

	blob = &domain.Blob{ID: id}
	if _, err := blob.ReadFrom(file); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	return blob, nil
}

func (fsRepo *FileSystemRepository) Delete(ctx context.Context, id domain.BlobID) (err error) {
	filename := fsRepo.GetFilename(id)

	defer func() {
		log := fsRepo.log.With(logging.Group("blob", "id", id, "filename", filename))
		if err != nil {
			log.ErrorContext(ctx, "blob delete failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob deleted")
		}
	}()

	if err := os.Remove(filename); err != nil {
		return fmt.Errorf("remove: %w", notFound(err))
	}

	_ = os.Remove(filename + lockSuffix)

	return nil
}

// DeleteAll removes every blob whose ID starts with id and continues with pattern.
// Missing blobs are not an error.
func (fsRepo *FileSystemRepository) DeleteAll(ctx context.Context, id domain.BlobID, pattern string) (err error) {
	var removed int

	defer func() {
		log := fsRepo.log.With(logging.Group("blob", "id", id, "pattern", pattern))
		if err != nil {
			log.ErrorContext(ctx, "blob delete pattern failed", "error", err)
		} else {
			log.DebugContext(ctx, "blob pattern deleted", "count", removed)
		}
	}()

	glob := fsRepo.getBasename(id) + pattern + "." + fsRepo.ext

	filenames, err := filepath.Glob(glob)
	if err != nil {
		return fmt.Errorf("glob: %w", err)
	}

	for _, filename := range filenames {
		if err := os.Remove(filename); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove: %w", err)
		}

		_ = os.Remove(filename + lockSuffix)
		removed++
	}

	return nil
}

// GetFilename returns the full filesystem path for a blob with the given ID.
func (fsRepo *FileSystemRepository) GetFilename(id domain.BlobID) string {
	return fsRepo.getBasename(id) + "." + fsRepo.ext
}

func (fsRepo *FileSystemRepository) initStorage(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			fsRepo.log.ErrorContext(ctx, "init storage failed", "error", err)
		} else {
			fsRepo.log.DebugContext(ctx, "init storage")
		}
	}()

	if err := os.MkdirAll(fsRepo.root, 0o755); err != nil {
		return fmt.Errorf("mkdir all: %w", err)
	}

	return nil
}

// getBasename maps an ID to its sharded path without extension, e.g.
// 0194f3c2-7a4e.png -> <root>/01/94/0194f3c2-7a4e.png
func (fsRepo *FileSystemRepository) getBasename(id domain.BlobID) string {
	basename := strings.ReplaceAll(string(id), "/", "_")
	if len(basename) < idMinLength {
		basename = strings.Repeat("0", idMinLength-len(basename)) + basename
	}

	parts := []string{fsRepo.root}
	for i := 0; i < idMinLength; i += dirPrefixLength {
		parts = append(parts, basename[i:i+dirPrefixLength])
	}

	return filepath.Join(append(parts, basename)...)
}

func (fsRepo *FileSystemRepository) flock(ctx context.Context, lockfile string, mode int) (release func(), err error) {
	log := fsRepo.log.With(logging.Group("blob", "lockfile", lockfile))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "lock failed", "error", err)
		} else {
			log.DebugContext(ctx, "lock acquired")
		}
	}()

	if err := os.MkdirAll(filepath.Dir(lockfile), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir all: %w", err)
	}

	file, err := os.OpenFile(lockfile, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), mode); err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("flock: %w", err)
	}

	// Lock files outlive the lock; Delete removes them together with the blob.
	return func() {
		_ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		_ = file.Close()

		log.DebugContext(ctx, "lock released")
	}, nil
}

func notFound(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return errors.Join(domain.ErrNotFound, err)
	}

	return err
}
